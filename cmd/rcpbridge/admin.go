package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

// adminRouter serves metrics, health and the debug counter report.
func adminRouter(gatherer prometheus.Gatherer, counters metrics.Counters, healthy func() bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy() {
			http.Error(w, "not listening", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})

	r.Get("/debug/counters", func(w http.ResponseWriter, _ *http.Request) {
		s := counters.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			metrics.Snapshot
			Outstanding int64
		}{s, s.Outstanding()})
	})

	r.Delete("/debug/counters", func(w http.ResponseWriter, _ *http.Request) {
		counters.Reset()
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// runAdmin serves h on addr until ctx is done.
func runAdmin(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin endpoint", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
