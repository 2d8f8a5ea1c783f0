package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rabbitcontrol/rcpbridge/internal/config"
	"github.com/rabbitcontrol/rcpbridge/internal/errors"
	"github.com/rabbitcontrol/rcpbridge/pkg/codec"
	"github.com/rabbitcontrol/rcpbridge/pkg/metrics"
)

func TestEncodeDecodeStream(t *testing.T) {
	for _, framing := range []codec.Framing{codec.FramingSLIP, codec.FramingSize} {
		t.Run(string(framing), func(t *testing.T) {
			var framed bytes.Buffer
			if err := encodeStream(bytes.NewReader([]byte{0x01, 0xC0, 0xDB, 0x02}), &framed, framing); err != nil {
				t.Fatalf("encodeStream() error: %v", err)
			}
			// Two packets back to back.
			stream := append(framed.Bytes(), framing.Encode([]byte{0xff})...)

			var out bytes.Buffer
			if err := decodeStream(bytes.NewReader(stream), &out, framing, codec.DefaultBufferSize); err != nil {
				t.Fatalf("decodeStream() error: %v", err)
			}
			if got, want := out.String(), "01c0db02\nff\n"; got != want {
				t.Fatalf("decoded = %q, want %q", got, want)
			}
		})
	}
}

func TestDecodeStream_InvalidBufferSize(t *testing.T) {
	err := decodeStream(strings.NewReader(""), &bytes.Buffer{}, codec.FramingSLIP, 0)
	if errors.Code(err) != "E103" {
		t.Fatalf("decodeStream(size 0) code = %q, want E103", errors.Code(err))
	}
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := initConfig(dir, false)
	if err != nil {
		t.Fatalf("initConfig() error: %v", err)
	}
	if path != filepath.Join(dir, config.ConfigFileName) {
		t.Fatalf("path = %q", path)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != config.DefaultPort {
		t.Fatalf("Server.Port = %d, want %d", cfg.Server.Port, config.DefaultPort)
	}

	if _, err := initConfig(dir, false); errors.Code(err) != "E144" {
		t.Fatalf("second initConfig() code = %q, want E144", errors.Code(err))
	}

	os.WriteFile(path, []byte("{}"), 0644)
	if _, err := initConfig(dir, true); err != nil {
		t.Fatalf("initConfig(force) error: %v", err)
	}
}

func TestShowConfig(t *testing.T) {
	var out bytes.Buffer
	if err := showConfig(&out, config.New()); err != nil {
		t.Fatalf("showConfig() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := decoded["server"]; !ok {
		t.Fatalf("output has no server section: %s", out.String())
	}
}

func TestAdminRouter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counters := metrics.NewPrometheus(
		metrics.WithNamespace("test"),
		metrics.WithRegistry(registry),
	)
	healthy := true
	srv := httptest.NewServer(adminRouter(registry, counters, func() bool { return healthy }))
	defer srv.Close()

	counters.ConnectionOpened("server")
	counters.BytesSent("server", 42)

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		defer resp.Body.Close()
		var body bytes.Buffer
		body.ReadFrom(resp.Body)
		if !strings.Contains(body.String(), "test_") {
			t.Fatalf("/metrics has no namespaced series:\n%s", body.String())
		}
	})

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		healthy = false
		resp, err = http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		resp.Body.Close()
		healthy = true
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
	})

	t.Run("counters", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/debug/counters")
		if err != nil {
			t.Fatalf("GET /debug/counters: %v", err)
		}
		defer resp.Body.Close()
		var s metrics.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if s.Connections != 1 || s.BytesSent != 42 {
			t.Fatalf("snapshot = %+v", s)
		}

		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/debug/counters", nil)
		resp2, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE /debug/counters: %v", err)
		}
		resp2.Body.Close()
		if resp2.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", resp2.StatusCode)
		}
		if s := counters.Snapshot(); s.BytesSent != 0 {
			t.Fatalf("BytesSent after reset = %d", s.BytesSent)
		}
	})
}
