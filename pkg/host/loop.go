package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultLoopSize is the number of pending functions a Loop holds.
const DefaultLoopSize = 1024

var (
	// ErrLoopFull is returned when the loop queue is full.
	ErrLoopFull = errors.New("host: loop queue full")

	// ErrLoopStopped is returned after Stop.
	ErrLoopStopped = errors.New("host: loop stopped")
)

// Loop runs functions one at a time on the goroutine that calls Run.
type Loop struct {
	fns    chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates a Loop holding up to size pending functions. size <= 0
// uses DefaultLoopSize. A nil logger uses slog.Default().
func NewLoop(size int, logger *slog.Logger) *Loop {
	if size <= 0 {
		size = DefaultLoopSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		fns:    make(chan func(), size),
		done:   make(chan struct{}),
		logger: logger.With("component", "host"),
	}
}

// Dispatch queues fn. It never blocks.
func (l *Loop) Dispatch(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.fns <- fn:
		return nil
	default:
		return ErrLoopFull
	}
}

// Run executes dispatched functions until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.fns:
			l.run(fn)
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop makes Run return. Pending functions are discarded.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// post dispatches fn and logs when it cannot.
func (l *Loop) post(fn func()) {
	if err := l.Dispatch(fn); err != nil && !errors.Is(err, ErrLoopStopped) {
		l.logger.Warn("host notification dropped", "error", err)
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host callback panic", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
