// Package events delivers completion events to analytics collectors.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

var (
	// ErrQueueFull indicates an event was dropped because the buffer was full
	ErrQueueFull = errors.New("event queue full")

	// ErrClosed indicates the sink no longer accepts events
	ErrClosed = errors.New("event sink closed")
)

const (
	DefaultBufferSize      = 256
	DefaultWorkers         = 2
	DefaultDeliveryTimeout = 5 * time.Second
)

// AsyncSink hands events to background workers so Publish never waits on
// the downstream collector. Events are dropped when the buffer is full.
type AsyncSink struct {
	next    simplemedia.EventSink
	logger  *slog.Logger
	timeout time.Duration
	workers int

	queue chan simplemedia.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// AsyncOption configures an AsyncSink
type AsyncOption func(*asyncConfig)

type asyncConfig struct {
	buffer  int
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// WithBufferSize sets how many events may wait for delivery
func WithBufferSize(n int) AsyncOption {
	return func(c *asyncConfig) {
		c.buffer = n
	}
}

// WithWorkers sets the number of delivery goroutines
func WithWorkers(n int) AsyncOption {
	return func(c *asyncConfig) {
		c.workers = n
	}
}

// WithDeliveryTimeout bounds each downstream Publish
func WithDeliveryTimeout(d time.Duration) AsyncOption {
	return func(c *asyncConfig) {
		c.timeout = d
	}
}

// WithLogger sets the logger for delivery failures
func WithLogger(logger *slog.Logger) AsyncOption {
	return func(c *asyncConfig) {
		c.logger = logger
	}
}

// NewAsyncSink starts the workers that forward events to next
func NewAsyncSink(next simplemedia.EventSink, options ...AsyncOption) *AsyncSink {
	cfg := asyncConfig{
		buffer:  DefaultBufferSize,
		workers: DefaultWorkers,
		timeout: DefaultDeliveryTimeout,
	}
	for _, option := range options {
		option(&cfg)
	}
	if cfg.buffer < 0 {
		cfg.buffer = 0
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &AsyncSink{
		next:    next,
		logger:  cfg.logger,
		timeout: cfg.timeout,
		workers: cfg.workers,
		queue:   make(chan simplemedia.Event, cfg.buffer),
	}
	s.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go s.run()
	}
	return s
}

// Publish enqueues the event and returns immediately.
func (s *AsyncSink) Publish(ctx context.Context, event simplemedia.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	select {
	case s.queue <- event:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for event := range s.queue {
		s.deliver(event)
	}
}

func (s *AsyncSink) deliver(event simplemedia.Event) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.next.Publish(ctx, event); err != nil {
		s.failed.Add(1)
		s.logger.Warn("event delivery failed", "kind", event.Kind, "id", event.EntryID, "error", err)
		return
	}
	s.delivered.Add(1)
}

// Close stops accepting events and waits for queued ones to be delivered
// or for ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports delivery counters.
type Stats struct {
	Delivered int64
	Dropped   int64
	Failed    int64
}

func (s *AsyncSink) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}
