// Package forwarder hands newly ingested events to external sinks such as a
// Kafka topic or a Postgres table without blocking on them inside the
// ingestion critical section.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/metrics"
)

var (
	ErrInvalidLogger     = errors.New("invalid logger: must not be nil")
	ErrNoSinks           = errors.New("invalid sinks: at least one sink is required")
	ErrInvalidBufferSize = errors.New("invalid buffer size: must be greater than 0")
	ErrStopped           = errors.New("forwarder stopped")
)

const DefaultBufferSize = 1024

// Sink receives every forwarded event. Forward may block; it is called from a
// single goroutine, in ingestion order.
type Sink interface {
	Name() string
	Forward(ctx context.Context, ev events.Event) error
}

type Option func(*Forwarder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithErrorHandler receives failed forwards. The event is not retried.
func WithErrorHandler(fn func(error)) Option {
	return func(f *Forwarder) {
		f.onError = fn
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		f.timeout = d
	}
}

// Forwarder buffers events and delivers them to its sinks from Run.
type Forwarder struct {
	log     *zap.SugaredLogger
	sinks   []Sink
	queue   chan events.Event
	done    chan struct{}
	metrics *metrics.Metrics
	onError func(error)
	timeout time.Duration
}

func New(log *zap.SugaredLogger, bufferSize int, sinks []Sink, opts ...Option) (*Forwarder, error) {
	if log == nil {
		return nil, ErrInvalidLogger
	}
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	if bufferSize <= 0 {
		return nil, ErrInvalidBufferSize
	}
	f := &Forwarder{
		log:     log,
		sinks:   sinks,
		queue:   make(chan events.Event, bufferSize),
		done:    make(chan struct{}),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Enqueue buffers ev for delivery. When the buffer is full it blocks until Run
// catches up, which applies backpressure to ingestion. After Run has returned
// it fails with ErrStopped.
func (f *Forwarder) Enqueue(ev events.Event) error {
	select {
	case <-f.done:
		return ErrStopped
	default:
	}
	select {
	case f.queue <- ev:
		return nil
	case <-f.done:
		return ErrStopped
	}
}

// Handle is an ingestor.EventHandler.
func (f *Forwarder) Handle(ev events.Event) {
	if err := f.Enqueue(ev); err != nil {
		f.log.Debugw("dropping event", "txSig", ev.Meta().TxSig, "kind", ev.Meta().Kind, "error", err)
	}
}

// Run delivers buffered events until ctx is done. It must be called once.
func (f *Forwarder) Run(ctx context.Context) error {
	defer close(f.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(f.queue); n > 0 {
				f.log.Warnw("forwarder stopping with undelivered events", "pending", n)
			}
			return nil
		case ev := <-f.queue:
			f.forward(ctx, ev)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, ev events.Event) {
	meta := ev.Meta()
	for _, s := range f.sinks {
		fctx, cancel := context.WithTimeout(ctx, f.timeout)
		start := time.Now()
		err := s.Forward(fctx, ev)
		cancel()
		f.metrics.RecordForward(s.Name(), err, time.Since(start).Seconds())
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		err = fmt.Errorf("forward %s event from %s to %s: %w", meta.Kind, meta.TxSig, s.Name(), err)
		f.log.Warnw("failed to forward event", "sink", s.Name(), "txSig", meta.TxSig, "kind", meta.Kind, "error", err)
		if f.onError != nil {
			f.onError(err)
		}
	}
}
