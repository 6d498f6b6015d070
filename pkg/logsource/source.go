// Package logsource delivers a program's confirmed transactions, one batch per
// transaction, either pushed over a websocket feed or polled from the ledger's
// paging interface.
package logsource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ava-labs/competition-indexer/internal/types"
	"github.com/ava-labs/competition-indexer/pkg/metrics"
)

// ErrSourceConnectivity wraps every transport failure reported by a source.
var ErrSourceConnectivity = errors.New("log source connectivity")

var ErrInvalidLogger = errors.New("invalid logger: must not be nil")

// BatchHandler receives one transaction. Calls are sequential per source.
type BatchHandler func(batch types.TxBatch)

// ErrorHandler receives connectivity failures. The source retries on its own.
type ErrorHandler func(err error)

// LogSource is implemented by WebSocket and Polling.
type LogSource interface {
	// Subscribe starts delivery in the background. It is a no-op returning
	// nil when already subscribed.
	Subscribe(ctx context.Context, onBatch BatchHandler) error
	// Unsubscribe stops delivery and reports whether a subscription was
	// active. No batch is delivered after it returns. It must not be called
	// from within the BatchHandler.
	Unsubscribe() bool
	IsSubscribed() bool
	// Mode names the delivery mechanism.
	Mode() Mode
}

// Mode selects the delivery mechanism.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePush, ModePoll:
		return m, nil
	default:
		return "", fmt.Errorf("invalid source mode %q: must be %q or %q", s, ModePush, ModePoll)
	}
}

type options struct {
	onError ErrorHandler
	metrics *metrics.Metrics
}

// Option configures a source.
type Option func(*options)

// WithErrorHandler sets the connectivity error callback.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithMetrics enables metrics collection for the source.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) report(err error) {
	o.metrics.RecordSourceError()
	if o.onError != nil {
		o.onError(fmt.Errorf("%w: %w", ErrSourceConnectivity, err))
	}
}

// lifecycle runs one background loop at a time.
type lifecycle struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *lifecycle) start(ctx context.Context, run func(ctx context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.activeLocked() {
		return false
	}
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go func() {
		defer close(done)
		run(ctx)
	}()
	return true
}

// stop cancels the loop and waits for it to exit.
func (l *lifecycle) stop() bool {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// running reports whether the loop is live. A loop whose parent context was
// cancelled counts as stopped.
func (l *lifecycle) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeLocked()
}

func (l *lifecycle) activeLocked() bool {
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}
