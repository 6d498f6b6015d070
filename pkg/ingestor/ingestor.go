package ingestor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/competition-indexer/internal/chainclient"
	"github.com/ava-labs/competition-indexer/internal/types"
	"github.com/ava-labs/competition-indexer/pkg/eventlist"
	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/logsource"
	"github.com/ava-labs/competition-indexer/pkg/metrics"
	"github.com/ava-labs/competition-indexer/pkg/txcache"
)

var (
	ErrInvalidLogger = errors.New("invalid logger: must not be nil")
	ErrInvalidSource = errors.New("invalid log source: must not be nil")
	ErrNoLedger      = errors.New("no ledger configured for historical fetch")
	// ErrPagingFetch wraps a failed backfill page. Pages processed before the
	// failure stay committed.
	ErrPagingFetch = errors.New("paging fetch")
)

// Batch source labels used when the batch did not come from a LogSource.
const (
	sourceDirect   = "direct"
	sourceBackfill = "backfill"
)

// State is the subscription state.
type State int32

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures the Ingestor.
type Option func(*Ingestor)

// WithMetrics enables metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingestor) {
		i.metrics = m
	}
}

// WithLedger enables FetchHistorical.
func WithLedger(l chainclient.Ledger) Option {
	return func(i *Ingestor) {
		i.ledger = l
	}
}

// Ingestor owns the per-kind event lists, the transaction cache, the watermark
// and the pending awaits of one subscription.
type Ingestor struct {
	log     *zap.SugaredLogger
	cfg     Config
	source  logsource.LogSource
	ledger  chainclient.Ledger
	metrics *metrics.Metrics
	decoder *events.Decoder

	lists map[events.Kind]*eventlist.List[events.Event]
	cache *txcache.Cache[[]events.Event]

	// ingestMu serializes HandleBatch end to end.
	ingestMu sync.Mutex

	// awaitMu covers the pending registry together with the cache insert, so
	// a registration either sees the cached id or is resolved by it.
	awaitMu sync.Mutex
	pending map[string]chan struct{}

	// stateMu serializes Subscribe and Unsubscribe.
	stateMu sync.Mutex
	state   atomic.Int32

	watermark watermarkTracker

	onEvent handlers[EventHandler]
	onError handlers[ErrorHandler]
}

func New(log *zap.SugaredLogger, cfg Config, source logsource.LogSource, opts ...Option) (*Ingestor, error) {
	if log == nil {
		return nil, ErrInvalidLogger
	}
	if source == nil {
		return nil, ErrInvalidSource
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	i := &Ingestor{
		log:     log,
		cfg:     cfg,
		source:  source,
		pending: make(map[string]chan struct{}),
		lists:   make(map[events.Kind]*eventlist.List[events.Event], len(cfg.EventKinds)),
	}
	for _, opt := range opts {
		opt(i)
	}

	cmp := eventlist.ComparatorFor(cfg.OrderBy, cfg.OrderDirection, func(ev events.Event) uint64 {
		return ev.Meta().Slot
	})
	for _, kind := range cfg.EventKinds {
		l, err := eventlist.New(cfg.MaxEventsPerKind, cmp, cfg.OrderDirection)
		if err != nil {
			return nil, fmt.Errorf("create %s list: %w", kind, err)
		}
		i.lists[kind] = l
	}

	cache, err := txcache.New(cfg.MaxCachedTransactions, func(sig string, evs []events.Event) {
		i.metrics.RecordCacheEviction()
		i.log.Debugw("transaction evicted from cache; a redelivery will be processed again",
			"txSig", sig, "events", len(evs))
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction cache: %w", err)
	}
	i.cache = cache

	i.decoder = events.NewDecoder(cfg.ProgramID,
		events.WithKinds(cfg.EventKinds...),
		events.WithMalformedHook(func(sig string, kind events.Kind, err error) {
			i.metrics.RecordDecodeSkipped(string(kind))
			i.log.Debugw("skipping malformed event log", "txSig", sig, "kind", kind, "error", err)
		}),
	)

	return i, nil
}

// Config returns the validated configuration.
func (i *Ingestor) Config() Config {
	return i.cfg
}

// Subscribe starts the log source. It returns true when the source is
// running, including when it already was.
func (i *Ingestor) Subscribe(ctx context.Context) bool {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()

	if State(i.state.Load()) == StateSubscribed && i.source.IsSubscribed() {
		return true
	}
	i.state.Store(int32(StateSubscribing))
	i.watermark.reset()
	i.resetPending()

	mode := string(i.source.Mode())
	err := i.source.Subscribe(ctx, func(batch types.TxBatch) {
		i.handleBatch(batch, mode)
	})
	if err != nil {
		i.state.Store(int32(StateUnsubscribed))
		i.log.Errorw("failed to subscribe to log source", "mode", mode, "error", err)
		i.ReportError(err)
		return false
	}
	i.state.Store(int32(StateSubscribed))
	i.log.Infow("subscribed", "mode", mode, "program", i.cfg.ProgramID, "kinds", i.cfg.EventKinds)
	return true
}

// Unsubscribe stops the log source before returning. Pending awaits are
// dropped without being resolved and the watermark is cleared.
func (i *Ingestor) Unsubscribe() bool {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()

	stopped := i.source.Unsubscribe()
	dropped := i.resetPending()
	i.watermark.reset()
	i.state.Store(int32(StateUnsubscribed))
	i.log.Infow("unsubscribed", "stopped", stopped, "droppedAwaits", dropped)
	return stopped
}

// State returns the subscription state. A subscription whose source stopped on
// its own reports StateUnsubscribed.
func (i *Ingestor) State() State {
	st := State(i.state.Load())
	if st == StateSubscribed && !i.source.IsSubscribed() {
		return StateUnsubscribed
	}
	return st
}

// Ready reports whether the live subscription is running.
func (i *Ingestor) Ready() bool {
	return i.State() == StateSubscribed
}

// HandleBatch ingests one transaction. Delivering the same transaction again
// while it is still cached has no effect.
func (i *Ingestor) HandleBatch(batch types.TxBatch) {
	i.handleBatch(batch, sourceDirect)
}

func (i *Ingestor) handleBatch(batch types.TxBatch, source string) {
	i.ingestMu.Lock()
	defer i.ingestMu.Unlock()

	if i.cache.Has(batch.Signature) {
		i.metrics.RecordBatch(source, true, 0)
		return
	}
	start := time.Now()

	evs := i.decoder.Decode(batch)

	for _, ev := range evs {
		kind := ev.Meta().Kind
		list, ok := i.lists[kind]
		if !ok {
			continue
		}
		if removed, evicted := list.Insert(ev); evicted {
			i.metrics.RecordListEviction(string(kind))
			i.log.Debugw("event evicted from full list", "kind", kind, "txSig", removed.Meta().TxSig, "slot", removed.Meta().Slot)
		}
	}

	// Announce only once the whole batch is visible in the lists.
	for _, ev := range evs {
		i.metrics.RecordEvent(string(ev.Meta().Kind))
		i.emitEvent(ev)
	}

	if i.watermark.advance(batch.Signature, batch.Slot, batch.BlockTime) {
		wm := i.watermark.get()
		i.metrics.UpdateWatermark(wm.Slot, wm.BlockTime)
	}

	i.awaitMu.Lock()
	if ch, ok := i.pending[batch.Signature]; ok {
		close(ch)
		delete(i.pending, batch.Signature)
	}
	i.cache.Add(batch.Signature, evs)
	pending := len(i.pending)
	i.awaitMu.Unlock()

	i.metrics.SetPendingAwaits(pending)
	i.metrics.SetCachedTransactions(i.cache.Len())
	i.metrics.RecordBatch(source, false, time.Since(start).Seconds())
}

// EventList returns the live list for kind, or false when kind is not
// ingested.
func (i *Ingestor) EventList(kind events.Kind) (*eventlist.List[events.Event], bool) {
	l, ok := i.lists[kind]
	return l, ok
}

// EventsSnapshot returns a point-in-time copy of kind's list in read order.
func (i *Ingestor) EventsSnapshot(kind events.Kind) []events.Event {
	l, ok := i.lists[kind]
	if !ok {
		return nil
	}
	return l.ToSlice()
}

// EventsByTx returns the events decoded from a cached transaction.
func (i *Ingestor) EventsByTx(sig string) ([]events.Event, bool) {
	return i.cache.Get(sig)
}

// Watermark returns the newest transaction seen since the last subscribe.
func (i *Ingestor) Watermark() Watermark {
	return i.watermark.get()
}

// OnNewEvent registers fn for every newly ingested event and returns a func
// that unregisters it.
func (i *Ingestor) OnNewEvent(fn EventHandler) (remove func()) {
	return i.onEvent.add(fn)
}

// OnError registers fn for reported failures and returns a func that
// unregisters it.
func (i *Ingestor) OnError(fn ErrorHandler) (remove func()) {
	return i.onError.add(fn)
}

// ReportError forwards err to the OnError handlers. Log sources are wired to
// it so connectivity failures reach subscribers.
func (i *Ingestor) ReportError(err error) {
	if err == nil {
		return
	}
	for _, h := range i.onError.snapshot() {
		h.fn(err)
	}
}

func (i *Ingestor) emitEvent(ev events.Event) {
	for _, h := range i.onEvent.snapshot() {
		h.fn(ev)
	}
}
