package ingestor

import (
	"slices"
	"sync"

	"github.com/ava-labs/competition-indexer/pkg/events"
)

// EventHandler is called once per newly ingested event, in ingestion order.
// It runs inside the ingestion critical section: it must not call HandleBatch
// or FetchHistorical, and should hand slow work off to another goroutine.
type EventHandler func(ev events.Event)

// ErrorHandler receives source connectivity and backfill paging failures.
type ErrorHandler func(err error)

type handlerEntry[F any] struct {
	id int
	fn F
}

// handlers is a registration list that can be called while other goroutines
// add or remove entries.
type handlers[F any] struct {
	mu      sync.RWMutex
	nextID  int
	entries []handlerEntry[F]
}

func (h *handlers[F]) add(fn F) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.entries = append(h.entries, handlerEntry[F]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.entries = slices.DeleteFunc(h.entries, func(e handlerEntry[F]) bool { return e.id == id })
		})
	}
}

func (h *handlers[F]) snapshot() []handlerEntry[F] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.entries)
}
