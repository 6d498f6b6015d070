package ingestor

import "sync"

// Watermark is the newest transaction seen by the live subscription. BlockTime
// is tracked separately as a running maximum and is zero until a batch carrying
// one is seen.
type Watermark struct {
	Slot      uint64
	TxSig     string
	BlockTime int64
}

func (w Watermark) IsZero() bool {
	return w.TxSig == "" && w.Slot == 0 && w.BlockTime == 0
}

type watermarkTracker struct {
	mu sync.RWMutex
	wm Watermark
}

// advance moves the watermark forward and reports whether it changed.
func (t *watermarkTracker) advance(sig string, slot uint64, blockTime *int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	if t.wm.TxSig == "" || slot > t.wm.Slot {
		t.wm.Slot = slot
		t.wm.TxSig = sig
		changed = true
	}
	if blockTime != nil && *blockTime > t.wm.BlockTime {
		t.wm.BlockTime = *blockTime
		changed = true
	}
	return changed
}

func (t *watermarkTracker) get() Watermark {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.wm
}

func (t *watermarkTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wm = Watermark{}
}
