package ingestor

import "context"

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// AwaitTransaction returns a channel closed once sig has been ingested. For a
// transaction already in the cache the channel is already closed. Callers
// awaiting the same transaction share one channel. The channel is never closed
// if the subscription is torn down first, so callers bound the wait themselves.
func (i *Ingestor) AwaitTransaction(sig string) <-chan struct{} {
	i.awaitMu.Lock()
	defer i.awaitMu.Unlock()

	if ch, ok := i.pending[sig]; ok {
		return ch
	}
	if i.cache.Has(sig) {
		return closedChan
	}
	ch := make(chan struct{})
	i.pending[sig] = ch
	i.metrics.SetPendingAwaits(len(i.pending))
	return ch
}

// WaitForTransaction blocks until sig has been ingested or ctx is done.
func (i *Ingestor) WaitForTransaction(ctx context.Context, sig string) error {
	select {
	case <-i.AwaitTransaction(sig):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetPending drops every pending await and returns how many there were.
func (i *Ingestor) resetPending() int {
	i.awaitMu.Lock()
	defer i.awaitMu.Unlock()
	n := len(i.pending)
	i.pending = make(map[string]chan struct{})
	i.metrics.SetPendingAwaits(0)
	return n
}
