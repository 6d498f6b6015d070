package checkpointer

import (
	"context"
	"fmt"
	"time"

	"github.com/ava-labs/competition-indexer/pkg/metrics"
)

// Checkpoint is the newest transaction the indexer has ingested for a program.
// On restart its signature bounds the historical backfill.
type Checkpoint struct {
	TxSig     string
	Slot      uint64
	BlockTime int64
}

func (c Checkpoint) IsZero() bool {
	return c.TxSig == ""
}

// Checkpointer abstracts checkpoint persistence across data stores.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready. It must be
	// idempotent.
	Initialize(ctx context.Context) error

	// Write persists cp as the latest checkpoint for programID.
	Write(ctx context.Context, programID string, cp Checkpoint) error

	// Read returns the latest checkpoint for programID. exists is false when
	// none was ever written.
	Read(ctx context.Context, programID string) (cp Checkpoint, exists bool, err error)
}

// Start periodically persists the checkpoint returned by current. Unchanged
// and empty checkpoints are not rewritten. On cancellation a final write is
// attempted with a fresh WriteTimeout.
//
// Returns nil on context cancellation, or an error if a write still fails
// after all retries.
func Start(
	ctx context.Context,
	current func() Checkpoint,
	c Checkpointer,
	cfg Config,
	programID string,
	m *metrics.Metrics,
) error {
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	var last Checkpoint
	for {
		select {
		case <-ctx.Done():
			cp := current()
			if cp.IsZero() || cp == last {
				return nil
			}
			// Best effort; the process is shutting down.
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.WriteTimeout)
			err := write(writeCtx, c, programID, cp, m)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to write final checkpoint (tx: %s): %w", cp.TxSig, err)
			}
			return nil

		case <-t.C:
			cp := current()
			if cp.IsZero() || cp == last {
				continue
			}

			var lastErr error
			for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
				if ctx.Err() != nil {
					break
				}

				writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
				lastErr = write(writeCtx, c, programID, cp, m)
				cancel()
				if lastErr == nil {
					break
				}
				if ctx.Err() != nil {
					break
				}

				if attempt < cfg.MaxRetries {
					select {
					case <-time.After(cfg.RetryBackoff):
					case <-ctx.Done():
					}
				}
			}

			if lastErr == nil {
				last = cp
				continue
			}
			if ctx.Err() != nil {
				// Leave it to the shutdown branch.
				continue
			}
			return fmt.Errorf("failed to write checkpoint (tx: %s, slot: %d) after %d retries: %w",
				cp.TxSig, cp.Slot, cfg.MaxRetries+1, lastErr)
		}
	}
}

func write(ctx context.Context, c Checkpointer, programID string, cp Checkpoint, m *metrics.Metrics) error {
	start := time.Now()
	err := c.Write(ctx, programID, cp)
	m.RecordCheckpointWrite(err, time.Since(start).Seconds())
	return err
}
