package chainclient

import (
	"context"

	"github.com/ava-labs/competition-indexer/internal/types"
)

// Page is one backward page of a program's transaction history.
type Page struct {
	// Entries holds the successful transactions of the page, oldest first.
	Entries []types.TxBatch
	// EarliestSig is the oldest signature listed by the ledger for this page,
	// errored transactions included. It is the cursor for the next older page.
	EarliestSig  string
	EarliestSlot uint64
	// MostRecentSig is the newest signature listed for this page.
	MostRecentSig       string
	MostRecentBlockTime *int64
	// Scanned is the number of signatures the ledger listed. Zero means the
	// history is exhausted.
	Scanned int
}

// Ledger is the paging read interface of the ledger.
type Ledger interface {
	// FetchPriorBatches lists up to limit transactions older than before
	// (newest when empty) and newer than until (unbounded when empty).
	FetchPriorBatches(ctx context.Context, before, until string, limit int) (*Page, error)
}
