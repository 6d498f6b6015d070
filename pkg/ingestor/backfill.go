package ingestor

import (
	"context"
	"fmt"
)

// FetchHistorical pages backward from the ledger head, feeding every
// transaction through HandleBatch, until untilTxSig is reached, maxToFetch
// signatures have been listed or the history runs out. It returns the number
// of signatures listed.
//
// maxToFetch <= 0 means MaxCachedTransactions. With neither untilTxSig nor
// maxToFetch the configured BackfillUntilTxSig is used, and without that the
// call does nothing.
//
// A failed page stops the walk with an error wrapping ErrPagingFetch; pages
// handled before it stay ingested.
func (i *Ingestor) FetchHistorical(ctx context.Context, untilTxSig string, maxToFetch int) (int, error) {
	if i.ledger == nil {
		return 0, ErrNoLedger
	}
	if untilTxSig == "" && maxToFetch <= 0 {
		untilTxSig = i.cfg.BackfillUntilTxSig
		if untilTxSig == "" {
			return 0, nil
		}
	}
	if maxToFetch <= 0 {
		maxToFetch = i.cfg.MaxCachedTransactions
	}

	var (
		listed int
		before string
		pages  int
	)
	for listed < maxToFetch {
		limit := min(i.cfg.BackfillPageSize, maxToFetch-listed)
		page, err := i.ledger.FetchPriorBatches(ctx, before, untilTxSig, limit)
		if err != nil {
			i.metrics.RecordBackfillPage(err, 0)
			err = fmt.Errorf("%w: page %d before %q: %w", ErrPagingFetch, pages, before, err)
			i.log.Warnw("historical fetch aborted", "listed", listed, "pages", pages, "error", err)
			i.ReportError(err)
			return listed, err
		}
		pages++
		i.metrics.RecordBackfillPage(nil, len(page.Entries))
		if page.Scanned == 0 {
			break
		}
		listed += page.Scanned

		for _, batch := range page.Entries {
			if err := ctx.Err(); err != nil {
				return listed, err
			}
			i.handleBatch(batch, sourceBackfill)
		}
		before = page.EarliestSig
	}

	i.log.Infow("historical fetch complete", "listed", listed, "pages", pages, "until", untilTxSig)
	return listed, nil
}
