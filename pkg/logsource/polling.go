package logsource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/competition-indexer/internal/chainclient"
	"github.com/ava-labs/competition-indexer/internal/types"
)

// PollingConfig configures the poll source.
type PollingConfig struct {
	Interval time.Duration
	PageSize int
	// MaxPages caps the pages walked per poll. Transactions further behind
	// the head than MaxPages*PageSize are skipped.
	MaxPages int
}

func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		Interval: time.Second,
		PageSize: 25,
		MaxPages: 10,
	}
}

var ErrInvalidLedger = errors.New("invalid ledger: must not be nil")

// Polling is the poll LogSource. Every interval it walks back from the head to
// the last delivered signature and delivers what is new, oldest first.
type Polling struct {
	log    *zap.SugaredLogger
	ledger chainclient.Ledger
	cfg    PollingConfig
	opts   options
	lc     lifecycle

	// pollMu is held for a whole poll; a tick that finds it taken is skipped.
	pollMu sync.Mutex

	cursorMu sync.Mutex
	cursor   string
	seeded   bool
}

var _ LogSource = (*Polling)(nil)

func NewPolling(log *zap.SugaredLogger, ledger chainclient.Ledger, cfg PollingConfig, opts ...Option) (*Polling, error) {
	if log == nil {
		return nil, ErrInvalidLogger
	}
	if ledger == nil {
		return nil, ErrInvalidLedger
	}
	def := DefaultPollingConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	return &Polling{
		log:    log,
		ledger: ledger,
		cfg:    cfg,
		opts:   buildOptions(opts),
	}, nil
}

func (p *Polling) Mode() Mode { return ModePoll }

func (p *Polling) IsSubscribed() bool { return p.lc.running() }

// Cursor returns the newest delivered signature.
func (p *Polling) Cursor() string {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	return p.cursor
}

func (p *Polling) cursorState() (string, bool) {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	return p.cursor, p.seeded
}

func (p *Polling) setCursor(sig string) {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	p.cursor = sig
	p.seeded = true
}

func (p *Polling) Subscribe(ctx context.Context, onBatch BatchHandler) error {
	if onBatch == nil {
		return errors.New("invalid batch handler: must not be nil")
	}
	p.lc.start(ctx, func(ctx context.Context) {
		p.run(ctx, onBatch)
	})
	return nil
}

func (p *Polling) Unsubscribe() bool {
	return p.lc.stop()
}

func (p *Polling) run(ctx context.Context, onBatch BatchHandler) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		p.tick(ctx, onBatch)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Polling) tick(ctx context.Context, onBatch BatchHandler) {
	err := p.poll(ctx, onBatch)
	if ctx.Err() != nil {
		return
	}
	p.opts.metrics.RecordPoll(err)
	if err != nil {
		p.log.Warnw("poll failed", "cursor", p.Cursor(), "error", err)
		p.opts.report(err)
	}
}

// poll runs one cycle. It returns nil without doing anything when another
// cycle is still in progress.
func (p *Polling) poll(ctx context.Context, onBatch BatchHandler) error {
	if !p.pollMu.TryLock() {
		p.log.Debugw("previous poll still running; skipping tick")
		return nil
	}
	defer p.pollMu.Unlock()

	cursor, seeded := p.cursorState()
	if !seeded {
		return p.seedCursor(ctx)
	}

	var (
		pages  [][]types.TxBatch
		newest string
		before string
	)
	for i := 0; ; i++ {
		if i == p.cfg.MaxPages {
			p.log.Warnw("poll page ceiling reached; older transactions skipped",
				"cursor", cursor, "maxPages", p.cfg.MaxPages, "pageSize", p.cfg.PageSize)
			break
		}
		page, err := p.ledger.FetchPriorBatches(ctx, before, cursor, p.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("fetch page before %q until %q: %w", before, cursor, err)
		}
		if page.Scanned == 0 {
			break
		}
		if newest == "" {
			newest = page.MostRecentSig
		}
		pages = append(pages, page.Entries)
		before = page.EarliestSig
		if page.Scanned < p.cfg.PageSize {
			break
		}
	}

	for i := len(pages) - 1; i >= 0; i-- {
		for _, batch := range pages[i] {
			if err := ctx.Err(); err != nil {
				return err
			}
			onBatch(batch)
		}
	}
	if newest != "" {
		p.setCursor(newest)
	}
	return nil
}

// seedCursor anchors the cursor at the current head without delivering
// anything; history is the backfill's job. An empty history seeds an empty
// cursor, so the first transaction ever seen is delivered.
func (p *Polling) seedCursor(ctx context.Context) error {
	page, err := p.ledger.FetchPriorBatches(ctx, "", "", 1)
	if err != nil {
		return fmt.Errorf("fetch head: %w", err)
	}
	p.setCursor(page.MostRecentSig)
	p.log.Debugw("poll cursor seeded", "cursor", page.MostRecentSig)
	return nil
}
