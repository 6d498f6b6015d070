package ingestor

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ava-labs/competition-indexer/pkg/eventlist"
	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/logsource"
)

const EnvPrefix = "INDEXER_"

// Config holds the ingestion settings. Every field can be loaded from an
// INDEXER_-prefixed environment variable.
type Config struct {
	ProgramID             string              `env:"PROGRAM_ID"`
	EventKinds            []events.Kind       `env:"EVENT_KINDS" envSeparator:","` // empty means all
	MaxEventsPerKind      int                 `env:"MAX_EVENTS_PER_KIND" envDefault:"4096"`
	OrderBy               eventlist.OrderBy   `env:"ORDER_BY" envDefault:"ledger"`
	OrderDirection        eventlist.Direction `env:"ORDER_DIRECTION" envDefault:"asc"`
	SourceMode            logsource.Mode      `env:"SOURCE_MODE" envDefault:"push"`
	PollInterval          time.Duration       `env:"POLL_INTERVAL" envDefault:"1s"`
	PollPageSize          int                 `env:"POLL_PAGE_SIZE" envDefault:"25"`
	PollMaxPages          int                 `env:"POLL_MAX_PAGES" envDefault:"10"`
	MaxCachedTransactions int                 `env:"MAX_CACHED_TRANSACTIONS" envDefault:"4096"`
	BackfillUntilTxSig    string              `env:"BACKFILL_UNTIL_TX_SIG"`
	BackfillPageSize      int                 `env:"BACKFILL_PAGE_SIZE" envDefault:"1000"`
	Commitment            string              `env:"COMMITMENT" envDefault:"confirmed"`
}

// DefaultConfig returns the defaults without a program id.
func DefaultConfig() Config {
	return Config{
		MaxEventsPerKind:      4096,
		OrderBy:               eventlist.OrderLedger,
		OrderDirection:        eventlist.Ascending,
		SourceMode:            logsource.ModePush,
		PollInterval:          time.Second,
		PollPageSize:          25,
		PollMaxPages:          10,
		MaxCachedTransactions: 4096,
		BackfillPageSize:      1000,
		Commitment:            "confirmed",
	}
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("parse ingestor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalizes enum fields and checks bounds.
func (c *Config) Validate() error {
	var errs []error

	if _, err := events.ParsePublicKey(c.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("program id: %w", err))
	}

	names := make([]string, len(c.EventKinds))
	for i, k := range c.EventKinds {
		names[i] = string(k)
	}
	kinds, err := events.ParseKinds(names)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.EventKinds = kinds
	}

	if by, err := eventlist.ParseOrderBy(string(c.OrderBy)); err != nil {
		errs = append(errs, err)
	} else {
		c.OrderBy = by
	}
	if dir, err := eventlist.ParseDirection(string(c.OrderDirection)); err != nil {
		errs = append(errs, err)
	} else {
		c.OrderDirection = dir
	}
	if mode, err := logsource.ParseMode(string(c.SourceMode)); err != nil {
		errs = append(errs, err)
	} else {
		c.SourceMode = mode
	}

	if c.MaxEventsPerKind <= 0 {
		errs = append(errs, errors.New("max events per kind must be greater than 0"))
	}
	if c.MaxCachedTransactions <= 0 {
		errs = append(errs, errors.New("max cached transactions must be greater than 0"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be greater than 0"))
	}
	if c.PollPageSize <= 0 {
		errs = append(errs, errors.New("poll page size must be greater than 0"))
	}
	if c.PollMaxPages <= 0 {
		errs = append(errs, errors.New("poll max pages must be greater than 0"))
	}
	if c.BackfillPageSize <= 0 {
		errs = append(errs, errors.New("backfill page size must be greater than 0"))
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("invalid commitment %q", c.Commitment))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid ingestor config: %w", err)
	}
	return nil
}
