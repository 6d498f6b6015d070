// Package eventstore keeps every forwarded competition event in Postgres.
// Inserts are idempotent, so replays after a restart or a dedup cache
// eviction do not create duplicate rows.
package eventstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ava-labs/competition-indexer/pkg/events"
)

var ErrInvalidDB = errors.New("invalid db: must not be nil")

const DefaultTable = "competition_events"

const createTableQuery = `
CREATE TABLE IF NOT EXISTS %[1]s (
	tx_sig     TEXT        NOT NULL,
	event_id   TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	slot       BIGINT      NOT NULL,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (tx_sig, event_id)
);
CREATE INDEX IF NOT EXISTS %[1]s_kind_slot_idx ON %[1]s (kind, slot)`

const insertQuery = `INSERT INTO %s (tx_sig, event_id, kind, slot, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tx_sig, event_id) DO NOTHING`

// DB is the subset of pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db     DB
	table  string
	insert string
	close  func()
}

// Open connects to Postgres, creates the table if needed and returns a store
// that owns the pool.
func Open(ctx context.Context, connString, table string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := New(ctx, pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close
	return s, nil
}

// New creates the table if needed on db. An empty table means DefaultTable.
func New(ctx context.Context, db DB, table string) (*Store, error) {
	if db == nil {
		return nil, ErrInvalidDB
	}
	if table == "" {
		table = DefaultTable
	}
	if _, err := db.Exec(ctx, fmt.Sprintf(createTableQuery, table)); err != nil {
		return nil, fmt.Errorf("create %s table: %w", table, err)
	}
	return &Store{
		db:     db,
		table:  table,
		insert: fmt.Sprintf(insertQuery, table),
		close:  func() {},
	}, nil
}

func (*Store) Name() string { return "postgres" }

// Forward implements forwarder.Sink.
func (s *Store) Forward(ctx context.Context, ev events.Event) error {
	_, err := s.Save(ctx, ev)
	return err
}

// Save inserts ev and reports whether a new row was written.
func (s *Store) Save(ctx context.Context, ev events.Event) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal %s event: %w", ev.Meta().Kind, err)
	}
	meta := ev.Meta()
	tag, err := s.db.Exec(ctx, s.insert, meta.TxSig, EventID(meta.Kind, payload), string(meta.Kind), int64(meta.Slot), payload)
	if err != nil {
		return false, fmt.Errorf("insert %s event from %s: %w", meta.Kind, meta.TxSig, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Close releases the pool when the store was created by Open.
func (s *Store) Close() {
	s.close()
}

// EventID identifies an event within its transaction by content. Two events
// of one transaction only share an id when they are byte-identical.
func EventID(kind events.Kind, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
