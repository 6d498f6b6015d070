package eventstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/competition-indexer/pkg/events/eventstest"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB emulates the primary key of the events table.
type fakeDB struct {
	mu    sync.Mutex
	calls []execCall
	keys  map[string]struct{}
	err   error
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, execCall{sql: sql, args: args})
	if db.err != nil {
		return pgconn.CommandTag{}, db.err
	}
	if !strings.HasPrefix(sql, "INSERT") {
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	}
	if db.keys == nil {
		db.keys = make(map[string]struct{})
	}
	key := args[0].(string) + "/" + args[1].(string)
	if _, ok := db.keys[key]; ok {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	db.keys[key] = struct{}{}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(t.Context(), nil, "")
	require.ErrorIs(t, err, ErrInvalidDB)

	db := &fakeDB{}
	s, err := New(t.Context(), db, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", s.Name())
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS competition_events")
	assert.Contains(t, db.calls[0].sql, "PRIMARY KEY (tx_sig, event_id)")
	s.Close()
}

func TestNew_CreateTableError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("permission denied")
	_, err := New(t.Context(), &fakeDB{err: dbErr}, "events")
	require.ErrorIs(t, err, dbErr)
	assert.ErrorContains(t, err, "create events table")
}

func TestSave_Idempotent(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	s, err := New(t.Context(), db, "")
	require.NoError(t, err)

	ev := eventstest.Settled("T1", 42, 3)
	inserted, err := s.Save(t.Context(), ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Save(t.Context(), ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Another event of the same transaction is a new row.
	inserted, err = s.Save(t.Context(), eventstest.Settled("T1", 42, 4))
	require.NoError(t, err)
	assert.True(t, inserted)

	insert := db.calls[1]
	assert.Contains(t, insert.sql, "ON CONFLICT (tx_sig, event_id) DO NOTHING")
	require.Len(t, insert.args, 5)
	assert.Equal(t, "T1", insert.args[0])
	assert.Equal(t, "CompetitorSettledRecord", insert.args[2])
	assert.Equal(t, int64(42), insert.args[3])
	assert.Contains(t, string(insert.args[4].([]byte)), `"roundNumber":3`)
}

func TestForward_Error(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	s, err := New(t.Context(), db, "")
	require.NoError(t, err)

	dbErr := errors.New("connection reset")
	db.err = dbErr
	err = s.Forward(t.Context(), eventstest.Settled("T1", 1, 1))
	require.ErrorIs(t, err, dbErr)
	assert.ErrorContains(t, err, "T1")
}

func TestEventID(t *testing.T) {
	t.Parallel()

	a := EventID("CompetitorSettledRecord", []byte(`{"roundNumber":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, EventID("CompetitorSettledRecord", []byte(`{"roundNumber":1}`)))
	assert.NotEqual(t, a, EventID("CompetitorSettledRecord", []byte(`{"roundNumber":2}`)))
	assert.NotEqual(t, a, EventID("CompetitionRoundWinnerRecord", []byte(`{"roundNumber":1}`)))
}
