package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/competition-indexer/pkg/checkpointer"
	"github.com/ava-labs/competition-indexer/pkg/clickhouse"
)

// Repository persists ingestion watermarks in ClickHouse. It implements
// checkpointer.Checkpointer and adds ClickHouse-specific operations.
type Repository interface {
	checkpointer.Checkpointer
	DeleteCheckpoints(ctx context.Context, programID string) error
}

var _ Repository = (*repository)(nil)

//go:embed queries/create-table-local.sql
var createTableLocalQuery string

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/write-checkpoint.sql
var writeCheckpointQuery string

//go:embed queries/read-checkpoint.sql
var readCheckpointQuery string

//go:embed queries/delete-checkpoints.sql
var deleteCheckpointsQuery string

type repository struct {
	client    clickhouse.Client
	cluster   string
	database  string
	tableName string
	now       func() time.Time
}

// NewRepository creates the checkpoints tables if needed and returns the
// repository.
func NewRepository(
	ctx context.Context,
	client clickhouse.Client,
	cluster, database, tableName string,
) (Repository, error) {
	repo := &repository{
		client:    client,
		cluster:   cluster,
		database:  database,
		tableName: tableName,
		now:       time.Now,
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return repo, nil
}

// Initialize creates the replicated local table and the distributed table
// over it.
// Schema:
//   - program_id: String (sorting key)
//   - tx_sig, slot, block_time: the watermark
//   - timestamp: Int64 (ReplacingMergeTree version column)
func (r *repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createTableLocalQuery, r.database, r.tableName, r.cluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoints local table: %w", err)
	}

	query = fmt.Sprintf(createTableQuery, r.database, r.tableName, r.cluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return nil
}

// Write inserts cp stamped with the current Unix time in seconds.
func (r *repository) Write(ctx context.Context, programID string, cp checkpointer.Checkpoint) error {
	row := Checkpoint{
		ProgramID: programID,
		TxSig:     cp.TxSig,
		Slot:      cp.Slot,
		BlockTime: cp.BlockTime,
		Timestamp: r.now().Unix(),
	}
	query := fmt.Sprintf(writeCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		Exec(ctx, query, row.ProgramID, row.TxSig, row.Slot, row.BlockTime, row.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Read returns the most recently written checkpoint for programID.
func (r *repository) Read(ctx context.Context, programID string) (checkpointer.Checkpoint, bool, error) {
	var row Checkpoint
	query := fmt.Sprintf(readCheckpointQuery, r.database, r.tableName)
	err := r.client.Conn().
		QueryRow(ctx, query, programID).
		Scan(&row.ProgramID, &row.TxSig, &row.Slot, &row.BlockTime, &row.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return checkpointer.Checkpoint{}, false, nil
		}
		return checkpointer.Checkpoint{}, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return checkpointer.Checkpoint{TxSig: row.TxSig, Slot: row.Slot, BlockTime: row.BlockTime}, true, nil
}

func (r *repository) DeleteCheckpoints(ctx context.Context, programID string) error {
	query := fmt.Sprintf(deleteCheckpointsQuery, r.database, r.tableName, r.cluster)
	if err := r.client.Conn().Exec(ctx, query, programID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}

	return nil
}
