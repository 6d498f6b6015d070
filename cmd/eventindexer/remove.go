package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/competition-indexer/pkg/clickhouse"
	"github.com/ava-labs/competition-indexer/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/utils"
)

func remove(c *cli.Context) error {
	ctx := context.Background()
	sugar, err := utils.NewSugaredLogger(true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	programID := c.String("program-id")
	if programID == "" {
		return errors.New("program ID is required")
	}
	if _, err := events.ParsePublicKey(programID); err != nil {
		return fmt.Errorf("invalid program ID: %w", err)
	}

	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build ClickHouse config: %w", err)
	}
	checkpointsTableName := c.String("checkpoint-table-name")

	chClient, err := clickhouse.New(chCfg, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	repo, err := checkpoint.NewRepository(ctx, chClient, chCfg.Cluster, chCfg.Database, checkpointsTableName)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint repository: %w", err)
	}

	if err := repo.DeleteCheckpoints(ctx, programID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}

	sugar.Infof("checkpoints successfully removed for program %s", programID)

	return nil
}
