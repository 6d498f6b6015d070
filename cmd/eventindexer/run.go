package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/competition-indexer/internal/chainclient/jsonrpc"
	"github.com/ava-labs/competition-indexer/pkg/checkpointer"
	"github.com/ava-labs/competition-indexer/pkg/clickhouse"
	"github.com/ava-labs/competition-indexer/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/competition-indexer/pkg/data/postgres/eventstore"
	"github.com/ava-labs/competition-indexer/pkg/forwarder"
	"github.com/ava-labs/competition-indexer/pkg/ingestor"
	"github.com/ava-labs/competition-indexer/pkg/logsource"
	"github.com/ava-labs/competition-indexer/pkg/metrics"
	"github.com/ava-labs/competition-indexer/pkg/queue"
	"github.com/ava-labs/competition-indexer/pkg/utils"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	flushTimeoutOnClose = 15 * time.Second
	shutdownTimeout     = 5 * time.Second
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"programID", cfg.Ingestor.ProgramID,
		"rpcURL", cfg.RPCURL,
		"wsURL", cfg.WSURL,
		"commitment", cfg.Ingestor.Commitment,
		"sourceMode", cfg.Ingestor.SourceMode,
		"pollInterval", cfg.Ingestor.PollInterval,
		"eventKinds", cfg.Ingestor.EventKinds,
		"maxEventsPerKind", cfg.Ingestor.MaxEventsPerKind,
		"orderBy", cfg.Ingestor.OrderBy,
		"orderDirection", cfg.Ingestor.OrderDirection,
		"maxCachedTransactions", cfg.Ingestor.MaxCachedTransactions,
		"backfillUntil", cfg.Ingestor.BackfillUntilTxSig,
		"backfillMax", cfg.BackfillMax,
		"kafkaEnabled", cfg.KafkaEnabled(),
		"kafkaTopic", cfg.KafkaTopic,
		"postgresEnabled", cfg.PostgresEnabled(),
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"checkpointTableName", cfg.CheckpointTableName,
		"checkpointInterval", cfg.CheckpointInterval,
		"clickhouseCluster", cfg.ClickHouse.Cluster,
		"clickhouseDatabase", cfg.ClickHouse.Database,
	)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Cluster:       cfg.Cluster,
		ProgramID:     cfg.Ingestor.ProgramID,
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := jsonrpc.New(ctx, cfg.RPCURL, cfg.Ingestor.ProgramID,
		jsonrpc.WithCommitment(cfg.Ingestor.Commitment),
		jsonrpc.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create json-rpc client: %w", err)
	}
	defer ledger.Close()

	// The ingestor does not exist yet when the source is built; source errors
	// only occur after Subscribe, by which time it is set.
	var ing *ingestor.Ingestor
	reportSourceError := func(err error) {
		if ing != nil {
			ing.ReportError(err)
		}
	}
	source, err := newLogSource(sugar, cfg, ledger, m, reportSourceError)
	if err != nil {
		return fmt.Errorf("failed to create log source: %w", err)
	}

	ing, err = ingestor.New(sugar, cfg.Ingestor, source,
		ingestor.WithLedger(ledger),
		ingestor.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestor: %w", err)
	}
	removeErrLogger := ing.OnError(func(err error) {
		sugar.Warnw("ingestion error", "error", err)
	})
	defer removeErrLogger()

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, metrics.WithReadiness(ing.Ready))
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	chClient, err := clickhouse.New(cfg.ClickHouse, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	sugar.Info("ClickHouse client created successfully")

	checkpointRepo, err := checkpoint.NewRepository(ctx, chClient, cfg.ClickHouse.Cluster, cfg.ClickHouse.Database, cfg.CheckpointTableName)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint repository: %w", err)
	}

	backfillUntil := cfg.Ingestor.BackfillUntilTxSig
	if backfillUntil == "" {
		sugar.Infof("backfill boundary: not specified, will use the latest checkpoint")
		cp, exists, err := checkpointRepo.Read(ctx, cfg.Ingestor.ProgramID)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint: %w", err)
		}
		if exists {
			backfillUntil = cp.TxSig
			sugar.Infow("backfill boundary from checkpoint", "txSig", cp.TxSig, "slot", cp.Slot)
		} else {
			sugar.Infof("checkpoint not found, backfill runs only when backfill-max is set")
		}
	}

	out, err := newSinks(ctx, sugar, cfg, m)
	if err != nil {
		return err
	}
	defer out.close()

	var fwd *forwarder.Forwarder
	if len(out.sinks) > 0 {
		fwd, err = forwarder.New(sugar, cfg.ForwardBufferSize, out.sinks,
			forwarder.WithMetrics(m),
			forwarder.WithTimeout(cfg.ForwardTimeout),
			forwarder.WithErrorHandler(ing.ReportError),
		)
		if err != nil {
			return fmt.Errorf("failed to create forwarder: %w", err)
		}
		removeForwarder := ing.OnNewEvent(fwd.Handle)
		defer removeForwarder()
	} else {
		sugar.Warn("no event sinks configured, events are only kept in memory")
	}

	g, gctx := errgroup.WithContext(ctx)
	if fwd != nil {
		g.Go(func() error {
			return fwd.Run(gctx)
		})
	}

	if !ing.Subscribe(gctx) {
		stop()
		_ = g.Wait()
		return errors.New("failed to subscribe to program logs")
	}
	sugar.Infow("subscribed", "sourceMode", source.Mode())

	g.Go(func() error {
		listed, err := ing.FetchHistorical(gctx, backfillUntil, cfg.BackfillMax)
		if err != nil && !errors.Is(err, context.Canceled) {
			// Live ingestion continues; the gap is logged for an operator rerun.
			sugar.Errorw("backfill failed", "listed", listed, "error", err)
			return nil
		}
		sugar.Infow("backfill complete", "listed", listed)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case err, ok := <-out.errs:
			if !ok {
				return nil
			}
			return err
		}
	})
	g.Go(func() error {
		current := func() checkpointer.Checkpoint {
			wm := ing.Watermark()
			return checkpointer.Checkpoint{TxSig: wm.TxSig, Slot: wm.Slot, BlockTime: wm.BlockTime}
		}
		checkpointCfg := checkpointer.DefaultConfig()
		checkpointCfg.Interval = cfg.CheckpointInterval
		return checkpointer.Start(gctx, current, checkpointRepo, checkpointCfg, cfg.Ingestor.ProgramID, m)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if ing.State() != ingestor.StateUnsubscribed {
					continue
				}
				sugar.Warnw("log source stopped, resubscribing", "sourceMode", source.Mode())
				if !ing.Subscribe(gctx) {
					sugar.Errorw("resubscribe failed, retrying", "sourceMode", source.Mode())
				}
			}
		}
	})

	err = g.Wait()
	ing.Unsubscribe()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}

	sugar.Info("shutdown complete")
	return err
}

func newLogSource(
	sugar *zap.SugaredLogger,
	cfg *Config,
	ledger *jsonrpc.Client,
	m *metrics.Metrics,
	onError logsource.ErrorHandler,
) (logsource.LogSource, error) {
	opts := []logsource.Option{
		logsource.WithErrorHandler(onError),
		logsource.WithMetrics(m),
	}
	switch cfg.Ingestor.SourceMode {
	case logsource.ModePush:
		wsCfg := logsource.DefaultWebSocketConfig()
		wsCfg.URL = cfg.WSURL
		wsCfg.Address = cfg.Ingestor.ProgramID
		wsCfg.Commitment = cfg.Ingestor.Commitment
		return logsource.NewWebSocket(sugar, wsCfg, opts...)
	case logsource.ModePoll:
		return logsource.NewPolling(sugar, ledger, logsource.PollingConfig{
			Interval: cfg.Ingestor.PollInterval,
			PageSize: cfg.Ingestor.PollPageSize,
			MaxPages: cfg.Ingestor.PollMaxPages,
		}, opts...)
	default:
		return nil, fmt.Errorf("invalid source mode: %s", cfg.Ingestor.SourceMode)
	}
}

type eventSinks struct {
	sinks []forwarder.Sink
	errs  <-chan error // fatal producer errors, nil without kafka
	close func()
}

// newSinks builds the configured event sinks. close releases them and must be
// called once the forwarder has stopped.
func newSinks(
	ctx context.Context,
	sugar *zap.SugaredLogger,
	cfg *Config,
	m *metrics.Metrics,
) (*eventSinks, error) {
	var closers []func()
	out := &eventSinks{
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}

	if cfg.KafkaEnabled() {
		admin, err := confluentKafka.NewAdminClient(cfg.KafkaAdminConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
		}
		err = queue.EnsureTopic(ctx, admin, queue.TopicConfig{
			Name:              cfg.KafkaTopic,
			NumPartitions:     cfg.KafkaTopicNumPartitions,
			ReplicationFactor: cfg.KafkaTopicReplicationFactor,
		}, sugar)
		admin.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
		}

		publisher, err := queue.NewKafkaPublisher(ctx, cfg.KafkaProducerConfig(), sugar, queue.WithPublisherMetrics(m))
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		closers = append(closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeoutOnClose)
			defer cancel()
			publisher.Close(flushCtx)
		})
		out.errs = publisher.Errors()

		sink, err := queue.NewEventSink(publisher, cfg.KafkaTopic)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("failed to create kafka sink: %w", err)
		}
		out.sinks = append(out.sinks, sink)
		sugar.Infow("forwarding events to kafka", "topic", cfg.KafkaTopic)
	}

	if cfg.PostgresEnabled() {
		store, err := eventstore.Open(ctx, cfg.PostgresURL, cfg.PostgresTable)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("failed to open postgres event store: %w", err)
		}
		closers = append(closers, store.Close)
		out.sinks = append(out.sinks, store)
		sugar.Infow("storing events to postgres", "table", cfg.PostgresTable)
	}

	return out, nil
}
