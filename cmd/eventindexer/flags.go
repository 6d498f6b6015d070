package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/competition-indexer/pkg/forwarder"
)

// runFlags returns all CLI flags for the eventindexer run command
func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:     "program-id",
			Aliases:  []string{"p"},
			Usage:    "The base58 address of the competition program",
			EnvVars:  []string{"PROGRAM_ID"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "rpc-url",
			Aliases:  []string{"r"},
			Usage:    "The HTTP JSON-RPC URL used for polling and backfill",
			EnvVars:  []string{"RPC_URL"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "ws-url",
			Aliases: []string{"w"},
			Usage:   "The websocket URL used by the push source (required for source-mode push)",
			EnvVars: []string{"WS_URL"},
		},
		&cli.StringFlag{
			Name:    "commitment",
			Usage:   "The commitment level to read at (processed, confirmed or finalized)",
			EnvVars: []string{"COMMITMENT"},
			Value:   "confirmed",
		},
		&cli.StringFlag{
			Name:    "source-mode",
			Aliases: []string{"s"},
			Usage:   "How new transactions are received (push or poll)",
			EnvVars: []string{"SOURCE_MODE"},
			Value:   "push",
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "The interval between polls in poll mode",
			EnvVars: []string{"POLL_INTERVAL"},
			Value:   1 * time.Second,
		},
		&cli.IntFlag{
			Name:    "poll-page-size",
			Usage:   "The number of signatures requested per poll page",
			EnvVars: []string{"POLL_PAGE_SIZE"},
			Value:   25,
		},
		&cli.IntFlag{
			Name:    "poll-max-pages",
			Usage:   "The maximum number of pages walked per poll",
			EnvVars: []string{"POLL_MAX_PAGES"},
			Value:   10,
		},
		&cli.StringSliceFlag{
			Name:    "event-kinds",
			Aliases: []string{"k"},
			Usage:   "The event kinds to index (comma-separated, empty for all)",
			EnvVars: []string{"EVENT_KINDS"},
		},
		&cli.IntFlag{
			Name:    "max-events-per-kind",
			Usage:   "The maximum number of events kept per kind",
			EnvVars: []string{"MAX_EVENTS_PER_KIND"},
			Value:   4096,
		},
		&cli.StringFlag{
			Name:    "order-by",
			Usage:   "How events are ordered (ledger or client)",
			EnvVars: []string{"ORDER_BY"},
			Value:   "ledger",
		},
		&cli.StringFlag{
			Name:    "order-direction",
			Usage:   "The order direction (asc or desc)",
			EnvVars: []string{"ORDER_DIRECTION"},
			Value:   "asc",
		},
		&cli.IntFlag{
			Name:    "max-cached-transactions",
			Usage:   "The number of processed transaction signatures remembered for deduplication",
			EnvVars: []string{"MAX_CACHED_TRANSACTIONS"},
			Value:   4096,
		},
		&cli.StringFlag{
			Name:    "backfill-until",
			Aliases: []string{"u"},
			Usage:   "Backfill history down to this transaction signature. If not specified, the stored checkpoint is used",
			EnvVars: []string{"BACKFILL_UNTIL"},
		},
		&cli.IntFlag{
			Name:    "backfill-max",
			Usage:   "The maximum number of transactions listed by the backfill (0 for max-cached-transactions)",
			EnvVars: []string{"BACKFILL_MAX"},
		},
		&cli.IntFlag{
			Name:    "backfill-page-size",
			Usage:   "The number of signatures requested per backfill page",
			EnvVars: []string{"BACKFILL_PAGE_SIZE"},
			Value:   1000,
		},
		&cli.IntFlag{
			Name:    "forward-buffer-size",
			Usage:   "The number of events buffered before ingestion blocks on the sinks",
			EnvVars: []string{"FORWARD_BUFFER_SIZE"},
			Value:   forwarder.DefaultBufferSize,
		},
		&cli.DurationFlag{
			Name:    "forward-timeout",
			Usage:   "The timeout for forwarding a single event to a sink",
			EnvVars: []string{"FORWARD_TIMEOUT"},
			Value:   10 * time.Second,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "cluster",
			Usage:   "Ledger cluster for metrics labels (e.g., 'mainnet-beta', 'devnet')",
			EnvVars: []string{"CLUSTER"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "The Kafka brokers to forward events to (comma-separated list, empty to disable)",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Aliases: []string{"t"},
			Usage:   "The Kafka topic to forward events to",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "competition-events",
		},
		&cli.BoolFlag{
			Name:    "kafka-enable-logs",
			Aliases: []string{"l"},
			Usage:   "Enable Kafka logs",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "The Kafka client ID to use",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "eventindexer",
		},
		&cli.IntFlag{
			Name:    "kafka-topic-num-partitions",
			Usage:   "The number of partitions to use for the Kafka topic (must be greater than 0)",
			EnvVars: []string{"KAFKA_TOPIC_NUM_PARTITIONS"},
			Value:   1,
		},
		&cli.IntFlag{
			Name:    "kafka-topic-replication-factor",
			Usage:   "The replication factor to use for the Kafka topic (must be greater than 0)",
			EnvVars: []string{"KAFKA_TOPIC_REPLICATION_FACTOR"},
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-username",
			Usage:   "SASL username for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-password",
			Usage:   "SASL password for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-mechanism",
			Usage:   "SASL mechanism (SCRAM-SHA-256, SCRAM-SHA-512, or PLAIN)",
			EnvVars: []string{"KAFKA_SASL_MECHANISM"},
			Value:   "SCRAM-SHA-512",
		},
		&cli.StringFlag{
			Name:    "kafka-security-protocol",
			Usage:   "Security protocol (SASL_SSL or SASL_PLAINTEXT)",
			EnvVars: []string{"KAFKA_SECURITY_PROTOCOL"},
			Value:   "SASL_SSL",
		},
		&cli.StringFlag{
			Name:    "postgres-url",
			Usage:   "The Postgres connection string events are stored to (empty to disable)",
			EnvVars: []string{"POSTGRES_URL"},
		},
		&cli.StringFlag{
			Name:    "postgres-table",
			Usage:   "The Postgres table events are stored to",
			EnvVars: []string{"POSTGRES_TABLE"},
			Value:   "competition_events",
		},
		&cli.DurationFlag{
			Name:    "checkpoint-interval",
			Aliases: []string{"i"},
			Usage:   "The interval to write the checkpoint to the repository",
			EnvVars: []string{"CHECKPOINT_INTERVAL"},
			Value:   1 * time.Minute,
		},
	}
	return append(flags, storageFlags()...)
}

func removeFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "program-id",
			Aliases:  []string{"p"},
			Usage:    "The base58 address of the program whose checkpoint is removed",
			EnvVars:  []string{"PROGRAM_ID"},
			Required: true,
		},
	}
	return append(flags, storageFlags()...)
}

// storageFlags are the checkpoint table and ClickHouse flags shared by run and
// remove.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "checkpoint-table-name",
			Aliases: []string{"T"},
			Usage:   "The name of the table to write the checkpoint to",
			EnvVars: []string{"CHECKPOINT_TABLE_NAME"},
			Value:   "checkpoints",
		},
		&cli.StringSliceFlag{
			Name:    "clickhouse-hosts",
			Usage:   "ClickHouse server hosts (comma-separated)",
			EnvVars: []string{"CLICKHOUSE_HOSTS"},
			Value:   cli.NewStringSlice("localhost:9000"),
		},
		&cli.StringFlag{
			Name:    "clickhouse-cluster",
			Usage:   "ClickHouse cluster name",
			EnvVars: []string{"CLICKHOUSE_CLUSTER"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-database",
			Usage:   "ClickHouse database name",
			EnvVars: []string{"CLICKHOUSE_DATABASE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-username",
			Usage:   "ClickHouse username",
			EnvVars: []string{"CLICKHOUSE_USERNAME"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "clickhouse-password",
			Usage:   "ClickHouse password",
			EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			Value:   "",
		},
		&cli.BoolFlag{
			Name:    "clickhouse-debug",
			Usage:   "Enable ClickHouse debug logging",
			EnvVars: []string{"CLICKHOUSE_DEBUG"},
		},
		&cli.BoolFlag{
			Name:    "clickhouse-insecure-skip-verify",
			Usage:   "Skip TLS certificate verification for ClickHouse",
			EnvVars: []string{"CLICKHOUSE_INSECURE_SKIP_VERIFY"},
			Value:   true,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-execution-time",
			Usage:   "ClickHouse max execution time in seconds",
			EnvVars: []string{"CLICKHOUSE_MAX_EXECUTION_TIME"},
			Value:   60,
		},
		&cli.IntFlag{
			Name:    "clickhouse-dial-timeout",
			Usage:   "ClickHouse dial timeout in seconds",
			EnvVars: []string{"CLICKHOUSE_DIAL_TIMEOUT"},
			Value:   30,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-open-conns",
			Usage:   "ClickHouse maximum open connections",
			EnvVars: []string{"CLICKHOUSE_MAX_OPEN_CONNS"},
			Value:   5,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-idle-conns",
			Usage:   "ClickHouse maximum idle connections",
			EnvVars: []string{"CLICKHOUSE_MAX_IDLE_CONNS"},
			Value:   5,
		},
		&cli.IntFlag{
			Name:    "clickhouse-conn-max-lifetime",
			Usage:   "ClickHouse connection max lifetime in minutes",
			EnvVars: []string{"CLICKHOUSE_CONN_MAX_LIFETIME"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-block-buffer-size",
			Usage:   "ClickHouse block buffer size",
			EnvVars: []string{"CLICKHOUSE_BLOCK_BUFFER_SIZE"},
			Value:   10,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-block-size",
			Usage:   "ClickHouse max block size (recommended maximum number of rows in a single block)",
			EnvVars: []string{"CLICKHOUSE_MAX_BLOCK_SIZE"},
			Value:   1000,
		},
		&cli.IntFlag{
			Name:    "clickhouse-max-compression-buffer",
			Usage:   "ClickHouse max compression buffer in bytes",
			EnvVars: []string{"CLICKHOUSE_MAX_COMPRESSION_BUFFER"},
			Value:   10240,
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-name",
			Usage:   "ClickHouse client name for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_NAME"},
			Value:   "competition-indexer",
		},
		&cli.StringFlag{
			Name:    "clickhouse-client-version",
			Usage:   "ClickHouse client version for ClientInfo",
			EnvVars: []string{"CLICKHOUSE_CLIENT_VERSION"},
			Value:   "1.0",
		},
	}
}
