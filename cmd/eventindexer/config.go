package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/competition-indexer/pkg/clickhouse"
	"github.com/ava-labs/competition-indexer/pkg/eventlist"
	"github.com/ava-labs/competition-indexer/pkg/events"
	"github.com/ava-labs/competition-indexer/pkg/ingestor"
	"github.com/ava-labs/competition-indexer/pkg/logsource"
	"github.com/ava-labs/competition-indexer/pkg/queue"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	// minBlockBufferSize is the minimum valid value for BlockBufferSize (uint8: 0)
	minBlockBufferSize = 0
	// maxBlockBufferSize is the maximum valid value for BlockBufferSize (uint8: 255)
	maxBlockBufferSize = 255
	messageMaxBytes    = 1048576 // 1MB, events are small
)

// Config holds all configuration for the eventindexer application
type Config struct {
	// Application settings
	Verbose bool

	// Ingestion settings
	Ingestor    ingestor.Config
	RPCURL      string
	WSURL       string
	BackfillMax int

	// Forwarding settings
	ForwardBufferSize int
	ForwardTimeout    time.Duration

	// Kafka settings, disabled when KafkaBrokers is empty
	KafkaBrokers                string
	KafkaTopic                  string
	KafkaEnableLogs             bool
	KafkaClientID               string
	KafkaTopicNumPartitions     int
	KafkaTopicReplicationFactor int
	KafkaSASL                   queue.SASLConfig

	// Postgres settings, disabled when PostgresURL is empty
	PostgresURL   string
	PostgresTable string

	// ClickHouse settings
	ClickHouse clickhouse.Config

	// Checkpoint settings
	CheckpointTableName string
	CheckpointInterval  time.Duration

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Cluster       string
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

func (c *Config) KafkaEnabled() bool {
	return c.KafkaBrokers != ""
}

func (c *Config) PostgresEnabled() bool {
	return c.PostgresURL != ""
}

// KafkaProducerConfig builds a Kafka producer ConfigMap from the config
func (c *Config) KafkaProducerConfig() *confluentKafka.ConfigMap {
	cfg := &confluentKafka.ConfigMap{
		// Required
		"bootstrap.servers": c.KafkaBrokers,
		"client.id":         c.KafkaClientID,

		// Reliability: wait for all replicas to acknowledge
		"acks": "all",

		// Performance tuning
		"linger.ms":        5,     // Batch messages for 5ms
		"batch.size":       16384, // 16KB batch size
		"compression.type": "lz4", // Fast compression

		// Idempotence for exactly-once semantics
		"enable.idempotence": true,

		// Go channel for logs (optional, enable for debugging)
		"go.logs.channel.enable": c.KafkaEnableLogs,
		"message.max.bytes":      messageMaxBytes,
	}
	c.KafkaSASL.ApplyToConfigMap(cfg)
	return cfg
}

// KafkaAdminConfig builds the ConfigMap of the admin client ensuring the topic.
func (c *Config) KafkaAdminConfig() *confluentKafka.ConfigMap {
	cfg := &confluentKafka.ConfigMap{"bootstrap.servers": c.KafkaBrokers}
	c.KafkaSASL.ApplyToConfigMap(cfg)
	return cfg
}

// Validate checks the settings the ingestor does not own.
func (c *Config) Validate() error {
	if err := c.Ingestor.Validate(); err != nil {
		return err
	}
	if c.RPCURL == "" {
		return errors.New("rpc-url is required")
	}
	if c.Ingestor.SourceMode == logsource.ModePush && c.WSURL == "" {
		return errors.New("ws-url is required when source-mode is push")
	}
	if c.BackfillMax < 0 {
		return fmt.Errorf("backfill-max must be >= 0, got %d", c.BackfillMax)
	}
	if c.ForwardBufferSize <= 0 {
		return fmt.Errorf("forward-buffer-size must be > 0, got %d", c.ForwardBufferSize)
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint-interval must be > 0, got %s", c.CheckpointInterval)
	}
	if c.KafkaEnabled() {
		err := queue.TopicConfig{
			Name:              c.KafkaTopic,
			NumPartitions:     c.KafkaTopicNumPartitions,
			ReplicationFactor: c.KafkaTopicReplicationFactor,
		}.Validate()
		if err != nil {
			return fmt.Errorf("invalid kafka topic: %w", err)
		}
	}
	return nil
}

// buildConfig builds a validated Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	kinds := splitCommaSeparated(c.StringSlice("event-kinds"))
	eventKinds := make([]events.Kind, len(kinds))
	for i, k := range kinds {
		eventKinds[i] = events.Kind(k)
	}

	cfg := &Config{
		Verbose: c.Bool("verbose"),
		Ingestor: ingestor.Config{
			ProgramID:             c.String("program-id"),
			EventKinds:            eventKinds,
			MaxEventsPerKind:      c.Int("max-events-per-kind"),
			OrderBy:               eventlist.OrderBy(c.String("order-by")),
			OrderDirection:        eventlist.Direction(c.String("order-direction")),
			SourceMode:            logsource.Mode(c.String("source-mode")),
			PollInterval:          c.Duration("poll-interval"),
			PollPageSize:          c.Int("poll-page-size"),
			PollMaxPages:          c.Int("poll-max-pages"),
			MaxCachedTransactions: c.Int("max-cached-transactions"),
			BackfillUntilTxSig:    c.String("backfill-until"),
			BackfillPageSize:      c.Int("backfill-page-size"),
			Commitment:            c.String("commitment"),
		},
		RPCURL:                      c.String("rpc-url"),
		WSURL:                       c.String("ws-url"),
		BackfillMax:                 c.Int("backfill-max"),
		ForwardBufferSize:           c.Int("forward-buffer-size"),
		ForwardTimeout:              c.Duration("forward-timeout"),
		KafkaBrokers:                c.String("kafka-brokers"),
		KafkaTopic:                  c.String("kafka-topic"),
		KafkaEnableLogs:             c.Bool("kafka-enable-logs"),
		KafkaClientID:               c.String("kafka-client-id"),
		KafkaTopicNumPartitions:     c.Int("kafka-topic-num-partitions"),
		KafkaTopicReplicationFactor: c.Int("kafka-topic-replication-factor"),
		KafkaSASL: queue.SASLConfig{
			Username:         c.String("kafka-sasl-username"),
			Password:         c.String("kafka-sasl-password"),
			Mechanism:        c.String("kafka-sasl-mechanism"),
			SecurityProtocol: c.String("kafka-security-protocol"),
		},
		PostgresURL:         c.String("postgres-url"),
		PostgresTable:       c.String("postgres-table"),
		ClickHouse:          chCfg,
		CheckpointTableName: c.String("checkpoint-table-name"),
		CheckpointInterval:  c.Duration("checkpoint-interval"),
		MetricsHost:         c.String("metrics-host"),
		MetricsPort:         c.Int("metrics-port"),
		Cluster:             c.String("cluster"),
		Environment:         c.String("environment"),
		Region:              c.String("region"),
		CloudProvider:       c.String("cloud-provider"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildClickHouseConfig builds a clickhouse.Config from CLI context flags
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	blockBufferSize := c.Int("clickhouse-block-buffer-size")
	if err := validateBlockBufferSize(blockBufferSize); err != nil {
		return clickhouse.Config{}, err
	}

	return clickhouse.Config{
		Hosts:                splitCommaSeparated(c.StringSlice("clickhouse-hosts")),
		Cluster:              c.String("clickhouse-cluster"),
		Database:             c.String("clickhouse-database"),
		Username:             c.String("clickhouse-username"),
		Password:             c.String("clickhouse-password"),
		Debug:                c.Bool("clickhouse-debug"),
		InsecureSkipVerify:   c.Bool("clickhouse-insecure-skip-verify"),
		MaxExecutionTime:     c.Int("clickhouse-max-execution-time"),
		DialTimeout:          c.Int("clickhouse-dial-timeout"),
		MaxOpenConns:         c.Int("clickhouse-max-open-conns"),
		MaxIdleConns:         c.Int("clickhouse-max-idle-conns"),
		ConnMaxLifetime:      c.Int("clickhouse-conn-max-lifetime"),
		BlockBufferSize:      blockBufferSize,
		MaxBlockSize:         c.Int("clickhouse-max-block-size"),
		MaxCompressionBuffer: c.Int("clickhouse-max-compression-buffer"),
		ClientName:           c.String("clickhouse-client-name"),
		ClientVersion:        c.String("clickhouse-client-version"),
	}, nil
}

// splitCommaSeparated flattens values that arrive as one comma-separated
// string from an environment variable.
func splitCommaSeparated(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateBlockBufferSize validates that the block buffer size is within uint8 range (0-255)
func validateBlockBufferSize(size int) error {
	if size < minBlockBufferSize || size > maxBlockBufferSize {
		return fmt.Errorf(
			"clickhouse-block-buffer-size must be between %d and %d, got %d",
			minBlockBufferSize, maxBlockBufferSize, size,
		)
	}
	return nil
}
