package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

var ErrTooManyPartitions = errors.New("topic has more partitions than configured")

// TopicConfig describes the topic events are published to.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return ErrInvalidTopic
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// EnsureTopic creates the topic, or grows its partition count to the
// configured one. A differing replication factor is only logged, since the
// admin API cannot change it. A topic with more partitions than configured is
// an error: keys would no longer map to the partitions consumers expect.
func EnsureTopic(ctx context.Context, admin *kafka.AdminClient, cfg TopicConfig, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	md, err := topicMetadata(admin, cfg.Name)
	if err != nil {
		return err
	}
	if md == nil {
		return createTopic(ctx, admin, cfg, log)
	}

	partitions := len(md.Partitions)
	if rf := replicationFactor(md); rf != cfg.ReplicationFactor {
		log.Warnw("topic replication factor differs from config",
			"topic", cfg.Name,
			"current", rf,
			"desired", cfg.ReplicationFactor)
	}

	switch {
	case partitions < cfg.NumPartitions:
		log.Infow("increasing topic partitions", "topic", cfg.Name, "from", partitions, "to", cfg.NumPartitions)
		return increasePartitions(ctx, admin, cfg.Name, cfg.NumPartitions)
	case partitions > cfg.NumPartitions:
		log.Warnw("topic has more partitions than configured",
			"topic", cfg.Name,
			"current", partitions,
			"desired", cfg.NumPartitions)
		return fmt.Errorf("%w: %q has %d, want %d", ErrTooManyPartitions, cfg.Name, partitions, cfg.NumPartitions)
	default:
		log.Infow("topic exists", "topic", cfg.Name, "partitions", partitions)
		return nil
	}
}

// topicMetadata returns nil when the topic does not exist.
func topicMetadata(admin *kafka.AdminClient, topic string) (*kafka.TopicMetadata, error) {
	md, err := admin.GetMetadata(&topic, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for topic %q: %w", topic, err)
	}
	tm, ok := md.Topics[topic]
	if !ok || tm.Error.Code() == kafka.ErrUnknownTopicOrPart {
		return nil, nil
	}
	if tm.Error.Code() != kafka.ErrNoError {
		return nil, fmt.Errorf("topic %q has error: %w", topic, tm.Error)
	}
	return &tm, nil
}

func createTopic(ctx context.Context, admin *kafka.AdminClient, cfg TopicConfig, log *zap.SugaredLogger) error {
	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", cfg.Name, err)
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created topic", "topic", r.Topic, "partitions", cfg.NumPartitions, "replicationFactor", cfg.ReplicationFactor)
		case kafka.ErrTopicAlreadyExists:
			log.Infow("topic already exists", "topic", r.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", r.Topic, r.Error)
		}
	}
	return nil
}

func increasePartitions(ctx context.Context, admin *kafka.AdminClient, topic string, n int) error {
	results, err := admin.CreatePartitions(ctx, []kafka.PartitionsSpecification{{Topic: topic, IncreaseTo: n}})
	if err != nil {
		return fmt.Errorf("failed to increase partitions for topic %q: %w", topic, err)
	}
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError {
			return fmt.Errorf("failed to increase partitions for topic %q: %w", r.Topic, r.Error)
		}
	}
	return nil
}

func replicationFactor(md *kafka.TopicMetadata) int {
	if len(md.Partitions) == 0 {
		return 0
	}
	return len(md.Partitions[0].Replicas)
}
