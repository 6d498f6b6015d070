package queue

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPublisher(t *testing.T, ctx context.Context) *KafkaPublisher {
	t.Helper()
	cfg := &kafka.ConfigMap{
		"bootstrap.servers": "localhost:9092",
	}
	pub, err := NewKafkaPublisher(ctx, cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, pub)
	return pub
}

func TestNewKafkaPublisher_InvalidLogger(t *testing.T) {
	_, err := NewKafkaPublisher(t.Context(), &kafka.ConfigMap{}, nil)
	require.ErrorIs(t, err, ErrInvalidLogger)
}

func TestKafkaPublisher_CloseIdempotent(t *testing.T) {
	pub := newTestPublisher(t, t.Context())

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	pub.Close(ctx)
	pub.Close(ctx)
}

func TestKafkaPublisher_ErrorsClosedOnClose(t *testing.T) {
	pub := newTestPublisher(t, t.Context())
	errCh := pub.Errors()
	assert.Positive(t, cap(errCh))

	pub.Close(t.Context())

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed after Close()")
}

func TestKafkaPublisher_ContextCancellationStopsGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	pub := newTestPublisher(t, ctx)

	cancel()
	select {
	case <-pub.eventsDone:
	case <-time.After(time.Second):
		require.Fail(t, "events goroutine did not stop")
	}
	pub.Close(t.Context())
}
