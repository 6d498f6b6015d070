package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ava-labs/competition-indexer/pkg/events"
)

var (
	ErrInvalidPublisher = errors.New("invalid publisher: must not be nil")
	ErrInvalidTopic     = errors.New("invalid topic: must not be empty")
)

// Message headers set by EventSink.
const (
	HeaderEventType = "event-type"
	HeaderSlot      = "slot"
)

// EventSink publishes decoded events to a topic.
type EventSink struct {
	pub   QueuePublisher
	topic string
}

func NewEventSink(pub QueuePublisher, topic string) (*EventSink, error) {
	if pub == nil {
		return nil, ErrInvalidPublisher
	}
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	return &EventSink{pub: pub, topic: topic}, nil
}

func (*EventSink) Name() string { return "kafka" }

// Forward publishes ev and blocks until the publisher confirms delivery.
func (s *EventSink) Forward(ctx context.Context, ev events.Event) error {
	env, err := NewEventEnvelope(ev)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return s.pub.Publish(ctx, Msg{
		Topic: s.topic,
		Key:   []byte(env.ID),
		Value: value,
		Headers: map[string]string{
			HeaderEventType: env.Type,
			HeaderSlot:      strconv.FormatUint(env.Slot, 10),
		},
	})
}
