package queue

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/competition-indexer/pkg/events"
)

// EnvelopeVersion is bumped whenever the Data layout of an event kind changes
// incompatibly.
const EnvelopeVersion = 1

// Envelope wraps one decoded event for the wire. Type is the event kind and
// ID the signature of the transaction that emitted it.
type Envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"version"`
	ID      string          `json:"id"`
	Slot    uint64          `json:"slot"`
	Data    json.RawMessage `json:"data"`
}

func NewEventEnvelope(ev events.Event) (*Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Meta().Kind, err)
	}
	meta := ev.Meta()
	return &Envelope{
		Type:    string(meta.Kind),
		Version: EnvelopeVersion,
		ID:      meta.TxSig,
		Slot:    meta.Slot,
		Data:    data,
	}, nil
}

// OpenEnvelope decodes an envelope without decoding its Data.
func OpenEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
