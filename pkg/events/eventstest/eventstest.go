// Package eventstest builds encoded program logs and decoded events for tests
// of packages that consume events.
package eventstest

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/ava-labs/competition-indexer/internal/types"
	"github.com/ava-labs/competition-indexer/pkg/events"
)

// Program is a valid program id for tests.
const Program = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

// SettledLine encodes a CompetitorSettled event for round as a program data
// log line. All keys are zero and the status is active.
func SettledLine(round uint64) string {
	d := events.KindCompetitorSettled.Discriminator()
	buf := append([]byte(nil), d[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, round)
	buf = append(buf, make([]byte, 3*events.PublicKeyLength)...)
	buf = append(buf, byte(events.CompetitorStatusActive))
	buf = binary.LittleEndian.AppendUint64(buf, 0)
	buf = append(buf, make([]byte, 32)...) // min and max draw
	for range 4 {
		buf = binary.LittleEndian.AppendUint64(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint64(buf, 1700000000)
	return "Program data: " + base64.StdEncoding.EncodeToString(buf)
}

// Batch returns a transaction in which Program emits one CompetitorSettled
// event per round.
func Batch(sig string, slot uint64, rounds ...uint64) types.TxBatch {
	logs := []string{"Program " + Program + " invoke [1]"}
	for _, r := range rounds {
		logs = append(logs, SettledLine(r))
	}
	logs = append(logs, "Program "+Program+" success")
	return types.TxBatch{Signature: sig, Slot: slot, Logs: logs}
}

// Settled returns a decoded CompetitorSettled event stamped with sig and slot.
func Settled(sig string, slot, round uint64) events.Event {
	evs := events.NewDecoder(Program).Decode(Batch(sig, slot, round))
	if len(evs) != 1 {
		panic("eventstest: settled event did not decode")
	}
	return evs[0]
}
