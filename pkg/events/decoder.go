package events

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/ava-labs/competition-indexer/internal/types"
)

const (
	programDataPrefix = "Program data: "
	programLogPrefix  = "Program log: "
)

type bodyDecoder func(r *borshReader) Event

type kindDecoder struct {
	kind   Kind
	decode bodyDecoder
}

var registry = map[Kind]bodyDecoder{
	KindCompetitionRoundSummary: decodeRoundSummary,
	KindCompetitionRoundWinner:  decodeRoundWinner,
	KindCompetitorSettled:       decodeCompetitorSettled,
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithKinds restricts decoding to the given kinds. Lines carrying any other
// event produce nothing.
func WithKinds(kinds ...Kind) Option {
	return func(d *Decoder) {
		if len(kinds) == 0 {
			return
		}
		d.kinds = make(map[[8]byte]kindDecoder, len(kinds))
		for _, k := range kinds {
			if dec, ok := registry[k]; ok {
				d.kinds[k.Discriminator()] = kindDecoder{kind: k, decode: dec}
			}
		}
	}
}

// WithMalformedHook registers a callback invoked for every line that carried a
// known discriminator but could not be decoded.
func WithMalformedHook(fn func(txSig string, kind Kind, err error)) Option {
	return func(d *Decoder) {
		d.onMalformed = fn
	}
}

// Decoder extracts program events from a transaction's log lines. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	programID   string
	kinds       map[[8]byte]kindDecoder
	onMalformed func(txSig string, kind Kind, err error)
}

// NewDecoder returns a decoder for events emitted by programID. An empty
// programID accepts event lines from any program.
func NewDecoder(programID string, opts ...Option) *Decoder {
	d := &Decoder{programID: programID}
	WithKinds(AllKinds()...)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kinds returns the kinds this decoder emits.
func (d *Decoder) Kinds() []Kind {
	out := make([]Kind, 0, len(d.kinds))
	for _, k := range AllKinds() {
		if _, ok := d.kinds[k.Discriminator()]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Decode returns the events found in batch, in log line order, each stamped
// with the batch's signature and slot. Malformed lines are skipped.
func (d *Decoder) Decode(batch types.TxBatch) []Event {
	var (
		out   []Event
		stack []string
	)
	for _, line := range batch.Logs {
		if payload, ok := eventPayload(line); ok {
			if !d.emittedByProgram(stack) {
				continue
			}
			ev, err := d.decodePayload(payload)
			if err != nil {
				if d.onMalformed != nil {
					d.onMalformed(batch.Signature, err.kind, err.err)
				}
				continue
			}
			if ev == nil {
				continue
			}
			ev.stamp(Provenance{TxSig: batch.Signature, Slot: batch.Slot, Kind: kindOf(ev)})
			out = append(out, ev)
			continue
		}
		stack = trackExecution(stack, line)
	}
	return out
}

func (d *Decoder) emittedByProgram(stack []string) bool {
	if d.programID == "" {
		return true
	}
	return len(stack) > 0 && stack[len(stack)-1] == d.programID
}

type malformedError struct {
	kind Kind
	err  error
}

func (d *Decoder) decodePayload(payload string) (Event, *malformedError) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) < 8 {
		// Plain text log, not an event.
		return nil, nil
	}
	var disc [8]byte
	copy(disc[:], raw[:8])
	kd, ok := d.kinds[disc]
	if !ok {
		return nil, nil
	}
	r := newBorshReader(raw[8:])
	ev := kd.decode(r)
	if r.err != nil {
		return nil, &malformedError{kind: kd.kind, err: fmt.Errorf("decode %s: %w", kd.kind, r.err)}
	}
	return ev, nil
}

func eventPayload(line string) (string, bool) {
	if p, ok := strings.CutPrefix(line, programDataPrefix); ok {
		return strings.TrimSpace(p), true
	}
	if p, ok := strings.CutPrefix(line, programLogPrefix); ok {
		return strings.TrimSpace(p), true
	}
	return "", false
}

// trackExecution maintains the program invocation stack from
// "Program <id> invoke [n]" and "Program <id> success|failed" lines.
func trackExecution(stack []string, line string) []string {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "Program" {
		return stack
	}
	switch {
	case fields[2] == "invoke":
		return append(stack, fields[1])
	case fields[2] == "success" || strings.HasPrefix(fields[2], "failed"):
		if len(stack) > 0 {
			return stack[:len(stack)-1]
		}
	}
	return stack
}

func kindOf(ev Event) Kind {
	switch ev.(type) {
	case *CompetitionRoundSummaryRecord:
		return KindCompetitionRoundSummary
	case *CompetitionRoundWinnerRecord:
		return KindCompetitionRoundWinner
	case *CompetitorSettledRecord:
		return KindCompetitorSettled
	default:
		return ""
	}
}

func decodeRoundSummary(r *borshReader) Event {
	return &CompetitionRoundSummaryRecord{
		Competition:                r.pubkey(),
		RoundNumber:                r.u64(),
		RoundStartTs:               r.i64(),
		RoundEndTs:                 r.i64(),
		PrizePlacement:             r.u32(),
		PrizeOddsNumer:             r.u128(),
		PrizeRandomness:            r.u128(),
		PrizeRandMax:               r.u128(),
		MaxPrizeBucket:             r.u64(),
		PrizeAmount:                r.u128(),
		PrizeValue:                 r.u64(),
		PrizeBase:                  r.u128(),
		NumberOfWinners:            r.u32(),
		NumberOfCompetitorsSettled: r.u128(),
		TotalScoreSettled:          r.u128(),
		InsuranceVaultBalance:      r.u64(),
		ProtocolIfShares:           r.u128(),
		TotalIfShares:              r.u128(),
		Ts:                         r.i64(),
	}
}

func decodeRoundWinner(r *borshReader) Event {
	return &CompetitionRoundWinnerRecord{
		RoundNumber:                r.u64(),
		Competitor:                 r.pubkey(),
		Competition:                r.pubkey(),
		CompetitorAuthority:        r.pubkey(),
		MinDraw:                    r.u128(),
		MaxDraw:                    r.u128(),
		WinnerPlacement:            r.u32(),
		NumberOfWinners:            r.u32(),
		NumberOfCompetitorsSettled: r.u128(),
		WinnerRandomness:           r.u128(),
		TotalScoreSettled:          r.u128(),
		PrizeRandomness:            r.u128(),
		PrizeRandMax:               r.u128(),
		PrizeAmount:                r.u128(),
		PrizeBase:                  r.u128(),
		PrizeValue:                 r.u64(),
		Ts:                         r.i64(),
	}
}

func decodeCompetitorSettled(r *borshReader) Event {
	return &CompetitorSettledRecord{
		RoundNumber:                 r.u64(),
		Competitor:                  r.pubkey(),
		Competition:                 r.pubkey(),
		CompetitorAuthority:         r.pubkey(),
		Status:                      r.status(),
		UnclaimedWinnings:           r.u64(),
		MinDraw:                     r.u128(),
		MaxDraw:                     r.u128(),
		BonusScoreBefore:            r.u64(),
		BonusScoreAfter:             r.u64(),
		PreviousSnapshotScoreBefore: r.u64(),
		SnapshotScore:               r.u64(),
		Ts:                          r.i64(),
	}
}
