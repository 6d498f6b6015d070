package events

import (
	"fmt"
	"math/big"
)

// Provenance identifies where a decoded event came from.
type Provenance struct {
	TxSig string `json:"txSig"`
	Slot  uint64 `json:"slot"`
	Kind  Kind   `json:"eventType"`
}

// Meta returns the event provenance.
func (p Provenance) Meta() Provenance { return p }

func (p *Provenance) stamp(np Provenance) { *p = np }

// Event is implemented by the pointer types of every decodable record. The set
// is closed: only this package can stamp provenance.
type Event interface {
	Meta() Provenance
	stamp(p Provenance)
}

// CompetitorStatus mirrors the program's competitor status enum.
type CompetitorStatus uint8

const (
	CompetitorStatusActive CompetitorStatus = iota
	CompetitorStatusDisqualified
)

func (s CompetitorStatus) String() string {
	switch s {
	case CompetitorStatusActive:
		return "active"
	case CompetitorStatusDisqualified:
		return "disqualified"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s CompetitorStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type CompetitionRoundSummaryRecord struct {
	Provenance

	Competition     PublicKey `json:"competition"`
	RoundNumber     uint64    `json:"roundNumber"`
	RoundStartTs    int64     `json:"roundStartTs"`
	RoundEndTs      int64     `json:"roundEndTs"`
	PrizePlacement  uint32    `json:"prizePlacement"`
	PrizeOddsNumer  *big.Int  `json:"prizeOddsNumerator"`
	PrizeRandomness *big.Int  `json:"prizeRandomness"`
	PrizeRandMax    *big.Int  `json:"prizeRandomnessMax"`
	MaxPrizeBucket  uint64    `json:"maxPrizeBucketValue"`

	PrizeAmount *big.Int `json:"prizeAmount"`
	PrizeValue  uint64   `json:"prizeValue"`
	PrizeBase   *big.Int `json:"prizeBase"`

	NumberOfWinners            uint32   `json:"numberOfWinners"`
	NumberOfCompetitorsSettled *big.Int `json:"numberOfCompetitorsSettled"`
	TotalScoreSettled          *big.Int `json:"totalScoreSettled"`

	InsuranceVaultBalance uint64   `json:"insuranceVaultBalance"`
	ProtocolIfShares      *big.Int `json:"protocolIfShares"`
	TotalIfShares         *big.Int `json:"totalIfShares"`

	Ts int64 `json:"ts"`
}

type CompetitionRoundWinnerRecord struct {
	Provenance

	RoundNumber         uint64    `json:"roundNumber"`
	Competitor          PublicKey `json:"competitor"`
	Competition         PublicKey `json:"competition"`
	CompetitorAuthority PublicKey `json:"competitorAuthority"`

	MinDraw *big.Int `json:"minDraw"`
	MaxDraw *big.Int `json:"maxDraw"`

	WinnerPlacement            uint32   `json:"winnerPlacement"`
	NumberOfWinners            uint32   `json:"numberOfWinners"`
	NumberOfCompetitorsSettled *big.Int `json:"numberOfCompetitorsSettled"`

	WinnerRandomness  *big.Int `json:"winnerRandomness"`
	TotalScoreSettled *big.Int `json:"totalScoreSettled"`

	PrizeRandomness *big.Int `json:"prizeRandomness"`
	PrizeRandMax    *big.Int `json:"prizeRandomnessMax"`

	PrizeAmount *big.Int `json:"prizeAmount"`
	PrizeBase   *big.Int `json:"prizeBase"`
	PrizeValue  uint64   `json:"prizeValue"`

	Ts int64 `json:"ts"`
}

type CompetitorSettledRecord struct {
	Provenance

	RoundNumber         uint64    `json:"roundNumber"`
	Competitor          PublicKey `json:"competitor"`
	Competition         PublicKey `json:"competition"`
	CompetitorAuthority PublicKey `json:"competitorAuthority"`

	Status            CompetitorStatus `json:"status"`
	UnclaimedWinnings uint64           `json:"unclaimedWinnings"`

	MinDraw                     *big.Int `json:"minDraw"`
	MaxDraw                     *big.Int `json:"maxDraw"`
	BonusScoreBefore            uint64   `json:"bonusScoreBefore"`
	BonusScoreAfter             uint64   `json:"bonusScoreAfter"`
	PreviousSnapshotScoreBefore uint64   `json:"previousSnapshotScoreBefore"`
	SnapshotScore               uint64   `json:"snapshotScore"`

	Ts int64 `json:"ts"`
}

var (
	_ Event = (*CompetitionRoundSummaryRecord)(nil)
	_ Event = (*CompetitionRoundWinnerRecord)(nil)
	_ Event = (*CompetitorSettledRecord)(nil)
)
