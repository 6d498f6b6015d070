package events

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Kind names one of the events emitted by the competitions program.
type Kind string

const (
	KindCompetitionRoundSummary Kind = "CompetitionRoundSummaryRecord"
	KindCompetitionRoundWinner  Kind = "CompetitionRoundWinnerRecord"
	KindCompetitorSettled       Kind = "CompetitorSettledRecord"
)

// AllKinds returns every decodable event kind.
func AllKinds() []Kind {
	return []Kind{
		KindCompetitionRoundSummary,
		KindCompetitionRoundWinner,
		KindCompetitorSettled,
	}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range AllKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %q", s)
}

// ParseKinds parses a list of kind names. An empty list yields every kind.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return AllKinds(), nil
	}
	kinds := make([]Kind, 0, len(names))
	seen := make(map[Kind]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return AllKinds(), nil
	}
	return kinds, nil
}

// Discriminator returns the 8-byte prefix the program writes in front of the
// serialized event: the first 8 bytes of sha256("event:<Kind>").
func (k Kind) Discriminator() [8]byte {
	sum := sha256.Sum256([]byte("event:" + string(k)))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
