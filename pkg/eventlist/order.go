package eventlist

import (
	"fmt"
	"strings"
)

// Ordering is the relation of an element already in the list to an incoming
// one.
type Ordering int

const (
	Less Ordering = iota
	Greater
)

// Comparator places incoming relative to existing. An element is spliced in
// next to the first existing element (scanning from the insertion end) for
// which the comparator returns the direction's bias.
type Comparator[T any] func(existing, incoming T) Ordering

// Direction is the read order of a list.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Ascending, Descending:
		return d, nil
	default:
		return "", fmt.Errorf("invalid order direction %q: must be %q or %q", s, Ascending, Descending)
	}
}

// bias is the comparator result that makes an element the new insertion end.
func (d Direction) bias() Ordering {
	if d == Descending {
		return Greater
	}
	return Less
}

// OrderBy selects the comparator policy.
type OrderBy string

const (
	// OrderLedger orders by ledger slot.
	OrderLedger OrderBy = "ledger"
	// OrderClient orders by arrival at this process.
	OrderClient OrderBy = "client"
)

func ParseOrderBy(s string) (OrderBy, error) {
	switch o := OrderBy(strings.ToLower(strings.TrimSpace(s))); o {
	case OrderLedger, OrderClient:
		return o, nil
	default:
		return "", fmt.Errorf("invalid order by %q: must be %q or %q", s, OrderLedger, OrderClient)
	}
}

// LedgerOrder compares by slot. Elements with equal slots keep their arrival
// order in both directions.
func LedgerOrder[T any](slot func(T) uint64, dir Direction) Comparator[T] {
	if dir == Descending {
		return func(existing, incoming T) Ordering {
			if slot(existing) < slot(incoming) {
				return Less
			}
			return Greater
		}
	}
	return func(existing, incoming T) Ordering {
		if slot(existing) <= slot(incoming) {
			return Less
		}
		return Greater
	}
}

// ObservationOrder treats every arrival as the newest element, which makes the
// list a bounded FIFO by arrival regardless of direction.
func ObservationOrder[T any](dir Direction) Comparator[T] {
	bias := dir.bias()
	return func(T, T) Ordering {
		return bias
	}
}

// ComparatorFor returns the comparator for the given policy.
func ComparatorFor[T any](by OrderBy, dir Direction, slot func(T) uint64) Comparator[T] {
	if by == OrderClient {
		return ObservationOrder[T](dir)
	}
	return LedgerOrder(slot, dir)
}
