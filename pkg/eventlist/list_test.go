package eventlist

import (
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	slot uint64
	id   string
}

func itemSlot(i item) uint64 { return i.slot }

func identity(v uint64) uint64 { return v }

func newList[T any](t *testing.T, maxSize int, cmp Comparator[T], dir Direction) *List[T] {
	t.Helper()
	l, err := New(maxSize, cmp, dir)
	require.NoError(t, err)
	return l
}

func insertAll[T any](l *List[T], vals ...T) []T {
	var evicted []T
	for _, v := range vals {
		if removed, ok := l.Insert(v); ok {
			evicted = append(evicted, removed)
		}
	}
	return evicted
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	cmp := LedgerOrder(identity, Ascending)
	tests := []struct {
		name    string
		maxSize int
		cmp     Comparator[uint64]
		dir     Direction
		wantErr string
	}{
		{name: "zero size", maxSize: 0, cmp: cmp, dir: Ascending, wantErr: "invalid max size"},
		{name: "negative size", maxSize: -1, cmp: cmp, dir: Ascending, wantErr: "invalid max size"},
		{name: "nil comparator", maxSize: 1, cmp: nil, dir: Ascending, wantErr: "invalid comparator"},
		{name: "bad direction", maxSize: 1, cmp: cmp, dir: "sideways", wantErr: "invalid direction"},
		{name: "ok", maxSize: 1, cmp: cmp, dir: Descending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := New(tt.maxSize, tt.cmp, tt.dir)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, l.Len())
		})
	}
}

func TestInsert_AscendingScenario(t *testing.T) {
	t.Parallel()

	l := newList(t, 3, LedgerOrder(identity, Ascending), Ascending)
	evicted := insertAll(l, 5, 1, 3, 7)

	assert.Equal(t, []uint64{3, 5, 7}, l.ToSlice())
	assert.Equal(t, []uint64{1}, evicted)
	assert.Equal(t, 3, l.Len())

	first, ok := l.First()
	require.True(t, ok)
	assert.Equal(t, uint64(3), first)
	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(7), last)
}

func TestInsert_DescendingEvictsPhysicalEnd(t *testing.T) {
	t.Parallel()

	l := newList(t, 3, LedgerOrder(identity, Descending), Descending)
	evicted := insertAll(l, 5, 1, 3, 7)

	assert.Equal(t, []uint64{5, 3, 1}, l.ToSlice())
	assert.Equal(t, []uint64{7}, evicted)
}

func TestInsert_EvictsIncomingWhenItLandsFirst(t *testing.T) {
	t.Parallel()

	l := newList(t, 3, LedgerOrder(identity, Ascending), Ascending)
	insertAll(l, 3, 5, 7)

	removed, ok := l.Insert(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), removed)
	assert.Equal(t, []uint64{3, 5, 7}, l.ToSlice())
}

func TestInsert_SortedAfterEveryInsert(t *testing.T) {
	t.Parallel()

	for _, dir := range []Direction{Ascending, Descending} {
		t.Run(string(dir), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewPCG(42, uint64(len(dir))))
			for range 50 {
				maxSize := 1 + rng.IntN(16)
				l := newList(t, maxSize, LedgerOrder(identity, dir), dir)
				for range 200 {
					before := l.ToSlice()
					v := rng.Uint64N(64)
					removed, evicted := l.Insert(v)

					got := l.ToSlice()
					require.LessOrEqual(t, len(got), maxSize)
					if dir == Ascending {
						require.True(t, slices.IsSorted(got), "not non-decreasing: %v", got)
					} else {
						rev := slices.Clone(got)
						slices.Reverse(rev)
						require.True(t, slices.IsSorted(rev), "not non-increasing: %v", got)
					}

					if evicted {
						require.Len(t, got, maxSize)
						// The removed element was the first one in read order
						// after the splice, never a recomputed extreme.
						merged := append(slices.Clone(before), v)
						if dir == Ascending {
							slices.Sort(merged)
						} else {
							slices.SortFunc(merged, func(a, b uint64) int { return int(b) - int(a) })
						}
						require.Equal(t, merged[0], removed)
						require.Equal(t, merged[1:], got)
					}
				}
			}
		})
	}
}

func TestInsert_StableOnTies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir  Direction
		want []string
	}{
		{dir: Ascending, want: []string{"a", "b", "d", "c"}},
		{dir: Descending, want: []string{"c", "a", "b", "d"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			t.Parallel()

			l := newList(t, 10, LedgerOrder(itemSlot, tt.dir), tt.dir)
			insertAll(l, item{1, "a"}, item{1, "b"}, item{2, "c"}, item{1, "d"})

			var ids []string
			for it := range l.All() {
				ids = append(ids, it.id)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestObservationOrder_IsFIFO(t *testing.T) {
	t.Parallel()

	for _, dir := range []Direction{Ascending, Descending} {
		t.Run(string(dir), func(t *testing.T) {
			t.Parallel()

			l := newList(t, 3, ComparatorFor(OrderClient, dir, identity), dir)
			evicted := insertAll(l, 5, 1, 3, 7)

			assert.Equal(t, []uint64{1, 3, 7}, l.ToSlice())
			assert.Equal(t, []uint64{5}, evicted)
		})
	}
}

func TestComparatorFor_LedgerVersusClient(t *testing.T) {
	t.Parallel()

	// T2 arrives before T1 although T1 has the lower slot.
	arrivals := []item{{slot: 20, id: "T2"}, {slot: 10, id: "T1"}}

	tests := []struct {
		by   OrderBy
		want []string
	}{
		{by: OrderLedger, want: []string{"T1", "T2"}},
		{by: OrderClient, want: []string{"T2", "T1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.by), func(t *testing.T) {
			t.Parallel()

			l := newList(t, 8, ComparatorFor(tt.by, Ascending, itemSlot), Ascending)
			insertAll(l, arrivals...)

			var ids []string
			for _, it := range l.ToSlice() {
				ids = append(ids, it.id)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAll_RestartableAndStoppable(t *testing.T) {
	t.Parallel()

	l := newList(t, 5, LedgerOrder(identity, Ascending), Ascending)
	insertAll(l, 4, 2, 9)

	seq := l.All()
	assert.Equal(t, []uint64{2, 4, 9}, slices.Collect(seq))
	assert.Equal(t, []uint64{2, 4, 9}, slices.Collect(seq))

	var got []uint64
	for v := range seq {
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []uint64{2, 4}, got)
}

func TestInsert_ReusesArenaSlots(t *testing.T) {
	t.Parallel()

	l := newList(t, 4, LedgerOrder(identity, Ascending), Ascending)
	for i := range uint64(1000) {
		l.Insert(i % 17)
	}
	assert.Equal(t, 4, l.Len())
	assert.LessOrEqual(t, len(l.nodes), 5)
}

func TestEmptyList(t *testing.T) {
	t.Parallel()

	l := newList(t, 2, LedgerOrder(identity, Ascending), Ascending)
	_, ok := l.First()
	assert.False(t, ok)
	_, ok = l.Last()
	assert.False(t, ok)
	assert.Empty(t, l.ToSlice())
	assert.Empty(t, slices.Collect(l.All()))
}

func TestInsert_Concurrent(t *testing.T) {
	t.Parallel()

	l := newList(t, 64, LedgerOrder(identity, Ascending), Ascending)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				l.Insert(uint64(w*1000 + i))
				_ = l.ToSlice()
			}
		}()
	}
	wg.Wait()

	got := l.ToSlice()
	assert.Len(t, got, 64)
	assert.True(t, slices.IsSorted(got))
}

func TestParse(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection(" DESC ")
	require.NoError(t, err)
	assert.Equal(t, Descending, d)
	_, err = ParseDirection("up")
	require.Error(t, err)

	o, err := ParseOrderBy("Client")
	require.NoError(t, err)
	assert.Equal(t, OrderClient, o)
	_, err = ParseOrderBy("time")
	require.Error(t, err)
}
