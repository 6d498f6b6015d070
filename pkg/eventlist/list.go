package eventlist

import (
	"errors"
	"iter"
	"sync"
)

const nilIndex = -1

var ErrInvalidMaxSize = errors.New("invalid max size: must be positive")

type node[T any] struct {
	val T
	// prev points toward the first (eviction) end, next toward the last
	// (insertion) end.
	prev, next int
}

// List is a bounded, always-sorted sequence backed by an arena of nodes.
//
// New elements are positioned by scanning from the last element toward the
// first. When the list grows past its maximum size the first element is
// dropped, whatever its value. Reads run first to last, so an ascending ledger
// list reads non-decreasing and a descending one non-increasing.
//
// List is safe for concurrent use.
type List[T any] struct {
	mu sync.RWMutex

	nodes []node[T]
	free  []int
	first int
	last  int
	size  int

	maxSize int
	cmp     Comparator[T]
	dir     Direction
}

// New creates an empty list holding at most maxSize elements.
func New[T any](maxSize int, cmp Comparator[T], dir Direction) (*List[T], error) {
	if maxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}
	if cmp == nil {
		return nil, errors.New("invalid comparator: must not be nil")
	}
	if dir != Ascending && dir != Descending {
		return nil, errors.New("invalid direction: must be asc or desc")
	}
	return &List[T]{
		nodes:   make([]node[T], 0, min(maxSize+1, 1024)),
		first:   nilIndex,
		last:    nilIndex,
		maxSize: maxSize,
		cmp:     cmp,
		dir:     dir,
	}, nil
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

func (l *List[T]) MaxSize() int {
	return l.maxSize
}

func (l *List[T]) Direction() Direction {
	return l.dir
}

// Insert adds v at its sorted position. If that pushes the list over its
// maximum size, the first element is removed and returned with evicted=true.
// The removed element may be v itself.
func (l *List[T]) Insert(v T) (removed T, evicted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.alloc(v)
	bias := l.dir.bias()

	switch {
	case l.size == 0:
		l.first, l.last = idx, idx
	case l.cmp(l.nodes[l.last].val, v) == bias:
		l.nodes[idx].prev = l.last
		l.nodes[l.last].next = idx
		l.last = idx
	default:
		cur := l.last
		for p := l.nodes[cur].prev; p != nilIndex && l.cmp(l.nodes[p].val, v) != bias; p = l.nodes[cur].prev {
			cur = p
		}
		p := l.nodes[cur].prev
		l.nodes[idx].prev = p
		l.nodes[idx].next = cur
		l.nodes[cur].prev = idx
		if p == nilIndex {
			l.first = idx
		} else {
			l.nodes[p].next = idx
		}
	}
	l.size++

	if l.size > l.maxSize {
		return l.removeFirst(), true
	}
	return removed, false
}

// First returns the element at the eviction end.
func (l *List[T]) First() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var zero T
	if l.first == nilIndex {
		return zero, false
	}
	return l.nodes[l.first].val, true
}

// Last returns the element at the insertion end.
func (l *List[T]) Last() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var zero T
	if l.last == nilIndex {
		return zero, false
	}
	return l.nodes[l.last].val, true
}

// All yields the elements in read order. The read lock is held for the whole
// iteration, so the loop body must not insert into the same list.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		for i := l.first; i != nilIndex; i = l.nodes[i].next {
			if !yield(l.nodes[i].val) {
				return
			}
		}
	}
}

// ToSlice returns a point-in-time copy in read order.
func (l *List[T]) ToSlice() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, l.size)
	for i := l.first; i != nilIndex; i = l.nodes[i].next {
		out = append(out, l.nodes[i].val)
	}
	return out
}

func (l *List[T]) alloc(v T) int {
	n := node[T]{val: v, prev: nilIndex, next: nilIndex}
	if k := len(l.free); k > 0 {
		idx := l.free[k-1]
		l.free = l.free[:k-1]
		l.nodes[idx] = n
		return idx
	}
	l.nodes = append(l.nodes, n)
	return len(l.nodes) - 1
}

func (l *List[T]) removeFirst() T {
	idx := l.first
	n := l.nodes[idx]
	l.first = n.next
	if l.first == nilIndex {
		l.last = nilIndex
	} else {
		l.nodes[l.first].prev = nilIndex
	}
	l.nodes[idx] = node[T]{prev: nilIndex, next: nilIndex}
	l.free = append(l.free, idx)
	l.size--
	return n.val
}
