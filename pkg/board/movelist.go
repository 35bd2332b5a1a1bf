package board

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
)

// MovePriority represents a move ordering priority. Higher sorts first.
type MovePriority int32

// MovePriorityFn assigns an ordering priority to a move.
type MovePriorityFn func(move Move) MovePriority

// MovePredicateFn decides whether a move should be explored at all.
type MovePredicateFn func(move Move) bool

// First wraps a priority function so that the given move always sorts ahead of everything else.
// Used to promote TT/IID hinted moves to the front of the move list.
func First(first Move, fn MovePriorityFn) MovePriorityFn {
	return func(m Move) MovePriority {
		if !first.IsNull() && first.Equals(m) {
			return math.MaxInt32
		}
		return fn(m)
	}
}

// SortByPriority sorts moves by descending priority, preserving relative order of ties.
func SortByPriority(moves []Move, fn MovePriorityFn) {
	sort.SliceStable(moves, func(i, j int) bool {
		return fn(moves[i]) > fn(moves[j])
	})
}

// MoveList is a move priority queue used to drive move ordering without materializing a sort
// up front: Next() lazily pops the highest-priority remaining move.
type MoveList struct {
	h moveHeap
}

// NewMoveList returns a move list with moves scored by fn.
func NewMoveList(moves []Move, fn MovePriorityFn) *MoveList {
	h := make(moveHeap, len(moves))
	for i, m := range moves {
		h[i] = elm{m: m, val: fn(m)}
	}
	heap.Init(&h)
	return &MoveList{h: h}
}

// Next returns the next highest-priority move, if any remain.
func (ml *MoveList) Next() (Move, bool) {
	if ml.Size() == 0 {
		return Move{}, false
	}
	ret := heap.Pop(&ml.h).(elm)
	return ret.m, true
}

func (ml *MoveList) Size() int {
	return ml.h.Len()
}

func (ml *MoveList) String() string {
	if ml.Size() == 0 {
		return "[size=0]"
	}
	return fmt.Sprintf("[top=%v, size=%v]", ml.h[0].m, ml.Size())
}

type elm struct {
	m   Move
	val MovePriority
}

type moveHeap []elm

func (h moveHeap) Len() int            { return len(h) }
func (h moveHeap) Less(i, j int) bool  { return h[i].val > h[j].val }
func (h moveHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *moveHeap) Push(x interface{}) { *h = append(*h, x.(elm)) }

func (h *moveHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ret := old[n-1]
	*h = old[:n-1]
	return ret
}
