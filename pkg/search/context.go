package search

import (
	"github.com/seekerror/stdlib/pkg/util/iox"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/eval"
)

// CancelFlag is a monotonically-latching cooperative cancellation flag: once set, it is never
// cleared until the owning worker has been joined. It wraps an iox.AsyncCloser so its Closed
// channel can feed contextx.WithQuitCancel directly.
type CancelFlag struct {
	closer iox.AsyncCloser
}

// NewCancelFlag constructs an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{closer: iox.NewAsyncCloser()}
}

func (c *CancelFlag) Set() {
	c.closer.Close()
}

func (c *CancelFlag) IsSet() bool {
	return c.closer.IsClosed()
}

// Closed returns the channel contextx.WithQuitCancel derives a cancellable context from.
func (c *CancelFlag) Closed() <-chan struct{} {
	return c.closer.Closed()
}

// CutoffStats tracks how often a beta cutoff occurred on the first move examined versus any
// move, as a move-ordering quality signal. Incremented non-atomically: observational only.
type CutoffStats struct {
	FirstMove uint64
	Total     uint64
}

func (s *CutoffStats) Record(wasFirstMove bool) {
	s.Total++
	if wasFirstMove {
		s.FirstMove++
	}
}

// Meta is the per-thread search context: everything a worker's search call tree consults that
// is not part of the position itself.
type Meta struct {
	Cancel  *CancelFlag
	Nodes   uint64
	MaxDepth int // the root iteration's target depth, held fixed across that iteration

	TT      *Table
	History *History
	Cutoffs CutoffStats

	Eval eval.Evaluator

	// ClusterIdx partitions root-level work: peer N skips the first ClusterIdx root moves so
	// that peers do not duplicate the same move ordering.
	ClusterIdx int
}

// NewMeta constructs a fresh per-worker search context. The history table starts zeroed.
func NewMeta(cancel *CancelFlag, tt *Table, ev eval.Evaluator, clusterIdx int) *Meta {
	return &Meta{
		Cancel:     cancel,
		TT:         tt,
		History:    NewHistory(),
		Eval:       ev,
		ClusterIdx: clusterIdx,
	}
}

// IsMateScore reports whether a score is mate-adjacent and must be re-based by plies-from-root
// before being compared across nodes at different depths (TT scores in particular).
func IsMateScore(score int) bool {
	if score < 0 {
		score = -score
	}
	return score > 9800
}

// RebaseMate adjusts a mate-adjacent score stored at a different remaining depth to the
// requesting node's remaining depth, per the `max_depth - depth` convention used throughout.
func RebaseMate(score int, storedDepth, requestedDepth int) int {
	if !IsMateScore(score) {
		return score
	}
	delta := requestedDepth - storedDepth
	if score > 0 {
		return score - delta
	}
	return score + delta
}
