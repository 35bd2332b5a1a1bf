// Package search contains the negamax search core, the packed transposition table, and the
// move-ordering and quiescence machinery the Lazy-SMP worker pool drives.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// ErrHalted indicates a search observed its cancel flag and unwound without a result.
var ErrHalted = errors.New("search halted")

// PV represents the principal variation discovered at some completed search depth.
type PV struct {
	Depth int
	Move  board.Move
	Score int // centipawns, fail-soft, from the perspective of the side to move
	Nodes uint64
	Time  time.Duration
	Hash  float64 // TT occupancy fraction [0;1]
}

func (p PV) String() string {
	return fmt.Sprintf("depth=%v score=%v nodes=%v time=%v hash=%.0f%% move=%v", p.Depth, p.Score, p.Nodes, p.Time, 100*p.Hash, p.Move)
}

// Launcher starts a search from a position and returns a handle plus a channel of iteratively
// deeper PVs. The channel closes when the search is exhausted or halted.
type Launcher interface {
	Launch(ctx context.Context, b *board.Board, depth int, deadline time.Duration) (Handle, <-chan PV)
}

// Handle lets the caller halt an in-flight search and collect its last reported PV.
type Handle interface {
	// Halt stops the search, if running, and returns the last reported PV. Idempotent.
	Halt() PV
}
