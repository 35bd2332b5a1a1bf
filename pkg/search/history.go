package search

import "github.com/kbd-chess/cerberus/pkg/board"

// History is the quiet-move history heuristic table, `hbt[side][from][to]`, private to a single
// search thread. It is additively incremented by depth^2 on a beta cutoff caused by a quiet
// move, never decayed mid-search, and zeroed at thread start.
type History struct {
	hbt [board.NumColors][board.NumSquares][board.NumSquares]uint32
}

func NewHistory() *History {
	return &History{}
}

// Add records a quiet-move beta cutoff at the given depth.
func (h *History) Add(side board.Color, from, to board.Square, depth int) {
	if depth <= 0 {
		return
	}
	h.hbt[side][from][to] += uint32(depth * depth)
}

// Get returns the accumulated history weight for a quiet move.
func (h *History) Get(side board.Color, from, to board.Square) uint32 {
	return h.hbt[side][from][to]
}

// Decay halves every entry. Nothing in the engine calls it: each search thread gets a fresh,
// zeroed table, and `ucinewgame` does not decay history.
func (h *History) Decay() {
	for c := range h.hbt {
		for f := range h.hbt[c] {
			for t := range h.hbt[c][f] {
				h.hbt[c][f][t] >>= 1
			}
		}
	}
}
