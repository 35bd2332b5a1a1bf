package search

import (
	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/eval"
)

// PieceValueFn returns the nominal value of a piece kind. Move ordering uses it to rank
// candidate moves, and Negamax subtracts it from the centipawn static evaluation as a futility
// margin.
type PieceValueFn func(p board.Piece) int

// DefaultPieceValues derives move-ordering piece values from an evaluator's param registry, so
// a tuned run's captures are ranked consistently with its own material weights.
func DefaultPieceValues(params *eval.Params) PieceValueFn {
	return func(p board.Piece) int {
		switch p {
		case board.Pawn:
			return params.Get(eval.ParamPawnValue)
		case board.Knight:
			return params.Get(eval.ParamKnightValue)
		case board.Bishop:
			return params.Get(eval.ParamBishopValue)
		case board.Rook:
			return params.Get(eval.ParamRookValue)
		case board.Queen:
			return params.Get(eval.ParamQueenValue)
		case board.King:
			return params.Get(eval.ParamKingValue)
		default:
			return 0
		}
	}
}

// Priority builds a move-ordering scorer: forced-first moves are handled separately by
// board.First around this function's result. Pure on (side, history, values); stable across
// threads since it touches no shared mutable state beyond the read-only history table.
func Priority(side board.Color, hist *History, values PieceValueFn) board.MovePriorityFn {
	return func(m board.Move) board.MovePriority {
		switch {
		case m.IsPromotion():
			return board.MovePriority(values(m.Promotion) << 18)
		case m.IsCapture():
			victim := m.Capture
			if m.Type == board.EnPassant {
				victim = board.Pawn
			}
			p := board.MovePriority(values(victim) << 18)
			if m.Piece != board.King {
				p += board.MovePriority((values(board.Queen) - values(m.Piece)) << 8)
			}
			return p
		default:
			p := board.MovePriority(hist.Get(side, m.From, m.To) << 8)
			return p + psqDelta(m, side)
		}
	}
}

// psqDelta is a coarse centralization signal: moving toward the center of the board scores
// higher than moving away from it, mirroring a mid-game piece-square table without requiring
// one per piece kind.
func psqDelta(m board.Move, side board.Color) board.MovePriority {
	return board.MovePriority(centerProximity(m.To) - centerProximity(m.From))
}

func centerProximity(sq board.Square) int {
	df := fileDistanceFromCenter(sq.File())
	dr := rankDistanceFromCenter(sq.Rank())
	return 6 - df - dr
}

func fileDistanceFromCenter(f board.File) int {
	d := int(f) - int(board.FileD)
	if d < 0 {
		d = -d
	}
	d2 := int(f) - int(board.FileE)
	if d2 < 0 {
		d2 = -d2
	}
	if d2 < d {
		return d2
	}
	return d
}

func rankDistanceFromCenter(r board.Rank) int {
	d := int(r) - int(board.Rank4)
	if d < 0 {
		d = -d
	}
	d2 := int(r) - int(board.Rank5)
	if d2 < 0 {
		d2 = -d2
	}
	if d2 < d {
		return d2
	}
	return d
}
