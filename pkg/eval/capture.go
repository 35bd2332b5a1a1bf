package eval

import (
	"github.com/kbd-chess/cerberus/pkg/board"
	"sort"
)

// FindCapture returns the pieces of the given color that directly target the square.
func FindCapture(pos *board.Position, side board.Color, sq board.Square) []board.Placement {
	var ret []board.Placement

	for _, piece := range board.KingQueenRookKnightBishop {
		bb := board.Attackboard(pos.Rotated(), sq, piece) & pos.Piece(side, piece)
		for _, from := range bb.ToSquares() {
			ret = append(ret, board.Placement{Piece: piece, Color: side, Square: from})
		}
	}
	bb := board.PawnCaptureboard(side.Opponent() /* reverse direction */, board.BitMask(sq)) & pos.Piece(side, board.Pawn)
	for _, from := range bb.ToSquares() {
		ret = append(ret, board.Placement{Piece: board.Pawn, Color: side, Square: from})
	}

	return ret
}

// SortByNominalValue orders the placement list by nominal material value, low to high.
func SortByNominalValue(pieces []board.Placement) []board.Placement {
	sort.SliceStable(pieces, func(i, j int) bool {
		return NominalValue(pieces[i].Piece) < NominalValue(pieces[j].Piece)
	})
	return pieces
}

// StaticExchange evaluates the net gain in pawns of a capture on sq, started by side moving
// attacker from from to capture victim. The remaining attackers and defenders of sq are assumed
// to recapture in ascending nominal value order; x-ray attacks revealed as pieces are removed
// from sq are not modeled, so a defender behind the first recapturer is missed.
func StaticExchange(pos *board.Position, side board.Color, sq, from board.Square, attacker, victim board.Piece) Pawns {
	mine := without(SortByNominalValue(FindCapture(pos, side, sq)), from)
	theirs := SortByNominalValue(FindCapture(pos, side.Opponent(), sq))

	gain := make([]Pawns, 1, len(mine)+len(theirs)+1)
	gain[0] = NominalValue(victim)

	next := NominalValue(attacker)
	toMove := side.Opponent()
	mi, ti := 0, 0
	for {
		var p board.Piece
		if toMove == side {
			if mi >= len(mine) {
				break
			}
			p = mine[mi].Piece
			mi++
		} else {
			if ti >= len(theirs) {
				break
			}
			p = theirs[ti].Piece
			ti++
		}
		gain = append(gain, next-gain[len(gain)-1])
		next = NominalValue(p)
		toMove = toMove.Opponent()
	}

	for i := len(gain) - 2; i >= 0; i-- {
		if -gain[i+1] < gain[i] {
			gain[i] = -gain[i+1]
		}
	}
	return gain[0]
}

func without(pieces []board.Placement, sq board.Square) []board.Placement {
	var ret []board.Placement
	for _, p := range pieces {
		if p.Square != sq {
			ret = append(ret, p)
		}
	}
	return ret
}
