package eval

import (
	"context"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// Standard is a material + piece-square + light positional evaluator driven entirely by a
// Params registry, so strength can be retuned (via setoption or the offline tuner) without a
// rebuild. It returns the score from the perspective of the side to move, matching Evaluator.
type Standard struct {
	Params *Params
}

// NewStandardEvaluator returns a Standard evaluator over a private copy of params, so later
// mutation of the caller's Params does not change scores mid-search.
func NewStandardEvaluator(params *Params) Standard {
	return Standard{Params: params.Clone()}
}

func (s Standard) Evaluate(ctx context.Context, b *board.Board) Pawns {
	pos := b.Position()
	turn := b.Turn()

	white := s.evaluateSide(pos, board.White)
	black := s.evaluateSide(pos, board.Black)

	score := white - black
	score += Pawns(s.Params.Get(ParamTempo)) / 1000

	if turn == board.Black {
		score = -score
	}
	return score
}

func (s Standard) evaluateSide(pos *board.Position, side board.Color) Pawns {
	var score Pawns

	for _, piece := range []board.Piece{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen, board.King} {
		count := pos.Piece(side, piece).PopCount()
		score += Pawns(count) * s.materialValue(piece) / 1000
	}

	if pos.Piece(side, board.Bishop).PopCount() >= 2 {
		score += Pawns(s.Params.Get(ParamBishopPair)) / 1000
	}

	score += s.mobility(pos, side, board.Knight, ParamMobilityKnight)
	score += s.mobility(pos, side, board.Bishop, ParamMobilityBishop)
	score += s.mobility(pos, side, board.Rook, ParamMobilityRook)
	score += s.mobility(pos, side, board.Queen, ParamMobilityQueen)

	score += s.rookFiles(pos, side)
	score += s.passedPawns(pos, side)
	score += s.kingSafety(pos, side)
	score += s.pins(pos, side)

	return score
}

// pins penalizes a side once per pin against one of its knights, bishops, rooks or queens, found
// on the rook/queen and bishop/queen lines. Pins against the king are not counted, and the
// pinned piece's value is not compared with the target's.
func (s Standard) pins(pos *board.Position, side board.Color) Pawns {
	var score Pawns
	for _, piece := range []board.Piece{board.Knight, board.Bishop, board.Rook, board.Queen} {
		score -= Pawns(len(FindPins(pos, side, piece))) * Pawns(s.Params.Get(ParamPinPenalty)) / 1000
	}
	return score
}

func (s Standard) materialValue(p board.Piece) Pawns {
	switch p {
	case board.Pawn:
		return Pawns(s.Params.Get(ParamPawnValue))
	case board.Knight:
		return Pawns(s.Params.Get(ParamKnightValue))
	case board.Bishop:
		return Pawns(s.Params.Get(ParamBishopValue))
	case board.Rook:
		return Pawns(s.Params.Get(ParamRookValue))
	case board.Queen:
		return Pawns(s.Params.Get(ParamQueenValue))
	case board.King:
		return Pawns(s.Params.Get(ParamKingValue))
	default:
		return 0
	}
}

func (s Standard) mobility(pos *board.Position, side board.Color, piece board.Piece, param ParamName) Pawns {
	own := pos.Color(side)
	weight := Pawns(s.Params.Get(param))

	var total int
	bb := pos.Piece(side, piece)
	for bb != 0 {
		sq := bb.LastPopSquare()
		bb ^= board.BitMask(sq)
		total += board.Attackboard(pos.Rotated(), sq, piece).PopCount() - (board.Attackboard(pos.Rotated(), sq, piece) & own).PopCount()
	}
	return weight * Pawns(total) / 1000
}

func (s Standard) rookFiles(pos *board.Position, side board.Color) Pawns {
	var score Pawns
	pawns := pos.Piece(board.White, board.Pawn) | pos.Piece(board.Black, board.Pawn)
	ownPawns := pos.Piece(side, board.Pawn)

	rooks := pos.Piece(side, board.Rook)
	for rooks != 0 {
		sq := rooks.LastPopSquare()
		rooks ^= board.BitMask(sq)

		file := board.BitFile(sq.File())
		switch {
		case pawns&file == 0:
			score += Pawns(s.Params.Get(ParamRookOpenFile)) / 1000
		case ownPawns&file == 0:
			score += Pawns(s.Params.Get(ParamRookSemiOpen)) / 1000
		}

		seventh := board.Rank7
		if side == board.Black {
			seventh = board.Rank2
		}
		if sq.Rank() == seventh {
			score += Pawns(s.Params.Get(ParamRookOn7th)) / 1000
		}
	}
	return score
}

func (s Standard) passedPawns(pos *board.Position, side board.Color) Pawns {
	var score Pawns

	opp := side.Opponent()
	oppPawns := pos.Piece(opp, board.Pawn)

	pawns := pos.Piece(side, board.Pawn)
	for bb := pawns; bb != 0; {
		sq := bb.LastPopSquare()
		bb ^= board.BitMask(sq)

		if !isPassed(sq, side, oppPawns) {
			continue
		}

		rank := relativeRank(sq, side)
		score += Pawns(s.Params.Get(passedPawnParam(rank))) / 1000
	}
	return score
}

func isPassed(sq board.Square, side board.Color, oppPawns board.Bitboard) bool {
	files := board.BitFile(sq.File())
	if sq.File() > board.FileH {
		files |= board.BitFile(sq.File() - 1)
	}
	if sq.File() < board.FileA {
		files |= board.BitFile(sq.File() + 1)
	}

	var ahead board.Bitboard
	if side == board.White {
		for r := sq.Rank() + 1; r < board.NumRanks; r++ {
			ahead |= board.BitRank(r)
		}
	} else {
		for r := board.ZeroRank; r < sq.Rank(); r++ {
			ahead |= board.BitRank(r)
		}
	}
	return oppPawns&files&ahead == 0
}

func relativeRank(sq board.Square, side board.Color) board.Rank {
	if side == board.White {
		return sq.Rank()
	}
	return board.Rank7 - sq.Rank() + 1
}

func passedPawnParam(rank board.Rank) ParamName {
	switch rank {
	case board.Rank2:
		return ParamPassedPawnRank2
	case board.Rank3:
		return ParamPassedPawnRank3
	case board.Rank4:
		return ParamPassedPawnRank4
	case board.Rank5:
		return ParamPassedPawnRank5
	case board.Rank6:
		return ParamPassedPawnRank6
	default:
		return ParamPassedPawnRank7
	}
}

func (s Standard) kingSafety(pos *board.Position, side board.Color) Pawns {
	king := pos.Piece(side, board.King)
	if king == 0 {
		return 0
	}
	sq := king.LastPopSquare()

	homeRank := board.Rank1
	if side == board.Black {
		homeRank = board.Rank8
	}

	var score Pawns
	if sq.Rank() == homeRank && (sq.File() <= board.FileG || sq.File() >= board.FileB) {
		shield := shieldMask(sq, side)
		pawns := pos.Piece(side, board.Pawn)
		missing := (shield &^ pawns).PopCount()
		score -= Pawns(missing*s.Params.Get(ParamKingShield)) / 1000
	}

	file := board.BitFile(sq.File())
	allPawns := pos.Piece(board.White, board.Pawn) | pos.Piece(board.Black, board.Pawn)
	if allPawns&file == 0 {
		score -= Pawns(s.Params.Get(ParamKingOpenFile)) / 1000
	}

	return score
}

func shieldMask(kingSq board.Square, side board.Color) board.Bitboard {
	var rank board.Rank
	if side == board.White {
		rank = kingSq.Rank() + 1
	} else {
		rank = kingSq.Rank() - 1
	}
	return board.BitRank(rank) & (board.BitFile(kingSq.File()) |
		shiftFile(kingSq.File(), 1) | shiftFile(kingSq.File(), -1))
}

func shiftFile(f board.File, delta int) board.Bitboard {
	nf := int(f) + delta
	if nf < int(board.FileH) || nf > int(board.FileA) {
		return 0
	}
	return board.BitFile(board.File(nf))
}
