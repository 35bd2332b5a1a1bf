package search

import (
	"context"

	"github.com/seekerror/stdlib/pkg/util/contextx"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/eval"
)

// deltaMargin is added to stand-pat before comparing against alpha in quiescence. It widens
// after a promotion on the previous ply, since the static evaluation of a just-promoted
// position is less reliable.
const (
	deltaMargin          = 975
	deltaMarginPromotion = 1750
)

// Quiescence runs a capture/promotion-only alpha-beta search to a quiet position, used to
// settle the leaf nodes of the main search before returning a static evaluation.
type Quiescence struct {
	Meta *Meta
}

// Search returns the fail-soft score for the side to move. qsDepth counts plies into
// quiescence, for mate-distance scoring; prevWasPromotion widens the delta-pruning margin.
func (q Quiescence) Search(ctx context.Context, b *board.Board, alpha, beta int, qsDepth int, prevWasPromotion bool) int {
	return q.search(ctx, b, alpha, beta, qsDepth, prevWasPromotion)
}

func (q Quiescence) search(ctx context.Context, b *board.Board, alpha, beta int, qsDepth int, prevWasPromotion bool) int {
	if contextx.IsCancelled(ctx) {
		return alpha
	}
	if isDraw(b) {
		return 0
	}

	q.Meta.Nodes++
	turn := b.Turn()
	inCheck := b.Position().IsChecked(turn)

	standPatDone := false
	if !inCheck {
		sp := q.evaluate(ctx, b)
		standPatDone = true
		if sp >= beta {
			return sp
		}
		margin := deltaMargin
		if prevWasPromotion {
			margin = deltaMarginPromotion
		}
		if sp+margin < alpha {
			return alpha
		}
		if sp > alpha {
			alpha = sp
		}
	}

	var moves []board.Move
	if inCheck {
		moves = b.Position().PseudoLegalMoves(turn)
	} else {
		for _, m := range b.Position().PseudoLegalMoves(turn) {
			if m.IsCapture() || m.IsPromotion() {
				moves = append(moves, m)
			}
		}
	}

	priority := Priority(turn, q.Meta.History, q.pieceValues())
	ordered := board.NewMoveList(moves, priority)

	played := false
	for {
		if contextx.IsCancelled(ctx) {
			break
		}
		m, ok := ordered.Next()
		if !ok {
			break
		}
		if m.IsCapture() && !inCheck && seeSkip(b, m) {
			continue
		}
		if !b.PushMove(m) {
			continue
		}
		played = true

		childPromo := m.IsPromotion()
		score := -q.search(ctx, b, -beta, -alpha, qsDepth+1, childPromo)
		b.PopMove()

		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			return alpha
		}
	}

	if !played {
		if inCheck {
			return -10000 + q.Meta.MaxDepth + qsDepth
		}
		if standPatDone {
			return alpha
		}
		return q.evaluate(ctx, b)
	}
	return alpha
}

func (q Quiescence) evaluate(ctx context.Context, b *board.Board) int {
	return centipawns(q.Meta.Eval.Evaluate(ctx, b))
}

func (q Quiescence) pieceValues() PieceValueFn {
	if s, ok := q.Meta.Eval.(eval.Standard); ok {
		return DefaultPieceValues(s.Params)
	}
	return func(p board.Piece) int { return int(eval.NominalValue(p) * 100) }
}

func centipawns(p eval.Pawns) int {
	return int(p * 100)
}

// seeSkip filters a capture by static exchange evaluation: a capture that loses material even
// after all recaptures on the destination square is skipped entirely in quiescence. En passant
// is excluded from SEE (the captured pawn does not sit on the destination square) and falls back
// to a cheap nominal-value comparison against the defended destination square.
func seeSkip(b *board.Board, m board.Move) bool {
	if m.Type == board.EnPassant {
		opp := b.Turn().Opponent()
		return eval.NominalValue(m.Piece) > eval.NominalValue(board.Pawn) && b.Position().IsAttacked(opp, m.To)
	}
	return eval.StaticExchange(b.Position(), b.Turn(), m.To, m.From, m.Piece, m.Capture) < 0
}

func isDraw(b *board.Board) bool {
	if b.NoProgress() >= 100 {
		return true
	}
	if b.IsRepeat(3) {
		return true
	}
	return b.Position().HasInsufficientMaterial()
}
