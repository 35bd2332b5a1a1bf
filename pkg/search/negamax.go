package search

import (
	"context"

	"github.com/seekerror/stdlib/pkg/util/contextx"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/eval"
)

// Negamax is the core fail-soft alpha-beta search: TT-assisted, null-move pruned, internally
// iteratively deepened, late-move reduced, with a quiescence leaf search.
type Negamax struct {
	Meta *Meta
	QS   Quiescence
}

// mateScore is the magnitude used for a forced mate, rebased by plies-from-root on report.
const mateScore = 10000

// Search returns the fail-soft score for the side to move and the best move found, if any.
// isRoot enables cluster-index root work partitioning; isNullMoveSubtree suppresses a second
// null-move try within a null-move subtree.
func (n Negamax) Search(ctx context.Context, b *board.Board, depth int, alpha, beta int, isRoot, isNullMoveSubtree bool) (int, board.Move) {
	meta := n.Meta

	if depth <= 0 {
		return n.QS.Search(ctx, b, alpha, beta, 0, false), board.Move{}
	}
	if contextx.IsCancelled(ctx) {
		return alpha, board.Move{}
	}
	if !isRoot && isDraw(b) {
		return 0, board.Move{}
	}

	turn := b.Turn()
	hash := b.Hash()

	var ttMove board.Move
	if e, ok := meta.TT.Lookup(hash); ok {
		ttMove = e.Move
		if int(e.Depth) >= depth {
			score := RebaseMate(int(e.Score), meta.MaxDepth-int(e.Depth), meta.MaxDepth-depth)
			usable := false
			switch e.Flags {
			case Exact:
				usable = true
			case LowerBound:
				usable = score >= beta
			case UpperBound:
				usable = score <= alpha
			}
			if usable && (!isRoot || !ttMove.IsNull()) {
				return score, ttMove
			}
		}
	}

	meta.Nodes++
	inCheck := b.Position().IsChecked(turn)

	if !isRoot && beta <= 9800 && !inCheck {
		staticEval := n.evaluate(ctx, b)
		switch depth {
		case 1:
			if staticEval-n.pieceValue(board.Knight) > beta {
				return beta, board.Move{}
			}
		case 2:
			if staticEval-n.pieceValue(board.Rook) > beta {
				return beta, board.Move{}
			}
		case 3:
			if staticEval-n.pieceValue(board.Queen) > beta {
				depth--
			}
		}
	}

	extension := 0
	if inCheck {
		extension = 1
	}

	if !inCheck && !isRoot && !isNullMoveSubtree {
		nmReduceDepth := 3
		if depth > 6 {
			nmReduceDepth = 4
		}
		if depth >= nmReduceDepth {
			if b.PushMove(board.Move{}) {
				score, _ := n.Search(ctx, b, depth-nmReduceDepth, -beta, -beta+1, false, true)
				score = -score
				b.PopMove()
				if score >= beta {
					verify, _ := n.Search(ctx, b, depth, beta-1, beta, false, true)
					if verify >= beta {
						return beta, board.Move{}
					}
				}
			}
		}
	}

	if ttMove.IsNull() && depth >= 2 {
		score, move := n.Search(ctx, b, depth-2, alpha, beta, isRoot, isNullMoveSubtree)
		if !move.IsNull() {
			ttMove = move
		}
		if IsMateScore(score) {
			extension++
		}
	}

	priority := board.First(ttMove, Priority(turn, meta.History, n.pieceValues()))
	moves := b.Position().PseudoLegalMoves(turn)
	ordered := board.NewMoveList(moves, priority)

	played := 0
	skip := 0
	if isRoot && len(moves) > meta.ClusterIdx {
		skip = meta.ClusterIdx
	}

	best := alpha
	var bestMove board.Move
	hasLegalMove := false
	bound := UpperBound

	for {
		if contextx.IsCancelled(ctx) {
			break
		}
		m, ok := ordered.Next()
		if !ok {
			break
		}
		if skip > 0 {
			skip--
			continue
		}
		if !b.PushMove(m) {
			continue
		}
		hasLegalMove = true
		played++

		childDepth := depth - 1
		reduced := false
		if depth >= 2 && !inCheck && played >= 4 && !m.IsCapture() && !m.IsPromotion() &&
			!b.Position().IsChecked(b.Turn()) {
			if played >= 6 {
				childDepth = (depth - 1) * 2 / 3
			} else {
				childDepth = depth - 2
			}
			if childDepth < 0 {
				childDepth = 0
			}
			reduced = true
		}

		score, _ := n.Search(ctx, b, childDepth+extension, -beta, -best, false, isNullMoveSubtree)
		score = -score
		if reduced && score > best {
			score, _ = n.Search(ctx, b, depth-1+extension, -beta, -best, false, isNullMoveSubtree)
			score = -score
		}

		b.PopMove()

		if score > best {
			best = score
			bestMove = m
			bound = Exact
		}

		if best >= beta {
			meta.Cutoffs.Record(played == 1)
			if !m.IsCapture() && !m.IsPromotion() {
				meta.History.Add(turn, m.From, m.To, depth)
			}
			bound = LowerBound
			break
		}
	}

	if !hasLegalMove {
		if inCheck {
			return -mateScore + (meta.MaxDepth - depth), board.Move{}
		}
		return 0, board.Move{}
	}

	if !contextx.IsCancelled(ctx) {
		storeMove := bestMove
		if storeMove.IsNull() {
			storeMove = ttMove
		}
		meta.TT.Store(hash, bound, uint8(depth), int16(best), storeMove, bound == Exact, false)
	}
	return best, bestMove
}

func (n Negamax) evaluate(ctx context.Context, b *board.Board) int {
	return centipawns(n.Meta.Eval.Evaluate(ctx, b))
}

func (n Negamax) pieceValue(p board.Piece) int {
	return n.pieceValues()(p)
}

func (n Negamax) pieceValues() PieceValueFn {
	if s, ok := n.Meta.Eval.(eval.Standard); ok {
		return DefaultPieceValues(s.Params)
	}
	return func(p board.Piece) int { return int(eval.NominalValue(p) * 100) }
}
