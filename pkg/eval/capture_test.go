package eval_test

import (
	"testing"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/board/fen"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPosition(t *testing.T, f string) *board.Position {
	t.Helper()
	pos, _, _, _, err := fen.Decode(f)
	require.NoError(t, err)
	return pos
}

// A rook takes a pawn defended only by another pawn: losing the exchange, rook for pawn.
func TestStaticExchangeLosingCapture(t *testing.T) {
	pos := newPosition(t, "4k3/8/4p3/3p4/8/8/8/R3K3 w - - 0 1")

	from, err := board.ParseSquare('a', '1')
	require.NoError(t, err)
	to, err := board.ParseSquare('d', '5')
	require.NoError(t, err)

	gain := eval.StaticExchange(pos, board.White, to, from, board.Rook, board.Pawn)
	assert.Less(t, gain, eval.Pawns(0))
}

// A pawn takes an undefended pawn: a clean, winning capture.
func TestStaticExchangeWinningCapture(t *testing.T) {
	pos := newPosition(t, "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1")

	from, err := board.ParseSquare('e', '4')
	require.NoError(t, err)
	to, err := board.ParseSquare('d', '5')
	require.NoError(t, err)

	gain := eval.StaticExchange(pos, board.White, to, from, board.Pawn, board.Pawn)
	assert.Equal(t, eval.Pawns(1), gain)
}
