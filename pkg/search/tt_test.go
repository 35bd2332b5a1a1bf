package search_test

import (
	"testing"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableStoreLookupRoundTrip(t *testing.T) {
	tt := search.NewTable(1 << 16)

	from, err := board.ParseSquare('e', '2')
	require.NoError(t, err)
	to, err := board.ParseSquare('e', '4')
	require.NoError(t, err)
	move := board.Move{From: from, To: to}

	hash := board.ZobristHash(0xC0FFEE)
	tt.Store(hash, search.Exact, 6, 123, move, false, false)

	e, ok := tt.Lookup(hash)
	require.True(t, ok)
	assert.Equal(t, search.Exact, e.Flags)
	assert.Equal(t, uint8(6), e.Depth)
	assert.Equal(t, int16(123), e.Score)
	assert.Equal(t, move, e.Move)
	assert.False(t, e.IsRemote)
}

func TestTableLookupMiss(t *testing.T) {
	tt := search.NewTable(1 << 16)
	_, ok := tt.Lookup(board.ZobristHash(42))
	assert.False(t, ok)
}

func TestMarshalUnmarshalEntryRoundTrip(t *testing.T) {
	from, err := board.ParseSquare('g', '1')
	require.NoError(t, err)
	to, err := board.ParseSquare('f', '3')
	require.NoError(t, err)

	e := search.Entry{Score: -456, Flags: search.LowerBound, Depth: 9, Move: board.Move{From: from, To: to}}

	buf := search.MarshalEntry(e)
	require.Len(t, buf, 16)

	got := search.UnmarshalEntry(buf)
	assert.Equal(t, e.Score, got.Score)
	assert.Equal(t, e.Flags, got.Flags)
	assert.Equal(t, e.Depth, got.Depth)
	assert.Equal(t, e.Move, got.Move)
	assert.True(t, got.IsRemote)
}

// A deeper store must not be evicted by a shallower same-hash store (replacement policy step 1).
func TestTablePrefersDeeperEntryOnSameHash(t *testing.T) {
	tt := search.NewTable(1 << 16)
	hash := board.ZobristHash(777)

	tt.Store(hash, search.Exact, 10, 50, board.Move{}, false, false)
	tt.Store(hash, search.Exact, 3, 999, board.Move{}, false, false)

	e, ok := tt.Lookup(hash)
	require.True(t, ok)
	assert.Equal(t, uint8(10), e.Depth)
	assert.Equal(t, int16(50), e.Score)
}
