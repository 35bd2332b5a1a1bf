package cluster_test

import (
	"testing"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeers(t *testing.T) {
	peers, err := cluster.ParsePeers("10.0.0.1,10.0.0.2:6000, ,10.0.0.3:7000")
	require.NoError(t, err)
	require.Len(t, peers, 3)

	assert.Equal(t, cluster.DispatchPort, peers[0].Addr.Port)
	assert.Equal(t, 6000, peers[1].Addr.Port)
	assert.Equal(t, 7000, peers[2].Addr.Port)
}

func TestParsePeersEmpty(t *testing.T) {
	peers, err := cluster.ParsePeers("")
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestMergePicksDeepestReply(t *testing.T) {
	local, err := board.ParseMove("e2e4")
	require.NoError(t, err)

	replies := []cluster.Reply{
		{Position: "pos", Move: "d2d4", Depth: 10, Score: 20},
		{Position: "pos", Move: "g1f3", Depth: 11, Score: 10},
		{Position: "other", Move: "a2a4", Depth: 99, Score: 999}, // stale position, ignored
	}

	move, score, depth := cluster.Merge("pos", local, 5, 8, replies)

	assert.Equal(t, "g1f3", move.String())
	assert.Equal(t, 10, score)
	assert.Equal(t, 11, depth)
}

func TestMergeTiebreaksOnScoreAtEqualDepth(t *testing.T) {
	move, score, depth := cluster.Merge("pos", board.Move{}, 0, 0, []cluster.Reply{
		{Position: "pos", Move: "e2e4", Depth: 12, Score: 5},
		{Position: "pos", Move: "d2d4", Depth: 12, Score: 30},
	})

	assert.Equal(t, "d2d4", move.String())
	assert.Equal(t, 30, score)
	assert.Equal(t, 12, depth)
}

func TestMergeFallsBackToLocalWhenNoReplies(t *testing.T) {
	local, err := board.ParseMove("e2e4")
	require.NoError(t, err)

	move, score, depth := cluster.Merge("pos", local, 42, 6, nil)

	assert.Equal(t, local, move)
	assert.Equal(t, 42, score)
	assert.Equal(t, 6, depth)
}
