package uci_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbd-chess/cerberus/pkg/engine"
	"github.com/kbd-chess/cerberus/pkg/engine/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainUntil consumes lines from out until one starts with prefix, or fails the test on timeout.
func drainUntil(t *testing.T, out <-chan string, prefix string) string {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case line, ok := <-out:
			if !ok {
				t.Fatalf("output closed before seeing a line starting with %q", prefix)
			}
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a line starting with %q", prefix)
		}
	}
}

func TestUCIHandshake(t *testing.T) {
	ctx := context.Background()
	e := engine.New(ctx, "cerberus", "kbd-chess")
	in := make(chan string, 10)
	driver, out := uci.NewDriver(ctx, e, in)
	defer driver.Close()

	id := drainUntil(t, out, "id name")
	assert.Contains(t, id, "cerberus")
	drainUntil(t, out, "uciok")

	in <- "isready"
	assert.Equal(t, "readyok", drainUntil(t, out, "readyok"))
}

func TestUCIMateInOne(t *testing.T) {
	ctx := context.Background()
	e := engine.New(ctx, "cerberus", "kbd-chess")
	in := make(chan string, 10)
	driver, out := uci.NewDriver(ctx, e, in)
	defer driver.Close()
	drainUntil(t, out, "uciok")

	in <- "position fen 4k3/4Q3/4K3/8/8/8/8/8 w - - 0 1"
	in <- "go depth 2"

	best := drainUntil(t, out, "bestmove")
	assert.Equal(t, "bestmove e7e8", best)
}

func TestUCIStartposMoveTime(t *testing.T) {
	ctx := context.Background()
	e := engine.New(ctx, "cerberus", "kbd-chess")
	in := make(chan string, 10)
	driver, out := uci.NewDriver(ctx, e, in)
	defer driver.Close()
	drainUntil(t, out, "uciok")

	in <- "position startpos"
	in <- "go movetime 500"

	info := drainUntil(t, out, "info depth 1")
	assert.Contains(t, info, "score cp")

	best := drainUntil(t, out, "bestmove")
	require.True(t, strings.HasPrefix(best, "bestmove "))
	assert.NotEqual(t, "bestmove 0000", best)
}

func TestUCIStalemateHasNoLegalMove(t *testing.T) {
	ctx := context.Background()
	e := engine.New(ctx, "cerberus", "kbd-chess")
	in := make(chan string, 10)
	driver, out := uci.NewDriver(ctx, e, in)
	defer driver.Close()
	drainUntil(t, out, "uciok")

	in <- "position fen 7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"
	in <- "go depth 1"

	// Black to move is stalemated: the search finds no legal reply and reports the null move.
	best := drainUntil(t, out, "bestmove")
	assert.Equal(t, "bestmove 0000", best)
}
