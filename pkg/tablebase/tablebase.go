// Package tablebase defines the endgame Tablebase Oracle interface consulted at the search
// root, plus a stub implementation and a Syzygy-backed one activated by the `SyzygyPath` UCI
// option or the -s flag.
package tablebase

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// Oracle answers whether a position is a known tablebase hit and, if so, the move to play. A
// hit at the root cancels the in-flight search and replaces the chosen move outright, reported
// at score 0, depth 0.
type Oracle interface {
	// Probe returns the tablebase's chosen move for turn to play in pos, if pos is within the
	// oracle's coverage (piece count and path availability).
	Probe(ctx context.Context, pos *board.Position, turn board.Color) (board.Move, bool)
}

// None never reports a hit. It is the default oracle when no tablebase path is configured.
type None struct{}

func (None) Probe(ctx context.Context, pos *board.Position, turn board.Color) (board.Move, bool) {
	return board.Move{}, false
}

// maxPieces bounds the piece count Syzygy WDL/DTZ files commonly ship for (up to 6-man here);
// anything larger is not looked up at all.
const maxPieces = 6

// Syzygy probes a directory of Syzygy WDL/DTZ tablebase files. The lookup itself is out of
// scope here (it requires the external syzygy-tables parsing format); this oracle validates the
// path and piece-count envelope and defers to an injected Prober for the actual file format, so
// a real backend can be wired in without touching the search/engine call sites.
type Syzygy struct {
	Path   string
	Prober Prober
}

// Prober is the piece that actually decodes Syzygy WDL/DTZ files, injected so the engine layer
// never depends on a concrete on-disk format.
type Prober interface {
	ProbeRoot(ctx context.Context, pos *board.Position, turn board.Color) (board.Move, bool)
}

// NewSyzygy validates path exists and returns an oracle; prober may be nil, in which case Probe
// always reports no hit (the path is still kept in Path).
func NewSyzygy(path string, prober Prober) (*Syzygy, error) {
	if path != "" {
		if _, err := os.Stat(filepath.Clean(path)); err != nil {
			return nil, err
		}
	}
	return &Syzygy{Path: path, Prober: prober}, nil
}

func (s *Syzygy) Probe(ctx context.Context, pos *board.Position, turn board.Color) (board.Move, bool) {
	if s.Prober == nil || s.Path == "" {
		return board.Move{}, false
	}
	if pieceCount(pos) > maxPieces {
		return board.Move{}, false
	}
	return s.Prober.ProbeRoot(ctx, pos, turn)
}

func pieceCount(pos *board.Position) int {
	return pos.All().PopCount()
}
