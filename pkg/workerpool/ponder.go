package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/seekerror/stdlib/pkg/lang"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// ponderDepthLimit caps a ponder search's depth the way a real "infinite" search would anyway be
// bounded by the engine's maximum supported search depth, since a ponder has no deadline of its
// own to stop it.
const ponderDepthLimit = 255

// Ponder runs a Pool on the position the engine expects the opponent to reach, with unlimited
// think-time and max depth, so its elapsed time can be credited against the next real `go`.
type Ponder struct {
	mu      sync.Mutex
	handle  *Handle
	started time.Time
	move    board.Move // the move ponder was launched after, for ponder-hit comparison
}

// Start launches a ponder search on b (the position after the expected opponent move). Any
// prior ponder is halted and discarded first.
func (p *Ponder) Start(ctx context.Context, pool Pool, b *board.Board, afterMove board.Move) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle, _ = pool.Launch(ctx, b, Options{DepthLimit: lang.Some(uint(ponderDepthLimit))})
	p.started = time.Now()
	p.move = afterMove
}

// Stop cancels any in-flight ponder search and discards its result.
func (p *Ponder) Stop() {
	p.mu.Lock()
	h := p.handle
	p.handle = nil
	p.mu.Unlock()

	if h != nil {
		h.Halt()
	}
}

// Hit reports whether the move actually played matches the move ponder was started after, and
// if so returns the elapsed ponder time to credit against the upcoming `go`'s think budget.
func (p *Ponder) Hit(played board.Move) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil || !p.move.Equals(played) {
		return 0, false
	}
	return time.Since(p.started), true
}
