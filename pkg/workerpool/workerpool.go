// Package workerpool implements the Lazy-SMP worker pool: N search threads sharing one
// transposition table and one input position, each running its own aspiration-windowed
// iterative deepening, joined by depth-then-score.
package workerpool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/seekerror/stdlib/pkg/util/contextx"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/search"
	"github.com/kbd-chess/cerberus/pkg/timectl"
)

// Options bounds a Launch the way searchctl.Options bounds a search: DepthLimit and Deadline are
// each either set or left to run until explicit cancel, matching the teacher's practice of
// wrapping only the outer "is a limit set at all" question in Optional rather than every
// internal sentinel field.
type Options struct {
	DepthLimit lang.Optional[uint]
	Deadline   lang.Optional[time.Duration]
}

// cell is a single worker's owned state: its own cancel flag, its own search context, and its
// own position fork, so workers never share anything but the TT.
type cell struct {
	idx    int
	b      *board.Board
	meta   *search.Meta
	depth  int
	result search.PV
	mu     sync.Mutex
}

func (c *cell) record(pv search.PV) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = pv
	c.depth = pv.Depth
}

func (c *cell) snapshot() search.PV {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Pool is a Lazy-SMP launcher: it shares tt across all cells and runs n concurrent workers.
type Pool struct {
	N  int
	TT *search.Table
	Ev eval.Evaluator
}

// Launch starts the pool on a forked board and returns a handle plus a channel fed only by
// worker 0's UCI-visible PVs. An unset DepthLimit means no depth limit; an unset Deadline means
// run until explicit cancel (used by ponder and fixed-depth searches).
func (p Pool) Launch(ctx context.Context, b *board.Board, opts Options) (*Handle, <-chan search.PV) {
	n := p.N
	if n < 1 {
		n = 1
	}

	maxDepth := 0
	if v, ok := opts.DepthLimit.V(); ok {
		maxDepth = int(v)
	}
	var deadline time.Duration
	if v, ok := opts.Deadline.V(); ok {
		deadline = v
	}

	cells := make([]*cell, n)
	cancels := make([]*search.CancelFlag, n)
	var wg sync.WaitGroup

	out := make(chan search.PV, 1)
	h := &Handle{cells: cells, cancels: cancels}

	p.TT.BumpAge()

	wctxs := make([]context.Context, n)
	cancelFns := make([]func(), n)
	for i := 0; i < n; i++ {
		cancels[i] = search.NewCancelFlag()
		cells[i] = &cell{idx: i, b: b.Fork(), meta: search.NewMeta(cancels[i], p.TT, p.Ev, i)}
		wctxs[i], cancelFns[i] = contextx.WithQuitCancel(ctx, cancels[i].Closed())
	}

	h.timer = timectl.Start(deadline, func() {
		for _, c := range cancels {
			c.Set()
		}
	})

	// The Lazy-SMP join protocol: as soon as any one worker completes (or is cancelled), flip
	// every sibling's cancel flag so the rest wind down instead of running to their own depth
	// or deadline independently.
	firstDone := make(chan struct{})
	var firstOnce sync.Once

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(c *cell, wctx context.Context, cancelFn func()) {
			defer wg.Done()
			defer cancelFn()
			runWorker(wctx, c, n, maxDepth, out)
			firstOnce.Do(func() { close(firstDone) })
		}(cells[i], wctxs[i], cancelFns[i])
	}

	go func() {
		<-firstDone
		for _, c := range cancels {
			c.Set()
		}
		wg.Wait()
		h.timer.Stop()
		close(out)
	}()

	return h, out
}

// runWorker executes aspiration-windowed iterative deepening until cancelled, the deadline
// fires, or maxDepth is exceeded. Only worker 0 publishes PVs to out.
func runWorker(ctx context.Context, c *cell, n int, maxDepth int, out chan<- search.PV) {
	const initialMargin = 75

	alpha, beta := -32767, 32767
	addAlpha, addBeta := initialMargin, initialMargin
	depth := 1

	ng := search.Negamax{Meta: c.meta, QS: search.Quiescence{Meta: c.meta}}

	for !contextx.IsCancelled(ctx) {
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		c.meta.MaxDepth = depth

		start := time.Now()
		score, move := ng.Search(ctx, c.b, depth, alpha, beta, true, false)

		if contextx.IsCancelled(ctx) {
			break
		}

		if score <= alpha {
			beta = (alpha + beta) / 2
			alpha = score - addAlpha
			addAlpha = addAlpha + addAlpha/15 + 1
			if alpha < -mateScoreFloor {
				alpha = -mateScoreFloor
			}
			continue
		}
		if score >= beta {
			alpha = (alpha + beta) / 2
			beta = score + addBeta
			addBeta = addBeta + addBeta/15 + 1
			continue
		}

		addAlpha, addBeta = initialMargin, initialMargin
		pv := search.PV{
			Depth: depth,
			Move:  move,
			Score: score,
			Nodes: c.meta.Nodes,
			Time:  time.Since(start),
			Hash:  0,
		}
		c.record(pv)

		if c.idx == 0 {
			select {
			case out <- pv:
			default:
				select {
				case <-out:
				default:
				}
				out <- pv
			}
			logw.Debugf(ctx, "worker0 pv: %v", pv)
		}

		alpha, beta = score-initialMargin, score+initialMargin

		if c.idx == 0 {
			depth++
		} else if n > 3 {
			depth = advanceSpread(depth, c.idx, n)
		} else {
			depth++
		}
	}
}

const mateScoreFloor = 10000

// advanceSpread staggers non-zero workers' depth advance so the pool spreads across depths
// instead of lock-stepping, approximating the "fewer than n/2 peers at the new depth" rule with
// a fixed per-worker stagger instead of a live peer-depth census.
func advanceSpread(depth, idx, n int) int {
	if idx%3 == 0 && depth%2 == 0 {
		return depth
	}
	return depth + 1
}

// Handle lets the engine halt a launched pool and collect the joined result: the highest depth
// across cells, tiebroken by highest score. If no cell ever recorded a move, a uniformly random
// legal move is returned instead.
type Handle struct {
	cells   []*cell
	cancels []*search.CancelFlag
	timer   *timectl.Timer
	once    sync.Once
	final   search.PV
}

func (h *Handle) Halt() search.PV {
	h.once.Do(func() {
		for _, c := range h.cancels {
			c.Set()
		}
		h.timer.Stop()
		h.final = h.join()
	})
	return h.final
}

func (h *Handle) join() search.PV {
	var best search.PV
	found := false
	for _, c := range h.cells {
		pv := c.snapshot()
		if pv.Move.IsNull() && pv.Depth == 0 {
			continue
		}
		if !found || pv.Depth > best.Depth || (pv.Depth == best.Depth && pv.Score > best.Score) {
			best = pv
			found = true
		}
	}
	if !found {
		b := h.cells[0].b
		var legal []board.Move
		for _, m := range b.Position().PseudoLegalMoves(b.Turn()) {
			if b.PushMove(m) {
				b.PopMove()
				legal = append(legal, m)
			}
		}
		if len(legal) > 0 {
			best.Move = legal[rand.Intn(len(legal))]
		}
	}
	return best
}
