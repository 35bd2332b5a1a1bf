package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seekerror/build"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/board/fen"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/search"
	"github.com/kbd-chess/cerberus/pkg/tablebase"
	"github.com/kbd-chess/cerberus/pkg/timectl"
	"github.com/kbd-chess/cerberus/pkg/workerpool"
)

var version = build.NewVersion(0, 1, 0)

// Options are runtime-tunable engine settings, changed via setoption.
type Options struct {
	Threads    uint // worker count; 0 defaults to 1
	HashMB     uint // TT size in MB; 0 selects the 16 MB default
	Ponder     bool
	Tablebase  tablebase.Oracle
}

func (o Options) String() string {
	return fmt.Sprintf("{threads=%v, hash=%vMB, ponder=%v}", o.Threads, o.HashMB, o.Ponder)
}

// Engine wires together the position, the worker pool and the ponder controller, and exposes
// the operations the UCI driver calls.
type Engine struct {
	name, author string

	zt   *board.ZobristTable
	seed int64
	opts Options

	b      *board.Board
	tt     *search.Table
	ev     eval.Evaluator
	active *workerpool.Handle
	ponder workerpool.Ponder

	mu sync.Mutex
}

type Option func(*Engine)

func WithOptions(opts Options) Option {
	return func(e *Engine) { e.opts = opts }
}

func WithZobrist(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

func WithEvaluator(ev eval.Evaluator) Option {
	return func(e *Engine) { e.ev = ev }
}

func New(ctx context.Context, name, author string, opts ...Option) *Engine {
	e := &Engine{name: name, author: author, ev: eval.NewStandardEvaluator(eval.DefaultParams())}
	e.opts.Tablebase = tablebase.None{}
	for _, fn := range opts {
		fn(e)
	}
	if e.opts.Tablebase == nil {
		e.opts.Tablebase = tablebase.None{}
	}
	e.zt = board.NewZobristTable(e.seed)
	e.tt = search.NewTable(hashBytes(e.opts.HashMB))

	_ = e.Reset(ctx, fen.Initial)

	logw.Infof(ctx, "Initialized engine: %v, options=%v", e.Name(), e.opts)
	return e
}

func hashBytes(mb uint) int {
	if mb == 0 {
		mb = 16
	}
	return int(mb) << 20
}

func (e *Engine) Name() string {
	return fmt.Sprintf("%v %v", e.name, version)
}

func (e *Engine) Author() string {
	return e.author
}

func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

func (e *Engine) SetThreads(n uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Threads = n
}

func (e *Engine) SetHash(mb uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.HashMB = mb
	e.tt.Resize(hashBytes(mb))
}

func (e *Engine) SetPonder(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Ponder = on
}

// SetOptions mutates the engine's options under lock, e.g. to install a tablebase oracle.
func (e *Engine) SetOptions(fn func(*Options)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.opts)
}

func (e *Engine) SetParam(name eval.ParamName, value int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.ev.(eval.Standard)
	if !ok {
		return fmt.Errorf("evaluator does not expose tunable parameters")
	}
	return s.Params.Set(name, value)
}

// TT returns the engine's shared transposition table, e.g. so a cluster replicator can install
// itself as its ReplicatorQueue and apply entries received from peers.
func (e *Engine) TT() *search.Table {
	return e.tt
}

// Board returns a forked board, safe for the caller to mutate.
func (e *Engine) Board() *board.Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.b.Fork()
}

func (e *Engine) Position() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fen.Encode(e.b.Position(), e.b.Turn(), e.b.NoProgress(), e.b.FullMoves())
}

func (e *Engine) Evaluator() eval.Evaluator {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ev
}

// Reset halts any active search, stops pondering and replaces the current game position. The
// transposition table is kept.
func (e *Engine) Reset(ctx context.Context, position string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	logw.Infof(ctx, "Reset %v, opt=%v", position, e.opts)

	e.haltSearchIfActiveLocked(ctx)
	e.ponder.Stop()

	pos, turn, noprogress, fullmoves, err := fen.Decode(position)
	if err != nil {
		return err
	}
	e.b = board.NewBoard(e.zt, pos, turn, noprogress, fullmoves)
	return nil
}

// NewGame resets search state that should not carry over between games: it halts any active
// search, stops pondering and clears the TT. History tables are not touched here; each search
// worker starts with a zeroed one.
func (e *Engine) NewGame(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltSearchIfActiveLocked(ctx)
	e.ponder.Stop()
	e.tt.Resize(hashBytes(e.opts.HashMB))
}

// Move applies an opponent (or own) move by coordinate notation, reconciled against the current
// position's pseudo-legal move list. It does not consult the ponder controller; ponder-hit
// credit is reported separately by PonderHit.
func (e *Engine) Move(ctx context.Context, move string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidate, err := board.ParseMove(move)
	if err != nil {
		return fmt.Errorf("invalid move: %w", err)
	}

	e.haltSearchIfActiveLocked(ctx)

	for _, m := range e.b.Position().PseudoLegalMoves(e.b.Turn()) {
		if !candidate.Equals(m) {
			continue
		}
		if !e.b.PushMove(m) {
			return fmt.Errorf("illegal move: %v", m)
		}
		return nil
	}
	return fmt.Errorf("invalid move: %v", candidate)
}

// TakeBack undoes the latest move.
func (e *Engine) TakeBack(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.haltSearchIfActiveLocked(ctx)

	if _, ok := e.b.PopMove(); !ok {
		return fmt.Errorf("no move to take back")
	}
	return nil
}

// Analyze launches the worker pool on the current position. On a tablebase hit it instead
// returns a closed channel holding the tablebase move at depth 0 and score 0. Merging with
// cluster replies is left to the caller.
func (e *Engine) Analyze(ctx context.Context, depth int, deadline time.Duration) (<-chan search.PV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ponder.Stop()

	if e.active != nil {
		return nil, fmt.Errorf("search already active")
	}

	if m, ok := e.opts.Tablebase.Probe(ctx, e.b.Position(), e.b.Turn()); ok {
		out := make(chan search.PV, 1)
		out <- search.PV{Depth: 0, Move: m, Score: 0}
		close(out)
		return out, nil
	}

	n := int(e.opts.Threads)
	if n < 1 {
		n = 1
	}
	pool := workerpool.Pool{N: n, TT: e.tt, Ev: e.ev}
	opts := workerpool.Options{}
	if depth > 0 {
		opts.DepthLimit = lang.Some(uint(depth))
	}
	if deadline > 0 {
		opts.Deadline = lang.Some(deadline)
	}
	handle, out := pool.Launch(ctx, e.b.Fork(), opts)
	e.active = handle
	return out, nil
}

// StartPonder launches a ponder search on the current position, recording afterMove for the
// ponder-hit comparison. It does nothing when pondering is disabled.
func (e *Engine) StartPonder(ctx context.Context, afterMove board.Move) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opts.Ponder {
		return
	}
	n := int(e.opts.Threads)
	if n < 1 {
		n = 1
	}
	pool := workerpool.Pool{N: n, TT: e.tt, Ev: e.ev}
	e.ponder.Start(ctx, pool, e.b.Fork(), afterMove)
}

// PonderHit reports how much of the think-time budget should be credited from an ongoing ponder
// search that matched the move actually played.
func (e *Engine) PonderHit(played board.Move) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ponder.Hit(played)
}

func (e *Engine) Halt(ctx context.Context) (search.PV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pv, ok := e.haltSearchIfActiveLocked(ctx)
	if !ok {
		return search.PV{}, fmt.Errorf("no active search")
	}
	return pv, nil
}

func (e *Engine) haltSearchIfActiveLocked(ctx context.Context) (search.PV, bool) {
	if e.active != nil {
		pv := e.active.Halt()
		e.active = nil
		return pv, true
	}
	return search.PV{}, false
}

// Deadline computes the UCI `go` think-time budget, crediting any matched ponder-hit duration.
func Deadline(clock timectl.Clock, ponderCredit time.Duration) time.Duration {
	d := clock.Deadline()
	if d <= 0 {
		return d
	}
	d -= ponderCredit
	if d < 0 {
		return 0
	}
	return d
}
