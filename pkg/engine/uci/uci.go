// Package uci contains a driver for using the engine under the UCI protocol, plus a handful of
// diagnostic extensions useful outside a GUI.
//
// See: http://wbec-ridderkerk.nl/html/UCIProtocol.html
// See: https://en.wikipedia.org/wiki/Universal_Chess_Interface
package uci

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/board/fen"
	"github.com/kbd-chess/cerberus/pkg/cluster"
	"github.com/kbd-chess/cerberus/pkg/engine"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/search"
	"github.com/kbd-chess/cerberus/pkg/tablebase"
	"github.com/kbd-chess/cerberus/pkg/timectl"
)

const ProtocolName = "uci"

// Driver implements a UCI driver for an engine. It is activated if sent "uci".
type Driver struct {
	e *engine.Engine

	dispatcher *cluster.Dispatcher

	out chan<- string

	active       atomic.Bool
	info         chan search.PV
	lastPosition string

	quit   chan struct{}
	closed atomic.Bool
}

func NewDriver(ctx context.Context, e *engine.Engine, in <-chan string) (*Driver, <-chan string) {
	return newDriver(ctx, e, in, nil)
}

// NewClusteringDriver is NewDriver with a cluster Dispatcher wired into every `go`: each search
// is fanned out to dispatcher's peers, merged by depth with the local result if
// dispatcher.LocalAlso(), or peer-only if not.
func NewClusteringDriver(ctx context.Context, e *engine.Engine, in <-chan string, dispatcher *cluster.Dispatcher) (*Driver, <-chan string) {
	return newDriver(ctx, e, in, dispatcher)
}

func newDriver(ctx context.Context, e *engine.Engine, in <-chan string, dispatcher *cluster.Dispatcher) (*Driver, <-chan string) {
	out := make(chan string, 100)
	d := &Driver{
		e:          e,
		dispatcher: dispatcher,
		out:        out,
		info:       make(chan search.PV, 400),
		quit:       make(chan struct{}),
	}
	go d.process(ctx, in)
	return d, out
}

func (d *Driver) Close() {
	if d.closed.CAS(false, true) {
		close(d.quit)
	}
}

func (d *Driver) Closed() <-chan struct{} {
	return d.quit
}

func (d *Driver) process(ctx context.Context, in <-chan string) {
	defer d.Close()
	defer close(d.out)

	logw.Infof(ctx, "UCI protocol initialized")

	d.out <- fmt.Sprintf("id name %v", d.e.Name())
	d.out <- fmt.Sprintf("id author %v", d.e.Author())

	d.out <- "option name Threads type spin default 1 min 1 max 512"
	d.out <- "option name Hash type spin default 16 min 1 max 65536"
	d.out <- "option name Ponder type check default false"
	d.out <- "option name SyzygyPath type string default <empty>"

	d.out <- "uciok"

	for {
		select {
		case line, ok := <-in:
			if !ok {
				logw.Infof(ctx, "Input stream broken. Exiting")
				return
			}
			if !d.dispatch(ctx, line) {
				return
			}

		case pv := <-d.info:
			if d.active.Load() {
				d.out <- printPV(pv)
			}

		case <-d.quit:
			d.ensureInactive(ctx)
			logw.Infof(ctx, "Driver closed")
			return
		}
	}
}

// dispatch handles one input line. It returns false to terminate the driver loop (quit).
func (d *Driver) dispatch(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "isready":
		d.out <- "readyok"

	case "debug":
		// accepted, no-op: logging verbosity is controlled by -l/-x, not by debug on/off.

	case "setoption":
		d.handleSetOption(ctx, args)

	case "register":
		// no registration scheme.

	case "ucinewgame":
		d.ensureInactive(ctx)
		d.e.NewGame(ctx)
		d.lastPosition = ""

	case "position":
		d.handlePosition(ctx, line, args)

	case "go":
		d.handleGo(ctx, args)

	case "stop":
		pv, err := d.e.Halt(ctx)
		if err == nil {
			d.searchCompleted(ctx, pv)
		}

	case "ponderhit":
		// The pool keeps searching under the same deadline; nothing to switch.

	case "quit":
		return false

	// Diagnostic extensions.
	case "play":
		d.handlePlay(ctx, args)
	case "sdiv":
		d.handleSDiv(ctx, args)
	case "eval":
		d.handleEval(ctx)
	case "fen":
		d.out <- fmt.Sprintf("info string %v", d.e.Position())

	default:
		d.out <- fmt.Sprintf("Invalid command: %v", cmd)
	}
	return true
}

func (d *Driver) handleSetOption(ctx context.Context, args []string) {
	var name, value string
	if len(args) > 1 {
		name = args[1]
	}
	if len(args) > 3 {
		value = strings.Join(args[3:], " ")
	}

	switch name {
	case "Threads":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			d.e.SetThreads(uint(n))
		}
	case "Hash":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			d.e.SetHash(uint(n))
		}
	case "Ponder":
		d.e.SetPonder(value == "true")
	case "SyzygyPath":
		if value != "" && value != "<empty>" {
			if oracle, err := tablebase.NewSyzygy(value, nil); err == nil {
				d.e.SetOptions(func(o *engine.Options) { o.Tablebase = oracle })
			} else {
				logw.Errorf(ctx, "Invalid SyzygyPath %v: %v", value, err)
			}
		}
	default:
		// Evaluation parameter names pass through to the tunable registry.
		if n, err := strconv.Atoi(value); err == nil {
			if err := d.e.SetParam(eval.ParamName(name), n); err != nil {
				logw.Warningf(ctx, "Unknown setoption %v: %v", name, err)
			}
		}
	}
}

func (d *Driver) handlePosition(ctx context.Context, line string, args []string) {
	d.ensureInactive(ctx)

	if d.lastPosition != "" && strings.HasPrefix(line, d.lastPosition) {
		moves := strings.TrimSpace(strings.TrimPrefix(line, d.lastPosition))
		for _, arg := range strings.Fields(moves) {
			if arg == "moves" {
				continue
			}
			if err := d.e.Move(ctx, arg); err != nil {
				logw.Errorf(ctx, "Invalid position move '%v': %v: %v", arg, line, err)
				return
			}
		}
		d.lastPosition = line
		return
	}

	position := "startpos"
	if len(args) >= 7 && args[0] == "fen" {
		position = strings.Join(args[1:7], " ")
	}
	if position == "startpos" {
		position = fen.Initial
	}

	if err := d.e.Reset(ctx, position); err != nil {
		logw.Errorf(ctx, "Invalid position: %v", line)
		return
	}

	move := false
	for _, arg := range args {
		if arg == "moves" {
			move = true
			continue
		}
		if !move {
			continue
		}
		if err := d.e.Move(ctx, arg); err != nil {
			logw.Errorf(ctx, "Invalid position move '%v': %v: %v", arg, line, err)
			return
		}
	}
	d.lastPosition = line
}

func (d *Driver) handleGo(ctx context.Context, args []string) {
	d.ensureInactive(ctx)

	var depth int
	var clock timectl.Clock
	infinite := false
	isPonder := false

	for i := 0; i < len(args); i++ {
		cmd := args[i]
		switch cmd {
		case "wtime", "btime", "winc", "binc", "movestogo", "depth", "movetime":
			i++
			if i == len(args) {
				logw.Errorf(ctx, "No argument for %v", cmd)
				return
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				logw.Errorf(ctx, "Invalid argument for %v: %v", cmd, err)
				return
			}
			applyGoArg(&depth, &clock, d.e.Board().Turn(), cmd, n)
		case "ponder":
			isPonder = true
		case "infinite":
			infinite = true
		default:
			// searchmoves/mate/nodes: accepted, not restricting the search.
		}
	}

	ponderCredit, _ := d.e.PonderHit(board.Move{})
	deadline := engine.Deadline(clock, ponderCredit)
	if infinite || isPonder {
		deadline = 0
		if depth == 0 {
			depth = 255
		}
	}
	if depth == 0 {
		depth = 64
	}

	position := d.e.Position()
	var replyCh chan []cluster.Reply
	if d.dispatcher != nil {
		replyCh = make(chan []cluster.Reply, 1)
		go func() { replyCh <- d.dispatcher.Dispatch(ctx, position, deadline, depth) }()
	}

	runLocal := d.dispatcher == nil || d.dispatcher.LocalAlso()
	var out <-chan search.PV
	if runLocal {
		var err error
		out, err = d.e.Analyze(ctx, depth, deadline)
		if err != nil {
			logw.Errorf(ctx, "Analyze failed: %v", err)
			return
		}
	}
	d.active.Store(true)

	go func() {
		var last search.PV
		if runLocal {
			for pv := range out {
				last = pv
				select {
				case d.info <- pv:
				default:
				}
			}
		}
		if replyCh != nil {
			replies := <-replyCh
			m, score, dep := cluster.Merge(position, last.Move, last.Score, last.Depth, replies)
			last = search.PV{Move: m, Score: score, Depth: dep}
		}
		if !infinite && !isPonder {
			d.searchCompleted(ctx, last)
			d.e.StartPonder(ctx, last.Move)
		}
	}()
}

func applyGoArg(depth *int, clock *timectl.Clock, turn board.Color, cmd string, n int) {
	switch cmd {
	case "depth":
		*depth = n
	case "wtime", "btime":
		// Only the side-to-move's clock matters to Deadline; the other side's time is ignored.
		if (cmd == "wtime") == (turn == board.White) {
			clock.TimeMS = n
		}
	case "winc", "binc":
		if (cmd == "winc") == (turn == board.White) {
			clock.IncMS = n
		}
	case "movestogo":
		clock.MovesToGo = n
	case "movetime":
		clock.MoveTimeMS = n
	}
}

// handlePlay runs a fixed-movetime self-search without returning control to the GUI loop,
// useful for scripted engine-vs-engine testing from the command line.
func (d *Driver) handlePlay(ctx context.Context, args []string) {
	ms := 1000
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			ms = n
		}
	}
	out, err := d.e.Analyze(ctx, 64, time.Duration(ms)*time.Millisecond)
	if err != nil {
		logw.Errorf(ctx, "play failed: %v", err)
		return
	}
	d.active.Store(true)
	var last search.PV
	for pv := range out {
		last = pv
		d.out <- printPV(pv)
	}
	d.searchCompleted(ctx, last)
}

// handleSDiv runs a fixed-depth search and prints its PV without the `bestmove` handshake,
// for one-shot depth comparisons from a script.
func (d *Driver) handleSDiv(ctx context.Context, args []string) {
	depth := 6
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			depth = n
		}
	}
	out, err := d.e.Analyze(ctx, depth, 0)
	if err != nil {
		logw.Errorf(ctx, "sdiv failed: %v", err)
		return
	}
	d.active.Store(true)
	var last search.PV
	for pv := range out {
		last = pv
	}
	d.out <- printPV(last)
	d.active.Store(false)
}

func (d *Driver) handleEval(ctx context.Context) {
	score := d.e.Evaluator().Evaluate(ctx, d.e.Board())
	d.out <- fmt.Sprintf("info string eval %v", score)
}

func (d *Driver) ensureInactive(ctx context.Context) {
	d.active.Store(false)
	_, _ = d.e.Halt(ctx)
}

func (d *Driver) searchCompleted(ctx context.Context, pv search.PV) {
	if d.active.CAS(true, false) {
		if !pv.Move.IsNull() {
			d.out <- printPV(pv)
			d.out <- fmt.Sprintf("bestmove %v", printMove(pv.Move))
		} else {
			d.out <- "bestmove 0000"
		}
	}
}

func printPV(pv search.PV) string {
	parts := []string{"info"}
	parts = append(parts, fmt.Sprintf("depth %v", pv.Depth))

	if abs(pv.Score) > 9800 {
		mateIn := (10000 - abs(pv.Score) + 1) / 2
		if pv.Score < 0 {
			mateIn = -mateIn
		}
		parts = append(parts, fmt.Sprintf("score mate %v", mateIn))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %v", pv.Score))
	}

	if pv.Nodes > 0 {
		parts = append(parts, fmt.Sprintf("nodes %v", pv.Nodes))
	}
	if pv.Time > 0 {
		parts = append(parts, fmt.Sprintf("time %v", pv.Time.Milliseconds()))
	}
	if pv.Nodes > 0 && pv.Time > 0 {
		parts = append(parts, fmt.Sprintf("nps %v", uint64(time.Second)*pv.Nodes/uint64(pv.Time)))
	}
	if !pv.Move.IsNull() {
		parts = append(parts, "pv", printMove(pv.Move))
	}
	return strings.Join(parts, " ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func printMove(m board.Move) string {
	return strings.ToLower(fmt.Sprintf("%v%v", m.From, m.To)) + printPromoPiece(m.Promotion)
}

func printPromoPiece(p board.Piece) string {
	switch p {
	case board.Queen:
		return "q"
	case board.Rook:
		return "r"
	case board.Knight:
		return "n"
	case board.Bishop:
		return "b"
	default:
		return ""
	}
}
