// cerberus is a UCI chess engine with an optional lazy-SMP cluster mode: a running instance can
// fan a `go` out to peer instances over UDP and merge their replies with its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/cluster"
	"github.com/kbd-chess/cerberus/pkg/engine"
	"github.com/kbd-chess/cerberus/pkg/engine/uci"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/search"
	"github.com/kbd-chess/cerberus/pkg/tablebase"
	"github.com/kbd-chess/cerberus/pkg/tune"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: cerberus [options]

CERBERUS is a lazy-SMP UCI chess engine with an optional cluster search mode.

Options:
  -H MB     transposition table size in megabytes (default 16)
  -c N      worker thread count (default 1)
  -p        enable pondering
  -s path   Syzygy tablebase directory
  -t epd    run the offline tuner against an EPD corpus and print the result, then exit
  -T file   load a tuning parameter file at startup
  -l path   log location; the directory part of path becomes the log directory
  -x tag    log tag; accepted, but does not change the log directory or file names
  -n list   comma-separated host[:port] list of cluster peers to dispatch to (default port 5823)
  -N port   also listen for dispatched requests on port, acting as a cluster peer
  -L        when dispatching to peers, also search the position locally
  -h        show this help message
`)
}

func main() {
	fs := flag.NewFlagSet("cerberus", flag.ContinueOnError)
	fs.Usage = usage

	hashMB := fs.Uint("H", 16, "TT size in MB")
	threads := fs.Uint("c", 1, "worker thread count")
	ponder := fs.Bool("p", false, "enable pondering")
	syzygyPath := fs.String("s", "", "Syzygy tablebase directory")
	tuneEPD := fs.String("t", "", "tune using EPD corpus at this path, then exit")
	tuneFile := fs.String("T", "", "load tuning parameter file at startup")
	logPath := fs.String("l", "", "log file path")
	logTag := fs.String("x", "", "log tag")
	peerList := fs.String("n", "", "comma-separated cluster peer list")
	clusterPort := fs.Int("N", 0, "listen port for incoming cluster dispatches")
	alsoLocal := fs.Bool("L", false, "also search locally when dispatching")
	help := fs.Bool("h", false, "show this help message")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *help {
		usage()
		os.Exit(0)
	}

	ctx := context.Background()
	configureLogging(*logPath, *logTag)

	params := eval.DefaultParams()
	if *tuneFile != "" {
		if err := tune.LoadParamFile(ctx, *tuneFile, params); err != nil {
			logw.Exitf(ctx, "Failed to load tune file %v: %v", *tuneFile, err)
		}
	}

	if *tuneEPD != "" {
		runOfflineTune(ctx, *tuneEPD, params, int(*threads))
		os.Exit(0)
	}

	var oracle tablebase.Oracle = tablebase.None{}
	if *syzygyPath != "" {
		sz, err := tablebase.NewSyzygy(*syzygyPath, nil)
		if err != nil {
			logw.Exitf(ctx, "Invalid Syzygy path %v: %v", *syzygyPath, err)
		}
		oracle = sz
	}

	e := engine.New(ctx, "cerberus", "kbd-chess",
		engine.WithEvaluator(eval.NewStandardEvaluator(params)),
		engine.WithOptions(engine.Options{Threads: *threads, HashMB: *hashMB, Ponder: *ponder, Tablebase: oracle}),
	)

	var disp *cluster.Dispatcher
	if *peerList != "" || *clusterPort != 0 {
		peers, err := cluster.ParsePeers(*peerList)
		if err != nil {
			logw.Exitf(ctx, "Invalid peer list %v: %v", *peerList, err)
		}
		disp, err = cluster.NewDispatcher(peers, *clusterPort, *alsoLocal)
		if err != nil {
			logw.Exitf(ctx, "Failed to start cluster dispatcher: %v", err)
		}
		defer disp.Close()

		if _, err := cluster.NewReplicator(ctx, e.TT(), cluster.ReplicatorTXPort, 4096); err != nil {
			logw.Warningf(ctx, "TT replication disabled: %v", err)
		}
	}
	if disp != nil && *clusterPort != 0 {
		// A request answered here must never disturb the position the GUI-facing driver is
		// mid-game with, so serving gets its own engine instance rather than sharing e.
		peerEngine := engine.New(ctx, "cerberus", "kbd-chess",
			engine.WithEvaluator(eval.NewStandardEvaluator(params)),
			engine.WithOptions(engine.Options{Threads: *threads, HashMB: *hashMB, Tablebase: oracle}),
		)
		go disp.Serve(ctx, func(ctx context.Context, pos string, thinkTime time.Duration, depth int) (board.Move, int, int) {
			return serveLocalSearch(ctx, peerEngine, pos, thinkTime, depth)
		})
	}

	in := engine.ReadStdinLines(ctx)
	switch <-in {
	case uci.ProtocolName:
		var driver *uci.Driver
		var out <-chan string
		if disp != nil {
			driver, out = uci.NewClusteringDriver(ctx, e, in, disp)
		} else {
			driver, out = uci.NewDriver(ctx, e, in)
		}
		go engine.WriteStdoutLines(ctx, out)
		<-driver.Closed()
	default:
		usage()
		logw.Exitf(ctx, "Protocol not supported")
	}
}

// serveLocalSearch answers one incoming cluster dispatch request by resetting e to the
// requested position and searching it; e is dedicated to serving peer requests.
func serveLocalSearch(ctx context.Context, e *engine.Engine, pos string, thinkTime time.Duration, depth int) (board.Move, int, int) {
	if err := e.Reset(ctx, pos); err != nil {
		return board.Move{}, 0, 0
	}
	out, err := e.Analyze(ctx, depth, thinkTime)
	if err != nil {
		return board.Move{}, 0, 0
	}
	var last search.PV
	for pv := range out {
		last = pv
	}
	return last.Move, last.Score, last.Depth
}

func configureLogging(path, tag string) {
	if path == "" {
		return
	}
	if tag != "" {
		path = path + "." + tag
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = flag.Set("log_dir", filepath.Dir(path))
}

func runOfflineTune(ctx context.Context, epdPath string, params *eval.Params, workers int) {
	samples, err := tune.LoadEPD(epdPath)
	if err != nil {
		logw.Exitf(ctx, "Failed to load EPD corpus %v: %v", epdPath, err)
	}
	logw.Infof(ctx, "%v EPD samples loaded", len(samples))

	t := tune.NewTuner(samples, workers, 1)
	report := t.Tune(ctx, params)
	logw.Infof(ctx, "tune: start error %.6f, end error %.6f, %v passes", report.StartError, report.EndError, report.Passes)

	for _, name := range params.Names() {
		fmt.Printf("%v=%v\n", name, params.Get(name))
	}
}
