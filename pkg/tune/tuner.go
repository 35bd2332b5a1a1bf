package tune

import (
	"context"
	"math"
	"sync"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/board"
	"github.com/kbd-chess/cerberus/pkg/board/fen"
	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/search"
)

// sigmoidScale is the Texel tuning logistic scale: how many centipawns correspond to one order
// of magnitude of win probability. 400 is the conventional Elo-derived value.
const sigmoidScale = 400.0

// step is the initial per-parameter adjustment size; it halves each time a full pass over every
// parameter produces no improvement, down to minStep.
const (
	initialStep = 8
	minStep     = 1
)

// Tuner runs local coordinate-descent search over an eval.Params registry against a labelled
// EPD corpus, minimizing mean squared error between the sigmoid of the static quiescence
// evaluation and each sample's normalized game result.
type Tuner struct {
	Samples []Sample
	Workers int

	zt *board.ZobristTable
}

// NewTuner constructs a Tuner. zobristSeed need not match the engine's own seed: the tuner only
// ever evaluates positions, never transposes hashes against a shared table.
func NewTuner(samples []Sample, workers int, zobristSeed int64) *Tuner {
	if workers < 1 {
		workers = 1
	}
	return &Tuner{Samples: samples, Workers: workers, zt: board.NewZobristTable(zobristSeed)}
}

// Error returns the mean squared error of params against the full corpus, computed in parallel
// across Workers goroutines.
func (t *Tuner) Error(ctx context.Context, params *eval.Params) float64 {
	if len(t.Samples) == 0 {
		return 0
	}

	ev := eval.NewStandardEvaluator(params)
	n := t.Workers
	if n > len(t.Samples) {
		n = len(t.Samples)
	}
	chunk := (len(t.Samples) + n - 1) / n

	partial := make([]float64, n)
	counts := make([]int, n)
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(t.Samples) {
			hi = len(t.Samples)
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			var sum float64
			for _, s := range t.Samples[lo:hi] {
				score, err := t.staticEval(ctx, ev, s.FEN)
				if err != nil {
					logw.Warningf(ctx, "tune: skipping sample %q: %v", s.FEN, err)
					continue
				}
				d := s.Target - sigmoid(score)
				sum += d * d
			}
			partial[w] = sum
			counts[w] = hi - lo
		}(w, lo, hi)
	}
	wg.Wait()

	var sum float64
	var count int
	for i := range partial {
		sum += partial[i]
		count += counts[i]
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func sigmoid(centipawns int) float64 {
	return 1.0 / (1.0 + math.Pow(10, -float64(centipawns)/sigmoidScale))
}

// staticEval runs the quiescence search from the full window (-32767, 32767) at qsDepth 0, the
// same "settle captures, then evaluate" static score the original tuner used in place of a full
// search, and rebases it from side-to-move-relative to White-relative.
func (t *Tuner) staticEval(ctx context.Context, ev eval.Evaluator, fenStr string) (int, error) {
	pos, turn, noprogress, fullmoves, err := fen.Decode(fenStr)
	if err != nil {
		return 0, err
	}
	b := board.NewBoard(t.zt, pos, turn, noprogress, fullmoves)

	tt := search.NewTable(1 << 16)
	meta := search.NewMeta(search.NewCancelFlag(), tt, ev, 0)
	qs := search.Quiescence{Meta: meta}

	score := qs.Search(ctx, b, -32767, 32767, 0, false)
	if turn == board.Black {
		score = -score
	}
	return score, nil
}

// Report summarizes one tuning run.
type Report struct {
	StartError float64
	EndError   float64
	Passes     int
}

// Tune runs coordinate descent over every recognized parameter, starting from params' current
// values, until a full pass at the minimum step size yields no improvement. params is mutated
// in place; the returned Report describes the run.
func (t *Tuner) Tune(ctx context.Context, params *eval.Params) Report {
	names := params.Names()
	report := Report{StartError: t.Error(ctx, params)}
	best := report.StartError

	for step := initialStep; step >= minStep; step /= 2 {
		improved := true
		for improved {
			improved = false
			for _, name := range names {
				base := params.Get(name)

				_ = params.Set(name, base+step)
				upErr := t.Error(ctx, params)

				_ = params.Set(name, base-step)
				downErr := t.Error(ctx, params)

				switch {
				case upErr < best && upErr <= downErr:
					_ = params.Set(name, base+step)
					best = upErr
					improved = true
				case downErr < best:
					_ = params.Set(name, base-step)
					best = downErr
					improved = true
				default:
					_ = params.Set(name, base)
				}
			}
			report.Passes++
		}
	}

	report.EndError = best
	return report
}
