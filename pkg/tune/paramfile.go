// Package tune implements the `-t`/`-T` offline tuning workflow: loading a saved parameter file
// at startup, and running a Texel-style local search against a labelled EPD corpus.
package tune

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/seekerror/logw"

	"github.com/kbd-chess/cerberus/pkg/eval"
)

// LoadParamFile applies a `key=integer` tuning file to params. Lines beginning with # are
// comments. Unrecognized keys are logged and skipped rather than treated as fatal: the file
// format is applied blindly, and Params.Set is the only validator.
func LoadParamFile(ctx context.Context, path string, params *eval.Params) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ApplyParamFile(ctx, f, params)
}

// ApplyParamFile is LoadParamFile against an already-open reader, split out for testability.
func ApplyParamFile(ctx context.Context, r io.Reader, params *eval.Params) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			logw.Warningf(ctx, "tune: skipping malformed line %q", line)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			logw.Warningf(ctx, "tune: skipping non-integer value in %q: %v", line, err)
			continue
		}
		name := eval.ParamName(strings.TrimSpace(key))
		if err := params.Set(name, n); err != nil {
			logw.Warningf(ctx, "tune: %v", err)
			continue
		}
		logw.Infof(ctx, "tune: applying %v=%v", name, n)
	}
	return sc.Err()
}
