package tune_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbd-chess/cerberus/pkg/eval"
	"github.com/kbd-chess/cerberus/pkg/tune"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyParamFile(t *testing.T) {
	params := eval.DefaultParams()

	in := strings.Join([]string{
		"# tuned pawn value",
		"pawn_value=1050",
		"",
		"malformed line with no equals",
		"bishop_value=not-a-number",
		"unknown_param_name=7",
		"king_value=90000",
	}, "\n")

	err := tune.ApplyParamFile(context.Background(), strings.NewReader(in), params)
	require.NoError(t, err)

	assert.Equal(t, 1050, params.Get(eval.ParamPawnValue))
	assert.Equal(t, 90000, params.Get(eval.ParamKingValue))
}
