package tune_test

import (
	"strings"
	"testing"

	"github.com/kbd-chess/cerberus/pkg/board/fen"
	"github.com/kbd-chess/cerberus/pkg/tune"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEPD(t *testing.T) {
	samples, err := tune.ParseEPD(strings.NewReader(strings.Join([]string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1 1-0",
		"4k3/8/4K3/8/8/8/8/8 b - - 0 1 0-1",
		"8/8/8/8/8/8/8/8 w - - 0 1 1/2-1/2",
		"",
	}, "\n")))
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, fen.Initial, samples[0].FEN)
	assert.Equal(t, 1.0, samples[0].Target)
	assert.Equal(t, 0.0, samples[1].Target)
	assert.Equal(t, 0.5, samples[2].Target)
}

func TestParseEPDRejectsMalformedLine(t *testing.T) {
	_, err := tune.ParseEPD(strings.NewReader("not an epd line"))
	assert.Error(t, err)
}

func TestParseEPDRejectsUnknownResult(t *testing.T) {
	_, err := tune.ParseEPD(strings.NewReader("8/8/8/8/8/8/8/8 w - - 0 1 2-0"))
	assert.Error(t, err)
}
