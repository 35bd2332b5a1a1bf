package eval

import (
	"fmt"

	"github.com/kbd-chess/cerberus/pkg/board"
)

// Pawns is a signed position or move score denominated in pawns. Positive favors white. Score
// must stay within +/- 1,000,000, although a human interpretation in centi-pawns is desirable.
type Pawns float32

const (
	NegInf         = MinScore - 1
	MinScore Pawns = -1000000
	MaxScore Pawns = 1000000
	Inf            = MaxScore + 1
)

func (s Pawns) String() string {
	return fmt.Sprintf("%.2f", s)
}

// Unit returns the signed unit for the color: 1 for White and -1 for Black.
func Unit(c board.Color) Pawns {
	if c == board.White {
		return 1
	}
	return -1
}

// Crop crops a score into [MinScore;MaxScore].
func Crop(s Pawns) Pawns {
	switch {
	case s > MaxScore:
		return MaxScore
	case s < MinScore:
		return MinScore
	default:
		return s
	}
}

// Max returns the largest of the given scores.
func Max(a, b Pawns) Pawns {
	if a < b {
		return b
	}
	return a
}

// Min returns the smallest of the given scores.
func Min(a, b Pawns) Pawns {
	if a < b {
		return a
	}
	return b
}
