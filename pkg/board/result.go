package board

// Outcome represents the decided/undecided status of a game.
type Outcome uint8

const (
	Undecided Outcome = iota
	WhiteWins
	BlackWins
	Draw
)

// Reason elaborates why a Result was adjudicated.
type Reason uint8

const (
	NoReason Reason = iota
	Checkmate
	Stalemate
	Repetition3
	Repetition5
	NoProgress
	InsufficientMaterial
)

// Win returns the WhiteWins/BlackWins outcome favoring the given color.
func Win(c Color) Outcome {
	if c == White {
		return WhiteWins
	}
	return BlackWins
}

// Loss returns the WhiteWins/BlackWins outcome favoring the opponent of the given color.
func Loss(c Color) Outcome {
	return Win(c.Opponent())
}

// Result represents the adjudicated result of a game, if any.
type Result struct {
	Outcome Outcome
	Reason  Reason
}

func (r Result) String() string {
	if r.Outcome == Undecided {
		return "undecided"
	}
	return r.Outcome.String() + "/" + r.Reason.String()
}

func (o Outcome) String() string {
	switch o {
	case Undecided:
		return "undecided"
	case WhiteWins:
		return "1-0"
	case BlackWins:
		return "0-1"
	case Draw:
		return "1/2-1/2"
	default:
		return "?"
	}
}

func (r Reason) String() string {
	switch r {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Repetition3:
		return "3-fold repetition"
	case Repetition5:
		return "5-fold repetition"
	case NoProgress:
		return "50-move rule"
	case InsufficientMaterial:
		return "insufficient material"
	default:
		return "none"
	}
}
