package eval

import "fmt"

// ParamName identifies a tunable evaluation parameter. The set of recognized names is closed:
// Params.Set rejects anything outside DefaultParams.
type ParamName string

const (
	ParamPawnValue   ParamName = "pawn_value"
	ParamKnightValue ParamName = "knight_value"
	ParamBishopValue ParamName = "bishop_value"
	ParamRookValue   ParamName = "rook_value"
	ParamQueenValue  ParamName = "queen_value"
	ParamKingValue   ParamName = "king_value"

	ParamBishopPair     ParamName = "bishop_pair"
	ParamKnightOutpost  ParamName = "knight_outpost"
	ParamRookOpenFile   ParamName = "rook_open_file"
	ParamRookSemiOpen   ParamName = "rook_semi_open_file"
	ParamRookOn7th      ParamName = "rook_on_7th"
	ParamQueenOn7th     ParamName = "queen_on_7th"
	ParamTempo          ParamName = "tempo"
	ParamCenterControl  ParamName = "center_control"
	ParamKingTropism    ParamName = "king_tropism"
	ParamKingShield     ParamName = "king_shield"
	ParamKingOpenFile   ParamName = "king_open_file_penalty"
	ParamCastledBonus   ParamName = "castled_bonus"
	ParamUndevelopedMin ParamName = "undeveloped_minor_penalty"

	ParamPawnDoubled   ParamName = "pawn_doubled"
	ParamPawnIsolated  ParamName = "pawn_isolated"
	ParamPawnBackward  ParamName = "pawn_backward"
	ParamPawnConnected ParamName = "pawn_connected"

	ParamPassedPawnRank2 ParamName = "passed_pawn_rank2"
	ParamPassedPawnRank3 ParamName = "passed_pawn_rank3"
	ParamPassedPawnRank4 ParamName = "passed_pawn_rank4"
	ParamPassedPawnRank5 ParamName = "passed_pawn_rank5"
	ParamPassedPawnRank6 ParamName = "passed_pawn_rank6"
	ParamPassedPawnRank7 ParamName = "passed_pawn_rank7"

	ParamMobilityKnight ParamName = "mobility_knight"
	ParamMobilityBishop ParamName = "mobility_bishop"
	ParamMobilityRook   ParamName = "mobility_rook"
	ParamMobilityQueen  ParamName = "mobility_queen"

	ParamPsqKnightCenter ParamName = "psq_knight_center"
	ParamPsqKnightRim    ParamName = "psq_knight_rim"
	ParamPsqBishopCenter ParamName = "psq_bishop_center"
	ParamPsqKingCenter   ParamName = "psq_king_center_mid"
	ParamPsqKingCorner   ParamName = "psq_king_corner_mid"
	ParamPsqKingCenterEG ParamName = "psq_king_center_end"
	ParamPsqPawnAdvance  ParamName = "psq_pawn_advance"

	ParamMinorBehindPawn ParamName = "minor_behind_pawn"
	ParamRookBehindPasser ParamName = "rook_behind_passer"
	ParamTrappedRook      ParamName = "trapped_rook_penalty"
	ParamPinPenalty       ParamName = "pin_penalty"
	ParamHangingPenalty   ParamName = "hanging_piece_penalty"
	ParamSpaceBonus       ParamName = "space_bonus"
)

// DefaultParams returns the built-in evaluation parameters, in millipawns except where noted.
// These are the closed set of recognized tunable names.
func DefaultParams() *Params {
	return &Params{values: map[ParamName]int{
		ParamPawnValue:   100,
		ParamKnightValue: 320,
		ParamBishopValue: 330,
		ParamRookValue:   500,
		ParamQueenValue:  900,
		ParamKingValue:   10000,

		ParamBishopPair:       30,
		ParamKnightOutpost:    18,
		ParamRookOpenFile:     20,
		ParamRookSemiOpen:     10,
		ParamRookOn7th:        20,
		ParamQueenOn7th:       10,
		ParamTempo:            10,
		ParamCenterControl:    6,
		ParamKingTropism:      4,
		ParamKingShield:       12,
		ParamKingOpenFile:     16,
		ParamCastledBonus:     15,
		ParamUndevelopedMin:   8,

		ParamPawnDoubled:   12,
		ParamPawnIsolated:  14,
		ParamPawnBackward:  8,
		ParamPawnConnected: 5,

		ParamPassedPawnRank2: 5,
		ParamPassedPawnRank3: 10,
		ParamPassedPawnRank4: 20,
		ParamPassedPawnRank5: 35,
		ParamPassedPawnRank6: 60,
		ParamPassedPawnRank7: 100,

		ParamMobilityKnight: 4,
		ParamMobilityBishop: 5,
		ParamMobilityRook:   2,
		ParamMobilityQueen:  1,

		ParamPsqKnightCenter:  12,
		ParamPsqKnightRim:     -16,
		ParamPsqBishopCenter:  8,
		ParamPsqKingCenter:    -20,
		ParamPsqKingCorner:    10,
		ParamPsqKingCenterEG:  20,
		ParamPsqPawnAdvance:   4,

		ParamMinorBehindPawn:  3,
		ParamRookBehindPasser: 10,
		ParamTrappedRook:      25,
		ParamPinPenalty:       8,
		ParamHangingPenalty:   15,
		ParamSpaceBonus:       2,
	}}
}

// Params is a flat, named registry of tunable evaluation weights, copied once per search so the
// hot evaluation path never contends on a process-wide default.
type Params struct {
	values map[ParamName]int
}

// Clone returns an independent copy, so a search can hold its own Params without racing a
// concurrent `setoption`/tune reload of the process-wide default.
func (p *Params) Clone() *Params {
	cp := make(map[ParamName]int, len(p.values))
	for k, v := range p.values {
		cp[k] = v
	}
	return &Params{values: cp}
}

// Get returns the value of a named parameter, or 0 if unrecognized.
func (p *Params) Get(name ParamName) int {
	return p.values[name]
}

// Set assigns a named parameter. Returns an error if the name is not in the recognized set.
func (p *Params) Set(name ParamName, value int) error {
	if _, ok := p.values[name]; !ok {
		return fmt.Errorf("unrecognized evaluation parameter: %v", name)
	}
	p.values[name] = value
	return nil
}

// Names returns the closed set of recognized parameter names.
func (p *Params) Names() []ParamName {
	names := make([]ParamName, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	return names
}
