package crops

import (
	"math"
	"sort"

	"github.com/i474232898/crop-advisory/internal/common"
)

// Weights are the scoring constants. They are heuristics, kept configurable so
// they can be tuned without changing the shape of the algorithm.
type Weights struct {
	TempFit         float64 // awarded when temperature is inside the rule range
	TempNear        float64 // ceiling of the decaying partial temperature credit
	TempDecay       float64 // degrees of distance from the midpoint per point lost
	RainFit         float64
	RainNear        float64
	RainDecay       float64 // millimetres of distance from the midpoint per point lost
	SoilMatch       float64
	SoilMiss        float64 // baseline so soil-mismatched crops are not zeroed out
	RotationPenalty float64 // subtracted when the crop was grown recently
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		TempFit:         30,
		TempNear:        20,
		TempDecay:       1,
		RainFit:         30,
		RainNear:        15,
		RainDecay:       50,
		SoilMatch:       30,
		SoilMiss:        5,
		RotationPenalty: 20,
	}
}

// Conditions are the request-specific inputs a rule is scored against.
type Conditions struct {
	TemperatureC float64
	RainfallMm   float64
	SoilType     string
	CropHistory  []string
}

// Candidate is a rule scored against one set of Conditions.
type Candidate struct {
	Crop        string   `json:"crop"`
	Score       float64  `json:"score"`
	SoilTypes   []string `json:"soil_types"`
	Season      string   `json:"season"`
	SowingStart string   `json:"sowing_start"`
	SowingEnd   string   `json:"sowing_end"`
}

// Scorer computes fitness scores. It holds no state beyond its weights.
type Scorer struct {
	w Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Score returns the fitness of rule under c, rounded to two decimals. The
// rotation penalty can take the total below zero; it is not clamped.
func (s *Scorer) Score(rule RuleRecord, c Conditions) float64 {
	score := s.TemperatureTerm(rule, c.TemperatureC) +
		s.RainfallTerm(rule, c.RainfallMm) +
		s.SoilTerm(rule, c.SoilType) -
		s.RotationTerm(rule, c.CropHistory)

	score = math.Round(score*100) / 100
	if score == 0 {
		score = 0 // drop the sign of -0
	}
	return score
}

// TemperatureTerm is TempFit inside [MinTemp, MaxTemp], otherwise a credit of
// TempNear decaying linearly with distance from the range midpoint, floored at 0.
func (s *Scorer) TemperatureTerm(rule RuleRecord, temp float64) float64 {
	return rangeTerm(rule.MinTemp, rule.MaxTemp, temp, s.w.TempFit, s.w.TempNear, s.w.TempDecay)
}

// RainfallTerm is the rainfall counterpart of TemperatureTerm.
func (s *Scorer) RainfallTerm(rule RuleRecord, rain float64) float64 {
	return rangeTerm(rule.MinRain, rule.MaxRain, rain, s.w.RainFit, s.w.RainNear, s.w.RainDecay)
}

// SoilTerm is SoilMatch when soilType is one of the rule's soils and SoilMiss
// otherwise. A rule without soils never matches.
func (s *Scorer) SoilTerm(rule RuleRecord, soilType string) float64 {
	if common.ContainsKey(rule.SoilTypes, soilType) {
		return s.w.SoilMatch
	}
	return s.w.SoilMiss
}

// RotationTerm is the penalty owed when the rule's crop appears in history.
// Matching ignores case and surrounding spaces, so "rice" in history penalizes
// a rule for "Rice".
func (s *Scorer) RotationTerm(rule RuleRecord, history []string) float64 {
	if common.ContainsKey(history, rule.Crop) {
		return s.w.RotationPenalty
	}
	return 0
}

// ScoreAll scores every rule, preserving input order.
func (s *Scorer) ScoreAll(rules []RuleRecord, c Conditions) []Candidate {
	out := make([]Candidate, 0, len(rules))
	for _, rule := range rules {
		out = append(out, Candidate{
			Crop:        rule.Crop,
			Score:       s.Score(rule, c),
			SoilTypes:   rule.SoilTypes,
			Season:      rule.Season,
			SowingStart: rule.SowingStart,
			SowingEnd:   rule.SowingEnd,
		})
	}
	return out
}

// Rank sorts candidates by score, highest first. Equal scores keep their input
// order. The input slice is not modified.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func rangeTerm(lo, hi, v, fit, near, decay float64) float64 {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsNaN(v) {
		return 0
	}
	if v >= lo && v <= hi {
		return fit
	}
	if decay <= 0 {
		decay = 1
	}
	mid := (lo + hi) / 2
	return math.Max(0, near-math.Abs(mid-v)/decay)
}
