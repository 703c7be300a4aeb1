// Package advisory assembles crop recommendations from the rule store, the
// weather cache and the scorer.
package advisory

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/i474232898/crop-advisory/internal/common"
	"github.com/i474232898/crop-advisory/internal/crops"
	"github.com/i474232898/crop-advisory/internal/metrics"
	"github.com/i474232898/crop-advisory/internal/weather"
)

// DefaultTopN is how many candidates a recommendation returns by default.
const DefaultTopN = 2

const justificationSeparator = " | "

// RecommendationError wraps whatever stopped a recommendation from being built.
// No partial recommendation accompanies it.
type RecommendationError struct {
	Err error
}

func (e *RecommendationError) Error() string {
	return "recommendation failed: " + e.Err.Error()
}

func (e *RecommendationError) Unwrap() error {
	return e.Err
}

// RuleSource yields the loaded crop rules.
type RuleSource interface {
	EnsureLoaded(ctx context.Context) ([]crops.RuleRecord, error)
}

// WeatherSource yields weather for a coordinate.
type WeatherSource interface {
	GetWeather(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error)
}

// Request is a recommendation request.
type Request struct {
	Coordinates weather.Coordinates
	SoilType    string
	CropHistory []string
	LandArea    *float64
}

// RecommendedCrop is one entry of the ranked output.
type RecommendedCrop struct {
	Crop        string  `json:"crop"`
	Score       float64 `json:"score"`
	Season      string  `json:"season"`
	SowingStart string  `json:"sowing_start"`
	SowingEnd   string  `json:"sowing_end"`
}

// Meta echoes the inputs the ranking was computed from.
type Meta struct {
	CurrentTempC   float64  `json:"current_temp_c"`
	Next7DayRainMm float64  `json:"next_7day_rain_mm"`
	LandArea       *float64 `json:"land_area"`
	SoilType       string   `json:"soil_type"`
}

// Recommendation is the ranked, justified result.
type Recommendation struct {
	Recommended   []RecommendedCrop `json:"recommended"`
	Justification []string          `json:"justification"`
	Meta          Meta              `json:"meta"`
}

// Advisor orchestrates rule loading, weather lookup and scoring.
type Advisor struct {
	rules   RuleSource
	weather WeatherSource
	scorer  *crops.Scorer
	topN    int
}

// NewAdvisor creates a new Advisor. A topN <= 0 uses DefaultTopN.
func NewAdvisor(rules RuleSource, weather WeatherSource, scorer *crops.Scorer, topN int) *Advisor {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Advisor{
		rules:   rules,
		weather: weather,
		scorer:  scorer,
		topN:    topN,
	}
}

// Recommend ranks every crop rule against the weather at req.Coordinates and
// the request's soil and rotation history. Rule load and weather failures are
// returned as *RecommendationError; no default weather is substituted for a
// failed fetch.
func (a *Advisor) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	rec, err := a.recommend(ctx, req)
	if err != nil {
		metrics.Recommendations.WithLabelValues("error").Inc()
		log.Printf("ERROR: recommendation for %s failed: %v", req.Coordinates.Key(), err)
		return Recommendation{}, &RecommendationError{Err: err}
	}
	metrics.Recommendations.WithLabelValues("ok").Inc()
	return rec, nil
}

func (a *Advisor) recommend(ctx context.Context, req Request) (Recommendation, error) {
	rules, err := a.rules.EnsureLoaded(ctx)
	if err != nil {
		return Recommendation{}, err
	}

	snap, err := a.weather.GetWeather(ctx, req.Coordinates)
	if err != nil {
		return Recommendation{}, fmt.Errorf("failed to fetch weather: %w", err)
	}
	sig := weather.DeriveSignals(snap)

	soil := common.NormalizeKey(req.SoilType)
	ranked := crops.Rank(a.scorer.ScoreAll(rules, crops.Conditions{
		TemperatureC: sig.TemperatureC,
		RainfallMm:   sig.RainfallMm,
		SoilType:     soil,
		CropHistory:  req.CropHistory,
	}))
	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}

	rec := Recommendation{
		Recommended:   make([]RecommendedCrop, 0, len(ranked)),
		Justification: make([]string, 0, len(ranked)),
		Meta: Meta{
			CurrentTempC:   sig.TemperatureC,
			Next7DayRainMm: sig.RainfallMm,
			LandArea:       req.LandArea,
			SoilType:       req.SoilType,
		},
	}
	for _, c := range ranked {
		rec.Recommended = append(rec.Recommended, RecommendedCrop{
			Crop:        c.Crop,
			Score:       c.Score,
			Season:      c.Season,
			SowingStart: c.SowingStart,
			SowingEnd:   c.SowingEnd,
		})
		rec.Justification = append(rec.Justification, Justify(c))
	}

	return rec, nil
}

// Justify renders the human-readable reason line for a candidate.
func Justify(c crops.Candidate) string {
	parts := []string{
		fmt.Sprintf("%s (score %s)", c.Crop, strconv.FormatFloat(c.Score, 'f', -1, 64)),
		"Suitable soils: " + strings.Join(c.SoilTypes, ", "),
	}
	if c.SowingStart != "" && c.SowingEnd != "" {
		parts = append(parts, fmt.Sprintf("Sowing window: %s → %s", c.SowingStart, c.SowingEnd))
	}
	return strings.Join(parts, justificationSeparator)
}
