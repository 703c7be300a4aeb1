package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/crop-advisory/internal/crops"
	"github.com/i474232898/crop-advisory/internal/weather"
)

type fakeRules struct {
	rules []crops.RuleRecord
	err   error
	calls int
}

func (f *fakeRules) EnsureLoaded(ctx context.Context) ([]crops.RuleRecord, error) {
	f.calls++
	return f.rules, f.err
}

type fakeWeather struct {
	snap  weather.Snapshot
	err   error
	calls int
	got   weather.Coordinates
}

func (f *fakeWeather) GetWeather(ctx context.Context, coords weather.Coordinates) (weather.Snapshot, error) {
	f.calls++
	f.got = coords
	return f.snap, f.err
}

func ptr(v float64) *float64 { return &v }

func testRules() []crops.RuleRecord {
	return []crops.RuleRecord{
		{Crop: "Wheat", MinTemp: 10, MaxTemp: 25, MinRain: 50, MaxRain: 150, SoilTypes: []string{"loamy"}, Season: "rabi", SowingStart: "October", SowingEnd: "December"},
		{Crop: "Rice", MinTemp: 20, MaxTemp: 35, MinRain: 100, MaxRain: 300, SoilTypes: []string{"clay", "loamy"}, Season: "kharif", SowingStart: "June", SowingEnd: "July"},
		{Crop: "Cotton", MinTemp: 21, MaxTemp: 30, MinRain: 50, MaxRain: 100, SoilTypes: []string{"black"}, Season: "kharif"},
		{Crop: "Sugarcane", MinTemp: 20, MaxTemp: 35, MinRain: 100, MaxRain: 300, SoilTypes: []string{"clay"}, Season: "kharif", SowingStart: "February"},
	}
}

func newTestAdvisor(r *fakeRules, w *fakeWeather) *Advisor {
	return NewAdvisor(r, w, crops.NewScorer(crops.DefaultWeights()), 0)
}

func TestRecommendRanksAndTruncates(t *testing.T) {
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{snap: weather.Snapshot{
		CurrentTemp:   ptr(27),
		DailyRainfall: []float64{20, 30, 40, 10, 20, 20, 10, 500},
	}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{
		Coordinates: weather.Coordinates{Lat: 15.85, Lon: 74.5},
		SoilType:    "Clay",
		LandArea:    ptr(2.5),
	})
	require.NoError(t, err)

	// Rain is the first seven days only: 150mm.
	// Rice and Sugarcane both score 90; Rice comes first in the rule set.
	require.Len(t, rec.Recommended, 2)
	assert.Equal(t, RecommendedCrop{Crop: "Rice", Score: 90, Season: "kharif", SowingStart: "June", SowingEnd: "July"}, rec.Recommended[0])
	assert.Equal(t, "Sugarcane", rec.Recommended[1].Crop)
	assert.Equal(t, 90.0, rec.Recommended[1].Score)

	assert.Equal(t, []string{
		"Rice (score 90) | Suitable soils: clay, loamy | Sowing window: June → July",
		"Sugarcane (score 90) | Suitable soils: clay",
	}, rec.Justification)

	assert.Equal(t, 27.0, rec.Meta.CurrentTempC)
	assert.Equal(t, 150.0, rec.Meta.Next7DayRainMm)
	require.NotNil(t, rec.Meta.LandArea)
	assert.Equal(t, 2.5, *rec.Meta.LandArea)
	assert.Equal(t, "Clay", rec.Meta.SoilType)
	assert.Equal(t, weather.Coordinates{Lat: 15.85, Lon: 74.5}, w.got)
}

func TestRecommendAppliesRotationHistory(t *testing.T) {
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(27), DailyRainfall: []float64{150}}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "clay", CropHistory: []string{"Rice"}})
	require.NoError(t, err)

	require.Len(t, rec.Recommended, 2)
	assert.Equal(t, "Sugarcane", rec.Recommended[0].Crop)
	assert.Equal(t, "Rice", rec.Recommended[1].Crop)
	assert.Equal(t, 70.0, rec.Recommended[1].Score)
}

func TestRecommendFallbacksForAbsentFields(t *testing.T) {
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{snap: weather.Snapshot{}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "loamy"})
	require.NoError(t, err)

	assert.Equal(t, weather.DefaultTemperatureC, rec.Meta.CurrentTempC)
	assert.Equal(t, weather.DefaultRainfallMm, rec.Meta.Next7DayRainMm)
	assert.Nil(t, rec.Meta.LandArea)
}

func TestRecommendEmptyForecastIsZeroRain(t *testing.T) {
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(22), DailyRainfall: []float64{}}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "loamy"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Meta.Next7DayRainMm)
}

func TestRecommendWeatherFailureIsWrapped(t *testing.T) {
	cause := &weather.FetchError{Provider: "stub", Kind: weather.KindUpstream, Err: errors.New("dial tcp: connection refused")}
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{err: cause}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "clay"})

	var re *RecommendationError
	require.ErrorAs(t, err, &re)
	var fe *weather.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Same(t, cause, fe)
	assert.Empty(t, rec.Recommended)
	assert.Empty(t, rec.Justification)
	assert.Contains(t, err.Error(), "failed to fetch weather")
}

func TestRecommendRuleLoadFailureIsWrapped(t *testing.T) {
	loadErr := &crops.LoadError{Source: "data/crop_rules.csv", Err: errors.New("permission denied")}
	r := &fakeRules{err: loadErr}
	w := &fakeWeather{}
	a := newTestAdvisor(r, w)

	_, err := a.Recommend(context.Background(), Request{SoilType: "clay"})

	var re *RecommendationError
	require.ErrorAs(t, err, &re)
	var le *crops.LoadError
	assert.ErrorAs(t, err, &le)
	assert.Zero(t, w.calls, "weather is not fetched when rules fail to load")
}

func TestRecommendEmptyRuleSet(t *testing.T) {
	r := &fakeRules{rules: nil}
	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(25)}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "clay"})
	require.NoError(t, err)
	assert.NotNil(t, rec.Recommended)
	assert.Empty(t, rec.Recommended)
	assert.Empty(t, rec.Justification)
}

func TestRecommendZeroByteRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crop_rules.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(25)}}
	a := NewAdvisor(crops.NewRuleStore(crops.CSVFileLoader(path)), w, crops.NewScorer(crops.DefaultWeights()), 0)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "clay"})
	require.NoError(t, err)
	assert.NotNil(t, rec.Recommended)
	assert.Empty(t, rec.Recommended)
}

func TestRecommendCustomTopN(t *testing.T) {
	r := &fakeRules{rules: testRules()}
	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(27), DailyRainfall: []float64{150}}}
	a := NewAdvisor(r, w, crops.NewScorer(crops.DefaultWeights()), 10)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "clay"})
	require.NoError(t, err)
	assert.Len(t, rec.Recommended, 4)
}

func TestJustify(t *testing.T) {
	assert.Equal(t,
		"Maize (score 65.5) | Suitable soils: loamy, sandy | Sowing window: June → July",
		Justify(crops.Candidate{Crop: "Maize", Score: 65.5, SoilTypes: []string{"loamy", "sandy"}, SowingStart: "June", SowingEnd: "July"}),
	)
	assert.Equal(t,
		"Gram (score -15) | Suitable soils: ",
		Justify(crops.Candidate{Crop: "Gram", Score: -15, SoilTypes: []string{}, SowingEnd: "Nov"}),
	)
}

func TestRecommendNeverRendersNegativeZero(t *testing.T) {
	// 5 (temp) + 9.998 (rain) + 5 (soil miss) - 20 (rotation) = -0.002.
	r := &fakeRules{rules: []crops.RuleRecord{
		{Crop: "Rice", MinTemp: 20, MaxTemp: 35, MinRain: 100, MaxRain: 300, SoilTypes: []string{"clay"}},
	}}
	w := &fakeWeather{snap: weather.Snapshot{CurrentTemp: ptr(42.5), DailyRainfall: []float64{450.1}}}
	a := newTestAdvisor(r, w)

	rec, err := a.Recommend(context.Background(), Request{SoilType: "sandy", CropHistory: []string{"Rice"}})
	require.NoError(t, err)
	require.Len(t, rec.Recommended, 1)

	assert.Equal(t, "Rice (score 0) | Suitable soils: clay", rec.Justification[0])
	raw, err := json.Marshal(rec.Recommended[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"score":0,`)
}
