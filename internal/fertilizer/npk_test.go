package fertilizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCrop(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Rice", "rice", true},
		{" Basmati Paddy ", "rice", true},
		{"sweet corn", "maize", true},
		{"Sugarcane", "sugarcane", true},
		{"peanut", "groundnut", true},
		{"Soya bean", "soybean", true},
		{"Bengal gram", "pulses", true},
		{"lentil", "pulses", true},
		{"saffron", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeCrop(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		perAcre PerAcre
		field   FieldTotal
		split   float64
		areaHa  float64
	}{
		{
			name:    "neutral rice",
			req:     Request{PH: 6.5, AreaAcres: 2, Crop: "rice"},
			perAcre: PerAcre{N: 48.6, P: 16.2, K: 16.2, Total: 80.9},
			field:   FieldTotal{N: 97.1, P: 32.4, K: 32.4, Total: 161.9},
			split:   32.4,
			areaHa:  0.8,
		},
		{
			name:    "acidic wheat gets more phosphorus",
			req:     Request{PH: 5.0, AreaAcres: 1, Crop: "Wheat"},
			perAcre: PerAcre{N: 48.6, P: 30.4, K: 16.2, Total: 95.1},
			field:   FieldTotal{N: 48.6, P: 30.4, K: 16.2, Total: 95.1},
			split:   16.2,
			areaHa:  0.4,
		},
		{
			name:    "alkaline sugarcane is unchanged",
			req:     Request{PH: 8.5, AreaAcres: 3, Crop: "sugarcane"},
			perAcre: PerAcre{N: 80.9, P: 40.5, K: 40.5, Total: 161.9},
			field:   FieldTotal{N: 242.8, P: 121.4, K: 121.4, Total: 485.6},
			split:   80.9,
			areaHa:  1.2,
		},
		{
			name:    "small pulse plot",
			req:     Request{PH: 7, AreaAcres: 0.5, Crop: "gram"},
			perAcre: PerAcre{N: 8.1, P: 16.2, K: 16.2, Total: 40.5},
			field:   FieldTotal{N: 4.0, P: 8.1, K: 8.1, Total: 20.2},
			split:   1.3,
			areaHa:  0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Recommend(tt.req)
			require.NoError(t, err)

			assert.Equal(t, tt.perAcre, rec.PerAcre)
			assert.Equal(t, tt.field, rec.Field)
			assert.Equal(t, NitrogenSplit{Basal: tt.split, Mid: tt.split, Final: tt.split}, rec.NSplit)
			assert.Equal(t, tt.areaHa, rec.AreaHa)
			assert.Len(t, rec.Notes, 1)
			assert.Len(t, rec.Advice, 3)
		})
	}
}

func TestRecommendPHNotes(t *testing.T) {
	tests := []struct {
		ph      float64
		factorP float64
		note    string
	}{
		{5.0, 1.3, "very acidic"},
		{7.0, 1, "normal range"},
		{8.0, 1, "normal range"},
		{8.1, 1, "alkaline"},
	}

	for _, tt := range tests {
		rec, err := Recommend(Request{PH: tt.ph, AreaAcres: 1, Crop: "maize"})
		require.NoError(t, err)
		assert.Equal(t, tt.factorP, rec.Adjustments.FactorP, "pH %v", tt.ph)
		assert.Equal(t, 1.0, rec.Adjustments.FactorN)
		assert.Contains(t, rec.Notes[0], tt.note, "pH %v", tt.ph)
	}

	rec, err := Recommend(Request{PH: 5.7, AreaAcres: 1, Crop: "maize"})
	require.NoError(t, err)
	assert.Contains(t, rec.Notes[0], "Slight acidity")
	assert.Greater(t, rec.PerAcre.P, 60/hectaresToAcres)
}

func TestRecommendUnsupportedCrop(t *testing.T) {
	_, err := Recommend(Request{PH: 7, AreaAcres: 1, Crop: "saffron"})
	assert.ErrorIs(t, err, ErrUnsupportedCrop)
}
