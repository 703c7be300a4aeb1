// Package fertilizer computes N-P-K dosage advice for a field from its soil pH,
// area and crop.
package fertilizer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	acresToHectares = 0.40468564224
	hectaresToAcres = 2.471
)

// ErrUnsupportedCrop is returned for crops without a base dose.
var ErrUnsupportedCrop = errors.New("crop not recognized or not supported")

// Dose is a nutrient amount in kilograms per hectare.
type Dose struct {
	N, P, K float64
}

// Base doses in kg/ha. Conservative typical values.
var baseDoses = map[string]Dose{
	"rice":      {N: 120, P: 40, K: 40},
	"wheat":     {N: 120, P: 60, K: 40},
	"maize":     {N: 140, P: 60, K: 60},
	"sugarcane": {N: 200, P: 100, K: 100},
	"groundnut": {N: 20, P: 60, K: 40},
	"cotton":    {N: 120, P: 60, K: 60},
	"soybean":   {N: 20, P: 40, K: 40},
	"pulses":    {N: 20, P: 40, K: 40},
}

// cropAliases are checked in order; the first substring hit wins.
var cropAliases = []struct {
	crop  string
	terms []string
}{
	{"rice", []string{"rice", "paddy"}},
	{"wheat", []string{"wheat"}},
	{"maize", []string{"maize", "corn"}},
	{"sugarcane", []string{"sugar"}},
	{"groundnut", []string{"groundnut", "peanut"}},
	{"cotton", []string{"cotton"}},
	{"soybean", []string{"soy"}},
	{"pulses", []string{"pulse", "gram", "lentil"}},
}

var defaultAdvice = []string{
	"Apply N in splits (see N_split_for_field_kg).",
	"Prefer part organic sources (compost/FYM) to gradually build soil organic matter; this reduces chemical dependency.",
	"Get a lab soil test for final precision if field is high-value.",
}

// Request describes the field.
type Request struct {
	PH        float64
	AreaAcres float64
	Crop      string
}

type Adjustments struct {
	FactorN float64 `json:"factorN"`
	FactorP float64 `json:"factorP"`
	FactorK float64 `json:"factorK"`
}

type PerAcre struct {
	N     float64 `json:"N_kg_per_acre"`
	P     float64 `json:"P_kg_per_acre"`
	K     float64 `json:"K_kg_per_acre"`
	Total float64 `json:"total_per_acre"`
}

type FieldTotal struct {
	N     float64 `json:"N_total_kg"`
	P     float64 `json:"P_total_kg"`
	K     float64 `json:"K_total_kg"`
	Total float64 `json:"total_field"`
}

// NitrogenSplit divides the field's nitrogen across three applications.
type NitrogenSplit struct {
	Basal float64 `json:"basal_kg"`
	Mid   float64 `json:"mid_kg"`
	Final float64 `json:"final_kg"`
}

// Recommendation is the dosage advice. Quantities are rounded to one decimal.
type Recommendation struct {
	Crop        string        `json:"crop"`
	AreaAcres   float64       `json:"area_acres"`
	AreaHa      float64       `json:"area_ha"`
	PH          float64       `json:"pH"`
	Adjustments Adjustments   `json:"adjustments"`
	PerAcre     PerAcre       `json:"per_acre"`
	Field       FieldTotal    `json:"total_for_field_kg"`
	NSplit      NitrogenSplit `json:"N_split_for_field_kg"`
	Notes       []string      `json:"notes"`
	Advice      []string      `json:"advice"`
}

// NormalizeCrop maps a free-form crop name onto a supported crop key.
func NormalizeCrop(name string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return "", false
	}
	for _, a := range cropAliases {
		for _, term := range a.terms {
			if strings.Contains(s, term) {
				return a.crop, true
			}
		}
	}
	return "", false
}

// Recommend scales the crop's base dose to the field and adjusts phosphorus
// for acidic soil.
func Recommend(req Request) (Recommendation, error) {
	crop, ok := NormalizeCrop(req.Crop)
	if !ok {
		return Recommendation{}, fmt.Errorf("%w: %q", ErrUnsupportedCrop, req.Crop)
	}
	base := baseDoses[crop]

	adj := Adjustments{FactorN: 1, FactorP: 1, FactorK: 1}
	var notes []string
	switch {
	case req.PH < 5.5:
		adj.FactorP += 0.25
		notes = append(notes, "Soil is very acidic (pH < 5.5). Consider liming before major cropping; increased P recommended because low pH reduces P availability.")
	case req.PH < 6.0:
		adj.FactorP += 0.15
		notes = append(notes, "Slight acidity; modest increase in P may help; monitor or consider small liming.")
	case req.PH > 8.0:
		notes = append(notes, "Soil is alkaline (pH > 8.0). Micronutrients (Zn/Fe) may be limited; include micronutrient foliar sprays or chelated Zn/Fe when deficiency appears.")
	default:
		notes = append(notes, "Soil pH in normal range; use balanced NPK as recommended.")
	}

	nAcre := base.N * adj.FactorN / hectaresToAcres
	pAcre := base.P * adj.FactorP / hectaresToAcres
	kAcre := base.K * adj.FactorK / hectaresToAcres

	nTotal := nAcre * req.AreaAcres
	pTotal := pAcre * req.AreaAcres
	kTotal := kAcre * req.AreaAcres
	third := round1(nTotal / 3)

	return Recommendation{
		Crop:      crop,
		AreaAcres: round1(req.AreaAcres),
		AreaHa:    round1(req.AreaAcres * acresToHectares),
		PH:        round1(req.PH),
		Adjustments: Adjustments{
			FactorN: adj.FactorN,
			FactorP: round1(adj.FactorP),
			FactorK: adj.FactorK,
		},
		PerAcre: PerAcre{
			N:     round1(nAcre),
			P:     round1(pAcre),
			K:     round1(kAcre),
			Total: round1(nAcre + pAcre + kAcre),
		},
		Field: FieldTotal{
			N:     round1(nTotal),
			P:     round1(pTotal),
			K:     round1(kTotal),
			Total: round1(nTotal + pTotal + kTotal),
		},
		NSplit: NitrogenSplit{Basal: third, Mid: third, Final: third},
		Notes:  notes,
		Advice: append([]string(nil), defaultAdvice...),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
