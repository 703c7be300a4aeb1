package crops

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/i474232898/crop-advisory/internal/common"
)

// RuleRecord maps a crop to the conditions it tolerates. Records are never
// mutated after loading.
//
// A numeric bound missing from the dataset is NaN; the scorer treats a NaN
// range as never matching.
type RuleRecord struct {
	Crop        string   `json:"crop"`
	MinTemp     float64  `json:"min_temp"`
	MaxTemp     float64  `json:"max_temp"`
	MinRain     float64  `json:"min_rain"`
	MaxRain     float64  `json:"max_rain"`
	SoilTypes   []string `json:"soil_types"`
	Season      string   `json:"season"`
	SowingStart string   `json:"sowing_start"`
	SowingEnd   string   `json:"sowing_end"`
}

// LoadError reports a rule dataset that could not be read or parsed as a whole.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load crop rules from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Column names of the rule dataset.
const (
	colCrop        = "crop"
	colMinTemp     = "min_temp"
	colMaxTemp     = "max_temp"
	colMinRain     = "min_rain"
	colMaxRain     = "max_rain"
	colSoilTypes   = "soil_types"
	colSeason      = "season"
	colSowingStart = "sowing_start"
	colSowingEnd   = "sowing_end"

	soilDelimiter = ";"
)

var requiredColumns = []string{colCrop, colMinTemp, colMaxTemp, colMinRain, colMaxRain, colSoilTypes}

// ParseRules reads a CSV rule dataset with a header row. Rows that cannot be
// turned into a RuleRecord are skipped with a warning; the returned count says
// how many were dropped. An empty input is an empty rule set. A missing
// required column fails the whole parse.
func ParseRules(r io.Reader) ([]RuleRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[common.NormalizeKey(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	var (
		rules   []RuleRecord
		skipped int
	)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				log.Printf("WARN: skipping crop rule at line %d: %v", pe.StartLine, err)
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read rules: %w", err)
		}

		rule, err := parseRow(row, index)
		if err != nil {
			line, _ := cr.FieldPos(0)
			log.Printf("WARN: skipping crop rule at line %d: %v", line, err)
			skipped++
			continue
		}
		rules = append(rules, rule)
	}

	return rules, skipped, nil
}

func parseRow(row []string, index map[string]int) (RuleRecord, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, col := range requiredColumns {
		if index[col] >= len(row) {
			return RuleRecord{}, fmt.Errorf("row has %d fields, column %q is missing", len(row), col)
		}
	}

	rule := RuleRecord{
		Crop:        field(colCrop),
		MinTemp:     parseNumber(field(colMinTemp)),
		MaxTemp:     parseNumber(field(colMaxTemp)),
		MinRain:     parseNumber(field(colMinRain)),
		MaxRain:     parseNumber(field(colMaxRain)),
		SoilTypes:   common.SplitList(field(colSoilTypes), soilDelimiter),
		Season:      field(colSeason),
		SowingStart: field(colSowingStart),
		SowingEnd:   field(colSowingEnd),
	}

	if rule.Crop == "" {
		return RuleRecord{}, errors.New("crop is empty")
	}
	if rule.MinTemp > rule.MaxTemp {
		return RuleRecord{}, fmt.Errorf("%s: min_temp %v exceeds max_temp %v", rule.Crop, rule.MinTemp, rule.MaxTemp)
	}
	if rule.MinRain > rule.MaxRain {
		return RuleRecord{}, fmt.Errorf("%s: min_rain %v exceeds max_rain %v", rule.Crop, rule.MinRain, rule.MaxRain)
	}

	return rule, nil
}

// parseNumber parses s as a float, returning NaN for empty or invalid input.
func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
