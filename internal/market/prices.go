// Package market serves mandi (wholesale market) price lookups from a
// reference CSV dataset that is cached in memory and reloaded after a TTL.
package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/crop-advisory/internal/common"
	"github.com/i474232898/crop-advisory/internal/store"
)

var (
	// ErrNotFound is returned when no price is recorded for a commodity.
	ErrNotFound = errors.New("no price data for commodity")
)

const listKey = "mandi_list"

// dateLayouts are the arrival date formats seen in mandi exports.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", time.RFC3339}

// PriceRecord is a single commodity price observation at a market.
type PriceRecord struct {
	Commodity string    `json:"commodity"`
	Market    string    `json:"market"`
	State     string    `json:"state"`
	District  string    `json:"district,omitempty"`
	Variety   string    `json:"variety,omitempty"`
	Grade     string    `json:"grade,omitempty"`
	Price     float64   `json:"price"` // modal price
	MinPrice  float64   `json:"min_price,omitempty"`
	MaxPrice  float64   `json:"max_price,omitempty"`
	Date      string    `json:"date"`
	date      time.Time // parsed Date, zero when unparseable
}

// Alternate header names used by government mandi exports.
var columnAliases = map[string]string{
	"modal_price":  "price",
	"arrival_date": "date",
}

// Service answers price queries from the cached dataset.
type Service struct {
	path   string
	cache  *store.MemoryStore[[]PriceRecord]
	flight singleflight.Group
}

// NewService creates a Service reading the CSV at path. cache decides how long
// a loaded list is reused.
func NewService(path string, cache *store.MemoryStore[[]PriceRecord]) *Service {
	return &Service{path: path, cache: cache}
}

// GetPrice returns the most recent price for commodity at market. When the
// market has no record, the most recent price at any market is returned.
func (s *Service) GetPrice(ctx context.Context, commodity, market string) (PriceRecord, error) {
	list, err := s.list(ctx)
	if err != nil {
		return PriceRecord{}, err
	}

	commodity = common.NormalizeKey(commodity)
	market = common.NormalizeKey(market)

	var exact, all []PriceRecord
	for _, row := range list {
		if row.Commodity != commodity {
			continue
		}
		all = append(all, row)
		if row.Market == market {
			exact = append(exact, row)
		}
	}

	if rec, ok := newest(exact); ok {
		return rec, nil
	}
	if rec, ok := newest(all); ok {
		return rec, nil
	}
	return PriceRecord{}, fmt.Errorf("%w: %s", ErrNotFound, commodity)
}

// TopPrices returns up to limit records for commodity, highest price first.
// limit <= 0 returns all of them.
func (s *Service) TopPrices(ctx context.Context, commodity string, limit int) ([]PriceRecord, error) {
	list, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	commodity = common.NormalizeKey(commodity)

	var found []PriceRecord
	for _, row := range list {
		if row.Commodity == commodity {
			found = append(found, row)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, commodity)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Price > found[j].Price
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// Reload reads the dataset again and replaces the cached list on success.
func (s *Service) Reload(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

func (s *Service) list(ctx context.Context) ([]PriceRecord, error) {
	if list, ok := s.cache.Get(listKey); ok {
		return list, nil
	}
	return s.load(ctx)
}

// load reads the CSV and replaces the cached list. A failed load leaves the
// previous list in place.
func (s *Service) load(ctx context.Context) ([]PriceRecord, error) {
	v, err, _ := s.flight.Do(listKey, func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open mandi prices: %w", err)
		}
		defer f.Close()

		list, err := ParsePrices(f)
		if err != nil {
			return nil, fmt.Errorf("parse mandi prices %s: %w", s.path, err)
		}
		log.Printf("INFO: loaded %d mandi price records from %s", len(list), s.path)

		s.cache.Set(listKey, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PriceRecord), nil
}

// ParsePrices reads a mandi price CSV with a header row containing at least
// commodity, market and price (or modal_price). Rows with an unparseable price
// are skipped. min_price, max_price and grade are read when present.
func ParsePrices(r io.Reader) ([]PriceRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := common.NormalizeKey(strings.TrimPrefix(name, "\ufeff"))
		if alias, ok := columnAliases[key]; ok {
			if _, taken := index[alias]; !taken {
				index[alias] = i
			}
			continue
		}
		index[key] = i
	}
	for _, col := range []string{"commodity", "market", "price"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var list []PriceRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				log.Printf("WARN: skipping mandi price row: %v", err)
				continue
			}
			return nil, err
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		price, err := strconv.ParseFloat(field("price"), 64)
		if err != nil {
			log.Printf("WARN: skipping mandi price row for %q: invalid price %q", field("commodity"), field("price"))
			continue
		}

		rec := PriceRecord{
			Commodity: common.NormalizeKey(field("commodity")),
			Market:    common.NormalizeKey(field("market")),
			State:     field("state"),
			District:  field("district"),
			Variety:   field("variety"),
			Grade:     field("grade"),
			Price:     price,
			MinPrice:  optionalPrice(field("min_price")),
			MaxPrice:  optionalPrice(field("max_price")),
			Date:      field("date"),
		}
		rec.date = parseDate(rec.Date)
		list = append(list, rec)
	}

	return list, nil
}

// optionalPrice parses a secondary price column; empty or invalid input is 0.
func optionalPrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// newest returns the record with the latest date; earlier rows win ties.
func newest(rows []PriceRecord) (PriceRecord, bool) {
	if len(rows) == 0 {
		return PriceRecord{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.date.After(best.date) {
			best = r
		}
	}
	return best, true
}
