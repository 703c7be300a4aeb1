package crops

import (
	"context"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/crop-advisory/internal/metrics"
)

// LoadFunc produces the full rule set.
type LoadFunc func(ctx context.Context) ([]RuleRecord, error)

// CSVFileLoader returns a LoadFunc reading the CSV dataset at path.
func CSVFileLoader(path string) LoadFunc {
	return func(ctx context.Context) ([]RuleRecord, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Source: path, Err: err}
		}
		defer f.Close()

		rules, skipped, err := ParseRules(f)
		if err != nil {
			return nil, &LoadError{Source: path, Err: err}
		}
		if skipped > 0 {
			metrics.RuleRowsSkipped.Add(float64(skipped))
		}

		log.Printf("INFO: loaded %d crop rules from %s (%d rows skipped)", len(rules), path, skipped)
		return rules, nil
	}
}

// RuleStore owns the immutable crop rule set. The set is loaded on first use
// and replaced wholesale; a load only happens while the set is empty, and
// concurrent callers share a single in-flight load.
type RuleStore struct {
	load LoadFunc

	mu    sync.RWMutex
	rules []RuleRecord

	flight singleflight.Group
}

// NewRuleStore creates a RuleStore backed by load.
func NewRuleStore(load LoadFunc) *RuleStore {
	return &RuleStore{load: load}
}

// EnsureLoaded returns the rule set, loading it if none is held yet.
// The returned slice must not be modified.
func (s *RuleStore) EnsureLoaded(ctx context.Context) ([]RuleRecord, error) {
	if rules := s.Rules(); len(rules) > 0 {
		return rules, nil
	}

	v, err, _ := s.flight.Do("rules", func() (interface{}, error) {
		// A load that finished while we waited for the flight slot wins.
		if rules := s.Rules(); len(rules) > 0 {
			return rules, nil
		}

		rules, err := s.load(ctx)
		if err != nil {
			metrics.RuleLoads.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.RuleLoads.WithLabelValues("ok").Inc()
		if len(rules) == 0 {
			log.Printf("WARN: crop rule dataset produced no usable rules")
		}

		s.mu.Lock()
		s.rules = rules
		s.mu.Unlock()
		return rules, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]RuleRecord), nil
}

// Rules returns the currently held rule set without loading.
func (s *RuleStore) Rules() []RuleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}
