// Package faq answers farmer questions by keyword lookup over a curated list.
package faq

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
)

// FallbackAnswer is returned when no keyword matches.
const FallbackAnswer = "Sorry, I don’t have information about that yet. Please try asking differently."

// Entry is one question topic.
type Entry struct {
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
}

// Matcher finds the first entry with a keyword contained in the query.
// Entries are checked in file order.
type Matcher struct {
	entries []Entry
}

// NewMatcher normalizes keywords once; blank keywords are dropped.
func NewMatcher(entries []Entry) *Matcher {
	m := &Matcher{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		var kws []string
		for _, kw := range e.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		m.entries = append(m.entries, Entry{Keywords: kws, Answer: e.Answer})
	}
	return m
}

// LoadFile reads a JSON array of entries from path.
func LoadFile(path string) (*Matcher, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faq data: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse faq data %s: %w", path, err)
	}
	log.Printf("INFO: loaded %d FAQ entries from %s", len(entries), path)
	return NewMatcher(entries), nil
}

// Answer returns the matching answer and true, or FallbackAnswer and false.
func (m *Matcher) Answer(query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, e := range m.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(q, kw) {
				log.Printf("DEBUG: faq keyword %q matched", kw)
				return e.Answer, true
			}
		}
	}
	return FallbackAnswer, false
}

// Len reports how many entries are loaded.
func (m *Matcher) Len() int {
	return len(m.entries)
}
