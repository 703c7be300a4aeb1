package common

import "strings"

// NormalizeKey trims and lower-cases s so identifiers from datasets and
// requests compare equal regardless of casing or padding.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitList splits s on sep, normalizes each part and drops empty ones.
// The result is never nil.
func SplitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if p := NormalizeKey(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ContainsKey reports whether list holds key after normalization.
func ContainsKey(list []string, key string) bool {
	key = NormalizeKey(key)
	for _, item := range list {
		if NormalizeKey(item) == key {
			return true
		}
	}
	return false
}
