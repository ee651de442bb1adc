// Package exercise maps free-form exercise names, in English or Spanish, to
// stable canonical keys used for record and history lookups.
package exercise

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clean lowercases s, strips diacritics, replaces any non-alphanumeric rune
// with a space and collapses runs of whitespace. It is exported so other
// packages matching user text (dialogue answers, agent commands) fold input
// the same way.
func Clean(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalize returns the canonical key for a raw exercise name. Known aliases
// resolve to their canonical key; anything else becomes a snake_case slug of
// the cleaned name. The same input always yields the same key.
func Normalize(raw string) string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return ""
	}
	if key, ok := aliasToKey[cleaned]; ok {
		return key
	}
	// A raw value that is already a canonical key ("bench_press") is cleaned
	// to "bench press", which is always listed as an alias. Unknown names
	// fall back to their slug.
	return strings.ReplaceAll(cleaned, " ", "_")
}

// DisplayName returns a human-readable name for a canonical key.
func DisplayName(key string) string {
	if d, ok := keyToDisplay[key]; ok {
		return d
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// IsKnown reports whether key is one of the canonical exercise keys.
func IsKnown(key string) bool {
	_, ok := keyToDisplay[key]
	return ok
}

// Keys returns every canonical exercise key in table order.
func Keys() []string {
	keys := make([]string, 0, len(canonical))
	for _, c := range canonical {
		keys = append(keys, c.Key)
	}
	return keys
}
