package task

import (
	"strings"
)

// Classifier assigns a Domain to a task description.
// Classification is heuristic and will be wrong sometimes, so the
// scheduler never hard-codes it: callers inject a Classifier and the
// keyword tables are overridable through configuration.
type Classifier interface {
	Classify(description string) Domain
}

// KeywordClassifier classifies by case-insensitive keyword matching.
// A description matching keyword sets of more than one domain is
// ambiguous and classifies as DomainGeneral rather than guessing a
// priority order.
type KeywordClassifier struct {
	keywords map[Domain][]string
}

// defaultKeywords is the built-in keyword table.
var defaultKeywords = map[Domain][]string{
	DomainBackend:  {"api", "server", "handler", "service", "endpoint", "backend"},
	DomainFrontend: {"ui", "view", "component", "css", "template", "frontend"},
	DomainDatabase: {"schema", "migration", "query", "index", "database", "sql"},
	DomainTest:     {"test", "spec", "fixture", "coverage"},
}

// NewKeywordClassifier creates a classifier with the built-in keyword table.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{keywords: defaultKeywords}
}

// NewKeywordClassifierWithOverrides creates a classifier whose keyword
// table is replaced per-domain by the given overrides. Domain names are
// the lowercase forms from Domain.String(); unknown names are ignored.
// Domains without an override keep their built-in keywords.
func NewKeywordClassifierWithOverrides(overrides map[string][]string) *KeywordClassifier {
	merged := make(map[Domain][]string, len(defaultKeywords))
	for domain, words := range defaultKeywords {
		merged[domain] = words
	}

	for name, words := range overrides {
		for _, domain := range []Domain{DomainBackend, DomainFrontend, DomainDatabase, DomainTest} {
			if name == domain.String() {
				merged[domain] = words
			}
		}
	}

	return &KeywordClassifier{keywords: merged}
}

// Classify returns the domain whose keyword set the description matches.
// No match or an ambiguous match returns DomainGeneral.
func (c *KeywordClassifier) Classify(description string) Domain {
	lower := strings.ToLower(description)

	matched := DomainGeneral
	matches := 0

	for domain, words := range c.keywords {
		for _, word := range words {
			if containsWord(lower, word) {
				matched = domain
				matches++
				break
			}
		}
	}

	if matches != 1 {
		return DomainGeneral
	}
	return matched
}

// containsWord reports whether s contains word as a whole token, so that
// "testimony" does not match the keyword "test".
func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)

		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(s) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
