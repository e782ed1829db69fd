package task

import (
	"testing"
)

// TestKeywordClassifier tests domain classification including the
// ambiguous-match-falls-back-to-general rule.
func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        Domain
	}{
		{"backend keyword", "add api handler for exports", DomainBackend},
		{"frontend keyword", "restyle the settings view", DomainFrontend},
		{"database keyword", "add migration for audit log", DomainDatabase},
		{"test keyword", "extend fixture coverage", DomainTest},
		{"no keywords", "update the changelog", DomainGeneral},
		{"ambiguous domains", "add api endpoint and migration", DomainGeneral},
		{"case insensitive", "Add API Handler", DomainBackend},
		{"substring does not match", "write testimony notes", DomainGeneral},
	}

	c := NewKeywordClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.description)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.description, got, tt.want)
			}
		})
	}
}

// TestKeywordClassifierOverrides verifies that configured keyword tables
// replace the built-in ones per domain.
func TestKeywordClassifierOverrides(t *testing.T) {
	c := NewKeywordClassifierWithOverrides(map[string][]string{
		"backend": {"grpc"},
	})

	if got := c.Classify("add grpc transcoder"); got != DomainBackend {
		t.Errorf("expected override keyword to classify as backend, got %v", got)
	}

	// The built-in backend keywords were replaced, not extended.
	if got := c.Classify("add api handler"); got != DomainGeneral {
		t.Errorf("expected replaced keyword table to miss 'api', got %v", got)
	}

	// Other domains keep their built-in keywords.
	if got := c.Classify("add migration for audit log"); got != DomainDatabase {
		t.Errorf("expected database keywords to survive override, got %v", got)
	}
}
