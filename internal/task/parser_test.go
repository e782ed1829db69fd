package task

import (
	"strings"
	"testing"
)

// TestParserValidLines tests parsing of well-formed task lists.
func TestParserValidLines(t *testing.T) {
	p := NewParser(nil)

	input := strings.Join([]string{
		"# sprint 14 tasks",
		"T1 [failing-test] parser rejects empty queue spec",
		"T2 [make-pass after=T1] implement queue guard",
		"T3 [cleanup after=T2] tidy queue internals",
		"",
		"T4 wire api handler for exports",
		"T5 add migration for audit schema",
	}, "\n")

	tasks, err := p.ParseString(input)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}

	if tasks[0].Phase != PhaseFailingTest {
		t.Errorf("T1: expected PhaseFailingTest, got %v", tasks[0].Phase)
	}
	if tasks[1].Phase != PhaseMakePass || tasks[1].Predecessor != "T1" {
		t.Errorf("T2: expected make-pass after T1, got %v after %q", tasks[1].Phase, tasks[1].Predecessor)
	}
	if tasks[2].Phase != PhaseCleanup || tasks[2].Predecessor != "T2" {
		t.Errorf("T3: expected cleanup after T2, got %v after %q", tasks[2].Phase, tasks[2].Predecessor)
	}
	if tasks[3].Phase != PhaseNone {
		t.Errorf("T4: expected PhaseNone, got %v", tasks[3].Phase)
	}
	if tasks[3].Domain != DomainBackend {
		t.Errorf("T4: expected DomainBackend, got %v", tasks[3].Domain)
	}
	if tasks[4].Domain != DomainDatabase {
		t.Errorf("T5: expected DomainDatabase, got %v", tasks[4].Domain)
	}

	// Seq must follow list order.
	for i, tk := range tasks {
		if tk.Seq != i {
			t.Errorf("task %s: expected Seq %d, got %d", tk.ID, i, tk.Seq)
		}
	}
}

// TestParserErrors tests that malformed lines produce ParseErrors
// naming the offending line.
func TestParserErrors(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		wantLine    int
		reasonPart  string
	}{
		{
			name:       "malformed ID",
			lines:      []string{"?? do something"},
			wantLine:   1,
			reasonPart: "malformed task ID",
		},
		{
			name:       "duplicate ID",
			lines:      []string{"T1 first thing", "T1 second thing"},
			wantLine:   2,
			reasonPart: "duplicate",
		},
		{
			name:       "non-increasing ID",
			lines:      []string{"T5 first thing", "T3 second thing"},
			wantLine:   2,
			reasonPart: "not increasing",
		},
		{
			name:       "unknown phase",
			lines:      []string{"T1 [refactor] do something"},
			wantLine:   1,
			reasonPart: "unknown phase",
		},
		{
			name:       "after on failing-test",
			lines:      []string{"T1 [failing-test after=T0] do something"},
			wantLine:   1,
			reasonPart: "only valid on make-pass",
		},
		{
			name:       "missing description",
			lines:      []string{"T1 [failing-test]"},
			wantLine:   1,
			reasonPart: "missing task description",
		},
		{
			name:       "unterminated annotation",
			lines:      []string{"T1 [make-pass do something"},
			wantLine:   1,
			reasonPart: "unterminated",
		},
	}

	p := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.lines)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			perr, ok := err.(*ParseError)
			if !ok {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("expected line %d, got %d", tt.wantLine, perr.Line)
			}
			if !strings.Contains(perr.Reason, tt.reasonPart) {
				t.Errorf("expected reason containing %q, got %q", tt.reasonPart, perr.Reason)
			}
		})
	}
}

// TestParserSkipsCommentsAndBlanks verifies that comments and blank
// lines do not consume task positions.
func TestParserSkipsCommentsAndBlanks(t *testing.T) {
	p := NewParser(nil)
	tasks, err := p.Parse([]string{"", "# header", "T1 only real task", "   ", "# trailer"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "T1" || tasks[0].Seq != 0 {
		t.Fatalf("expected single task T1 at seq 0, got %+v", tasks)
	}
}
