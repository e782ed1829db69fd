package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a malformed task line. Parsing stops at the first
// offending line; the task list must be fixed and re-run.
type ParseError struct {
	Line   int    // 1-based line number in the raw list
	Text   string // The offending line
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// taskIDPattern matches IDs like "T1", "task-12", or bare "7": optional
// alphabetic prefix, required numeric suffix.
var taskIDPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z_-]*)?([0-9]+)$`)

// phaseTagPattern matches the optional bracket annotation after the ID,
// e.g. "[failing-test]" or "[make-pass after=T1]".
var phaseTagPattern = regexp.MustCompile(`^\[([a-z-]+)(?:\s+after=([A-Za-z0-9_-]+))?\]$`)

// Parser turns raw ordered task lines into typed Task records.
// Parsing is pure: no side effects, no reordering.
type Parser struct {
	classifier Classifier
}

// NewParser creates a parser using the given classifier.
// A nil classifier falls back to the built-in keyword table.
func NewParser(classifier Classifier) *Parser {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Parser{classifier: classifier}
}

// ParseString splits the input on newlines and parses it.
// Blank lines and lines starting with '#' are skipped.
func (p *Parser) ParseString(input string) ([]*Task, error) {
	return p.Parse(strings.Split(input, "\n"))
}

// Parse parses raw task lines in order. Line format:
//
//	<id> [<phase> after=<id>] <description with optional domain keywords>
//
// The bracket annotation is optional; "after=" is only meaningful on
// make-pass and cleanup steps. IDs must be unique and their numeric
// parts strictly increasing.
func (p *Parser) Parse(lines []string) ([]*Task, error) {
	var tasks []*Task
	seen := make(map[string]int)
	lastNum := -1

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		id := fields[0]

		m := taskIDPattern.FindStringSubmatch(id)
		if m == nil {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("malformed task ID %q", id)}
		}
		if prev, dup := seen[id]; dup {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("duplicate task ID %q (first used at line %d)", id, prev)}
		}
		num, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("non-numeric task ID suffix %q", m[2])}
		}
		if num <= lastNum {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("task ID %q is not increasing (previous was %d)", id, lastNum)}
		}

		rest := fields[1:]
		phase := PhaseNone
		predecessor := ""

		if len(rest) > 0 && strings.HasPrefix(rest[0], "[") {
			// The annotation may contain a space ("[make-pass after=T1]"),
			// so rejoin fields up to the closing bracket.
			tag, consumed, ok := collectTag(rest)
			if !ok {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: "unterminated phase annotation"}
			}
			rest = rest[consumed:]

			tm := phaseTagPattern.FindStringSubmatch(tag)
			if tm == nil {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("malformed phase annotation %q", tag)}
			}

			switch tm[1] {
			case "failing-test":
				phase = PhaseFailingTest
			case "make-pass":
				phase = PhaseMakePass
			case "cleanup":
				phase = PhaseCleanup
			default:
				return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("unknown phase %q", tm[1])}
			}

			predecessor = tm[2]
			if predecessor != "" && phase == PhaseFailingTest {
				return nil, &ParseError{Line: lineNo, Text: line, Reason: "after= is only valid on make-pass and cleanup steps"}
			}
		}

		description := strings.Join(rest, " ")
		if description == "" {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "missing task description"}
		}

		tasks = append(tasks, &Task{
			ID:          id,
			Seq:         len(tasks),
			Description: description,
			Phase:       phase,
			Domain:      p.classifier.Classify(description),
			Predecessor: predecessor,
		})

		seen[id] = lineNo
		lastNum = num
	}

	return tasks, nil
}

// collectTag rejoins fields from the opening '[' through the field
// containing the closing ']'. Returns the joined tag, the number of
// fields consumed, and whether a closing bracket was found.
func collectTag(fields []string) (string, int, bool) {
	for i, f := range fields {
		if strings.HasSuffix(f, "]") {
			return strings.Join(fields[:i+1], " "), i + 1, true
		}
	}
	return "", 0, false
}
