package guard

import (
	"regexp"
	"strings"
)

// Verdict classifies a worker's test-run evidence.
type Verdict int

const (
	VerdictUnknown         Verdict = iota // Evidence too thin to classify
	VerdictPass                           // The run is green
	VerdictExpectedFailure                // Failed for an expected reason (missing symbol, assertion)
	VerdictFailure                        // Failed for an unrelated reason (setup, environment)
)

// String returns the lowercase verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictExpectedFailure:
		return "expected-failure"
	case VerdictFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// EvidenceJudge classifies free-form test-run evidence. The default is
// keyword-based and will be wrong sometimes, so the guard takes it as
// an injectable collaborator rather than hard-coding the heuristics.
type EvidenceJudge interface {
	Judge(evidence string) Verdict
}

// expectedFailureMarkers are substrings that indicate a test failed
// because the code under test is missing or wrong, which is exactly
// what a failing-test step must demonstrate.
var expectedFailureMarkers = []string{
	"undefined",
	"not defined",
	"missing symbol",
	"assertion failed",
	"assertionerror",
	"expected",
	"want",
}

// failureMarkers indicate a failing run of any kind.
var failureMarkers = []string{
	"fail",
	"panic",
	"error",
	"fatal",
}

// passMarkers indicate a green run.
var passMarkers = []string{
	"pass",
	"ok",
	"all tests passed",
}

// zeroFailed matches summary lines like "42 passed, 0 failed" that are
// green despite containing the word "failed".
var zeroFailed = regexp.MustCompile(`\b0 fail(ed|ures)?\b`)

// KeywordJudge is the default keyword-based evidence classifier.
type KeywordJudge struct{}

// Judge classifies evidence by scanning for failure and pass markers.
// A failing run is an expected failure only when an expected-reason
// marker is present as well.
func (KeywordJudge) Judge(evidence string) Verdict {
	e := strings.ToLower(evidence)
	if strings.TrimSpace(e) == "" {
		return VerdictUnknown
	}

	if zeroFailed.MatchString(e) {
		return VerdictPass
	}

	// An expected-reason marker implies a failing run even without an
	// explicit FAIL line (compilers report "undefined: X" and stop).
	for _, m := range expectedFailureMarkers {
		if strings.Contains(e, m) {
			return VerdictExpectedFailure
		}
	}

	for _, m := range failureMarkers {
		if strings.Contains(e, m) {
			return VerdictFailure
		}
	}

	for _, m := range passMarkers {
		if strings.Contains(e, m) {
			return VerdictPass
		}
	}

	return VerdictUnknown
}
