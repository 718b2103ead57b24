package types

import "time"

// CaseStatus represents the outcome of a single fuzz case.
type CaseStatus string

const (
	CaseStatusPass CaseStatus = "pass"
	CaseStatusFail CaseStatus = "fail"
)

// TestResult captures the outcome of one fuzzer run. Exactly one TestResult is
// produced per TestCase, whether the run completed, timed out or errored; it is
// appended to the run's ordered result list and never mutated afterward.
type TestResult struct {
	Name            string
	Function        string
	Completed       bool // process finished cleanly (or aborted due to a detected violation)
	ViolationFound  bool
	ExpectViolation bool
	Duration        time.Duration
	Iterations      int
	Err             error // terminal failure detail, nil for clean runs
}

// Passed reports whether the case met its expectation: the worker completed
// and the observed violation signal matches the expected one.
func (r *TestResult) Passed() bool {
	return r.Completed && r.ExpectViolation == r.ViolationFound
}

// Status returns the pass/fail status for display and metrics.
func (r *TestResult) Status() CaseStatus {
	if r.Passed() {
		return CaseStatusPass
	}
	return CaseStatusFail
}
