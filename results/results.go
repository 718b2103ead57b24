// Package results reconciles per-case outcomes into the run summary.
package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/movefuzz/fuzz-acceptor/types"
)

// Stats tracks case counts for a run.
type Stats struct {
	Total  int
	Passed int
	Failed int
}

// Summary captures the complete run outcome. Results are ordered by case
// declaration order, independent of execution timing.
type Summary struct {
	RunID     string
	PackageID string
	Results   []types.TestResult
	Stats     Stats
	Duration  time.Duration
	AllPassed bool
}

// Summarize computes the final verdict over the accumulated results. The
// run is fully successful only if every case passed.
func Summarize(runID, packageID string, results []types.TestResult, duration time.Duration) *Summary {
	s := &Summary{
		RunID:     runID,
		PackageID: packageID,
		Results:   results,
		Duration:  duration,
		AllPassed: true,
	}
	for i := range results {
		s.Stats.Total++
		if results[i].Passed() {
			s.Stats.Passed++
		} else {
			s.Stats.Failed++
			s.AllPassed = false
		}
	}
	return s
}

// String returns a compact textual representation of the run outcome.
func (s *Summary) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Fuzz Run Results (%.1fs):\n", s.Duration.Seconds()))
	b.WriteString(fmt.Sprintf("Total: %d, Passed: %d, Failed: %d\n",
		s.Stats.Total, s.Stats.Passed, s.Stats.Failed))
	for i := range s.Results {
		r := &s.Results[i]
		b.WriteString(fmt.Sprintf("├── %s (%.1fs) [status=%s]\n",
			r.Name, r.Duration.Seconds(), r.Status()))
		if r.Err != nil {
			b.WriteString(fmt.Sprintf("│       └── Error: %s\n", r.Err.Error()))
		}
	}
	if s.AllPassed {
		b.WriteString("Overall: PASSED\n")
	} else {
		b.WriteString("Overall: FAILED\n")
	}
	return b.String()
}
