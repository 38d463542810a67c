package orchestrator

import (
	"time"

	"github.com/fulmenhq/hookgate/internal/checks"
)

// CheckResult is the immutable record of one dispatched check.
type CheckResult struct {
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Status       checks.Status `json:"status"`
	Critical     bool          `json:"critical"`
	ExitCode     int           `json:"exit_code"`
	LogPath      string        `json:"log_path,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	FailingTool  string        `json:"failing_tool,omitempty"`
	MissingTools []string      `json:"missing_tools,omitempty"`
	Notes        []string      `json:"notes,omitempty"`
	Snippet      []string      `json:"snippet,omitempty"`
	Hints        []string      `json:"hints,omitempty"`
	Fixed        bool          `json:"fixed,omitempty"`
	// NotApplicable marks a check that was never dispatched for this change-set.
	NotApplicable bool `json:"not_applicable,omitempty"`
	// Log holds the captured output of the failing invocation.
	Log string `json:"-"`
}

// Failed reports whether the check failed.
func (r CheckResult) Failed() bool { return r.Status == checks.StatusFailed }

// RunSummary is a pure reduction over the results of a run.
type RunSummary struct {
	Total            int           `json:"total"`
	Passed           int           `json:"passed"`
	Failed           int           `json:"failed"`
	CriticalFailures int           `json:"critical_failures"`
	AdvisoryFailures int           `json:"advisory_failures"`
	Skipped          int           `json:"skipped"`
	NotApplicable    int           `json:"not_applicable"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

// Summarize folds results into a RunSummary. Total counts dispatched checks only;
// checks that did not apply to the change-set are counted in NotApplicable.
func Summarize(results []CheckResult, elapsed time.Duration) RunSummary {
	s := RunSummary{Elapsed: elapsed}
	for _, r := range results {
		if r.NotApplicable {
			s.NotApplicable++
			continue
		}
		s.Total++
		switch r.Status {
		case checks.StatusPassed:
			s.Passed++
		case checks.StatusFailed:
			s.Failed++
			if r.Critical {
				s.CriticalFailures++
			} else {
				s.AdvisoryFailures++
			}
		default:
			s.Skipped++
		}
	}
	return s
}
