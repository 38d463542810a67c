package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/fulmenhq/hookgate/pkg/exitcode"
)

// Thresholds select which failure classes make a run fail.
type Thresholds struct {
	// FailOnHighSeverity fails the run on any critical check failure.
	FailOnHighSeverity bool
	// FailOnMediumSeverity fails the run on any advisory check failure.
	FailOnMediumSeverity bool
}

// Decision is the outcome of the exit policy.
type Decision struct {
	ExitCode int      `json:"exit_code"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Blocked reports whether the run should stop the commit or push.
func (d Decision) Blocked() bool { return d.ExitCode != exitcode.Success }

// Decide applies the exit policy: critical failures block when FailOnHighSeverity is
// set, advisory failures block when FailOnMediumSeverity is set, nothing else blocks.
func Decide(s RunSummary, t Thresholds) Decision {
	var d Decision
	if s.CriticalFailures > 0 && t.FailOnHighSeverity {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d critical check(s) failed", s.CriticalFailures))
	}
	if s.AdvisoryFailures > 0 && t.FailOnMediumSeverity {
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d advisory check(s) failed", s.AdvisoryFailures))
	}
	if len(d.Reasons) > 0 {
		d.ExitCode = exitcode.ChecksFailed
	}
	return d
}

// PolicyQuery is evaluated against the run; every message it yields blocks the run.
const PolicyQuery = "data.hookgate.deny"

// Policy is a user-supplied Rego gate evaluated after the built-in thresholds.
type Policy struct {
	path  string
	query rego.PreparedEvalQuery
}

// LoadPolicy reads and compiles a Rego module.
func LoadPolicy(ctx context.Context, path string) (*Policy, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean) // #nosec G304 -- policy path comes from repository config
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	q, err := rego.New(
		rego.Query(PolicyQuery),
		rego.Module(filepath.Base(clean), string(data)),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", clean, err)
	}
	return &Policy{path: clean, query: q}, nil
}

// Deny evaluates the policy and returns its deny messages, sorted.
func (p *Policy) Deny(ctx context.Context, input map[string]interface{}) ([]string, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating policy %s: %w", p.path, err)
	}
	var msgs []string
	for _, r := range rs {
		for _, expr := range r.Expressions {
			switch v := expr.Value.(type) {
			case []interface{}:
				for _, m := range v {
					msgs = append(msgs, fmt.Sprint(m))
				}
			case string:
				msgs = append(msgs, v)
			}
		}
	}
	sort.Strings(msgs)
	return msgs, nil
}

// policyInput exposes the run to Rego as plain JSON-like values.
func policyInput(stageName string, s RunSummary, results []CheckResult) map[string]interface{} {
	rs := make([]interface{}, 0, len(results))
	for _, r := range results {
		missing := make([]interface{}, 0, len(r.MissingTools))
		for _, m := range r.MissingTools {
			missing = append(missing, m)
		}
		rs = append(rs, map[string]interface{}{
			"name":          r.Name,
			"status":        string(r.Status),
			"critical":      r.Critical,
			"exit_code":     r.ExitCode,
			"failing_tool":  r.FailingTool,
			"missing_tools": missing,
		})
	}
	return map[string]interface{}{
		"stage": stageName,
		"summary": map[string]interface{}{
			"total":             s.Total,
			"passed":            s.Passed,
			"failed":            s.Failed,
			"critical_failures": s.CriticalFailures,
			"advisory_failures": s.AdvisoryFailures,
			"skipped":           s.Skipped,
			"not_applicable":    s.NotApplicable,
		},
		"results": rs,
	}
}
