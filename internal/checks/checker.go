// Package checks defines the checks hookgate dispatches and the collaborator tool
// invocations behind them.
package checks

import (
	"context"
	"io"
	"time"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

// Status is the terminal state of one check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Checker is a unit of work the orchestrator can dispatch.
type Checker interface {
	Name() string
	Description() string
	// Critical checks guard security or syntax; their failures are high severity.
	Critical() bool
	AppliesToStage(s stage.Stage) bool
	IsApplicable(cs *changeset.ChangeSet) bool
	// Tools lists the collaborator binaries the check may invoke.
	Tools() []string
	Run(ctx context.Context, rc RunContext) Outcome
}

// RunContext carries everything a check needs for one invocation.
type RunContext struct {
	Stage     stage.Stage
	ChangeSet *changeset.ChangeSet
	Executor  tools.ToolExecutor
	// WorkDir is the repository root; tools run there.
	WorkDir string
	// Output receives the combined output of every tool the check runs.
	Output  io.Writer
	AutoFix bool
}

// Outcome is what a check reports back to the orchestrator.
type Outcome struct {
	Status   Status
	ExitCode int
	// FailingTool is the first tool that reported a problem.
	FailingTool string
	// FailureOutput is the output of the failing invocation, used for snippets.
	FailureOutput string
	MissingTools  []string
	Notes         []string
	// Fixed is set when a fixer ran and may have rewritten files.
	Fixed   bool
	Elapsed time.Duration
}

// Skipped builds a skipped outcome with a reason.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Notes: []string{reason}}
}
