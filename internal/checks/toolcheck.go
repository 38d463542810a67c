package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/logger"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

// FileMode controls how change-set files reach a step's command line.
type FileMode int

const (
	// NoFiles runs the tool once with its static arguments.
	NoFiles FileMode = iota
	// AppendFiles appends every matching file to one invocation.
	AppendFiles
	// EachFile runs once per matching file; "{file}" in args is replaced, otherwise the file is appended.
	EachFile
	// EachDir runs once per distinct parent directory; "{dir}" in args is replaced.
	EachDir
)

// Step is a single collaborator invocation within a check.
type Step struct {
	Tool string
	Args []string
	// FixArgs replace Args when auto-fix is on. Nil means the step cannot fix.
	FixArgs []string
	// Stages limits the step to runs that include one of them. Empty means every stage.
	Stages []stage.Stage
	// ExactStage turns off the superset rule so the step runs only in the listed stages.
	ExactStage bool
	// Files selects which change-set files are passed. Zero with AllFiles false passes none.
	Files    changeset.CategorySet
	AllFiles bool
	// Glob further narrows the selected files.
	Glob string
	Mode FileMode
	// Requires skips the step unless the change-set contains one of these categories.
	Requires changeset.CategorySet
	// ProjectFile skips the step unless this file exists under the work directory.
	ProjectFile string
}

// Fixable reports whether the step has a fixing form.
func (s Step) Fixable() bool { return s.FixArgs != nil }

func (s Step) runsOn(st stage.Stage) bool {
	if s.ExactStage {
		for _, want := range s.Stages {
			if want == st {
				return true
			}
		}
		return false
	}
	return stageAllowed(s.Stages, st)
}

// stageAllowed reports whether a run at st includes any of stages. A pre-push run
// includes work declared for pre-commit.
func stageAllowed(stages []stage.Stage, st stage.Stage) bool {
	if len(stages) == 0 {
		return true
	}
	for _, s := range stages {
		if st.Includes(s) {
			return true
		}
	}
	return false
}

func (s Step) selectFiles(cs *changeset.ChangeSet) []string {
	var files []string
	switch {
	case s.AllFiles:
		files = cs.Files
	case !s.Files.Empty():
		files = cs.FilesFor(s.Files.List()...)
	}
	if s.Glob == "" {
		return files
	}
	var out []string
	for _, f := range files {
		if ok, _ := doublestar.Match(s.Glob, f); ok {
			out = append(out, f)
		}
	}
	return out
}

type invocation struct {
	tool string
	args []string
}

// invocations expands a step into concrete command lines. ok is false when the step
// needs files and none were selected.
func (s Step) invocations(cs *changeset.ChangeSet, fix bool) ([]invocation, bool) {
	args := s.Args
	if fix && s.Fixable() {
		args = s.FixArgs
	}
	if s.Mode == NoFiles {
		return []invocation{{tool: s.Tool, args: args}}, true
	}

	files := s.selectFiles(cs)
	if len(files) == 0 {
		return nil, false
	}

	switch s.Mode {
	case EachFile:
		out := make([]invocation, 0, len(files))
		for _, f := range files {
			out = append(out, invocation{tool: s.Tool, args: substitute(args, "{file}", f)})
		}
		return out, true
	case EachDir:
		var out []invocation
		for _, d := range uniqueDirs(files) {
			out = append(out, invocation{tool: s.Tool, args: substitute(args, "{dir}", d)})
		}
		return out, true
	default:
		full := append(append([]string(nil), args...), files...)
		return []invocation{{tool: s.Tool, args: full}}, true
	}
}

func substitute(args []string, placeholder, value string) []string {
	out := make([]string, 0, len(args)+1)
	replaced := false
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			a = strings.ReplaceAll(a, placeholder, value)
			replaced = true
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, value)
	}
	return out
}

func uniqueDirs(files []string) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, f := range files {
		d := path.Dir(f)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dirs = append(dirs, d)
	}
	return dirs
}

// Definition is the immutable description of a tool-backed check.
type Definition struct {
	Name        string
	Description string
	// Stages the check belongs to. Empty means every stage.
	Stages []stage.Stage
	// Triggers are the categories that make the check applicable.
	Triggers changeset.CategorySet
	// AnyFile makes any non-empty change-set a trigger.
	AnyFile bool
	// Always makes the check applicable regardless of the change-set.
	Always   bool
	Critical bool
	Steps    []Step
}

// ToolCheck runs a Definition's steps in order.
type ToolCheck struct {
	def Definition
}

// NewToolCheck wraps a definition.
func NewToolCheck(def Definition) *ToolCheck {
	return &ToolCheck{def: def}
}

func (c *ToolCheck) Name() string        { return c.def.Name }
func (c *ToolCheck) Description() string { return c.def.Description }
func (c *ToolCheck) Critical() bool      { return c.def.Critical }

// Definition returns the check's definition.
func (c *ToolCheck) Definition() Definition { return c.def }

func (c *ToolCheck) AppliesToStage(s stage.Stage) bool {
	return stageAllowed(c.def.Stages, s)
}

func (c *ToolCheck) IsApplicable(cs *changeset.ChangeSet) bool {
	switch {
	case c.def.Always:
		return true
	case c.def.AnyFile && !cs.Empty():
		return true
	default:
		return cs.Categories.Intersects(c.def.Triggers)
	}
}

func (c *ToolCheck) Tools() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range c.def.Steps {
		if _, ok := seen[s.Tool]; ok {
			continue
		}
		seen[s.Tool] = struct{}{}
		out = append(out, s.Tool)
	}
	return out
}

// Run executes each eligible step in order. Every step runs even after a failure so
// the log holds the full picture. A missing tool skips its step; when every eligible
// step is missing the check is skipped.
func (c *ToolCheck) Run(ctx context.Context, rc RunContext) Outcome {
	start := time.Now()
	out := Outcome{Status: StatusPassed}
	eligible, ran := 0, 0

	for _, step := range c.def.Steps {
		if !step.runsOn(rc.Stage) {
			continue
		}
		if !step.Requires.Empty() && !rc.ChangeSet.Categories.Intersects(step.Requires) {
			continue
		}
		if step.ProjectFile != "" && !fileExists(filepath.Join(rc.WorkDir, step.ProjectFile)) {
			out.Notes = append(out.Notes, fmt.Sprintf("%s skipped, no %s", step.Tool, step.ProjectFile))
			continue
		}
		invs, ok := step.invocations(rc.ChangeSet, rc.AutoFix)
		if !ok {
			continue
		}
		eligible++

		stepRan := false
		for _, inv := range invs {
			if err := ctx.Err(); err != nil {
				out.markFailed(inv.tool, -1, err.Error())
				out.Elapsed = time.Since(start)
				return out
			}
			res := runInvocation(ctx, rc, inv)
			if res.missing {
				out.MissingTools = appendUnique(out.MissingTools, inv.tool)
				out.Notes = append(out.Notes, fmt.Sprintf("%s not installed, step skipped", inv.tool))
				break
			}
			stepRan = true
			if res.failed {
				out.markFailed(inv.tool, res.exitCode, res.output)
			}
		}
		if stepRan {
			ran++
			if rc.AutoFix && step.Fixable() {
				out.Fixed = true
			}
		}
	}

	out.Elapsed = time.Since(start)
	switch {
	case eligible == 0:
		out.Status = StatusSkipped
		out.Notes = append(out.Notes, "no steps apply to this change-set")
	case ran == 0 && len(out.MissingTools) > 0:
		out.Status = StatusSkipped
	}
	return out
}

func (o *Outcome) markFailed(tool string, exitCode int, output string) {
	if o.Status != StatusFailed {
		o.Status = StatusFailed
		o.FailingTool = tool
		o.ExitCode = exitCode
		o.FailureOutput = output
	}
}

type invocationResult struct {
	missing  bool
	failed   bool
	exitCode int
	output   string
}

// runInvocation runs one command line, mirroring its output into rc.Output and
// keeping a private copy for snippet extraction. A tool that cannot be started or
// crashes counts as a failure, like a reported issue.
func runInvocation(ctx context.Context, rc RunContext, inv invocation) invocationResult {
	var own bytes.Buffer
	var w io.Writer = &own
	if rc.Output != nil {
		w = io.MultiWriter(rc.Output, &own)
	}
	_, _ = fmt.Fprintf(w, "$ %s %s\n", inv.tool, strings.Join(inv.args, " "))

	res, err := rc.Executor.Execute(ctx, tools.ExecuteOptions{
		Tool:    inv.tool,
		Args:    inv.args,
		WorkDir: rc.WorkDir,
		Output:  w,
	})
	if errors.Is(err, tools.ErrToolNotFound) {
		logger.Debug("tool not installed", logger.String("tool", inv.tool))
		return invocationResult{missing: true}
	}
	if err != nil {
		_, _ = fmt.Fprintf(w, "%s: %v\n", inv.tool, err)
		logger.Debug("tool execution error", logger.String("tool", inv.tool), logger.Err(err))
		return invocationResult{failed: true, exitCode: -1, output: own.String()}
	}
	if res.ExitCode != 0 {
		return invocationResult{failed: true, exitCode: res.ExitCode, output: own.String()}
	}
	return invocationResult{}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
