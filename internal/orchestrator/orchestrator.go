// Package orchestrator runs the registered checks for one hook invocation and
// folds their outcomes into a summary and an exit decision.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/ignore"
	"github.com/fulmenhq/hookgate/pkg/logger"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

// EnvironmentError aborts a run before any check is dispatched.
type EnvironmentError struct {
	Err error
}

func (e *EnvironmentError) Error() string { return "environment error: " + e.Err.Error() }
func (e *EnvironmentError) Unwrap() error { return e.Err }

// Options configure one run.
type Options struct {
	WorkDir  string
	Stage    stage.Stage
	Config   *config.Config
	Registry *checks.Registry
	Executor tools.ToolExecutor
	// Files overrides change-set resolution.
	Files []string
	// FromRef/ToRef bound a pre-push diff range.
	FromRef string
	ToRef   string
	// Stdout receives live tool output when the config asks for verbose runs.
	Stdout io.Writer
	// Policy is an optional Rego gate.
	Policy *Policy
	// OnResult is called after each check completes.
	OnResult func(CheckResult)
}

// Result is everything a run produced.
type Result struct {
	RunID     string                `json:"run_id"`
	Stage     stage.Stage           `json:"stage"`
	Root      string                `json:"root"`
	ChangeSet *changeset.ChangeSet  `json:"change_set"`
	Git       *gitctx.ChangeContext `json:"git,omitempty"`
	Results   []CheckResult         `json:"results"`
	Summary   RunSummary            `json:"summary"`
	Decision  Decision              `json:"decision"`
	LogDir    string                `json:"log_dir"`
	Restaged  []string              `json:"restaged,omitempty"`
}

// Orchestrator dispatches checks strictly one after another.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator. Missing options get defaults.
func New(opts Options) *Orchestrator {
	if opts.Config == nil {
		cfg := config.Default()
		opts.Config = &cfg
	}
	if opts.Executor == nil {
		opts.Executor = tools.NewExecutor(tools.ParseMode(opts.Config.ToolMode))
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	return &Orchestrator{opts: opts}
}

// Run executes one hook invocation. Only environment problems are returned as errors;
// check failures are reported through Result.Decision.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := o.opts.Config

	repo, err := gitctx.Open(o.opts.WorkDir)
	if err != nil {
		return nil, &EnvironmentError{Err: err}
	}

	registry := o.opts.Registry
	if registry == nil {
		if registry, err = checks.DefaultRegistry(cfg); err != nil {
			return nil, err
		}
	}

	matcher, err := ignore.NewMatcher(repo.Root, cfg.Exclude)
	if err != nil {
		logger.Debug("ignoring invalid exclude patterns", logger.Err(err))
		if matcher, err = ignore.NewMatcher(repo.Root, nil); err != nil {
			return nil, &EnvironmentError{Err: err}
		}
	}

	cs, err := changeset.Resolve(ctx, repo, changeset.Options{
		Root:        repo.Root,
		Stage:       o.opts.Stage,
		Explicit:    o.opts.Files,
		FromRef:     o.opts.FromRef,
		ToRef:       o.opts.ToRef,
		SampleLimit: cfg.SampleLimit,
		Filter:      matcher,
	})
	if err != nil {
		return nil, &EnvironmentError{Err: err}
	}
	logger.Info("resolved change-set",
		logger.String("stage", o.opts.Stage.String()),
		logger.String("source", string(cs.Source)),
		logger.Int("files", cs.Len()),
		logger.String("categories", cs.Categories.String()))

	runID := uuid.NewString()
	logDir, err := prepareLogDir(cfg.LogDir, runID)
	if err != nil {
		return nil, &EnvironmentError{Err: err}
	}

	res := &Result{
		RunID:     runID,
		Stage:     o.opts.Stage,
		Root:      repo.Root,
		ChangeSet: cs,
		Git:       repo.Context(cs.Len()),
		LogDir:    logDir,
	}

	for _, c := range registry.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.AppliesToStage(o.opts.Stage) {
			logger.Debug("check not part of stage", logger.String("check", c.Name()), logger.String("stage", o.opts.Stage.String()))
			continue
		}

		var r CheckResult
		if !c.IsApplicable(cs) {
			r = CheckResult{
				Name:          c.Name(),
				Description:   c.Description(),
				Status:        checks.StatusSkipped,
				Critical:      c.Critical(),
				Notes:         []string{"not applicable"},
				NotApplicable: true,
			}
		} else {
			var base *changeset.Baseline
			if cfg.AutoFix && len(cs.Staged) > 0 {
				if base, err = changeset.TakeBaseline(repo, repo.Root, cs.Staged); err != nil {
					return nil, &EnvironmentError{Err: err}
				}
			}
			r = o.runCheck(ctx, c, repo.Root, cs, logDir)
			if r.Fixed && base != nil {
				restaged, err := changeset.Restage(repo, cs.Staged, base)
				if err != nil {
					logger.Warn("auto-fix re-stage failed", logger.String("check", c.Name()), logger.Err(err))
				}
				res.Restaged = appendNew(res.Restaged, restaged)
			}
		}

		res.Results = append(res.Results, r)
		if o.opts.OnResult != nil {
			o.opts.OnResult(r)
		}
	}

	res.Summary = Summarize(res.Results, time.Since(start))
	res.Decision = Decide(res.Summary, Thresholds{
		FailOnHighSeverity:   cfg.FailOnHighSeverity,
		FailOnMediumSeverity: cfg.FailOnMediumSeverity,
	})

	if o.opts.Policy != nil {
		denies, err := o.opts.Policy.Deny(ctx, policyInput(o.opts.Stage.String(), res.Summary, res.Results))
		if err != nil {
			logger.Warn("policy evaluation failed", logger.Err(err))
		}
		if len(denies) > 0 {
			res.Decision.ExitCode = exitcode.ChecksFailed
			res.Decision.Reasons = append(res.Decision.Reasons, denies...)
		}
	}
	return res, nil
}

// runCheck dispatches one applicable check with its own log file.
func (o *Orchestrator) runCheck(ctx context.Context, c checks.Checker, root string, cs *changeset.ChangeSet, logDir string) CheckResult {
	cfg := o.opts.Config
	r := CheckResult{Name: c.Name(), Description: c.Description(), Critical: c.Critical()}

	logPath := filepath.Join(logDir, safeName(c.Name())+".log")
	f, err := os.Create(logPath) // #nosec G304 -- path built from the run's log directory
	var out io.Writer = io.Discard
	if err != nil {
		logger.Warn("cannot create check log", logger.String("path", logPath), logger.Err(err))
	} else {
		defer func() { _ = f.Close() }()
		out = f
		r.LogPath = logPath
	}
	if cfg.Verbose && o.opts.Stdout != nil {
		out = io.MultiWriter(out, o.opts.Stdout)
	}

	cctx := ctx
	if cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, cfg.CheckTimeout)
		defer cancel()
	}

	logger.Debug("running check", logger.String("check", c.Name()), logger.Strings("tools", c.Tools()))
	outcome := c.Run(cctx, checks.RunContext{
		Stage:     o.opts.Stage,
		ChangeSet: cs,
		Executor:  o.opts.Executor,
		WorkDir:   root,
		Output:    out,
		AutoFix:   cfg.AutoFix,
	})

	r.Status = outcome.Status
	r.ExitCode = outcome.ExitCode
	r.Elapsed = outcome.Elapsed
	r.FailingTool = outcome.FailingTool
	r.MissingTools = outcome.MissingTools
	r.Notes = outcome.Notes
	r.Fixed = outcome.Fixed
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		r.Notes = append(r.Notes, fmt.Sprintf("timed out after %s", cfg.CheckTimeout))
	}

	if r.Status == checks.StatusFailed {
		r.Log = outcome.FailureOutput
		if r.Log == "" && r.LogPath != "" {
			if data, err := os.ReadFile(r.LogPath); err == nil {
				r.Log = string(data)
			}
		}
		r.Snippet = checks.Extract(r.FailingTool, r.Log)
		r.Hints = checks.Hints(r.FailingTool)
	}

	logger.Debug("check finished",
		logger.String("check", r.Name),
		logger.String("status", string(r.Status)),
		logger.Int("exit_code", r.ExitCode),
		logger.Duration("elapsed", r.Elapsed))
	return r
}

// prepareLogDir creates the per-run log directory. An empty base uses a temp directory
// named after the run id.
func prepareLogDir(base, runID string) (string, error) {
	dir := base
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "hookgate-"+runID)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	return dir, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func appendNew(list, add []string) []string {
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			list = append(list, s)
		}
	}
	return list
}
