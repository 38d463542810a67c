package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/logger"
)

// defaultScriptTimeout applies when a script check sets no timeout of its own.
const defaultScriptTimeout = 2 * time.Minute

// ScriptCheck is a user-defined check declared in the config "checks" list.
//
// Security note: commands come from a checked-in config file with the same trust
// level as a Makefile and run with the caller's privileges.
type ScriptCheck struct {
	cfg     config.ScriptCheckConfig
	stages  []stage.Stage
	timeout time.Duration
}

// NewScriptCheck validates a script check declaration.
func NewScriptCheck(cfg config.ScriptCheckConfig) (*ScriptCheck, error) {
	if cfg.Name == "" || cfg.Command == "" {
		return nil, fmt.Errorf("script check needs a name and a command")
	}
	sc := &ScriptCheck{cfg: cfg, timeout: defaultScriptTimeout}
	for _, raw := range cfg.Stages {
		s, err := stage.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", cfg.Name, err)
		}
		sc.stages = append(sc.stages, s)
	}
	for _, g := range cfg.Files {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("check %s: invalid files pattern %q", cfg.Name, g)
		}
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			logger.Warn(fmt.Sprintf("script check %s: invalid timeout %q, using default %s", cfg.Name, cfg.Timeout, defaultScriptTimeout))
		} else {
			sc.timeout = d
		}
	}
	return sc, nil
}

func (s *ScriptCheck) Name() string    { return s.cfg.Name }
func (s *ScriptCheck) Critical() bool  { return s.cfg.Critical }
func (s *ScriptCheck) Tools() []string { return []string{s.cfg.Command} }

func (s *ScriptCheck) Description() string {
	if s.cfg.Description != "" {
		return s.cfg.Description
	}
	return formatCommandString(s.cfg.Command, s.cfg.Args)
}

func (s *ScriptCheck) AppliesToStage(st stage.Stage) bool {
	return stageAllowed(s.stages, st)
}

// IsApplicable is true when no file patterns are declared or any change-set file matches.
func (s *ScriptCheck) IsApplicable(cs *changeset.ChangeSet) bool {
	if len(s.cfg.Files) == 0 {
		return true
	}
	return len(s.matching(cs)) > 0
}

func (s *ScriptCheck) matching(cs *changeset.ChangeSet) []string {
	var out []string
	for _, f := range cs.Files {
		for _, g := range s.cfg.Files {
			if ok, _ := doublestar.Match(g, f); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func (s *ScriptCheck) Run(ctx context.Context, rc RunContext) Outcome {
	start := time.Now()
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append([]string(nil), s.cfg.Args...)
	if s.cfg.PassFiles {
		if len(s.cfg.Files) > 0 {
			args = append(args, s.matching(rc.ChangeSet)...)
		} else {
			args = append(args, rc.ChangeSet.Files...)
		}
	}

	out := Outcome{Status: StatusPassed}
	res := runInvocation(cmdCtx, rc, invocation{tool: s.cfg.Command, args: args})
	switch {
	case res.missing:
		out = Skipped(fmt.Sprintf("%s not installed", s.cfg.Command))
		out.MissingTools = []string{s.cfg.Command}
	case cmdCtx.Err() == context.DeadlineExceeded:
		out.markFailed(s.cfg.Command, -1, fmt.Sprintf("command timed out after %s\n%s", s.timeout, res.output))
	case res.failed:
		out.markFailed(s.cfg.Command, res.exitCode, res.output)
	}
	out.Elapsed = time.Since(start)
	return out
}

// formatCommandString returns a human-readable representation of a command.
func formatCommandString(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return fmt.Sprintf("%s %s", command, strings.Join(args, " "))
}
