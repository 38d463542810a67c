package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
	"github.com/fulmenhq/hookgate/internal/report"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/logger"
	"github.com/fulmenhq/hookgate/pkg/safeio"
)

// lookupEnv is swapped by tests.
var lookupEnv = os.LookupEnv

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Run the checks for a hook stage",
		Long: `Run resolves the files under consideration, dispatches every check whose trigger
categories are present, and exits non-zero when the failure policy says so.

Files given as arguments replace change-set detection. The stage comes from --stage,
then HOOKGATE_STAGE / HOOK_STAGE / PRE_COMMIT_HOOK_STAGE, then the presence of a
pre-push base ref, and defaults to pre-commit.`,
		Args: cobra.ArbitraryArgs,
		RunE: runGate,
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.String("stage", "", "Hook stage to run (pre-commit|pre-push); detected from the environment when empty")
	fs.Bool("verbose", false, "Stream tool output while checks run")
	fs.Bool("auto-fix", false, "Run fixers where supported and re-stage fixed files")
	fs.String("log-dir", "", "Directory for per-check logs (default: a temporary directory per run)")
	fs.String("from-ref", "", "Base ref of a pre-push diff range")
	fs.String("to-ref", "", "Tip ref of a pre-push diff range (default HEAD)")
	fs.StringSlice("skip", nil, "Checks to skip (comma-separated)")
	fs.String("junit", "", "Write a JUnit XML report to this file")
	fs.String("json-report", "", "Write a JSON report to this file")
	fs.Bool("show-skipped", false, "List checks that did not run")
}

func runGate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	ctx := cmd.Context()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	root, err := gitctx.RepoRoot(wd)
	if err != nil {
		return &orchestrator.EnvironmentError{Err: err}
	}

	cfg, err := config.LoadWithEnv(root, lookupEnv)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	applyRunFlags(cfg, flags)

	st, err := resolveStage(flags)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	from, to := resolveRange(flags)

	var policy *orchestrator.Policy
	if cfg.PolicyFile != "" {
		path := cfg.PolicyFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if policy, err = orchestrator.LoadPolicy(ctx, path); err != nil {
			return &exitError{code: exitcode.ConfigError, err: err}
		}
	}

	out := cmd.OutOrStdout()
	orch := orchestrator.New(orchestrator.Options{
		WorkDir: root,
		Stage:   st,
		Config:  cfg,
		Files:   repoRelative(wd, root, args),
		FromRef: from,
		ToRef:   to,
		Stdout:  out,
		Policy:  policy,
		OnResult: func(r orchestrator.CheckResult) {
			logger.Debug("check finished",
				logger.String("check", r.Name),
				logger.String("status", string(r.Status)),
				logger.Duration("elapsed", r.Elapsed))
		},
	})

	res, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	noColor, _ := flags.GetBool("no-color")
	showSkipped, _ := flags.GetBool("show-skipped")
	if err := report.WriteHuman(out, res, report.HumanOptions{
		Color:       report.UseColor(out, noColor),
		ShowSkipped: showSkipped,
	}); err != nil {
		return err
	}

	if path, _ := flags.GetString("junit"); path != "" {
		if err := writeReportFile(path, res, report.WriteJUnit); err != nil {
			logger.Warn("failed to write JUnit report", logger.String("path", path), logger.Err(err))
		}
	}
	if path, _ := flags.GetString("json-report"); path != "" {
		if err := writeReportFile(path, res, report.WriteJSON); err != nil {
			logger.Warn("failed to write JSON report", logger.String("path", path), logger.Err(err))
		}
	}

	if res.Decision.Blocked() {
		return &exitError{code: res.Decision.ExitCode}
	}
	return nil
}

// applyRunFlags lets explicitly set flags override file and environment settings.
func applyRunFlags(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("auto-fix") {
		cfg.AutoFix, _ = flags.GetBool("auto-fix")
	}
	if flags.Changed("log-dir") {
		cfg.LogDir, _ = flags.GetString("log-dir")
	}
	if flags.Changed("skip") {
		skip, _ := flags.GetStringSlice("skip")
		cfg.Skip = append(cfg.Skip, skip...)
	}
}

func resolveStage(flags *pflag.FlagSet) (stage.Stage, error) {
	if raw, _ := flags.GetString("stage"); raw != "" {
		return stage.Parse(raw)
	}
	return stage.Detect(lookupEnv), nil
}

func resolveRange(flags *pflag.FlagSet) (string, string) {
	from, _ := flags.GetString("from-ref")
	to, _ := flags.GetString("to-ref")
	if from != "" {
		if to == "" {
			to = "HEAD"
		}
		return from, to
	}
	envFrom, envTo, ok := stage.DiffRange(lookupEnv)
	if !ok {
		return "", ""
	}
	return envFrom, envTo
}

// repoRelative turns arguments given relative to wd into repository paths.
func repoRelative(wd, root string, args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs := a
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(wd, a)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			out = append(out, a)
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func writeReportFile(path string, res *orchestrator.Result, write func(io.Writer, *orchestrator.Result) error) error {
	var buf bytes.Buffer
	if err := write(&buf, res); err != nil {
		return err
	}
	return safeio.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
