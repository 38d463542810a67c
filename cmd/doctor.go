/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/hooks"
	"github.com/fulmenhq/hookgate/pkg/buildinfo"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

type toolStatus struct {
	Tool      string   `json:"tool"`
	Available bool     `json:"available"`
	UsedBy    []string `json:"used_by"`
}

type doctorReport struct {
	Version      string             `json:"version"`
	Platform     string             `json:"platform"`
	RepoRoot     string             `json:"repo_root,omitempty"`
	ConfigSource string             `json:"config_source,omitempty"`
	Executor     string             `json:"executor"`
	Tools        []toolStatus       `json:"tools"`
	Hooks        []hooks.HookStatus `json:"hooks,omitempty"`
}

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report backing tool availability and installation state",
		Long: `Doctor checks which of the collaborator tools used by the registered checks are
available, where configuration was loaded from, and whether the git hooks are installed.

A missing tool never fails a run; its checks are skipped with a note.`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	rep := doctorReport{
		Version:  buildinfo.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	var hooksDir string
	if repo, err := gitctx.Open(wd); err == nil {
		rep.RepoRoot = repo.Root
		if dir, err := repo.HooksDir(); err == nil {
			hooksDir = dir
		}
	}

	cfg, err := config.LoadWithEnv(rep.RepoRoot, lookupEnv)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	rep.ConfigSource = cfg.Source

	reg, err := checks.DefaultRegistry(cfg)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	executor := tools.NewExecutor(tools.ParseMode(cfg.ToolMode))
	rep.Executor = executor.Name()

	usedBy := map[string][]string{}
	for _, c := range reg.All() {
		for _, t := range c.Tools() {
			usedBy[t] = append(usedBy[t], c.Name())
		}
	}
	for _, t := range reg.Tools() {
		rep.Tools = append(rep.Tools, toolStatus{Tool: t, Available: executor.IsAvailable(t), UsedBy: usedBy[t]})
	}

	if hooksDir != "" {
		if statuses, err := hooks.NewManager(hooksDir, hooks.Options{}).Status(); err == nil {
			rep.Hooks = statuses
		}
	}

	out := cmd.OutOrStdout()
	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintf(out, "hookgate %s (%s)\n", rep.Version, rep.Platform)
	if rep.RepoRoot != "" {
		fmt.Fprintf(out, "Repository: %s\n", rep.RepoRoot)
	} else {
		fmt.Fprintln(out, "Repository: not inside a git work tree")
	}
	source := rep.ConfigSource
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(out, "Config:     %s\n", source)
	fmt.Fprintf(out, "Executor:   %s\n\n", rep.Executor)

	missing := 0
	for _, t := range rep.Tools {
		mark := "✅"
		if !t.Available {
			mark = "❌"
			missing++
		}
		fmt.Fprintf(out, "%s %-16s %v\n", mark, t.Tool, t.UsedBy)
	}
	if missing > 0 {
		fmt.Fprintf(out, "\n%d tool(s) missing; checks that need them will be skipped.\n", missing)
	}

	if len(rep.Hooks) > 0 {
		fmt.Fprintln(out)
		for _, h := range rep.Hooks {
			fmt.Fprintf(out, "Hook %-10s %s\n", h.Stage.String(), h.State)
		}
	}
	return nil
}
