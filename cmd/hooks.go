/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/hooks"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
	"github.com/fulmenhq/hookgate/pkg/buildinfo"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
)

func newHooksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage the git hook shims that invoke hookgate",
		Long: `Hooks installs, removes and inspects the pre-commit and pre-push shims.

Examples:
  hookgate hooks install          # Install both hooks
  hookgate hooks install --force  # Back up existing hooks and replace them
  hookgate hooks status           # Show what is installed
  hookgate hooks remove           # Remove hooks and restore backups`,
	}

	install := &cobra.Command{
		Use:   "install",
		Short: "Install pre-commit and pre-push hooks",
		Args:  cobra.NoArgs,
		RunE:  runHooksInstall,
	}
	install.Flags().Bool("force", false, "Back up and replace hooks not managed by hookgate")
	install.Flags().Bool("strict", false, "Fail the hook when hookgate is not on PATH")
	install.Flags().String("binary", "hookgate", "Command the hook executes")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove hookgate hooks and restore backups",
		Args:  cobra.NoArgs,
		RunE:  runHooksRemove,
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show hook installation state",
		Args:  cobra.NoArgs,
		RunE:  runHooksStatus,
	}

	cmd.AddCommand(install, remove, status)
	return cmd
}

func hooksDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	repo, err := gitctx.Open(wd)
	if err != nil {
		return "", &orchestrator.EnvironmentError{Err: err}
	}
	return repo.HooksDir()
}

func runHooksInstall(cmd *cobra.Command, _ []string) error {
	dir, err := hooksDir()
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	strict, _ := cmd.Flags().GetBool("strict")
	binary, _ := cmd.Flags().GetString("binary")

	m := hooks.NewManager(dir, hooks.Options{Binary: binary, Version: buildinfo.Version(), Strict: strict})
	installed, err := m.Install(force)
	out := cmd.OutOrStdout()
	for _, p := range installed {
		fmt.Fprintf(out, "✅ Installed %s\n", p)
	}
	if errors.Is(err, hooks.ErrForeignHook) {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	return err
}

func runHooksRemove(cmd *cobra.Command, _ []string) error {
	dir, err := hooksDir()
	if err != nil {
		return err
	}
	removed, err := hooks.NewManager(dir, hooks.Options{}).Remove()
	out := cmd.OutOrStdout()
	for _, p := range removed {
		fmt.Fprintf(out, "🗑️  Removed %s\n", p)
	}
	if err == nil && len(removed) == 0 {
		fmt.Fprintln(out, "No hookgate hooks installed")
	}
	return err
}

func runHooksStatus(cmd *cobra.Command, _ []string) error {
	dir, err := hooksDir()
	if err != nil {
		return err
	}
	statuses, err := hooks.NewManager(dir, hooks.Options{}).Status()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range statuses {
		line := fmt.Sprintf("%-10s %-8s %s", s.Stage.String(), s.State, s.Path)
		if s.HasBackup {
			line += " (backup present)"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
