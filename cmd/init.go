package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/safeio"
)

const initHeader = `# hookgate configuration
# Environment variables (FAIL_ON_HIGH_SEVERITY, FAIL_ON_MEDIUM_SEVERITY, VERBOSE,
# AUTO_FIX, LOG_DIR, SKIP and their HOOKGATE_* forms) override these values.
`

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .hookgate.yaml to the repository root",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := gitctx.RepoRoot(wd)
	if err != nil {
		return &orchestrator.EnvironmentError{Err: err}
	}

	path := filepath.Join(root, config.FileNames[0])
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return &exitError{code: exitcode.ConfigError, err: fmt.Errorf("%s already exists (use --force to overwrite)", path)}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	data, err := renderDefaultConfig()
	if err != nil {
		return err
	}
	if err := safeio.WriteFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s\n", path)
	return nil
}

func renderDefaultConfig() ([]byte, error) {
	cfg := config.Default()
	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return append([]byte(initHeader), body...), nil
}
