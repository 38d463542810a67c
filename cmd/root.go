/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/hookgate/internal/orchestrator"
	"github.com/fulmenhq/hookgate/pkg/buildinfo"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hookgate [files...]",
		Short: "Pre-commit and pre-push quality and security gate",
		Long: `hookgate runs the linters, formatters and scanners that match the files in a
commit or push, captures their output, and decides whether the hook may proceed.

Without a subcommand it behaves like 'hookgate run'.

Examples:
   hookgate                       # Run the checks for the detected stage
   hookgate run --stage pre-push  # Run pre-push checks explicitly
   hookgate checks                # List registered checks
   hookgate doctor                # Show which backing tools are installed
   hookgate hooks install         # Install git hook shims`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
		RunE: runGate,
	}

	cmd.PersistentFlags().String("log-level", "warn", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	addRunFlags(cmd.Flags())

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("hookgate {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: exitcode.ConfigError, err: err}
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newChecksCommand())
	cmd.AddCommand(newDoctorCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newHooksCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the command tree and exits with the code the run decided on.
// This is called by main.main().
func Execute() {
	code := exitCodeFor(rootCmd.Execute())
	logger.Sync()
	if code != exitcode.Success {
		os.Exit(code)
	}
}

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			logger.Error(exitcode.String(ee.code), logger.Err(ee.err))
		}
		return ee.code
	}
	var envErr *orchestrator.EnvironmentError
	if errors.As(err, &envErr) {
		logger.Error("Cannot run hooks here", logger.Err(envErr.Err))
		return exitcode.EnvironmentError
	}
	logger.Error("Command execution failed", logger.Err(err))
	return exitcode.GeneralError
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor && os.Getenv("NO_COLOR") == "",
		JSON:      jsonLogs,
		Component: "hookgate",
	}

	if err := logger.Initialize(config); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
