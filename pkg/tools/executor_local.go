/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// LocalExecutor runs tools installed on the local system
type LocalExecutor struct {
	shimDirs []string
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{
		shimDirs: getShimDirectories(),
	}
}

// Name returns the executor name
func (e *LocalExecutor) Name() string {
	return "local"
}

// IsAvailable checks if the tool is available locally
func (e *LocalExecutor) IsAvailable(tool string) bool {
	return e.FindToolPath(tool) != ""
}

// Execute runs the tool locally
func (e *LocalExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	toolPath := e.FindToolPath(opts.Tool)
	if toolPath == "" {
		return nil, fmt.Errorf("%w: %s not in PATH or shim directories", ErrToolNotFound, opts.Tool)
	}

	// #nosec G204 - toolPath is validated via FindToolPath, args come from check definitions
	cmd := exec.CommandContext(ctx, toolPath, opts.Args...)

	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	if opts.Output != nil {
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	logger.Trace("local executor: running", logger.String("tool", toolPath), logger.Strings("args", opts.Args))
	err := cmd.Run()

	result := &ExecuteResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Executor: "local",
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.ExitCode < 0 {
				// killed by a signal; still a failed invocation
				result.ExitCode = 1
			}
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", opts.Tool, err)
	}

	return result, nil
}

// FindToolPath finds a tool by name, checking PATH first then known shim directories.
// This handles tools installed via pipx, npm, go install, mise, etc. that may not be
// on the PATH git hooks run with.
func (e *LocalExecutor) FindToolPath(toolName string) string {
	if path, err := exec.LookPath(toolName); err == nil {
		return path
	}

	for _, shimDir := range e.shimDirs {
		if shimDir == "" {
			continue
		}
		candidate := filepath.Join(shimDir, toolName)
		if runtime.GOOS == "windows" && !strings.HasSuffix(candidate, ".exe") {
			candidate += ".exe"
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			logger.Debug("found tool in shim dir", logger.String("tool", toolName), logger.String("path", candidate))
			return candidate
		}
	}

	return ""
}

// getShimDirectories returns install locations git hooks often miss on PATH
func getShimDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	candidates := []string{
		// pipx, pip --user
		filepath.Join(homeDir, ".local", "bin"),
		// mise / asdf
		filepath.Join(homeDir, ".local", "share", "mise", "shims"),
		filepath.Join(homeDir, ".asdf", "shims"),
		// bun, npm global prefix
		filepath.Join(homeDir, ".bun", "bin"),
		filepath.Join(homeDir, ".npm-global", "bin"),
		// tfenv, tflint installer
		filepath.Join(homeDir, ".tfenv", "bin"),
		filepath.Join(homeDir, ".tflint.d", "bin"),
	}

	goDir := os.Getenv("GOBIN")
	if goDir == "" {
		goDir = filepath.Join(homeDir, "go", "bin")
	}
	candidates = append(candidates, goDir)

	if runtime.GOOS == "windows" {
		candidates = append(candidates, filepath.Join(homeDir, "scoop", "shims"))
	} else {
		candidates = append(candidates, "/opt/homebrew/bin", "/usr/local/bin")
	}

	dirs := make([]string, 0, len(candidates))
	for _, d := range candidates {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
