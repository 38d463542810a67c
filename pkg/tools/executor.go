/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// ExecutionMode determines how collaborator tools are executed
type ExecutionMode string

const (
	// ModeAuto prefers a local install and falls back to the tool's container image
	ModeAuto ExecutionMode = "auto"
	// ModeLocal only runs tools found via PATH/shim directories
	ModeLocal ExecutionMode = "local"
	// ModeDocker runs tools from their upstream container images
	ModeDocker ExecutionMode = "docker"
)

// ToolModeEnvVar selects the execution mode when none is configured.
const ToolModeEnvVar = "HOOKGATE_TOOL_MODE"

// ErrToolNotFound is returned by Execute when no executor can provide the tool.
var ErrToolNotFound = errors.New("tool not found")

// ExecuteOptions configures tool execution
type ExecuteOptions struct {
	// Tool name (e.g., "black", "tfsec")
	Tool string

	// Args to pass to the tool
	Args []string

	// WorkDir is the working directory (defaults to current directory)
	WorkDir string

	// Stdin to pipe to the tool (optional)
	Stdin io.Reader

	// Env contains additional environment variables
	Env map[string]string

	// Output receives stdout and stderr interleaved, as a terminal would show
	// them. When nil, the streams are captured separately in ExecuteResult.
	Output io.Writer
}

// ExecuteResult contains the output of tool execution
type ExecuteResult struct {
	// ExitCode from the tool
	ExitCode int

	// Stdout contains standard output (empty when Output was set)
	Stdout []byte

	// Stderr contains standard error (empty when Output was set)
	Stderr []byte

	// Executor indicates which executor was used ("local" or "docker")
	Executor string
}

// ToolExecutor executes external tools
type ToolExecutor interface {
	// Execute runs a tool with the given options. A non-zero exit is reported
	// through ExecuteResult.ExitCode, not as an error.
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)

	// IsAvailable checks if this executor can run the specified tool
	IsAvailable(tool string) bool

	// Name returns the executor name for logging
	Name() string
}

// NewExecutor creates a ToolExecutor based on the specified mode
// If mode is empty, it reads from HOOKGATE_TOOL_MODE environment variable
func NewExecutor(mode ExecutionMode) ToolExecutor {
	if mode == "" {
		mode = getModeFromEnv()
	}

	switch mode {
	case ModeDocker:
		return NewDockerExecutor()
	case ModeAuto:
		return NewAutoExecutor()
	case ModeLocal:
		fallthrough
	default:
		return NewLocalExecutor()
	}
}

// ParseMode converts a configured value into an ExecutionMode, defaulting to local.
func ParseMode(s string) ExecutionMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return ModeAuto
	case "docker":
		return ModeDocker
	default:
		return ModeLocal
	}
}

// getModeFromEnv reads execution mode from environment
func getModeFromEnv() ExecutionMode {
	return ParseMode(os.Getenv(ToolModeEnvVar))
}
