/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// AutoExecutor prefers a local install and falls back to docker. The choice is
// made once per tool for the lifetime of the executor.
type AutoExecutor struct {
	local  *LocalExecutor
	docker *DockerExecutor

	mu     sync.Mutex
	chosen map[string]ToolExecutor
}

// NewAutoExecutor creates a new AutoExecutor
func NewAutoExecutor() *AutoExecutor {
	return &AutoExecutor{
		local:  NewLocalExecutor(),
		docker: NewDockerExecutor(),
		chosen: make(map[string]ToolExecutor),
	}
}

func (e *AutoExecutor) Name() string { return "auto" }

// IsAvailable reports whether a local install or a container image can serve tool.
func (e *AutoExecutor) IsAvailable(tool string) bool {
	return e.pick(tool) != nil
}

// Execute runs tool locally when installed, otherwise in its container image.
func (e *AutoExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	ex := e.pick(opts.Tool)
	if ex == nil {
		return nil, fmt.Errorf("%w: %s is not installed and has no container fallback", ErrToolNotFound, opts.Tool)
	}
	return ex.Execute(ctx, opts)
}

func (e *AutoExecutor) pick(tool string) ToolExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ex, ok := e.chosen[tool]; ok {
		return ex
	}

	var ex ToolExecutor
	switch {
	case e.local.IsAvailable(tool):
		logger.Trace("auto executor: using local", logger.String("tool", tool))
		ex = e.local
	case e.docker.IsAvailable(tool):
		logger.Debug("auto executor: tool not local, using docker", logger.String("tool", tool))
		ex = e.docker
	}
	e.chosen[tool] = ex
	return ex
}
