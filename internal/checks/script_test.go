package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
)

func TestNewScriptCheckValidation(t *testing.T) {
	_, err := NewScriptCheck(config.ScriptCheckConfig{Name: "x"})
	assert.Error(t, err)

	_, err = NewScriptCheck(config.ScriptCheckConfig{Name: "x", Command: "make", Stages: []string{"post-merge"}})
	assert.Error(t, err)

	_, err = NewScriptCheck(config.ScriptCheckConfig{Name: "x", Command: "make", Files: []string{"[bad"}})
	assert.Error(t, err)

	sc, err := NewScriptCheck(config.ScriptCheckConfig{Name: "x", Command: "make", Timeout: "soon"})
	require.NoError(t, err)
	assert.Equal(t, defaultScriptTimeout, sc.timeout)
}

func TestScriptCheckApplicabilityAndArgs(t *testing.T) {
	sc, err := NewScriptCheck(config.ScriptCheckConfig{
		Name:      "proto-lint",
		Command:   "buf",
		Args:      []string{"lint"},
		Stages:    []string{"push"},
		Files:     []string{"**/*.proto"},
		PassFiles: true,
		Critical:  true,
	})
	require.NoError(t, err)

	assert.True(t, sc.Critical())
	assert.False(t, sc.AppliesToStage(stage.PreCommit))
	assert.True(t, sc.AppliesToStage(stage.PrePush))
	assert.Equal(t, "buf lint", sc.Description())

	cs := changeset.New("/r", []string{"api/v1/svc.proto", "main.go"}, changeset.SourceStaged)
	assert.True(t, sc.IsApplicable(cs))
	assert.False(t, sc.IsApplicable(changeset.New("/r", []string{"main.go"}, changeset.SourceStaged)))

	exec := newFakeExecutor(map[string]toolBehavior{"buf": {exitCode: 100, output: "svc.proto:3:1: bad\n"}})
	rc := runCtx(stage.PrePush, exec)
	rc.ChangeSet = cs
	out := sc.Run(context.Background(), rc)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 100, out.ExitCode)
	assert.Equal(t, []string{"buf lint api/v1/svc.proto"}, exec.commandLines())
}

func TestScriptCheckMissingCommandSkips(t *testing.T) {
	sc, err := NewScriptCheck(config.ScriptCheckConfig{Name: "docs", Command: "vale"})
	require.NoError(t, err)
	assert.True(t, sc.IsApplicable(changeset.New("/r", nil, changeset.SourceStaged)))

	out := sc.Run(context.Background(), runCtx(stage.PreCommit, newFakeExecutor(nil), "README.md"))
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, []string{"vale"}, out.MissingTools)
}

func TestScriptCheckTimeout(t *testing.T) {
	sc, err := NewScriptCheck(config.ScriptCheckConfig{Name: "slow", Command: "make", Args: []string{"verify"}, Timeout: "10ms", Critical: true})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, sc.timeout)

	exec := newFakeExecutor(map[string]toolBehavior{"make": {block: true}})
	out := sc.Run(context.Background(), runCtx(stage.PreCommit, exec, "Makefile"))

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "make", out.FailingTool)
	assert.Equal(t, -1, out.ExitCode)
	assert.Contains(t, out.FailureOutput, "command timed out after 10ms")
}

func TestScriptCheckCommitStageIncludedInPush(t *testing.T) {
	sc, err := NewScriptCheck(config.ScriptCheckConfig{Name: "fmt", Command: "make", Stages: []string{"commit"}})
	require.NoError(t, err)
	assert.True(t, sc.AppliesToStage(stage.PreCommit))
	assert.True(t, sc.AppliesToStage(stage.PrePush))
}
