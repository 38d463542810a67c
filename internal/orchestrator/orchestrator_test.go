package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

type fakeTool struct {
	exitCode int
	output   string
	// run, when set, replaces the canned behaviour.
	run func(opts tools.ExecuteOptions) (int, string)
}

type fakeExecutor struct {
	mu    sync.Mutex
	tools map[string]fakeTool
	calls []string
	// block makes a tool wait for its context to end.
	block map[string]bool
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) IsAvailable(tool string) bool {
	_, ok := f.tools[tool]
	return ok
}

func (f *fakeExecutor) Execute(ctx context.Context, opts tools.ExecuteOptions) (*tools.ExecuteResult, error) {
	t, ok := f.tools[opts.Tool]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, opts.Tool)
	}
	f.mu.Lock()
	f.calls = append(f.calls, opts.Tool)
	f.mu.Unlock()

	if f.block[opts.Tool] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	code, out := t.exitCode, t.output
	if t.run != nil {
		code, out = t.run(opts)
	}
	res := &tools.ExecuteResult{ExitCode: code, Executor: "fake"}
	if opts.Output != nil {
		_, _ = io.WriteString(opts.Output, out)
	} else {
		res.Stdout = []byte(out)
	}
	return res, nil
}

func (f *fakeExecutor) called(tool string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == tool {
			return true
		}
	}
	return false
}

// allTools installs every built-in tool as a passing no-op.
func allTools(overrides map[string]fakeTool) *fakeExecutor {
	m := map[string]fakeTool{}
	for _, name := range []string{
		"black", "isort", "flake8", "mypy", "prettier", "eslint", "tsc", "terraform", "tflint",
		"tfsec", "checkov", "terrascan", "hadolint", "trivy", "docker", "yamllint", "shfmt", "git",
		"actionlint", "pinact", "kustomize", "kubeconform", "helm", "gitleaks", "pip-licenses",
		"license-checker", "radon", "cloc",
	} {
		m[name] = fakeTool{}
	}
	for k, v := range overrides {
		m[k] = v
	}
	return &fakeExecutor{tools: m}
}

func initRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	t.Setenv("GIT_INDEX_FILE", "")
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, wt
}

func stageFile(t *testing.T, dir string, wt *git.Worktree, path, content string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	_, err := wt.Add(path)
	require.NoError(t, err)
}

func commit(t *testing.T, wt *git.Worktree) {
	t.Helper()
	_, err := wt.Commit("commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func newConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	return &cfg
}

func statuses(res *Result) map[string]checks.Status {
	m := map[string]checks.Status{}
	for _, r := range res.Results {
		m[r.Name] = r.Status
	}
	return m
}

func TestRunPythonOnlyChangeSet(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "print('hi')\n")
	exec := allTools(nil)

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: newConfig(t), Executor: exec}).Run(context.Background())
	require.NoError(t, err)

	st := statuses(res)
	assert.Equal(t, checks.StatusPassed, st[checks.PythonQuality])
	assert.Equal(t, checks.StatusPassed, st[checks.SecurityCheck])
	assert.Equal(t, checks.StatusSkipped, st[checks.JavaScriptQuality])
	assert.Equal(t, checks.StatusSkipped, st[checks.TerraformQuality])
	assert.Equal(t, checks.StatusSkipped, st[checks.DockerSecurity])
	assert.NotContains(t, st, checks.LicenseCheck, "pre-push checks are not part of a pre-commit run")

	assert.False(t, exec.called("eslint"))
	assert.False(t, exec.called("terraform"))
	assert.False(t, exec.called("hadolint"))
	assert.True(t, exec.called("black"))
	assert.True(t, exec.called("gitleaks"))
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)
	assert.Equal(t, "staged", string(res.ChangeSet.Source))
}

func TestRunMissingToolContributesNothing(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "Dockerfile", "FROM alpine\n")
	exec := allTools(nil)
	delete(exec.tools, "hadolint")

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: newConfig(t), Executor: exec}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, checks.StatusSkipped, statuses(res)[checks.DockerSecurity])
	assert.Equal(t, 0, res.Summary.Failed)
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)
}

func TestRunCriticalFailureRespectsThreshold(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "Dockerfile", "FROM alpine\n")
	exec := allTools(map[string]fakeTool{
		"hadolint": {exitCode: 1, output: "Dockerfile:1 DL3006 warning: Always tag the version of an image explicitly\n"},
	})

	cfg := newConfig(t)
	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exitcode.ChecksFailed, res.Decision.ExitCode)
	assert.Equal(t, 1, res.Summary.CriticalFailures)

	var docker CheckResult
	for _, r := range res.Results {
		if r.Name == checks.DockerSecurity {
			docker = r
		}
	}
	assert.Equal(t, "hadolint", docker.FailingTool)
	assert.Contains(t, docker.Snippet[0], "DL3006")
	assert.NotEmpty(t, docker.Hints)
	require.FileExists(t, docker.LogPath)
	data, err := os.ReadFile(docker.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DL3006")

	cfg.FailOnHighSeverity = false
	res, err = New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)
}

func TestRunPrePushTerraformHighSeverityDisabled(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "infra/main.tf", "resource \"aws_s3_bucket\" \"b\" {}\n")
	exec := allTools(map[string]fakeTool{
		"tfsec": {exitCode: 1, output: "Result #1 HIGH Bucket does not have encryption enabled\n"},
	})
	cfg, err := config.LoadWithEnv(dir, config.MapEnv(map[string]string{"FAIL_ON_HIGH_SEVERITY": "false", "HOOKGATE_HOME": t.TempDir()}))
	require.NoError(t, err)
	cfg.LogDir = t.TempDir()

	res, err := New(Options{WorkDir: dir, Stage: stage.PrePush, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, exec.called("tfsec"))
	assert.Equal(t, checks.StatusFailed, statuses(res)[checks.TerraformQuality])
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)
}

func TestRunAdvisoryFailureNeedsMediumThreshold(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "import os\n")
	exec := allTools(map[string]fakeTool{"flake8": {exitCode: 1, output: "app.py:1:1: F401 'os' imported but unused\n"}})

	cfg := newConfig(t)
	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.AdvisoryFailures)
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)

	cfg.FailOnMediumSeverity = true
	res, err = New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exitcode.ChecksFailed, res.Decision.ExitCode)
}

func TestRunEmptyRepositoryOnlySecurity(t *testing.T) {
	dir, _ := initRepo(t)
	exec := allTools(nil)

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: newConfig(t), Executor: exec}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tracked-sample", string(res.ChangeSet.Source))
	for _, r := range res.Results {
		if r.Name == checks.SecurityCheck {
			assert.Equal(t, checks.StatusPassed, r.Status)
			continue
		}
		assert.Equal(t, checks.StatusSkipped, r.Status, r.Name)
		assert.True(t, r.NotApplicable, r.Name)
	}
	assert.Equal(t, 1, res.Summary.Total, "only the always-on check is dispatched")
	assert.Equal(t, 0, res.Summary.Skipped)
	assert.Equal(t, len(res.Results)-1, res.Summary.NotApplicable)
	assert.Equal(t, exitcode.Success, res.Decision.ExitCode)
}

func TestRunAutoFixRestagesOnlyOnce(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x=1\n")

	formatter := fakeTool{run: func(opts tools.ExecuteOptions) (int, string) {
		for _, a := range opts.Args {
			if filepath.Ext(a) == ".py" {
				_ = os.WriteFile(filepath.Join(opts.WorkDir, a), []byte("x = 1\n"), 0o644)
			}
		}
		return 0, "reformatted app.py\n"
	}}
	exec := allTools(map[string]fakeTool{"black": formatter})
	cfg := newConfig(t)
	cfg.AutoFix = true

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, res.Restaged)
	assert.Equal(t, 0, res.Summary.Failed)

	res, err = New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Restaged)
	assert.Equal(t, 0, res.Summary.Failed)
}

func TestRunAutoFixKeepsUnstagedEdits(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x = 1\n")
	stageFile(t, dir, wt, "notes.sh", "echo hi\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.sh"), []byte("echo hi\necho WIP\n"), 0o644))

	exec := allTools(nil)
	delete(exec.tools, "shfmt")
	cfg := newConfig(t)
	cfg.AutoFix = true

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Restaged)

	status, err := wt.Status()
	require.NoError(t, err)
	assert.Equal(t, git.Modified, status.File("notes.sh").Worktree, "WIP edit must stay out of the index")
}

func TestRunCheckTimeout(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x = 1\n")

	exec := allTools(nil)
	exec.block = map[string]bool{"flake8": true}
	cfg := newConfig(t)
	cfg.CheckTimeout = 50 * time.Millisecond

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Executor: exec}).Run(context.Background())
	require.NoError(t, err)

	var py CheckResult
	for _, r := range res.Results {
		if r.Name == checks.PythonQuality {
			py = r
		}
	}
	assert.Equal(t, checks.StatusFailed, py.Status)
	assert.Equal(t, "flake8", py.FailingTool)
	assert.Contains(t, py.Notes, "timed out after 50ms")
	assert.Equal(t, checks.StatusPassed, statuses(res)[checks.SecurityCheck], "later checks still run")
}

func TestRunNotARepository(t *testing.T) {
	_, err := New(Options{WorkDir: t.TempDir(), Config: newConfig(t), Executor: allTools(nil)}).Run(context.Background())
	require.Error(t, err)
	var envErr *EnvironmentError
	assert.True(t, errors.As(err, &envErr))
}

func TestRunSkipListAndExplicitFiles(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x = 1\n")
	stageFile(t, dir, wt, "web/index.js", "let a = 1\n")
	commit(t, wt)

	cfg := newConfig(t)
	cfg.Skip = []string{checks.SecurityCheck}
	reg, err := checks.DefaultRegistry(cfg)
	require.NoError(t, err)
	exec := allTools(nil)

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: cfg, Registry: reg, Executor: exec, Files: []string{"web/index.js"}}).Run(context.Background())
	require.NoError(t, err)

	st := statuses(res)
	assert.NotContains(t, st, checks.SecurityCheck)
	assert.Equal(t, checks.StatusPassed, st[checks.JavaScriptQuality])
	assert.Equal(t, checks.StatusSkipped, st[checks.PythonQuality])
	assert.False(t, exec.called("gitleaks"))
}

func TestRunVerboseTeesOutput(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x = 1\n")
	exec := allTools(map[string]fakeTool{"flake8": {output: "flake8 says hello\n"}})
	cfg := newConfig(t)
	cfg.Verbose = true

	var stdout syncBuffer
	var seen []string
	_, err := New(Options{
		WorkDir:  dir,
		Stage:    stage.PreCommit,
		Config:   cfg,
		Executor: exec,
		Stdout:   &stdout,
		OnResult: func(r CheckResult) { seen = append(seen, r.Name) },
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "flake8 says hello")
	assert.Equal(t, checks.PythonQuality, seen[0])
}

func TestRunPolicyDeny(t *testing.T) {
	dir, wt := initRepo(t)
	stageFile(t, dir, wt, "app.py", "x = 1\n")
	exec := allTools(nil)
	delete(exec.tools, "gitleaks")

	policyPath := filepath.Join(t.TempDir(), "gate.rego")
	require.NoError(t, os.WriteFile(policyPath, []byte(`package hookgate

deny contains msg if {
	some r in input.results
	r.name == "security-check"
	r.status == "skipped"
	msg := "secret scanning did not run"
}
`), 0o644))
	policy, err := LoadPolicy(context.Background(), policyPath)
	require.NoError(t, err)

	res, err := New(Options{WorkDir: dir, Stage: stage.PreCommit, Config: newConfig(t), Executor: exec, Policy: policy}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exitcode.ChecksFailed, res.Decision.ExitCode)
	assert.Contains(t, res.Decision.Reasons, "secret scanning did not run")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
