package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolatedEnv(t *testing.T, vars map[string]string) LookupEnv {
	t.Helper()
	m := map[string]string{"HOOKGATE_HOME": t.TempDir()}
	for k, v := range vars {
		m[k] = v
	}
	return MapEnv(m)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(t.TempDir(), isolatedEnv(t, nil))
	require.NoError(t, err)

	assert.True(t, cfg.FailOnHighSeverity)
	assert.False(t, cfg.FailOnMediumSeverity)
	assert.False(t, cfg.Verbose)
	assert.False(t, cfg.AutoFix)
	assert.Equal(t, 100, cfg.SampleLimit)
	assert.Equal(t, 4, cfg.KustomizeWorkers)
	assert.Equal(t, "local", cfg.ToolMode)
	assert.Empty(t, cfg.Source)
}

func TestLoadEnvironmentFlags(t *testing.T) {
	env := isolatedEnv(t, map[string]string{
		"FAIL_ON_HIGH_SEVERITY":   "false",
		"FAIL_ON_MEDIUM_SEVERITY": "yes",
		"VERBOSE":                 "1",
		"AUTO_FIX":                "true",
		"LOG_DIR":                 "/tmp/hg-logs",
		"SKIP":                    "code-metrics, license-check",
	})
	cfg, err := LoadWithEnv(t.TempDir(), env)
	require.NoError(t, err)

	assert.False(t, cfg.FailOnHighSeverity)
	assert.True(t, cfg.FailOnMediumSeverity)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.AutoFix)
	assert.Equal(t, "/tmp/hg-logs", cfg.LogDir)
	assert.Equal(t, []string{"code-metrics", "license-check"}, cfg.Skip)
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	env := isolatedEnv(t, map[string]string{
		"FAIL_ON_HIGH_SEVERITY":          "true",
		"HOOKGATE_FAIL_ON_HIGH_SEVERITY": "false",
	})
	cfg, err := LoadWithEnv(t.TempDir(), env)
	require.NoError(t, err)
	assert.False(t, cfg.FailOnHighSeverity)
}

func TestMalformedEnvironmentKeepsDefaults(t *testing.T) {
	env := isolatedEnv(t, map[string]string{
		"FAIL_ON_HIGH_SEVERITY":      "maybe",
		"AUTO_FIX":                   "sometimes",
		"HOOKGATE_SAMPLE_LIMIT":      "lots",
		"HOOKGATE_KUSTOMIZE_WORKERS": "0",
		"HOOKGATE_CHECK_TIMEOUT":     "soon",
		"HOOKGATE_TOOL_MODE":         "teleport",
	})
	cfg, err := LoadWithEnv(t.TempDir(), env)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.FailOnHighSeverity, cfg.FailOnHighSeverity)
	assert.Equal(t, d.AutoFix, cfg.AutoFix)
	assert.Equal(t, d.SampleLimit, cfg.SampleLimit)
	assert.Equal(t, d.KustomizeWorkers, cfg.KustomizeWorkers)
	assert.Equal(t, time.Duration(0), cfg.CheckTimeout)
	assert.Equal(t, "local", cfg.ToolMode)
}

func TestLoadRepoConfigFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hookgate.yaml", `
fail_on_medium_severity: true
sample_limit: 25
check_timeout: 90s
exclude:
  - "vendor/**"
checks:
  - name: unit-tests
    command: make
    args: ["test"]
    stages: ["pre-push"]
    critical: true
`)
	cfg, err := LoadWithEnv(root, isolatedEnv(t, nil))
	require.NoError(t, err)

	assert.True(t, cfg.FailOnMediumSeverity)
	assert.Equal(t, 25, cfg.SampleLimit)
	assert.Equal(t, 90*time.Second, cfg.CheckTimeout)
	assert.Equal(t, []string{"vendor/**"}, cfg.Exclude)
	require.Len(t, cfg.Checks, 1)
	assert.Equal(t, "unit-tests", cfg.Checks[0].Name)
	assert.Equal(t, []string{"test"}, cfg.Checks[0].Args)
	assert.True(t, cfg.Checks[0].Critical)
	assert.Contains(t, cfg.Source, ".hookgate.yaml")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hookgate.yaml", "fail_on_high_severity: true\n")

	cfg, err := LoadWithEnv(root, isolatedEnv(t, map[string]string{"FAIL_ON_HIGH_SEVERITY": "false"}))
	require.NoError(t, err)
	assert.False(t, cfg.FailOnHighSeverity)
}

func TestInvalidConfigFileIsIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hookgate.yaml", "fail_on_high_severity: \"definitely\"\nunknown_key: 1\n")

	cfg, err := LoadWithEnv(root, isolatedEnv(t, nil))
	require.NoError(t, err)
	assert.True(t, cfg.FailOnHighSeverity)
	assert.Empty(t, cfg.Source)
}

func TestPyprojectSection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", `
[project]
name = "demo"

[tool.hookgate]
auto_fix = true
skip = ["code-metrics"]
`)
	cfg, err := LoadWithEnv(root, isolatedEnv(t, nil))
	require.NoError(t, err)
	assert.True(t, cfg.AutoFix)
	assert.Equal(t, []string{"code-metrics"}, cfg.Skip)
	assert.Contains(t, cfg.Source, "pyproject.toml")
}

func TestPyprojectWithoutSection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", "[project]\nname = \"demo\"\n")

	section, err := ReadPyprojectSection(filepath.Join(root, "pyproject.toml"))
	require.NoError(t, err)
	assert.Nil(t, section)
}

func TestUserConfigFromHome(t *testing.T) {
	home := t.TempDir()
	writeFile(t, home, "config.yaml", "verbose: true\n")

	cfg, err := LoadWithEnv(t.TempDir(), MapEnv(map[string]string{"HOOKGATE_HOME": home}))
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument(map[string]interface{}{"auto_fix": true, "tool_mode": "auto"}))
	assert.Error(t, ValidateDocument(map[string]interface{}{"tool_mode": "teleport"}))
	assert.Error(t, ValidateDocument(map[string]interface{}{
		"checks": []interface{}{map[string]interface{}{"name": "no-command"}},
	}))
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"true", "1", "YES", "on", " t "} {
		b, err := ParseBool(in)
		require.NoError(t, err, in)
		assert.True(t, b, in)
	}
	for _, in := range []string{"false", "0", "no", "OFF"} {
		b, err := ParseBool(in)
		require.NoError(t, err, in)
		assert.False(t, b, in)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList("a, b  c"))
	assert.Empty(t, SplitList("  "))
}
