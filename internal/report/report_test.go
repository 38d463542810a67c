package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
)

func sampleResult(blocked bool) *orchestrator.Result {
	results := []orchestrator.CheckResult{
		{Name: checks.PythonQuality, Status: checks.StatusPassed, Critical: true, Elapsed: 1200 * time.Millisecond},
		{
			Name:        checks.SecurityCheck,
			Status:      checks.StatusFailed,
			Critical:    true,
			ExitCode:    1,
			FailingTool: "gitleaks",
			Snippet:     []string{"Finding: aws_secret_access_key = AKIA..."},
			Hints:       []string{"Remove the secret and rotate it"},
			LogPath:     "/tmp/hookgate-x/security-check.log",
			Elapsed:     300 * time.Millisecond,
		},
		{Name: checks.CodeMetrics, Status: checks.StatusSkipped, MissingTools: []string{"radon"}},
		{Name: checks.FileQuality, Status: checks.StatusSkipped, Notes: []string{"not applicable"}, NotApplicable: true},
	}
	summary := orchestrator.Summarize(results, 2*time.Second)
	decision := orchestrator.Decision{ExitCode: exitcode.Success}
	if blocked {
		decision = orchestrator.Decision{ExitCode: exitcode.ChecksFailed, Reasons: []string{"1 critical check(s) failed"}}
	}
	return &orchestrator.Result{
		RunID:     "run-1",
		Stage:     stage.PreCommit,
		Root:      "/repo",
		ChangeSet: changeset.New("/repo", []string{"app/main.py", "README.md"}, changeset.SourceStaged),
		Results:   results,
		Summary:   summary,
		Decision:  decision,
		LogDir:    "/tmp/hookgate-x",
	}
}

func TestWriteHuman(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHuman(&buf, sampleResult(true), HumanOptions{}))
	out := buf.String()

	assert.Contains(t, out, "hookgate Pre-Commit")
	assert.Contains(t, out, "2 file(s) from staged [python,markdown]")
	assert.Contains(t, out, IconPassed+" "+checks.PythonQuality)
	assert.Contains(t, out, IconFailed+" "+checks.SecurityCheck)
	assert.Contains(t, out, "failed [critical]")
	assert.Contains(t, out, "(gitleaks, exit 1)")
	assert.Contains(t, out, "Finding: aws_secret_access_key")
	assert.Contains(t, out, "hint: Remove the secret and rotate it")
	assert.Contains(t, out, "log: /tmp/hookgate-x/security-check.log")
	assert.Contains(t, out, "not installed: radon")
	assert.NotContains(t, out, checks.FileQuality, "plain skipped checks are hidden by default")
	assert.Contains(t, out, "Summary: 3 checks")
	assert.Contains(t, out, "1 skipped "+IconBullet+" 1 not applicable")
	assert.Contains(t, out, "Result: BLOCKED 1 critical check(s) failed")
	assert.NotContains(t, out, "\x1b[", "no escape codes without colour")
}

func TestWriteHumanShowSkipped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHuman(&buf, sampleResult(false), HumanOptions{ShowSkipped: true}))
	out := buf.String()

	assert.Contains(t, out, IconSkipped+" "+checks.FileQuality)
	assert.Contains(t, out, "not applicable")
	assert.Contains(t, out, "Result: PASSED with warnings")
}

func TestWriteHumanAlignsNames(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult(false)
	res.Results = []orchestrator.CheckResult{
		{Name: "a", Status: checks.StatusPassed},
		{Name: "longer-name", Status: checks.StatusPassed},
	}
	res.Summary = orchestrator.Summarize(res.Results, 0)
	require.NoError(t, WriteHuman(&buf, res, HumanOptions{}))

	assert.Contains(t, buf.String(), "a           passed")
	assert.Contains(t, buf.String(), "longer-name passed")
	assert.Contains(t, buf.String(), "Result: PASSED\n")
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, UseColor(&buf, false), "buffers are never terminals")

	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor(&buf, false))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "250ms", formatElapsed(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatElapsed(1500*time.Millisecond))
	assert.Equal(t, "2m5s", formatElapsed(125*time.Second))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult(true)))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "pre-commit", doc["stage"])
	assert.Equal(t, "run-1", doc["run_id"])

	summary := doc["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["critical_failures"])

	decision := doc["decision"].(map[string]interface{})
	assert.EqualValues(t, exitcode.ChecksFailed, decision["exit_code"])

	results := doc["results"].([]interface{})
	require.Len(t, results, 4)
	assert.Equal(t, "gitleaks", results[1].(map[string]interface{})["failing_tool"])
}

func TestWriteJUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJUnit(&buf, sampleResult(true)))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

	suite := doc.FindElement("//testsuite")
	require.NotNil(t, suite)
	assert.Equal(t, "hookgate.pre-commit", suite.SelectAttrValue("name", ""))
	assert.Equal(t, "3", suite.SelectAttrValue("tests", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))
	assert.Equal(t, "1", suite.SelectAttrValue("skipped", ""))

	cases := suite.SelectElements("testcase")
	require.Len(t, cases, 3, "checks that never applied are not test cases")

	failure := cases[1].SelectElement("failure")
	require.NotNil(t, failure)
	assert.Equal(t, "critical", failure.SelectAttrValue("type", ""))
	assert.Equal(t, "gitleaks exited with 1", failure.SelectAttrValue("message", ""))
	assert.Contains(t, failure.Text(), "hint: Remove the secret")

	skipped := cases[2].SelectElement("skipped")
	require.NotNil(t, skipped)
	assert.Equal(t, "not installed: radon", skipped.SelectAttrValue("message", ""))

	na := doc.FindElement("//property[@name='checks.not_applicable']")
	require.NotNil(t, na)
	assert.Equal(t, "1", na.SelectAttrValue("value", ""))

	prop := doc.FindElement("//property[@name='exit_code']")
	require.NotNil(t, prop)
	assert.Equal(t, "1", prop.SelectAttrValue("value", ""))
}
