package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
)

// WriteJUnit renders one testsuite per run with one testcase per check, so
// CI systems can surface hook results next to unit tests.
func WriteJUnit(w io.Writer, res *orchestrator.Result) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	s := res.Summary
	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", "hookgate."+res.Stage.String())
	suite.CreateAttr("tests", fmt.Sprint(s.Total))
	suite.CreateAttr("failures", fmt.Sprint(s.Failed))
	suite.CreateAttr("skipped", fmt.Sprint(s.Skipped))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("time", seconds(s.Elapsed.Seconds()))
	if res.RunID != "" {
		suite.CreateAttr("id", res.RunID)
	}

	props := suite.CreateElement("properties")
	addProperty(props, "stage", res.Stage.String())
	if res.ChangeSet != nil {
		addProperty(props, "changeset.source", string(res.ChangeSet.Source))
		addProperty(props, "changeset.files", fmt.Sprint(res.ChangeSet.Len()))
	}
	addProperty(props, "exit_code", fmt.Sprint(res.Decision.ExitCode))
	addProperty(props, "checks.not_applicable", fmt.Sprint(s.NotApplicable))

	for _, r := range res.Results {
		if r.NotApplicable {
			continue
		}
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("classname", "hookgate."+res.Stage.String())
		tc.CreateAttr("name", r.Name)
		tc.CreateAttr("time", seconds(r.Elapsed.Seconds()))

		switch r.Status {
		case checks.StatusFailed:
			f := tc.CreateElement("failure")
			severity := "advisory"
			if r.Critical {
				severity = "critical"
			}
			f.CreateAttr("type", severity)
			msg := fmt.Sprintf("%s exited with %d", r.FailingTool, r.ExitCode)
			if r.FailingTool == "" {
				msg = fmt.Sprintf("exit code %d", r.ExitCode)
			}
			f.CreateAttr("message", msg)
			f.SetText(failureBody(r))
		case checks.StatusSkipped:
			sk := tc.CreateElement("skipped")
			reason := strings.Join(r.Notes, "; ")
			if len(r.MissingTools) > 0 {
				reason = "not installed: " + strings.Join(r.MissingTools, ", ")
			}
			if reason != "" {
				sk.CreateAttr("message", reason)
			}
		}
		if r.LogPath != "" {
			tc.CreateElement("system-out").SetText("log: " + r.LogPath)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func addProperty(parent *etree.Element, name, value string) {
	p := parent.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func failureBody(r orchestrator.CheckResult) string {
	var b strings.Builder
	for _, line := range r.Snippet {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, h := range r.Hints {
		b.WriteString("hint: ")
		b.WriteString(h)
		b.WriteByte('\n')
	}
	return b.String()
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
