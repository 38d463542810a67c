// Package report renders run results for people (terminal) and machines (JSON, JUnit).
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/orchestrator"
)

// Icons for check states.
const (
	IconPassed  = "✓"
	IconFailed  = "✗"
	IconSkipped = "○"
	IconBullet  = "•"
)

type styles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	failure  lipgloss.Style
	critical lipgloss.Style
	bold     lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#6C7A80")),
		success:  r.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
		warning:  r.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
		failure:  r.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
		critical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C")),
		bold:     r.NewStyle().Bold(true),
	}
}

// UseColor reports whether w is a terminal that should receive colour.
func UseColor(w io.Writer, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// HumanOptions tune the terminal report.
type HumanOptions struct {
	Color bool
	// ShowSkipped lists checks that did not run; otherwise only counts are shown.
	ShowSkipped bool
}

// WriteHuman prints the per-check lines, failure details and the closing summary.
func WriteHuman(w io.Writer, res *orchestrator.Result, opts HumanOptions) error {
	st := newStyles(w, opts.Color)
	var sb strings.Builder

	title := cases.Title(language.English).String(res.Stage.String())
	header := fmt.Sprintf("hookgate %s", title)
	scope := ""
	if cs := res.ChangeSet; cs != nil {
		scope = fmt.Sprintf("%d file(s) from %s", cs.Len(), cs.Source)
		if cats := cs.Categories.String(); cats != "" {
			scope += " [" + cats + "]"
		}
	}
	fmt.Fprintf(&sb, "%s %s\n", st.title.Render(header), st.muted.Render(scope))

	width := nameWidth(res.Results)
	for _, r := range res.Results {
		if r.Status == checks.StatusSkipped && !opts.ShowSkipped && !hasMissingTools(r) {
			continue
		}
		writeCheckLine(&sb, st, r, width)
	}

	s := res.Summary
	notApplicable := ""
	if s.NotApplicable > 0 {
		notApplicable = fmt.Sprintf(" %s %d not applicable", IconBullet, s.NotApplicable)
	}
	fmt.Fprintf(&sb, "\n%s %d checks %s %d passed %s %d failed (%d critical, %d advisory) %s %d skipped%s %s %s\n",
		st.bold.Render("Summary:"), s.Total, IconBullet, s.Passed, IconBullet, s.Failed,
		s.CriticalFailures, s.AdvisoryFailures, IconBullet, s.Skipped, notApplicable, IconBullet, formatElapsed(s.Elapsed))

	if res.Decision.Blocked() {
		fmt.Fprintf(&sb, "%s %s\n", st.critical.Render("Result: BLOCKED"), strings.Join(res.Decision.Reasons, "; "))
	} else if s.Failed > 0 {
		fmt.Fprintf(&sb, "%s %s\n", st.warning.Render("Result: PASSED with warnings"), st.muted.Render("failures are below the configured thresholds"))
	} else {
		fmt.Fprintf(&sb, "%s\n", st.success.Render("Result: PASSED"))
	}
	if len(res.Restaged) > 0 {
		fmt.Fprintf(&sb, "%s %s\n", st.muted.Render("Re-staged:"), strings.Join(res.Restaged, ", "))
	}
	if res.LogDir != "" && s.Failed > 0 {
		fmt.Fprintf(&sb, "%s %s\n", st.muted.Render("Logs:"), res.LogDir)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeCheckLine(sb *strings.Builder, st styles, r orchestrator.CheckResult, width int) {
	name := runewidth.FillRight(r.Name, width)
	elapsed := ""
	if r.Elapsed > 0 {
		elapsed = st.muted.Render(formatElapsed(r.Elapsed))
	}

	switch r.Status {
	case checks.StatusPassed:
		fmt.Fprintf(sb, "  %s %s %s %s\n", st.success.Render(IconPassed), name, st.success.Render("passed"), elapsed)
	case checks.StatusFailed:
		var label string
		if r.Critical {
			label = st.critical.Render("failed [critical]")
		} else {
			label = st.warning.Render("failed [advisory]")
		}
		detail := ""
		if r.FailingTool != "" {
			detail = st.muted.Render(fmt.Sprintf("(%s, exit %d)", r.FailingTool, r.ExitCode))
		}
		fmt.Fprintf(sb, "  %s %s %s %s %s\n", st.failure.Render(IconFailed), name, label, detail, elapsed)
		for _, line := range r.Snippet {
			fmt.Fprintf(sb, "      %s\n", line)
		}
		for _, h := range r.Hints {
			fmt.Fprintf(sb, "      %s %s\n", st.bold.Render("hint:"), h)
		}
		if r.LogPath != "" {
			fmt.Fprintf(sb, "      %s %s\n", st.muted.Render("log:"), r.LogPath)
		}
	default:
		reason := strings.Join(r.Notes, "; ")
		if len(r.MissingTools) > 0 {
			reason = "not installed: " + strings.Join(r.MissingTools, ", ")
		}
		fmt.Fprintf(sb, "  %s %s %s %s\n", st.muted.Render(IconSkipped), name, st.muted.Render("skipped"), st.muted.Render(reason))
	}
}

func nameWidth(results []orchestrator.CheckResult) int {
	w := 0
	for _, r := range results {
		if n := runewidth.StringWidth(r.Name); n > w {
			w = n
		}
	}
	return w
}

func hasMissingTools(r orchestrator.CheckResult) bool {
	return len(r.MissingTools) > 0
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
