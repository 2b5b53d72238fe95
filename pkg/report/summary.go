package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/devicelab-dev/appui-runner/pkg/core"
)

// Status colors
var (
	passColor  = lipgloss.Color("#4ADE80")
	failColor  = lipgloss.Color("#F87171")
	skipColor  = lipgloss.Color("#FBBF24")
	mutedColor = lipgloss.Color("#64748B")
)

type summaryStyles struct {
	pass, fail, skip, muted, title lipgloss.Style
}

func newSummaryStyles(w io.Writer, colors bool) summaryStyles {
	r := lipgloss.NewRenderer(w)
	if colors {
		r.SetColorProfile(termenv.TrueColor)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return summaryStyles{
		pass:  r.NewStyle().Foreground(passColor).Bold(true),
		fail:  r.NewStyle().Foreground(failColor).Bold(true),
		skip:  r.NewStyle().Foreground(skipColor),
		muted: r.NewStyle().Foreground(mutedColor),
		title: r.NewStyle().Bold(true),
	}
}

func (s summaryStyles) badge(status core.Status) string {
	switch status {
	case core.StatusPassed:
		return s.pass.Render("PASS")
	case core.StatusFailed:
		return s.fail.Render("FAIL")
	case core.StatusErrored:
		return s.fail.Render("ERR ")
	case core.StatusSkipped:
		return s.skip.Render("SKIP")
	default:
		return s.muted.Render(strings.ToUpper(status.String()))
	}
}

// PrintSummary writes a per-scenario table followed by the run totals.
// Failed scenarios also list their steps up to the one that failed.
func PrintSummary(w io.Writer, result *core.RunResult, colors bool) {
	st := newSummaryStyles(w, colors)

	width := 0
	for _, sc := range result.Scenarios {
		if len(sc.Name) > width {
			width = len(sc.Name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.title.Render("Run "+result.RunID))
	for _, sc := range result.Scenarios {
		fmt.Fprintf(w, "  %s  %-*s  %s\n", st.badge(sc.Status), width, sc.Name,
			st.muted.Render(sc.Duration.Round(time.Millisecond).String()))

		if sc.Status.IsSuccess() {
			continue
		}
		for _, step := range sc.Steps {
			fmt.Fprintf(w, "        %s %s\n", st.badge(step.Status), step.Name)
		}
		if sc.Error != "" {
			fmt.Fprintf(w, "        %s\n", st.fail.Render(sc.Error))
		}
		for _, a := range sc.Attachments {
			fmt.Fprintf(w, "        %s %s\n", st.muted.Render(a.Name+":"), a.Path)
		}
	}

	totals := fmt.Sprintf("%d scenarios: %d passed, %d failed, %d skipped in %s",
		result.Total, result.Passed, result.Failed, result.Skipped, result.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
	if result.Success() {
		fmt.Fprintln(w, st.pass.Render(totals))
	} else {
		fmt.Fprintln(w, st.fail.Render(totals))
	}
}
