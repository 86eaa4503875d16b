package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/calyptra/redgraph/internal/architect"
	"github.com/calyptra/redgraph/internal/dag"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func statusStyle(s dag.TaskStatus) lipgloss.Style {
	switch s {
	case dag.StatusCompleted:
		return successStyle
	case dag.StatusFailed:
		return failStyle
	case dag.StatusSkipped:
		return skipStyle
	default:
		return dimStyle
	}
}

// printPlan renders a generated plan as the task lines the engine will run.
func printPlan(plan *dag.Plan) {
	fmt.Println(titleStyle.Render("Plan " + plan.ID))
	for _, t := range plan.Tasks {
		line := fmt.Sprintf("  %s. %s(%s)", t.ID, t.ToolName, renderArgs(t.Arguments))
		if len(t.DependsOn) > 0 {
			line += dimStyle.Render("  [depends: " + strings.Join(t.DependsOn, ", ") + "]")
		}
		fmt.Println(line)
	}
}

func renderArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := args[k].(type) {
		case string:
			if strings.HasPrefix(v, "$") {
				parts = append(parts, fmt.Sprintf("%s=%s", k, v))
			} else {
				parts = append(parts, fmt.Sprintf("%s=%q", k, v))
			}
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}

// printReport renders the run outcome: per-task lines, metrics, and the
// synthesis summary when one was produced.
func printReport(report *architect.Report) {
	res := report.Result

	fmt.Println(titleStyle.Render("Mission " + res.PlanID))
	for _, tr := range res.Tasks {
		style := statusStyle(tr.Status)
		line := fmt.Sprintf("  %-10s %s", style.Render(string(tr.Status)), tr.TaskID)
		if tr.RetryCount > 0 {
			line += dimStyle.Render(fmt.Sprintf("  (%d retries)", tr.RetryCount))
		}
		if tr.Error != "" {
			line += failStyle.Render("  " + tr.Error)
		}
		if tr.DurationMs > 0 {
			line += dimStyle.Render(fmt.Sprintf("  %dms", tr.DurationMs))
		}
		fmt.Println(line)
	}

	verdict := successStyle.Render("success")
	if !res.Success {
		verdict = failStyle.Render("failed")
	}
	fmt.Printf("\n%s  %d completed, %d failed, %d skipped  |  %d tool calls, peak parallelism %d, %s\n",
		verdict,
		res.Metrics.Completed, res.Metrics.Failed, res.Metrics.Skipped,
		res.Metrics.ToolCalls, res.Metrics.PeakParallelism,
		res.Metrics.Duration.Round(time.Millisecond))

	if report.Summary != "" {
		fmt.Println()
		fmt.Println(summaryStyle.Render(report.Summary))
	}
}
