package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rocmdev/rocmdev/pkg/reconcile"
	"github.com/rocmdev/rocmdev/pkg/stores"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	actStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// renderPlan renders the plan as a table of decided actions.
func renderPlan(plan *reconcile.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", headerStyle.Render(fmt.Sprintf("Plan %s (ROCm %s)", plan.ID, plan.Series)))
	fmt.Fprintf(&b, "  %-30s %-22s %-14s %s\n",
		headerStyle.Render("RESOURCE"), headerStyle.Render("OBSERVED"),
		headerStyle.Render("ACTION"), headerStyle.Render("NOTE"))

	for _, unit := range plan.Units {
		fmt.Fprintf(&b, "  %-30s %-22s %-14s %s\n",
			unit.Resource, unit.Observed, renderAction(unit.Action), unit.Reason)
	}

	s := plan.Summary
	fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf(
		"%d to install, %d to re-apply, %d group adds, %d files to write, %d up to date",
		s.ToInstall, s.ToReinstall, s.ToGroupAdd, s.ToWrite, s.ToSkip)))

	return b.String()
}

func renderAction(action reconcile.Action) string {
	if action == reconcile.ActionSkip {
		return skipStyle.Render(string(action))
	}
	return actStyle.Render(string(action))
}

// renderResult renders the per-unit outcomes and the run summary.
func renderResult(plan *reconcile.Plan, result *reconcile.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", headerStyle.Render("Run "+result.RunID))
	for _, unit := range plan.Units {
		fmt.Fprintf(&b, "  %-30s %-10s %s\n",
			unit.Resource, renderStatus(unit.Status), unit.Message)
	}

	fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf(
		"%d applied, %d skipped, %d warned, %d failed in %s",
		result.Applied, result.Skipped, result.Warned, result.Failed,
		result.Duration.Round(1e9))))

	if result.ReloginRequired {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render(
			"Group memberships changed: log out and back in before using the GPU or Docker."))
	}

	return b.String()
}

func renderStatus(status reconcile.UnitStatus) string {
	switch status {
	case reconcile.UnitStatusApplied:
		return okStyle.Render(string(status))
	case reconcile.UnitStatusWarned:
		return warnStyle.Render(string(status))
	case reconcile.UnitStatusFailed:
		return failStyle.Render(string(status))
	default:
		return skipStyle.Render(string(status))
	}
}

// renderRuns renders the journal run listing.
func renderRuns(runs []*stores.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "  %-36s %-10s %-8s %-10s %s\n",
		headerStyle.Render("RUN"), headerStyle.Render("STATUS"),
		headerStyle.Render("SCOPE"), headerStyle.Render("VERSION"),
		headerStyle.Render("STARTED"))

	for _, run := range runs {
		status := string(run.Status)
		switch run.Status {
		case stores.RunStatusCompleted:
			status = okStyle.Render(status)
		case stores.RunStatusFailed:
			status = failStyle.Render(status)
		case stores.RunStatusCancelled:
			status = warnStyle.Render(status)
		}
		fmt.Fprintf(&b, "  %-36s %-10s %-8s %-10s %s\n",
			run.ID, status, run.Scope, run.Version,
			run.StartedAt.Format("2006-01-02 15:04:05"))
	}

	return b.String()
}
