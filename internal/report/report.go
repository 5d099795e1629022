// Package report renders run results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cbergstrom/laddr/internal/executor"
	"github.com/cbergstrom/laddr/pkg/models"
)

// WriteJSON writes the full run result as indented JSON.
func WriteJSON(w io.Writer, run *executor.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// WriteSummary renders a human-readable run summary: per-stage outcomes,
// the escalation trail, and the cost accounting.
func WriteSummary(w io.Writer, run *executor.RunResult) {
	header := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	header.Fprintf(w, "Workflow: %s\n", run.Workflow)
	if run.Success {
		green.Fprintln(w, "✓ completed")
	} else {
		red.Fprintf(w, "✗ failed (%s)", run.FailureKind)
		if run.FailureReason != "" {
			fmt.Fprintf(w, ": %s", run.FailureReason)
		}
		fmt.Fprintln(w)
	}

	if len(run.Stages) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "Stages")
		for _, stage := range run.Stages {
			if stage.Skipped {
				yellow.Fprintf(w, "  - %s: skipped (%s)\n", stage.Name, stage.SkipReason)
				continue
			}
			fmt.Fprintf(w, "  - %s: %s tier, cost %.4f\n", stage.Name, stage.Tier, stage.Cost)
		}
	}

	if len(run.Progression) > 0 {
		fmt.Fprintln(w)
		header.Fprintln(w, "Escalation trail")
		for _, entry := range run.Progression {
			mark := red.Sprint("✗")
			if entry.Success {
				mark = green.Sprint("✓")
			}
			line := fmt.Sprintf("  %s %s @ %s", mark, entry.Stage, entry.Tier)
			if entry.Reason != "" {
				line += ": " + entry.Reason
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	header.Fprintln(w, "Cost")
	fmt.Fprintf(w, "  total:    %.4f\n", run.Report.TotalCost)
	fmt.Fprintf(w, "  baseline: %.4f (every stage at the terminal tier)\n", run.Report.BaselineCost)
	if run.Report.Savings > 0 {
		green.Fprintf(w, "  saved:    %.4f (%.1f%%)\n", run.Report.Savings, run.Report.SavingsPercent)
	} else {
		fmt.Fprintf(w, "  saved:    %.4f\n", run.Report.Savings)
	}

	if len(run.Report.ByTier) > 0 {
		fmt.Fprintln(w, "  by tier:")
		for _, tier := range tierOrder(run) {
			if cost, ok := run.Report.ByTier[tier]; ok {
				fmt.Fprintf(w, "    %s: %.4f\n", tier, cost)
			}
		}
	}
}

// tierOrder returns the distinct tiers in progression order so the
// breakdown reads cheapest first.
func tierOrder(run *executor.RunResult) []models.Tier {
	var order []models.Tier
	seen := make(map[models.Tier]bool)
	for _, entry := range run.Progression {
		if !seen[entry.Tier] {
			seen[entry.Tier] = true
			order = append(order, entry.Tier)
		}
	}
	for _, stage := range run.Stages {
		if stage.Tier != "" && !seen[stage.Tier] {
			seen[stage.Tier] = true
			order = append(order, stage.Tier)
		}
	}
	return order
}
