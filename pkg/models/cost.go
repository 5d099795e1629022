package models

import (
	"fmt"
	"sort"
	"strings"
)

// CostReport summarizes what a run actually spent against the baseline of
// running every stage once on the terminal tier.
type CostReport struct {
	// TotalCost is the actual spend across all stage results.
	TotalCost float64 `json:"total_cost"`
	// BaselineCost is the hypothetical spend with every stage on the
	// terminal tier.
	BaselineCost float64 `json:"baseline_cost"`
	// Savings is max(0, BaselineCost - TotalCost).
	Savings float64 `json:"savings"`
	// SavingsPercent is 100 * Savings / BaselineCost, 0 when the baseline
	// is zero.
	SavingsPercent float64 `json:"savings_percent"`
	// ByStage breaks actual cost down per stage name.
	ByStage map[string]float64 `json:"by_stage"`
	// ByTier breaks actual cost down per tier used.
	ByTier map[Tier]float64 `json:"by_tier"`
}

// NewCostReport builds a cost report from the official stage results.
// Skipped stages paid nothing and are excluded from the baseline as well,
// so a checkpoint-restored run does not report phantom savings.
func NewCostReport(stages []StageResult, ladder *Ladder) CostReport {
	report := CostReport{
		ByStage: make(map[string]float64),
		ByTier:  make(map[Tier]float64),
	}

	terminalCost := ladder.UnitCost(ladder.Terminal())
	for _, stage := range stages {
		if stage.Skipped {
			continue
		}
		report.TotalCost += stage.Cost
		report.BaselineCost += terminalCost
		report.ByStage[stage.Name] += stage.Cost
		report.ByTier[stage.Tier] += stage.Cost
	}

	if report.BaselineCost > report.TotalCost {
		report.Savings = report.BaselineCost - report.TotalCost
	}
	if report.BaselineCost > 0 {
		report.SavingsPercent = 100 * (report.BaselineCost - report.TotalCost) / report.BaselineCost
		if report.SavingsPercent < 0 {
			report.SavingsPercent = 0
		}
	}
	return report
}

// Summary renders a deterministic, human-readable digest of the report.
// Stage and tier lines are sorted by name so output is stable.
func (r CostReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total cost:    $%.4f\n", r.TotalCost)
	fmt.Fprintf(&sb, "baseline cost: $%.4f\n", r.BaselineCost)
	fmt.Fprintf(&sb, "savings:       $%.4f (%.1f%%)\n", r.Savings, r.SavingsPercent)

	if len(r.ByStage) > 0 {
		stages := make([]string, 0, len(r.ByStage))
		for name := range r.ByStage {
			stages = append(stages, name)
		}
		sort.Strings(stages)
		sb.WriteString("by stage:\n")
		for _, name := range stages {
			fmt.Fprintf(&sb, "  %s: $%.4f\n", name, r.ByStage[name])
		}
	}

	if len(r.ByTier) > 0 {
		tiers := make([]string, 0, len(r.ByTier))
		for tier := range r.ByTier {
			tiers = append(tiers, string(tier))
		}
		sort.Strings(tiers)
		sb.WriteString("by tier:\n")
		for _, tier := range tiers {
			fmt.Fprintf(&sb, "  %s: $%.4f\n", tier, r.ByTier[Tier(tier)])
		}
	}
	return sb.String()
}
