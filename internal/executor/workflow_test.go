package executor

import (
	"context"
	"math"
	"testing"

	"github.com/cbergstrom/laddr/internal/policy"
	"github.com/cbergstrom/laddr/internal/store"
	"github.com/cbergstrom/laddr/pkg/models"
)

func closeTo(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func passValidator() Validator {
	return &ScriptedValidator{Outcomes: []models.ValidationOutcome{{Passed: true}}}
}

func failValidator(reason string) Validator {
	return &ScriptedValidator{Outcomes: []models.ValidationOutcome{{Passed: false, Reason: reason}}}
}

func TestRunWorkflow_SpecErrors(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	tests := []struct {
		name string
		spec WorkflowSpec
	}{
		{"missing name", WorkflowSpec{Stages: []StageSpec{{Name: "a", Validator: passValidator()}}}},
		{"no stages", WorkflowSpec{Name: "empty"}},
		{"unnamed stage", WorkflowSpec{Name: "w", Stages: []StageSpec{{Validator: passValidator()}}}},
		{"missing validator", WorkflowSpec{Name: "w", Stages: []StageSpec{{Name: "a"}}}},
		{"unknown start tier", WorkflowSpec{Name: "w", Stages: []StageSpec{{Name: "a", Validator: passValidator(), StartTier: "luxury"}}}},
		{"bad stage policy", WorkflowSpec{Name: "w", Stages: []StageSpec{{Name: "a", Validator: passValidator(), Policy: &policy.Config{Mode: "eager"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.RunWorkflow(context.Background(), tt.spec); err == nil {
				t.Error("RunWorkflow() error = nil, want spec validation error")
			}
		})
	}
}

func TestRunWorkflow_CostAgainstTerminalBaseline(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	spec := WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "extract", Validator: passValidator()},
			{Name: "review", Validator: &ScriptedValidator{Outcomes: []models.ValidationOutcome{
				{Passed: false, Reason: "shallow"},
				{Passed: false, Reason: "still shallow"},
				{Passed: true},
			}}},
		},
	}

	run, err := r.RunWorkflow(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if !run.Success {
		t.Fatalf("run failed: %s %s", run.FailureKind, run.FailureReason)
	}
	if len(run.Stages) != 2 {
		t.Fatalf("stage count = %d, want 2", len(run.Stages))
	}
	if run.Stages[0].Tier != models.TierCheap || run.Stages[1].Tier != models.TierPremium {
		t.Errorf("stage tiers = %s, %s; want cheap, premium", run.Stages[0].Tier, run.Stages[1].Tier)
	}

	// extract at cheap (0.01) + review at premium (0.25), against a
	// baseline of both stages at premium.
	if !closeTo(run.Report.TotalCost, 0.26) {
		t.Errorf("TotalCost = %v, want 0.26", run.Report.TotalCost)
	}
	if !closeTo(run.Report.BaselineCost, 0.50) {
		t.Errorf("BaselineCost = %v, want 0.50", run.Report.BaselineCost)
	}
	if !closeTo(run.Report.Savings, 0.24) {
		t.Errorf("Savings = %v, want 0.24", run.Report.Savings)
	}
}

func TestRunWorkflow_SingleStageEscalationCostsPremiumUnit(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	spec := WorkflowSpec{
		Name: "solo",
		Stages: []StageSpec{
			{Name: "review", Validator: &ScriptedValidator{Outcomes: []models.ValidationOutcome{
				{Passed: false},
				{Passed: false},
				{Passed: true},
			}}},
		},
	}

	run, err := r.RunWorkflow(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if !closeTo(run.Report.TotalCost, 0.25) {
		t.Errorf("TotalCost = %v, want the premium unit cost", run.Report.TotalCost)
	}
	if !closeTo(run.Report.Savings, 0) {
		t.Errorf("Savings = %v, want 0 at the terminal tier", run.Report.Savings)
	}
}

func TestRunWorkflow_RequiredStageExhaustion(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	spec := WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "extract", Validator: failValidator("garbage in")},
			{Name: "review", Validator: passValidator()},
		},
	}

	run, err := r.RunWorkflow(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if run.Success {
		t.Error("run succeeded despite required stage exhaustion")
	}
	if run.FailureKind != FailureExhausted {
		t.Errorf("FailureKind = %q, want %q", run.FailureKind, FailureExhausted)
	}
	if len(run.Stages) != 0 {
		t.Errorf("stage results = %d, want none; review must not run after extract fails", len(run.Stages))
	}
}

func TestRunWorkflow_OptionalStageExhaustionContinues(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	spec := WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "lint", Optional: true, Validator: failValidator("noise")},
			{Name: "review", Validator: passValidator()},
		},
	}

	run, err := r.RunWorkflow(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if !run.Success {
		t.Fatalf("run failed: %s %s", run.FailureKind, run.FailureReason)
	}
	if len(run.Stages) != 1 || run.Stages[0].Name != "review" {
		t.Fatalf("stage results = %+v, want just review", run.Stages)
	}

	// The optional stage's attempts still show up in the audit trail.
	sawLint := false
	for _, entry := range run.Progression {
		if entry.Stage == "lint" {
			sawLint = true
		}
	}
	if !sawLint {
		t.Error("optional stage attempts missing from progression")
	}
}

func TestRunWorkflow_BudgetGuard(t *testing.T) {
	r := failFastRunner(t, NewMockBackend())

	spec := WorkflowSpec{
		Name:      "pipeline",
		MaxBudget: 0.01,
		Stages: []StageSpec{
			{Name: "extract", Validator: passValidator()},
			{Name: "review", Validator: passValidator()},
		},
	}

	run, err := r.RunWorkflow(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if run.Success {
		t.Error("run succeeded despite blowing the budget")
	}
	if run.FailureKind != FailureBudget {
		t.Errorf("FailureKind = %q, want %q", run.FailureKind, FailureBudget)
	}
	if len(run.Stages) != 1 || run.Stages[0].Name != "extract" {
		t.Errorf("stage results = %+v, want just extract", run.Stages)
	}
}

func TestRunWorkflow_ResumesFromCheckpoint(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	newRunner := func(backend Backend) *Runner {
		r, err := NewRunner(RunnerConfig{
			Ladder:  models.DefaultLadder(),
			Backend: backend,
			Policy:  &policy.Config{Mode: policy.ModeFailFast},
			Store:   fileStore,
			AgentID: "pipeline-agent",
		})
		if err != nil {
			t.Fatalf("NewRunner() error = %v", err)
		}
		return r
	}

	// First run: extract succeeds, review exhausts every tier.
	first := newRunner(NewMockBackend())
	run, err := first.RunWorkflow(context.Background(), WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "extract", Validator: passValidator()},
			{Name: "review", Validator: failValidator("not yet")},
		},
	})
	if err != nil {
		t.Fatalf("first RunWorkflow() error = %v", err)
	}
	if run.Success || run.FailureKind != FailureExhausted {
		t.Fatalf("first run = %+v, want exhaustion", run)
	}

	// Second run with the same agent picks up the checkpoint: extract is
	// restored without a backend call, review runs again and passes.
	backend := NewMockBackend()
	second := newRunner(backend)
	run, err = second.RunWorkflow(context.Background(), WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "extract", Validator: passValidator()},
			{Name: "review", Validator: passValidator()},
		},
	})
	if err != nil {
		t.Fatalf("second RunWorkflow() error = %v", err)
	}
	if !run.Success {
		t.Fatalf("second run failed: %s %s", run.FailureKind, run.FailureReason)
	}

	for _, call := range backend.Calls() {
		if call.Stage == "extract" {
			t.Error("restored stage was re-executed")
		}
	}

	if len(run.Stages) != 2 {
		t.Fatalf("stage count = %d, want 2", len(run.Stages))
	}
	if !run.Stages[0].Skipped || run.Stages[0].SkipReason == "" {
		t.Errorf("restored stage = %+v, want skipped with reason", run.Stages[0])
	}

	// Restored stages were paid for in a previous run; the report covers
	// only this run's spend.
	if !closeTo(run.Report.TotalCost, 0.01) {
		t.Errorf("TotalCost = %v, want just the review stage at cheap", run.Report.TotalCost)
	}

	// Success clears the checkpoint, so a third invocation starts fresh.
	backend = NewMockBackend()
	third := newRunner(backend)
	run, err = third.RunWorkflow(context.Background(), WorkflowSpec{
		Name: "pipeline",
		Stages: []StageSpec{
			{Name: "extract", Validator: passValidator()},
			{Name: "review", Validator: passValidator()},
		},
	})
	if err != nil {
		t.Fatalf("third RunWorkflow() error = %v", err)
	}
	for _, stage := range run.Stages {
		if stage.Skipped {
			t.Errorf("stage %s restored after the workflow already completed", stage.Name)
		}
	}
}

func TestRunWorkflow_ChecksDifferentWorkflowCheckpointIsIgnored(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	r, err := NewRunner(RunnerConfig{
		Ladder:  models.DefaultLadder(),
		Backend: NewMockBackend(),
		Policy:  &policy.Config{Mode: policy.ModeFailFast},
		Store:   fileStore,
		AgentID: "pipeline-agent",
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	if err := fileStore.SaveCheckpoint("pipeline-agent", Checkpoint{
		Workflow:        "other-pipeline",
		CompletedStages: []CompletedStage{{Name: "extract", Tier: models.TierCheap, Cost: 0.01}},
	}); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}

	run, err := r.RunWorkflow(context.Background(), WorkflowSpec{
		Name:   "pipeline",
		Stages: []StageSpec{{Name: "extract", Validator: passValidator()}},
	})
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if run.Stages[0].Skipped {
		t.Error("stage restored from another workflow's checkpoint")
	}
}
