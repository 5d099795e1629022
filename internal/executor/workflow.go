package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cbergstrom/laddr/pkg/models"
)

// FailureKind classifies why a run failed, so callers can tell "quality
// gates were never satisfied" apart from unrelated system faults.
type FailureKind string

const (
	// FailureNone marks a successful run.
	FailureNone FailureKind = ""
	// FailureExhausted means a required stage failed at every tier.
	FailureExhausted FailureKind = "quality_exhausted"
	// FailureBudget means the run hit its spend ceiling and stopped
	// scheduling stages.
	FailureBudget FailureKind = "budget_exceeded"
	// FailureFault covers everything that is not a quality outcome:
	// malformed stage specs discovered mid-run and similar engine faults.
	FailureFault FailureKind = "system_fault"
)

// WorkflowSpec describes a multi-stage run.
type WorkflowSpec struct {
	// Name identifies the workflow in checkpoints and reports.
	Name string
	// Stages run in order; each is driven through the ladder on its own.
	Stages []StageSpec
	// MaxBudget is the optional spend ceiling; 0 means unlimited. When
	// the cost so far reaches it, no further stage is scheduled.
	MaxBudget float64
}

// RunResult is the outcome of a full workflow run.
type RunResult struct {
	// Workflow is the spec name.
	Workflow string `json:"workflow"`
	// Success is true only if every non-optional stage was accepted.
	Success bool `json:"success"`
	// FailureKind and FailureReason classify failures; empty on success.
	FailureKind   FailureKind `json:"failure_kind,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
	// Stages is the official ordered output: one result per stage that
	// succeeded or was restored from a checkpoint.
	Stages []models.StageResult `json:"stages"`
	// Progression is the complete audit trail of every attempt.
	Progression []models.TierProgressionEntry `json:"progression"`
	// Report is the cost accounting against the terminal-tier baseline.
	Report models.CostReport `json:"report"`
}

// RunWorkflow drives every stage of the spec through the ladder,
// checkpointing after each stage so a restarted process resumes instead
// of repeating paid work. The returned error is reserved for
// configuration problems; quality and budget failures land in the result.
func (r *Runner) RunWorkflow(ctx context.Context, spec WorkflowSpec) (*RunResult, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("workflow requires a name")
	}
	if len(spec.Stages) == 0 {
		return nil, fmt.Errorf("workflow %s has no stages", spec.Name)
	}
	for _, stage := range spec.Stages {
		if stage.Name == "" {
			return nil, fmt.Errorf("workflow %s contains an unnamed stage", spec.Name)
		}
		if stage.Validator == nil {
			return nil, fmt.Errorf("stage %s requires a validator", stage.Name)
		}
		if stage.StartTier != "" && !r.ladder.Contains(stage.StartTier) {
			return nil, fmt.Errorf("stage %s starts at unknown tier %q", stage.Name, stage.StartTier)
		}
		if stage.Policy != nil {
			if err := stage.Policy.Validate(); err != nil {
				return nil, fmt.Errorf("stage %s policy: %w", stage.Name, err)
			}
		}
	}

	cp := r.restoreCheckpoint(spec.Name)
	restored := make(map[string]CompletedStage, len(cp.CompletedStages))
	for _, done := range cp.CompletedStages {
		restored[done.Name] = done
	}

	run := &RunResult{Workflow: spec.Name, Success: true}

	for _, stage := range spec.Stages {
		if done, ok := restored[stage.Name]; ok {
			r.logger.Log("workflow %s: stage %s restored from checkpoint (tier=%s)", spec.Name, stage.Name, done.Tier)
			run.Stages = append(run.Stages, models.StageResult{
				Name:       stage.Name,
				Tier:       done.Tier,
				Skipped:    true,
				SkipReason: "restored from checkpoint",
			})
			continue
		}

		if spec.MaxBudget > 0 && cp.CostSoFar >= spec.MaxBudget {
			run.Success = false
			run.FailureKind = FailureBudget
			run.FailureReason = fmt.Sprintf("budget %.4f reached before stage %s (spent %.4f)",
				spec.MaxBudget, stage.Name, cp.CostSoFar)
			r.logger.Log("workflow %s: %s", spec.Name, run.FailureReason)
			break
		}

		result, progression, err := r.runStage(ctx, stage, cp)
		run.Progression = append(run.Progression, progression...)

		if err != nil {
			var exhausted *ExhaustedError
			if !errors.As(err, &exhausted) {
				run.Success = false
				run.FailureKind = FailureFault
				run.FailureReason = err.Error()
				break
			}
			if stage.Optional {
				r.logger.Log("workflow %s: optional stage %s exhausted, continuing: %v", spec.Name, stage.Name, err)
				continue
			}
			run.Success = false
			run.FailureKind = FailureExhausted
			run.FailureReason = err.Error()
			break
		}

		run.Stages = append(run.Stages, *result)
		cp.CompletedStages = append(cp.CompletedStages, CompletedStage{
			Name: result.Name,
			Tier: result.Tier,
			Cost: result.Cost,
		})
		cp.CostSoFar += result.Cost
		cp.Current = nil
		r.saveCheckpoint(cp)
	}

	// A finished workflow clears its checkpoint so a later invocation is
	// a fresh run, not a resume of nothing.
	if run.Success {
		r.saveCheckpoint(&Checkpoint{Workflow: spec.Name})
	}

	run.Report = models.NewCostReport(run.Stages, r.ladder)
	r.archiveProgression(run.Progression)
	return run, nil
}

// restoreCheckpoint loads the agent's last checkpoint when it belongs to
// this workflow; anything else starts fresh. Load faults are logged and
// treated as a fresh start.
func (r *Runner) restoreCheckpoint(workflow string) *Checkpoint {
	fresh := &Checkpoint{Workflow: workflow}
	if r.store == nil {
		return fresh
	}

	blob, err := r.store.GetLastCheckpoint(r.agentID)
	if err != nil {
		r.logger.Log("store: checkpoint load failed, starting fresh: %v", err)
		return fresh
	}
	if len(blob) == 0 {
		return fresh
	}

	var cp Checkpoint
	if err := json.Unmarshal(blob, &cp); err != nil {
		r.logger.Log("store: checkpoint unreadable, starting fresh: %v", err)
		return fresh
	}
	if cp.Workflow != workflow {
		return fresh
	}
	cp.Current = nil
	return &cp
}

func (r *Runner) archiveProgression(entries []models.TierProgressionEntry) {
	if r.archive == nil || len(entries) == 0 {
		return
	}
	if err := r.archive.RecordProgression(r.agentID, entries); err != nil {
		r.logger.Log("store: progression archive failed: %v", err)
	}
}
