package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/cbergstrom/laddr/internal/policy"
	"github.com/cbergstrom/laddr/internal/store"
	"github.com/cbergstrom/laddr/pkg/models"
)

// StageSpec describes one stage or generation task to drive through the
// ladder.
type StageSpec struct {
	// Name identifies the stage in records and reports.
	Name string
	// Input is the opaque input handed to the backend on every attempt.
	Input string
	// StartTier is the first rung to try; empty means the ladder's
	// cheapest tier.
	StartTier models.Tier
	// Optional stages may exhaust the ladder without failing the run.
	Optional bool
	// Validator judges each attempt's payload.
	Validator Validator
	// Policy overrides the runner's escalation policy for this stage.
	Policy *policy.Config
}

// Runner executes stages against a tier ladder. The state store is
// optional: when absent, persistence calls are skipped; when present,
// store faults are logged and never change a run's outcome.
type Runner struct {
	ladder  *models.Ladder
	backend Backend
	policy  *policy.Config
	store   store.Store
	archive *store.Archive
	agentID string
	role    string
	logger  *DebugLogger
}

// RunnerConfig assembles a Runner. Ladder, Backend, and Policy are
// required; everything else is optional.
type RunnerConfig struct {
	Ladder  *models.Ladder
	Backend Backend
	Policy  *policy.Config
	Store   store.Store
	Archive *store.Archive
	AgentID string
	Role    string
	Logger  *DebugLogger
}

// NewRunner validates the configuration and builds a Runner. Malformed
// configuration fails here, before any attempt is made.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Ladder == nil {
		return nil, fmt.Errorf("runner requires a tier ladder")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("runner requires an execution backend")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("runner requires an escalation policy")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escalation policy: %w", err)
	}
	if cfg.Store != nil && cfg.AgentID != "" {
		if _, err := store.SanitizeAgentID(cfg.AgentID); err != nil {
			return nil, fmt.Errorf("invalid agent id: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &DebugLogger{}
	}
	return &Runner{
		ladder:  cfg.Ladder,
		backend: cfg.Backend,
		policy:  cfg.Policy,
		store:   cfg.Store,
		archive: cfg.Archive,
		agentID: cfg.AgentID,
		role:    cfg.Role,
		logger:  logger,
	}, nil
}

// Checkpoint is the opaque progress blob the runner persists around every
// attempt so a restarted process can resume instead of repeating paid
// work.
type Checkpoint struct {
	Workflow        string           `json:"workflow,omitempty"`
	CompletedStages []CompletedStage `json:"completed_stages,omitempty"`
	CostSoFar       float64          `json:"cost_so_far"`
	Current         *StagePosition   `json:"current,omitempty"`
	SavedAt         time.Time        `json:"saved_at"`
}

// CompletedStage records a finished stage inside a checkpoint.
type CompletedStage struct {
	Name string      `json:"name"`
	Tier models.Tier `json:"tier"`
	Cost float64     `json:"cost"`
}

// StagePosition locates the in-flight attempt inside a checkpoint.
type StagePosition struct {
	Stage   string      `json:"stage"`
	Tier    models.Tier `json:"tier"`
	Attempt int         `json:"attempt"`
	Done    bool        `json:"done"`
}

// RunStage drives one stage from its starting tier to a terminal
// decision. On success it returns the accepted attempt as a StageResult
// plus the full progression trail, earlier failures included. On
// exhaustion the error is an *ExhaustedError naming every tier tried.
func (r *Runner) RunStage(ctx context.Context, spec StageSpec) (*models.StageResult, []models.TierProgressionEntry, error) {
	return r.runStage(ctx, spec, &Checkpoint{})
}

func (r *Runner) runStage(ctx context.Context, spec StageSpec, cp *Checkpoint) (*models.StageResult, []models.TierProgressionEntry, error) {
	if spec.Name == "" {
		return nil, nil, fmt.Errorf("stage requires a name")
	}
	if spec.Validator == nil {
		return nil, nil, fmt.Errorf("stage %s requires a validator", spec.Name)
	}

	pol := spec.Policy
	if pol == nil {
		pol = r.policy
	} else if err := pol.Validate(); err != nil {
		return nil, nil, fmt.Errorf("stage %s policy: %w", spec.Name, err)
	}

	tier := spec.StartTier
	if tier == "" {
		tier = r.ladder.First()
	}
	if !r.ladder.Contains(tier) {
		return nil, nil, fmt.Errorf("stage %s starts at unknown tier %q", spec.Name, tier)
	}

	execID := r.recordStart(spec)

	var (
		progression []models.TierProgressionEntry
		tried       []TierFailure
		attempts    []models.AttemptRecord
		tierScores  []float64
		attempt     = 1
	)

	for {
		if err := ctx.Err(); err != nil {
			r.recordFailure(execID, err.Error())
			return nil, progression, fmt.Errorf("stage %s: %w", spec.Name, err)
		}

		cp.Current = &StagePosition{Stage: spec.Name, Tier: tier, Attempt: attempt}
		r.saveCheckpoint(cp)

		started := time.Now()
		result, outcome := r.attempt(ctx, spec, tier)
		duration := time.Since(started)

		if outcome.Score != nil {
			tierScores = append(tierScores, *outcome.Score)
		}

		decision := pol.Decide(r.ladder, tier, attempt, outcome, tierScores)
		r.logger.Log("stage %s: tier=%s attempt=%d passed=%v score=%v decision=%s reason=%q",
			spec.Name, tier, attempt, outcome.Passed, formatScore(outcome.Score), decision, outcome.Reason)

		accepted := decision == policy.DecisionStopSuccess
		progression = append(progression, models.TierProgressionEntry{
			Stage:   spec.Name,
			Tier:    tier,
			Success: accepted,
			Reason:  outcome.Reason,
		})

		rec := models.AttemptRecord{
			Stage:     spec.Name,
			Tier:      tier,
			Attempt:   attempt,
			Timestamp: time.Now().UTC(),
			Success:   accepted,
			Reason:    outcome.Reason,
			Score:     outcome.Score,
		}
		if result != nil {
			rec.Result = result.Payload
		}
		attempts = append(attempts, rec)

		cp.Current.Done = accepted
		r.saveCheckpoint(cp)

		switch decision {
		case policy.DecisionStopSuccess:
			stageResult := &models.StageResult{
				Name:     spec.Name,
				Tier:     tier,
				Cost:     r.ladder.UnitCost(tier),
				Duration: duration,
			}
			if result != nil {
				stageResult.InputUnits = result.InputUnits
				stageResult.OutputUnits = result.OutputUnits
				stageResult.Result = result.Payload
			}
			r.recordCompletion(execID, stageResult, attempts, outcome.Score)
			return stageResult, progression, nil

		case policy.DecisionRetrySameTier:
			attempt++

		case policy.DecisionEscalate:
			tried = append(tried, TierFailure{Tier: tier, Reason: outcome.Reason})
			next, ok := r.ladder.Next(tier)
			if !ok {
				// Decide remaps terminal escalations, so this is a
				// programmer error worth surfacing loudly.
				return nil, progression, fmt.Errorf("stage %s: escalation past terminal tier %s", spec.Name, tier)
			}
			tier = next
			attempt = 1
			tierScores = nil

		case policy.DecisionStopExhausted:
			tried = append(tried, TierFailure{Tier: tier, Reason: outcome.Reason})
			err := &ExhaustedError{Stage: spec.Name, Tried: tried}
			r.recordFailure(execID, err.Error())
			return nil, progression, err
		}
	}
}

// attempt executes one backend call and validates its payload. A backend
// error (transport failure, timeout, cancellation) is folded into a
// failed outcome so it drives escalation like any other failure.
func (r *Runner) attempt(ctx context.Context, spec StageSpec, tier models.Tier) (*BackendResult, models.ValidationOutcome) {
	result, err := r.backend.Execute(ctx, spec.Name, tier, spec.Input)
	if err != nil {
		return nil, models.ValidationOutcome{
			Passed: false,
			Reason: fmt.Sprintf("backend error: %v", err),
		}
	}
	return result, spec.Validator.Validate(result.Payload)
}

// Store helpers. Every call sits behind a log-and-continue boundary: a
// persistence fault must never change a run's outcome.

func (r *Runner) recordStart(spec StageSpec) string {
	if r.store == nil {
		return ""
	}
	execID, err := r.store.RecordStart(r.agentID, r.role, summarize(spec.Input))
	if err != nil {
		r.logger.Log("store: record start for stage %s failed: %v", spec.Name, err)
		return ""
	}
	return execID
}

func (r *Runner) saveCheckpoint(cp *Checkpoint) {
	if r.store == nil {
		return
	}
	cp.SavedAt = time.Now().UTC()
	if err := r.store.SaveCheckpoint(r.agentID, cp); err != nil {
		r.logger.Log("store: checkpoint save failed: %v", err)
	}
}

func (r *Runner) recordCompletion(execID string, result *models.StageResult, attempts []models.AttemptRecord, score *float64) {
	if r.store == nil || execID == "" {
		return
	}
	err := r.store.RecordCompletion(r.agentID, execID, true, attempts, score, result.Cost, result.Duration.Milliseconds())
	if err != nil {
		r.logger.Log("store: record completion for stage %s failed: %v", result.Name, err)
	}
}

func (r *Runner) recordFailure(execID, errMsg string) {
	if r.store == nil || execID == "" {
		return
	}
	if err := r.store.RecordFailure(r.agentID, execID, errMsg); err != nil {
		r.logger.Log("store: record failure failed: %v", err)
	}
}

func summarize(input string) string {
	const maxSummary = 120
	if len(input) <= maxSummary {
		return input
	}
	return input[:maxSummary] + "..."
}

func formatScore(score *float64) string {
	if score == nil {
		return "none"
	}
	return fmt.Sprintf("%.1f", *score)
}
