package models

import "time"

// ValidationOutcome is the normalized result of a quality check on one
// attempt's output. Fail-fast policies only look at Passed; gated policies
// also consume Score and StructuralErrors.
type ValidationOutcome struct {
	// Passed indicates the output met the validator's bar.
	Passed bool `json:"passed"`
	// Score is the composite quality score in [0,100], when the validator
	// produces one. Nil means the validator is pass/fail only.
	Score *float64 `json:"score,omitempty"`
	// Reason is a short diagnostic explaining a failure or a borderline pass.
	Reason string `json:"reason,omitempty"`
	// StructuralErrors counts syntax/structure-level defects found in the
	// output. The gated policy's hard-failure rule keys off this.
	StructuralErrors int `json:"structural_errors,omitempty"`
}

// AttemptRecord captures one execution attempt at one tier.
type AttemptRecord struct {
	// Stage is the stage or task name the attempt belongs to.
	Stage string `json:"stage"`
	// Tier is the ladder rung the attempt ran on.
	Tier Tier `json:"tier"`
	// Attempt is the 1-based attempt number, reset when the tier changes.
	Attempt int `json:"attempt"`
	// Timestamp is when the attempt finished.
	Timestamp time.Time `json:"timestamp"`
	// Result is the opaque payload produced by the backend, if any.
	Result any `json:"result,omitempty"`
	// Success indicates the attempt passed validation.
	Success bool `json:"success"`
	// Reason carries the failure diagnostic for unsuccessful attempts.
	Reason string `json:"reason,omitempty"`
	// Score is the quality score for the attempt, when available.
	Score *float64 `json:"score,omitempty"`
}

// TierProgressionEntry is one line of the append-only escalation audit
// trail. Every attempt produces an entry, failed ones included, so the
// trail is a superset of the final stage results.
type TierProgressionEntry struct {
	Stage   string `json:"stage"`
	Tier    Tier   `json:"tier"`
	Success bool   `json:"success"`
	// Reason is the final diagnostic for the attempt, empty on success.
	Reason string `json:"reason,omitempty"`
}

// StageResult records the final, successful attempt of one stage. The
// ordered list of stage results is the run's official output; the
// progression trail holds everything else.
type StageResult struct {
	// Name is the stage name.
	Name string `json:"name"`
	// Tier is the tier that produced the accepted output.
	Tier Tier `json:"tier"`
	// InputUnits and OutputUnits count backend-reported consumption,
	// typically tokens.
	InputUnits  int64 `json:"input_units"`
	OutputUnits int64 `json:"output_units"`
	// Cost is the unit cost actually paid for the accepted attempt.
	Cost float64 `json:"cost"`
	// Duration is the wall-clock time of the accepted attempt.
	Duration time.Duration `json:"duration"`
	// Skipped marks a stage that did not run, with the reason why
	// (checkpoint restore, disabled by config).
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Result is the opaque output payload. The engine never inspects it.
	Result any `json:"result,omitempty"`
}
