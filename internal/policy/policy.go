// Package policy implements the escalation decision engine. Given the
// current tier, attempt count, and validation outcome for a stage, it
// decides whether to retry on the same tier, escalate to the next tier,
// or stop. This centralizes the threshold values that control escalation,
// enabling configuration and testing.
package policy

import (
	"fmt"

	"github.com/cbergstrom/laddr/pkg/models"
)

// Decision is the policy engine's verdict after one attempt.
type Decision int

const (
	// DecisionRetrySameTier repeats the attempt on the current tier.
	DecisionRetrySameTier Decision = iota
	// DecisionEscalate moves the stage to the next tier up the ladder.
	DecisionEscalate
	// DecisionStopSuccess accepts the current attempt's output.
	DecisionStopSuccess
	// DecisionStopExhausted gives up: the terminal tier failed.
	DecisionStopExhausted
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionRetrySameTier:
		return "retry_same_tier"
	case DecisionEscalate:
		return "escalate"
	case DecisionStopSuccess:
		return "stop_success"
	case DecisionStopExhausted:
		return "stop_exhausted"
	default:
		return "unknown"
	}
}

// Mode selects between the two escalation behaviors.
type Mode string

const (
	// ModeFailFast gives each tier exactly one attempt and escalates on
	// any failure. Used for workflow stages.
	ModeFailFast Mode = "fail_fast"
	// ModeGated requires a minimum number of attempts per tier and
	// escalates on hard failures or quality stagnation. Used for
	// iterative quality-driven generation.
	ModeGated Mode = "gated"
)

// Config contains the configurable policy parameters for one run.
type Config struct {
	// Mode selects fail-fast or gated escalation.
	Mode Mode `mapstructure:"mode"`

	// MinAttempts is the per-tier minimum attempt count before a gated
	// escalation (or acceptance) is even considered. Tiers absent from
	// the map inherit DefaultMinAttempts.
	MinAttempts map[models.Tier]int `mapstructure:"min_attempts"`

	// DefaultMinAttempts applies to tiers without an explicit entry.
	DefaultMinAttempts int `mapstructure:"default_min_attempts"`

	// EscalateBelow is the CQS threshold: gated attempts scoring at or
	// above it are accepted.
	EscalateBelow float64 `mapstructure:"escalate_below"`

	// MaxStructuralErrors is the hard-failure ceiling. When an outcome
	// reports at least this many structural errors, the stage escalates
	// regardless of attempt count. Zero disables the rule.
	MaxStructuralErrors int `mapstructure:"max_structural_errors"`

	// ImprovementThreshold is the minimum per-attempt CQS gain that
	// counts as progress for stagnation detection.
	ImprovementThreshold float64 `mapstructure:"improvement_threshold"`

	// ConsecutiveLimit is the number of consecutive below-threshold
	// improvements that marks a tier as stagnant.
	ConsecutiveLimit int `mapstructure:"consecutive_limit"`
}

// Default returns the default gated-mode policy configuration.
func Default() *Config {
	return &Config{
		Mode:                 ModeGated,
		DefaultMinAttempts:   2,
		EscalateBelow:        75,
		MaxStructuralErrors:  3,
		ImprovementThreshold: 5,
		ConsecutiveLimit:     2,
	}
}

// Validate checks that the policy parameters are within acceptable ranges.
// It fails fast so a malformed config never reaches a running stage.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFailFast, ModeGated:
	default:
		return fmt.Errorf("unknown policy mode %q", c.Mode)
	}
	if c.Mode == ModeFailFast {
		return nil
	}

	if c.DefaultMinAttempts < 1 {
		return fmt.Errorf("default_min_attempts must be at least 1, got %d", c.DefaultMinAttempts)
	}
	for tier, n := range c.MinAttempts {
		if n < 1 {
			return fmt.Errorf("min_attempts[%s] must be at least 1, got %d", tier, n)
		}
	}
	if c.EscalateBelow < 0 || c.EscalateBelow > 100 {
		return fmt.Errorf("escalate_below must be within [0,100], got %v", c.EscalateBelow)
	}
	if c.MaxStructuralErrors < 0 {
		return fmt.Errorf("max_structural_errors must not be negative, got %d", c.MaxStructuralErrors)
	}
	if c.ImprovementThreshold < 0 {
		return fmt.Errorf("improvement_threshold must not be negative, got %v", c.ImprovementThreshold)
	}
	if c.ConsecutiveLimit < 1 {
		return fmt.Errorf("consecutive_limit must be at least 1, got %d", c.ConsecutiveLimit)
	}
	return nil
}

// MinAttemptsFor returns the minimum attempt count for the given tier.
func (c *Config) MinAttemptsFor(tier models.Tier) int {
	if n, ok := c.MinAttempts[tier]; ok {
		return n
	}
	if c.DefaultMinAttempts > 0 {
		return c.DefaultMinAttempts
	}
	return 1
}

// Decide evaluates one finished attempt and returns the next action.
//
// attempt is 1-based and resets when the tier changes. scoreHistory is the
// ordered list of CQS values observed at the current tier, including the
// attempt under evaluation; fail-fast mode ignores it.
func (c *Config) Decide(
	ladder *models.Ladder,
	current models.Tier,
	attempt int,
	outcome models.ValidationOutcome,
	scoreHistory []float64,
) Decision {
	var decision Decision
	if c.Mode == ModeFailFast {
		decision = c.decideFailFast(outcome)
	} else {
		decision = c.decideGated(current, attempt, outcome, scoreHistory)
	}

	// The terminal tier has nowhere to escalate to.
	if decision == DecisionEscalate && ladder.IsTerminal(current) {
		return DecisionStopExhausted
	}
	return decision
}

// decideFailFast gives each tier a single attempt.
func (c *Config) decideFailFast(outcome models.ValidationOutcome) Decision {
	if outcome.Passed {
		return DecisionStopSuccess
	}
	return DecisionEscalate
}

func (c *Config) decideGated(
	current models.Tier,
	attempt int,
	outcome models.ValidationOutcome,
	scoreHistory []float64,
) Decision {
	// Too early to judge this tier, even on a perfect score.
	if attempt < c.MinAttemptsFor(current) {
		return DecisionRetrySameTier
	}

	if outcome.Passed {
		return DecisionStopSuccess
	}

	// Hard failures escalate immediately once the gate opens.
	if c.MaxStructuralErrors > 0 && outcome.StructuralErrors >= c.MaxStructuralErrors {
		return DecisionEscalate
	}

	if outcome.Score != nil && *outcome.Score >= c.EscalateBelow {
		return DecisionStopSuccess
	}

	// A score-less failure (backend errors included) gives stagnation
	// nothing to measure; once the attempt gate opens it escalates so the
	// stage walks the ladder instead of looping on this tier.
	if outcome.Score == nil {
		return DecisionEscalate
	}

	if stagnant, _ := Stagnation(scoreHistory, c.ImprovementThreshold, c.ConsecutiveLimit); stagnant {
		return DecisionEscalate
	}

	return DecisionRetrySameTier
}

// Stagnation reports whether the score history shows consecutiveLimit
// consecutive steps whose improvement is each below improvementThreshold.
// With fewer than consecutiveLimit+1 data points stagnation is
// undecidable and reported as insufficient history.
func Stagnation(history []float64, improvementThreshold float64, consecutiveLimit int) (bool, string) {
	if consecutiveLimit < 1 {
		consecutiveLimit = 1
	}
	if len(history) < consecutiveLimit+1 {
		return false, "insufficient history"
	}

	run := 0
	for i := 1; i < len(history); i++ {
		if history[i]-history[i-1] < improvementThreshold {
			run++
			if run >= consecutiveLimit {
				return true, fmt.Sprintf("%d consecutive improvements below %v", run, improvementThreshold)
			}
		} else {
			run = 0
		}
	}
	return false, ""
}
