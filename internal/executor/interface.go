// Package executor drives stages through the tier ladder: it invokes the
// model-execution backend once per attempt, consults the escalation
// policy after each attempt, checkpoints progress to the state store, and
// assembles the final cost and quality report.
package executor

import (
	"context"

	"github.com/cbergstrom/laddr/pkg/models"
)

// Backend is the external model-execution interface. One call is one
// attempt; the engine is agnostic to what produces the output (an LLM, a
// rule engine, a human queue). A returned error is treated as a failed
// validation outcome for policy purposes, never as an engine crash.
type Backend interface {
	Execute(ctx context.Context, stage string, tier models.Tier, input string) (*BackendResult, error)
}

// BackendResult is one attempt's raw output.
type BackendResult struct {
	// Payload is the opaque result; only validators look inside.
	Payload any
	// InputUnits and OutputUnits report consumption, typically tokens.
	InputUnits  int64
	OutputUnits int64
}

// Validator judges one attempt's payload. Supplied per stage; the engine
// never inspects payloads itself.
type Validator interface {
	Validate(payload any) models.ValidationOutcome
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(payload any) models.ValidationOutcome

// Validate implements Validator.
func (f ValidatorFunc) Validate(payload any) models.ValidationOutcome {
	return f(payload)
}
