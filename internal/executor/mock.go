package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cbergstrom/laddr/pkg/models"
)

// MockBackend returns deterministic responses for local runs and tests.
// Responses and errors are keyed by "stage/tier"; unkeyed calls get a
// generated placeholder payload.
type MockBackend struct {
	mu sync.Mutex

	// Responses maps "stage/tier" to a canned payload.
	Responses map[string]string
	// Errors maps "stage/tier" to a transport failure to simulate.
	Errors map[string]error
	// Units is the per-call input/output unit count reported.
	Units int64

	calls []MockCall
}

// MockCall records one Execute invocation for assertions.
type MockCall struct {
	Stage string
	Tier  models.Tier
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
		Units:     100,
	}
}

// Execute implements Backend.
func (b *MockBackend) Execute(_ context.Context, stage string, tier models.Tier, input string) (*BackendResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, MockCall{Stage: stage, Tier: tier})
	b.mu.Unlock()

	key := mockKey(stage, tier)
	if err, ok := b.Errors[key]; ok {
		return nil, err
	}

	payload, ok := b.Responses[key]
	if !ok {
		payload = fmt.Sprintf("mock output for %s at %s: %s", stage, tier, input)
	}
	return &BackendResult{
		Payload:     payload,
		InputUnits:  b.Units,
		OutputUnits: b.Units,
	}, nil
}

// Calls returns a copy of the recorded invocations.
func (b *MockBackend) Calls() []MockCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]MockCall{}, b.calls...)
}

func mockKey(stage string, tier models.Tier) string {
	return stage + "/" + string(tier)
}

// ScriptedValidator pops a scripted outcome per Validate call, repeating
// the last one when the script runs out. Useful for driving specific
// escalation paths in tests and dry runs.
type ScriptedValidator struct {
	mu       sync.Mutex
	Outcomes []models.ValidationOutcome
	next     int
}

// Validate implements Validator.
func (v *ScriptedValidator) Validate(any) models.ValidationOutcome {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.Outcomes) == 0 {
		return models.ValidationOutcome{Passed: true}
	}
	outcome := v.Outcomes[v.next]
	if v.next < len(v.Outcomes)-1 {
		v.next++
	}
	return outcome
}

// PassAtOrAbove builds a validator that accepts payloads produced at or
// above the given tier, keyed on the tier name the mock backend embeds in
// its payload text. Handy for exercising full ladder walks.
func PassAtOrAbove(ladder *models.Ladder, minimum models.Tier) Validator {
	passing := make(map[models.Tier]bool)
	reached := false
	for _, tier := range ladder.Tiers() {
		if tier == minimum {
			reached = true
		}
		passing[tier] = reached
	}
	return ValidatorFunc(func(payload any) models.ValidationOutcome {
		text, _ := payload.(string)
		for tier, ok := range passing {
			if ok && strings.Contains(text, "at "+string(tier)+":") {
				return models.ValidationOutcome{Passed: true}
			}
		}
		return models.ValidationOutcome{Passed: false, Reason: "below required tier"}
	})
}
