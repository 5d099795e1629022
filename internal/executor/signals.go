package executor

import (
	"github.com/cbergstrom/laddr/pkg/models"
)

// Judge inspects one attempt's payload and reports quality signals plus
// the structural problems it found.
type Judge func(payload any) (models.QualitySignals, []string)

// ScoredValidator builds a Validator from a Judge and a weight set: the
// composite score is computed from the signals, and the attempt passes
// when nothing structural is wrong and every gate held.
func ScoredValidator(weights models.QualityWeights, judge Judge) Validator {
	return ValidatorFunc(func(payload any) models.ValidationOutcome {
		signals, structural := judge(payload)
		score := models.ComputeCQS(signals, weights)

		outcome := models.ValidationOutcome{
			Score:            &score,
			StructuralErrors: len(structural),
		}
		if len(structural) > 0 {
			outcome.Reason = structural[0]
			return outcome
		}
		if signals.GatePassRate < 100 {
			outcome.Reason = "one or more gates failed"
			return outcome
		}
		outcome.Passed = true
		return outcome
	})
}
