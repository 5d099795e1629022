package models

import (
	"fmt"
	"math"
)

// QualityWeights configures the composite quality score as a weighted sum
// of four independent signals. Weights must be non-negative and sum to 1.
type QualityWeights struct {
	// GatePassRate weights the fraction of sub-items meeting their
	// per-item bar.
	GatePassRate float64 `json:"gate_pass_rate" mapstructure:"gate_pass_rate"`
	// MeanItemQuality weights the mean quality across sub-items.
	MeanItemQuality float64 `json:"mean_item_quality" mapstructure:"mean_item_quality"`
	// Coverage weights the coverage-like completeness proxy.
	Coverage float64 `json:"coverage" mapstructure:"coverage"`
	// Confidence weights the validator's self-reported confidence.
	Confidence float64 `json:"confidence" mapstructure:"confidence"`
}

// DefaultQualityWeights returns the documented default weighting.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		GatePassRate:    0.35,
		MeanItemQuality: 0.30,
		Coverage:        0.20,
		Confidence:      0.15,
	}
}

const weightSumTolerance = 1e-6

// Validate checks that all weights are non-negative and sum to 1.
func (w QualityWeights) Validate() error {
	for name, weight := range map[string]float64{
		"gate_pass_rate":    w.GatePassRate,
		"mean_item_quality": w.MeanItemQuality,
		"coverage":          w.Coverage,
		"confidence":        w.Confidence,
	} {
		if weight < 0 {
			return fmt.Errorf("quality weight %s is negative: %v", name, weight)
		}
	}

	sum := w.GatePassRate + w.MeanItemQuality + w.Coverage + w.Confidence
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("quality weights sum to %v, want 1.0", sum)
	}
	return nil
}

// QualitySignals carries the raw sub-signals feeding the composite score.
// Each signal is on the 0-100 scale; out-of-range values are clamped.
type QualitySignals struct {
	GatePassRate    float64 `json:"gate_pass_rate"`
	MeanItemQuality float64 `json:"mean_item_quality"`
	Coverage        float64 `json:"coverage"`
	Confidence      float64 `json:"confidence"`
}

// ComputeCQS combines the signals into a single score in [0,100].
func ComputeCQS(signals QualitySignals, weights QualityWeights) float64 {
	score := clampSignal(signals.GatePassRate)*weights.GatePassRate +
		clampSignal(signals.MeanItemQuality)*weights.MeanItemQuality +
		clampSignal(signals.Coverage)*weights.Coverage +
		clampSignal(signals.Confidence)*weights.Confidence

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clampSignal(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
