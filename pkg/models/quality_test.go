package models

import (
	"math"
	"testing"
)

func TestQualityWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights QualityWeights
		wantErr bool
	}{
		{"defaults are valid", DefaultQualityWeights(), false},
		{"even split is valid", QualityWeights{0.25, 0.25, 0.25, 0.25}, false},
		{"sum below one", QualityWeights{0.2, 0.2, 0.2, 0.2}, true},
		{"sum above one", QualityWeights{0.5, 0.5, 0.5, 0.5}, true},
		{"negative weight", QualityWeights{-0.5, 0.5, 0.5, 0.5}, true},
		{"single signal takes all weight", QualityWeights{1, 0, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestComputeCQS(t *testing.T) {
	tests := []struct {
		name    string
		signals QualitySignals
		weights QualityWeights
		want    float64
	}{
		{
			"perfect signals",
			QualitySignals{100, 100, 100, 100},
			DefaultQualityWeights(),
			100,
		},
		{
			"zero signals",
			QualitySignals{0, 0, 0, 0},
			DefaultQualityWeights(),
			0,
		},
		{
			"weighted mix",
			QualitySignals{GatePassRate: 80, MeanItemQuality: 60, Coverage: 40, Confidence: 100},
			DefaultQualityWeights(),
			80*0.35 + 60*0.30 + 40*0.20 + 100*0.15,
		},
		{
			"out-of-range signals are clamped",
			QualitySignals{GatePassRate: 150, MeanItemQuality: -20, Coverage: 50, Confidence: 50},
			QualityWeights{0.25, 0.25, 0.25, 0.25},
			(100 + 0 + 50 + 50) * 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCQS(tt.signals, tt.weights)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeCQS() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("ComputeCQS() = %v, outside [0,100]", got)
			}
		})
	}
}
