package main

import (
	"testing"

	"github.com/cbergstrom/laddr/internal/config"
	"github.com/cbergstrom/laddr/internal/policy"
	"github.com/cbergstrom/laddr/pkg/models"
)

func TestBuildStages(t *testing.T) {
	cfg := &config.Config{Policy: *policy.Default()}
	manifest := &config.Manifest{
		Name: "w",
		Stages: []config.ManifestStage{
			{Name: "extract", Prompt: "pull the data"},
			{Name: "review", Prompt: "review it", StartTier: "capable", MinScore: 90, Optional: true},
		},
	}

	stages := buildStages(cfg, manifest)
	if len(stages) != 2 {
		t.Fatalf("stage count = %d, want 2", len(stages))
	}

	if stages[0].Policy != nil {
		t.Error("stage without min_score should inherit the run policy")
	}
	if stages[1].StartTier != models.TierCapable || !stages[1].Optional {
		t.Errorf("review stage = %+v", stages[1])
	}
	if stages[1].Policy == nil || stages[1].Policy.EscalateBelow != 90 {
		t.Errorf("review policy override = %+v, want escalate_below 90", stages[1].Policy)
	}
	// The override must not leak into the shared policy.
	if cfg.Policy.EscalateBelow == 90 {
		t.Error("per-stage override mutated the run policy")
	}
}

func TestNonEmptyValidator(t *testing.T) {
	v := nonEmptyValidator()

	if out := v.Validate("some output"); !out.Passed {
		t.Errorf("Validate(text) = %+v, want pass", out)
	}
	if out := v.Validate("   \n"); out.Passed {
		t.Error("Validate(blank) passed")
	}
	if out := v.Validate(nil); out.Passed {
		t.Error("Validate(nil) passed")
	}
	if out := v.Validate(42); out.Passed {
		t.Error("Validate(non-string) passed")
	}
}
