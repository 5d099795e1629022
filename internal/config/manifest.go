package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a workflow definition loaded from a YAML file.
type Manifest struct {
	// Name identifies the workflow in checkpoints and reports.
	Name string `yaml:"name"`
	// Agent is the agent identity the run records under.
	Agent string `yaml:"agent,omitempty"`
	// Role describes the agent for history searches.
	Role string `yaml:"role,omitempty"`
	// MaxBudget is the optional spend ceiling; 0 means unlimited.
	MaxBudget float64 `yaml:"max_budget,omitempty"`
	// Stages run in order.
	Stages []ManifestStage `yaml:"stages"`
}

// ManifestStage is one stage of a workflow manifest.
type ManifestStage struct {
	// Name identifies the stage inside the workflow.
	Name string `yaml:"name"`
	// Prompt is the input sent to the backend on every attempt.
	Prompt string `yaml:"prompt"`
	// StartTier overrides the ladder's cheapest rung; empty starts at
	// the bottom.
	StartTier string `yaml:"start_tier,omitempty"`
	// Optional stages may exhaust every tier without failing the run.
	Optional bool `yaml:"optional,omitempty"`
	// MinScore is the acceptance threshold for this stage's outputs;
	// 0 inherits the policy default.
	MinScore float64 `yaml:"min_score,omitempty"`
}

// LoadManifest reads a workflow definition from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for errors.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("workflow must define at least one stage")
	}
	if m.MaxBudget < 0 {
		return fmt.Errorf("max_budget must not be negative")
	}

	seen := make(map[string]struct{})
	for _, stage := range m.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage name is required")
		}
		if stage.Prompt == "" {
			return fmt.Errorf("stage %s must have a prompt", stage.Name)
		}
		if _, ok := seen[stage.Name]; ok {
			return fmt.Errorf("duplicate stage name: %s", stage.Name)
		}
		seen[stage.Name] = struct{}{}

		if stage.MinScore < 0 || stage.MinScore > 100 {
			return fmt.Errorf("stage %s min_score must be within [0, 100]", stage.Name)
		}
	}

	return nil
}
