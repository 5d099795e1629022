// Package config handles configuration loading for laddr. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/cbergstrom/laddr/internal/policy"
	"github.com/cbergstrom/laddr/pkg/models"
)

// Config holds all configuration for laddr.
type Config struct {
	Ladder    LadderConfig          `mapstructure:"ladder"`
	Policy    policy.Config         `mapstructure:"policy"`
	Quality   models.QualityWeights `mapstructure:"quality"`
	Store     StoreConfig           `mapstructure:"store"`
	Anthropic AnthropicConfig       `mapstructure:"anthropic"`
}

// LadderConfig describes the tier ladder, cheapest first.
type LadderConfig struct {
	Tiers []TierEntry `mapstructure:"tiers"`
}

// TierEntry configures one rung of the ladder.
type TierEntry struct {
	// Name is the tier identifier (e.g. "cheap").
	Name string `mapstructure:"name"`
	// UnitCost is the per-attempt cost used in reports.
	UnitCost float64 `mapstructure:"unit_cost"`
	// Model is the model serving this tier.
	Model string `mapstructure:"model"`
}

// StoreConfig holds state store settings.
type StoreConfig struct {
	// Root is the directory holding per-agent JSON records.
	Root string `mapstructure:"root"`
	// HistoryCap bounds per-agent execution history; 0 uses the default.
	HistoryCap int `mapstructure:"history_cap"`
	// ArchivePath is the optional SQLite audit archive; empty disables it.
	ArchivePath string `mapstructure:"archive_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	SystemPrompt  string `mapstructure:"system_prompt"`
	MaxTokens     int64  `mapstructure:"max_tokens"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.laddr.yaml in current directory or parent)
// 3. User config (~/.config/laddr/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration before anything runs.
func (c *Config) Validate() error {
	if _, err := c.BuildLadder(); err != nil {
		return fmt.Errorf("ladder: %w", err)
	}
	for _, tier := range c.Ladder.Tiers {
		if tier.Model == "" {
			return fmt.Errorf("ladder: tier %q has no model", tier.Name)
		}
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := c.Quality.Validate(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if c.Store.Root == "" {
		return fmt.Errorf("store: root directory is required")
	}
	return nil
}

// BuildLadder constructs the tier ladder from configuration.
func (c *Config) BuildLadder() (*models.Ladder, error) {
	tiers := make([]models.Tier, 0, len(c.Ladder.Tiers))
	costs := make(map[models.Tier]float64, len(c.Ladder.Tiers))
	for _, entry := range c.Ladder.Tiers {
		tier := models.Tier(entry.Name)
		tiers = append(tiers, tier)
		costs[tier] = entry.UnitCost
	}
	return models.NewLadder(tiers, costs)
}

// TierModels returns the tier-to-model mapping from the ladder config.
func (c *Config) TierModels() map[models.Tier]string {
	out := make(map[models.Tier]string, len(c.Ladder.Tiers))
	for _, entry := range c.Ladder.Tiers {
		out[models.Tier(entry.Name)] = entry.Model
	}
	return out
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ladder.tiers", []map[string]any{
		{"name": "cheap", "unit_cost": 0.01, "model": "claude-3-5-haiku-20241022"},
		{"name": "capable", "unit_cost": 0.05, "model": "claude-sonnet-4-20250514"},
		{"name": "premium", "unit_cost": 0.25, "model": "claude-opus-4-1-20250805"},
	})

	def := policy.Default()
	v.SetDefault("policy.mode", string(def.Mode))
	v.SetDefault("policy.default_min_attempts", def.DefaultMinAttempts)
	v.SetDefault("policy.escalate_below", def.EscalateBelow)
	v.SetDefault("policy.max_structural_errors", def.MaxStructuralErrors)
	v.SetDefault("policy.improvement_threshold", def.ImprovementThreshold)
	v.SetDefault("policy.consecutive_limit", def.ConsecutiveLimit)

	weights := models.DefaultQualityWeights()
	v.SetDefault("quality.gate_pass_rate", weights.GatePassRate)
	v.SetDefault("quality.mean_item_quality", weights.MeanItemQuality)
	v.SetDefault("quality.coverage", weights.Coverage)
	v.SetDefault("quality.confidence", weights.Confidence)

	v.SetDefault("store.root", filepath.Join(getUserDataDir(), "agents"))
	v.SetDefault("store.history_cap", 0)
	v.SetDefault("store.archive_path", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.max_tokens", 8192)
}

// getUserConfigDir returns the XDG config directory for laddr.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "laddr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "laddr")
	}
	return filepath.Join(home, ".config", "laddr")
}

// getUserDataDir returns the XDG data directory for laddr.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "laddr")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "laddr")
	}
	return filepath.Join(home, ".local", "share", "laddr")
}

// findProjectConfig searches for .laddr.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".laddr.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
