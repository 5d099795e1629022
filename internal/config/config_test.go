package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cbergstrom/laddr/internal/policy"
	"github.com/cbergstrom/laddr/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadFromPath_Defaults(t *testing.T) {
	path := writeConfig(t, "anthropic:\n  api_key: test-key\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	ladder, err := cfg.BuildLadder()
	if err != nil {
		t.Fatalf("BuildLadder() error = %v", err)
	}
	want := []models.Tier{models.TierCheap, models.TierCapable, models.TierPremium}
	got := ladder.Tiers()
	if len(got) != len(want) {
		t.Fatalf("tiers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tiers[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if cfg.Policy.Mode != policy.ModeGated {
		t.Errorf("policy mode = %q, want gated default", cfg.Policy.Mode)
	}
	if cfg.Anthropic.MaxTokens != 8192 {
		t.Errorf("max_tokens = %d, want 8192 default", cfg.Anthropic.MaxTokens)
	}
	if cfg.Store.Root == "" {
		t.Error("store root default is empty")
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := writeConfig(t, `
ladder:
  tiers:
    - name: small
      unit_cost: 0.002
      model: claude-3-5-haiku-20241022
    - name: large
      unit_cost: 0.1
      model: claude-opus-4-1-20250805
policy:
  mode: fail_fast
store:
  root: /tmp/laddr-agents
  history_cap: 10
anthropic:
  api_key: test-key
  max_tokens: 4096
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	ladder, err := cfg.BuildLadder()
	if err != nil {
		t.Fatalf("BuildLadder() error = %v", err)
	}
	if ladder.Terminal() != models.Tier("large") {
		t.Errorf("terminal tier = %s, want large", ladder.Terminal())
	}
	if ladder.UnitCost("small") != 0.002 {
		t.Errorf("small unit cost = %v, want 0.002", ladder.UnitCost("small"))
	}

	if cfg.Policy.Mode != policy.ModeFailFast {
		t.Errorf("policy mode = %q, want fail_fast", cfg.Policy.Mode)
	}
	if cfg.Store.HistoryCap != 10 {
		t.Errorf("history_cap = %d, want 10", cfg.Store.HistoryCap)
	}
	if cfg.Anthropic.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d, want 4096", cfg.Anthropic.MaxTokens)
	}

	modelsByTier := cfg.TierModels()
	if modelsByTier["large"] != "claude-opus-4-1-20250805" {
		t.Errorf("large model = %q", modelsByTier["large"])
	}
}

func TestLoadFromPath_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "duplicate tier",
			content: `
ladder:
  tiers:
    - {name: cheap, unit_cost: 0.01, model: m}
    - {name: cheap, unit_cost: 0.02, model: m}
`,
		},
		{
			name: "negative cost",
			content: `
ladder:
  tiers:
    - {name: cheap, unit_cost: -0.01, model: m}
`,
		},
		{
			name: "missing model",
			content: `
ladder:
  tiers:
    - {name: cheap, unit_cost: 0.01}
`,
		},
		{
			name:    "bad policy mode",
			content: "policy:\n  mode: eager\n",
		},
		{
			name:    "empty store root",
			content: "store:\n  root: \"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadFromPath(path); err == nil {
				t.Error("LoadFromPath() error = nil, want validation error")
			}
		})
	}
}

func TestExpandEnvInAPIKey(t *testing.T) {
	t.Setenv("LADDR_TEST_KEY", "sk-ant-expanded")
	path := writeConfig(t, "anthropic:\n  api_key: ${LADDR_TEST_KEY}\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-expanded" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Anthropic.APIKey)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if dir := getUserConfigDir(); dir != "/custom/config/laddr" {
		t.Errorf("getUserConfigDir() = %q, want /custom/config/laddr", dir)
	}
}
