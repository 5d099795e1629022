// Package backend provides the Anthropic API execution backend. Each
// ladder tier maps to a model, so a cheap attempt and a premium attempt
// differ only in which model answers the same prompt.
package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/cbergstrom/laddr/internal/executor"
	"github.com/cbergstrom/laddr/pkg/models"
)

// DefaultModels maps each built-in tier to its model.
func DefaultModels() map[models.Tier]anthropic.Model {
	return map[models.Tier]anthropic.Model{
		models.TierCheap:   anthropic.ModelClaude3_5Haiku20241022,
		models.TierCapable: anthropic.ModelClaudeSonnet4_20250514,
		models.TierPremium: anthropic.ModelClaudeOpus4_1_20250805,
	}
}

// Config controls how the Anthropic backend connects and which model
// serves each tier.
type Config struct {
	// Models maps ladder tiers to model names. Defaults to DefaultModels.
	Models map[models.Tier]anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// SystemPrompt is prepended to every request when set.
	SystemPrompt string
	// MaxTokens bounds each response; 0 means 8192.
	MaxTokens int64
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// Anthropic executes stage attempts against the Anthropic API.
type Anthropic struct {
	inner     anthropic.Client
	models    map[models.Tier]anthropic.Model
	system    string
	maxTokens int64
	bedrock   bool
	tracker   *TokenTracker
}

var _ executor.Backend = (*Anthropic)(nil)

// New creates an Anthropic backend.
func New(cfg Config) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	tierModels := cfg.Models
	if len(tierModels) == 0 {
		tierModels = DefaultModels()
	}
	if cfg.UseAWSBedrock {
		translated := make(map[models.Tier]anthropic.Model, len(tierModels))
		for tier, model := range tierModels {
			translated[tier] = translateModelForBedrock(model)
		}
		tierModels = translated
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &Anthropic{
		inner:     anthropic.NewClient(opts...),
		models:    tierModels,
		system:    cfg.SystemPrompt,
		maxTokens: maxTokens,
		bedrock:   cfg.UseAWSBedrock,
		tracker:   NewTokenTracker(),
	}, nil
}

// ModelFor returns the model serving a tier, or an error for a tier the
// backend was never configured for.
func (a *Anthropic) ModelFor(tier models.Tier) (anthropic.Model, error) {
	model, ok := a.models[tier]
	if !ok {
		return "", fmt.Errorf("no model configured for tier %q", tier)
	}
	return model, nil
}

// Tracker returns the cumulative token usage across all calls.
func (a *Anthropic) Tracker() *TokenTracker {
	return a.tracker
}

// Execute implements executor.Backend: one prompt, one response, at the
// tier's model.
func (a *Anthropic) Execute(ctx context.Context, stage string, tier models.Tier, input string) (*executor.BackendResult, error) {
	model, err := a.ModelFor(tier)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	}
	if a.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.system}}
	}

	resp, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stage %s at tier %s: API call failed: %w", stage, tier, err)
	}

	a.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &executor.BackendResult{
		Payload:     text.String(),
		InputUnits:  resp.Usage.InputTokens,
		OutputUnits: resp.Usage.OutputTokens,
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format: us.anthropic.{model}-v1:0.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Totals returns cumulative input tokens, output tokens, and call count.
func (t *TokenTracker) Totals() (int64, int64, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok, t.calls
}
