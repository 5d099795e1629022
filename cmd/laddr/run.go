package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/cbergstrom/laddr/internal/backend"
	"github.com/cbergstrom/laddr/internal/config"
	"github.com/cbergstrom/laddr/internal/executor"
	"github.com/cbergstrom/laddr/internal/report"
	"github.com/cbergstrom/laddr/internal/store"
	"github.com/cbergstrom/laddr/pkg/models"
)

var (
	runDryRun   bool
	runJSON     bool
	runAgent    string
	runDebugLog string
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow manifest through the tier ladder",
	Long: `Run executes every stage of a workflow manifest, starting at the
cheapest tier and escalating on validation failure. With --dry-run the
stages are driven through a mock backend, so the escalation plan and
cost accounting can be inspected without spending tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manifest, err := config.LoadManifest(args[0])
		if err != nil {
			return err
		}

		ladder, err := cfg.BuildLadder()
		if err != nil {
			return err
		}
		for _, stage := range manifest.Stages {
			if stage.StartTier != "" && !ladder.Contains(models.Tier(stage.StartTier)) {
				return fmt.Errorf("stage %s: start_tier %q is not on the ladder", stage.Name, stage.StartTier)
			}
		}

		runner, cleanup, err := buildRunner(cfg, ladder, manifest)
		if err != nil {
			return err
		}
		defer cleanup()

		spec := executor.WorkflowSpec{
			Name:      manifest.Name,
			MaxBudget: manifest.MaxBudget,
			Stages:    buildStages(cfg, manifest),
		}

		run, err := runner.RunWorkflow(cmd.Context(), spec)
		if err != nil {
			return err
		}

		if runJSON {
			if err := report.WriteJSON(os.Stdout, run); err != nil {
				return err
			}
		} else {
			report.WriteSummary(os.Stdout, run)
		}

		if !run.Success {
			return fmt.Errorf("workflow %s failed: %s", run.Workflow, run.FailureReason)
		}
		return nil
	},
}

// buildRunner assembles the backend, store, and archive for a run. The
// returned cleanup closes whatever was opened.
func buildRunner(cfg *config.Config, ladder *models.Ladder, manifest *config.Manifest) (*executor.Runner, func(), error) {
	cleanup := func() {}

	logger, err := executor.NewDebugLogger(runDebugLog)
	if err != nil {
		return nil, nil, err
	}

	rc := executor.RunnerConfig{
		Ladder: ladder,
		Policy: &cfg.Policy,
		Logger: logger,
	}

	if runDryRun {
		rc.Backend = executor.NewMockBackend()
		return mustRunner(rc, logger)
	}

	tierModels := make(map[models.Tier]anthropic.Model, len(cfg.Ladder.Tiers))
	for tier, model := range cfg.TierModels() {
		tierModels[tier] = anthropic.Model(model)
	}

	apiKey := ""
	if !cfg.Anthropic.UseAWSBedrock {
		apiKey, err = cfg.APIKey()
		if err != nil {
			logger.Close()
			return nil, nil, err
		}
	}

	be, err := backend.New(backend.Config{
		Models:        tierModels,
		APIKey:        apiKey,
		SystemPrompt:  cfg.Anthropic.SystemPrompt,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	rc.Backend = be

	storeOpts := []store.Option{store.WithLogger(logger.Log)}
	if cfg.Store.HistoryCap > 0 {
		storeOpts = append(storeOpts, store.WithHistoryCap(cfg.Store.HistoryCap))
	}

	var archive *store.Archive
	if cfg.Store.ArchivePath != "" {
		archive, err = store.OpenArchive(cfg.Store.ArchivePath)
		if err != nil {
			logger.Close()
			return nil, nil, err
		}
		storeOpts = append(storeOpts, store.WithArchive(archive))
		cleanup = func() { archive.Close() }
	}

	fileStore, err := store.NewFileStore(cfg.Store.Root, storeOpts...)
	if err != nil {
		cleanup()
		logger.Close()
		return nil, nil, err
	}

	rc.Store = fileStore
	rc.Archive = archive
	rc.AgentID = manifest.Agent
	if runAgent != "" {
		rc.AgentID = runAgent
	}
	if rc.AgentID == "" {
		rc.AgentID = manifest.Name
	}
	rc.Role = manifest.Role

	runner, err := executor.NewRunner(rc)
	if err != nil {
		cleanup()
		logger.Close()
		return nil, nil, err
	}
	prev := cleanup
	return runner, func() { prev(); logger.Close() }, nil
}

func mustRunner(rc executor.RunnerConfig, logger *executor.DebugLogger) (*executor.Runner, func(), error) {
	runner, err := executor.NewRunner(rc)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return runner, func() { logger.Close() }, nil
}

// buildStages translates manifest stages into executor specs. Live runs
// validate that the backend produced something; a stage min_score
// tightens the acceptance threshold via a per-stage policy override.
func buildStages(cfg *config.Config, manifest *config.Manifest) []executor.StageSpec {
	stages := make([]executor.StageSpec, 0, len(manifest.Stages))
	for _, ms := range manifest.Stages {
		spec := executor.StageSpec{
			Name:      ms.Name,
			Input:     ms.Prompt,
			StartTier: models.Tier(ms.StartTier),
			Optional:  ms.Optional,
			Validator: nonEmptyValidator(),
		}
		if ms.MinScore > 0 {
			override := cfg.Policy
			override.EscalateBelow = ms.MinScore
			spec.Policy = &override
		}
		stages = append(stages, spec)
	}
	return stages
}

// nonEmptyValidator accepts any non-blank backend output. Programmatic
// callers supply domain validators; the CLI only guards against empty
// responses.
func nonEmptyValidator() executor.Validator {
	return executor.ValidatorFunc(func(payload any) models.ValidationOutcome {
		text, _ := payload.(string)
		if strings.TrimSpace(text) == "" {
			return models.ValidationOutcome{Passed: false, Reason: "empty output"}
		}
		return models.ValidationOutcome{Passed: true}
	})
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "drive the workflow through a mock backend without spending tokens")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the full run result as JSON")
	runCmd.Flags().StringVar(&runAgent, "agent", "", "agent identity to record the run under (default: manifest agent, then workflow name)")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "write a debug log to this path")
}
