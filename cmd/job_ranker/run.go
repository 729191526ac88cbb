package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/job-ranker/internal/config"
	"github.com/jonathan/job-ranker/internal/observability"
	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the ranking pipeline once for an agent run",
	Long: `Runs every phase for one agent run: profile context -> profile embedding ->
job embedding -> shortlist -> enrichment -> ranking -> finalize.

Progress and the outcome are recorded on the agent run row.`,
	RunE: runPipelineCmd,
}

var (
	runTeamID     string
	runUserID     string
	runAgentRunID string
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVar(&runTeamID, "team-id", "", "Team whose job pool is ranked (required)")
	runCommand.Flags().StringVar(&runUserID, "user-id", "", "User whose profile is matched (required)")
	runCommand.Flags().StringVar(&runAgentRunID, "agent-run-id", "", "Agent run to record progress on (required)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print progress and the top rankings")

	_ = runCommand.MarkFlagRequired("team-id")
	_ = runCommand.MarkFlagRequired("user-id")
	_ = runCommand.MarkFlagRequired("agent-run-id")

	rootCmd.AddCommand(runCommand)
}

// parseInput converts the id flags into a pipeline input.
func parseInput(teamID, userID, agentRunID string) (pipeline.Input, error) {
	var in pipeline.Input
	ids := []struct {
		flag  string
		value string
		dst   *uuid.UUID
	}{
		{"team-id", teamID, &in.TeamID},
		{"user-id", userID, &in.UserID},
		{"agent-run-id", agentRunID, &in.AgentRunID},
	}
	for _, id := range ids {
		parsed, err := uuid.Parse(id.value)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("invalid --%s %q: %w", id.flag, id.value, err)
		}
		*id.dst = parsed
	}
	return in, nil
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	in, err := parseInput(runTeamID, runUserID, runAgentRunID)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequirePipeline(); err != nil {
		return err
	}

	log, err := newLogger(cfg, runVerbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var printer *observability.Printer
	var onProgress pipeline.ProgressCallback
	if runVerbose {
		printer = observability.NewPrinter(cmd.OutOrStdout())
		onProgress = printer.PrintProgress
	}

	runner := pipeline.NewRunner(pipelineFactory(cfg, log, onProgress), retryPolicy(cfg.Task), log)
	res, err := runner.Run(ctx, in)
	if err != nil {
		return err
	}

	if printer != nil {
		printer.PrintRunSummary(res)
		printTopRankings(ctx, cfg, printer, in.AgentRunID, log)
	}

	if res.Status != types.RunStatusSucceeded {
		return fmt.Errorf("run %s failed in phase %s: %w", in.AgentRunID, res.Phase, res.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished: %d jobs ranked\n", in.AgentRunID, res.Metrics.JobsRanked)
	return nil
}

// printTopRankings reads back the rankings stored by the run.
func printTopRankings(ctx context.Context, cfg *config.Config, printer *observability.Printer, runID uuid.UUID, log *zap.Logger) {
	store, closeStore, err := openStore(ctx, cfg)
	defer closeStore()
	if err != nil {
		log.Warn("failed to open store for rankings", zap.Error(err))
		return
	}

	rankings, err := store.ListRankings(ctx, runID)
	if err != nil {
		log.Warn("failed to list rankings", zap.Error(err))
		return
	}
	printer.PrintTopRankings(rankings)
}
