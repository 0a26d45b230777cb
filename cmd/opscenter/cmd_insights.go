package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opscenter/internal/app"
	"opscenter/internal/copilot"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errCopilotDisabled = errors.New("copilot is disabled: set GEMINI_API_KEY and OPSCENTER_ENABLE_AI=1")

// insightsCmd runs copilot requests without the interactive shell
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate AI insights from the command-center data",
	Long: `Ask the copilot for the same insights the shell shows on its Insights page.
Requires a signed-in session and a configured Gemini API key.

Available subcommands:
  summary        - Executive summary of pipeline, forecast, risk and reps
  brief          - Search-grounded regulatory news brief with sources
  analyze <text> - Deep strategic analysis of a question`,
}

var insightsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Executive summary of the dashboard data",
	RunE:  runInsightsSummary,
}

var insightsBriefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Regulatory news brief grounded in web search",
	RunE:  runInsightsBrief,
}

var insightsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Strategic analysis of a question",
	Long: `Runs the reasoning model with an extended thinking budget.

Example:
  opscenter insights analyze "How should we rebalance the Southwest territory?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInsightsAnalyze,
}

// withCopilot opens the workspace and checks the session and the copilot
// before fn runs.
func withCopilot(fn func(ctx context.Context, cp *copilot.Copilot) error) error {
	return withGate(nil, func(ctx context.Context, a *app.Context) error {
		if !a.Gate.IsAuthenticated() {
			return errors.New("not signed in: run 'opscenter auth login' first")
		}
		if a.Copilot == nil {
			return errCopilotDisabled
		}
		return fn(ctx, a.Copilot)
	})
}

func runInsightsSummary(cmd *cobra.Command, args []string) error {
	return withCopilot(func(ctx context.Context, cp *copilot.Copilot) error {
		text, err := cp.ExecutiveSummary(ctx)
		if err != nil {
			logger.Warn("Executive summary failed", zap.Error(err))
			text = copilot.FallbackSummary
		}
		fmt.Println(text)
		return nil
	})
}

func runInsightsBrief(cmd *cobra.Command, args []string) error {
	return withCopilot(func(ctx context.Context, cp *copilot.Copilot) error {
		brief, err := cp.RegulatoryBrief(ctx)
		if err != nil {
			logger.Warn("Regulatory brief failed", zap.Error(err))
			fmt.Println(copilot.FallbackBrief)
			return nil
		}
		fmt.Println(brief.Text)
		if len(brief.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, s := range brief.Sources {
				fmt.Printf("  - %s <%s>\n", s.Title, s.URI)
			}
		}
		return nil
	})
}

func runInsightsAnalyze(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withCopilot(func(ctx context.Context, cp *copilot.Copilot) error {
		logger.Info("Running strategic analysis", zap.String("query", query))
		text, err := cp.StrategicAnalysis(ctx, query)
		if err != nil {
			logger.Warn("Strategic analysis failed", zap.Error(err))
			text = copilot.FallbackAnalysis
		}
		fmt.Println(text)
		return nil
	})
}
