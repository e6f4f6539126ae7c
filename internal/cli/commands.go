// Package cli implements the interactive and batch command surface.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tradingagents/consts"
	"tradingagents/internal/config"
	"tradingagents/internal/graph"
)

const version = "0.1.0"

// NewRootCmd builds the root command tree.
func NewRootCmd() *cobra.Command {
	cfg := config.FromEnv()

	rootCmd := &cobra.Command{
		Use:   "tradingagents",
		Short: "Multi-agent LLM stock analysis",
		Long: `TradingAgents runs a team of LLM analysts, researchers and risk
debators over market data for CN-A, HK and US stocks and produces a
structured trade decision.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
				logrus.SetLevel(logrus.DebugLevel)
			}
			return cfg.EnsureDirectories()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cfg)
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	rootCmd.AddCommand(newConfigCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	return rootCmd
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	var (
		date     string
		analysts []string
		depth    int
		parallel bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [TICKER]",
		Short: "Run an analysis for one ticker",
		Long: `Run the full pipeline for a ticker and print the decision.
Example: tradingagents analyze 600519 --date 2024-05-10 --depth 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			if parallel {
				cfg.ParallelAnalysts = true
			}
			return runAnalysis(cfg, args[0], date, analysts, depth)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Trade date, YYYY-MM-DD (default today)")
	cmd.Flags().StringSliceVar(&analysts, "analysts", nil,
		"Analyst roles to run: market,social,news,fundamentals (default all)")
	cmd.Flags().IntVar(&depth, "depth", 3, "Research depth 1-5")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run the analysts concurrently")
	return cmd
}

func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cfg)
		},
	})
	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradingagents v%s\n", version)
		},
	}
}

func runAnalysis(cfg *config.Config, ticker, date string, analysts []string, depth int) error {
	g, err := graph.NewTradingAgentsGraph(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.StartMaintenance(ctx)

	fmt.Println(titleStyle.Render(fmt.Sprintf("Analyzing %s for %s", ticker, date)))

	state, decision, err := g.RunAnalysis(ctx, ticker, date, analysts, depth)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Println(RenderReports(state))
	if state.ParallelPerformance != nil {
		fmt.Println(RenderParallelPerformance(state.ParallelPerformance))
	}
	fmt.Println(RenderDecision(decision))
	return nil
}

// runInteractive walks the user through a run with survey prompts.
func runInteractive(cfg *config.Config) error {
	fmt.Println(titleStyle.Render("TradingAgents interactive analysis"))

	ticker, err := PromptForTicker()
	if err != nil {
		return err
	}
	date, err := PromptForAnalysisDate()
	if err != nil {
		return err
	}
	analysts, err := PromptForAnalysts()
	if err != nil {
		return err
	}
	depth, err := PromptForResearchDepth()
	if err != nil {
		return err
	}

	return runAnalysis(cfg, ticker, date, analysts, depth)
}

func showConfig(cfg *config.Config) {
	fmt.Println(sectionStyle.Render("Runtime"))
	fmt.Printf("LLM provider:        %s\n", cfg.LLMProvider)
	fmt.Printf("Deep think model:    %s\n", cfg.DeepThinkLLM)
	fmt.Printf("Quick think model:   %s\n", cfg.QuickThinkLLM)
	fmt.Printf("Parallel analysts:   %t (workers %d)\n", cfg.ParallelAnalysts, cfg.MaxParallelWorkers)
	fmt.Printf("Debate rounds:       %d invest / %d risk\n", cfg.MaxDebateRounds, cfg.MaxRiskDiscussRounds)
	fmt.Printf("Online tools:        %t\n", cfg.OnlineTools)

	fmt.Println(sectionStyle.Render("Data sources"))
	fmt.Printf("China source:        %s\n", cfg.DefaultChinaDataSource)
	fmt.Printf("AKTools:             %s\n", cfg.AKToolsBaseURL)
	printKeyStatus("Tushare token", cfg.TushareToken)
	printKeyStatus("Finnhub API key", cfg.FinnhubAPIKey)
	printKeyStatus("Longport keys", cfg.LongportAppKey)

	fmt.Println(sectionStyle.Render("Cache"))
	fmt.Printf("Primary backend:     %s\n", cfg.Cache.PrimaryBackend)
	fmt.Printf("Fallbacks:           %v\n", cfg.Cache.FallbackBackends)
	fmt.Printf("File cache dir:      %s\n", cfg.Cache.FileCacheDir)

	fmt.Println(sectionStyle.Render("Analyst roles"))
	fmt.Printf("%v\n", consts.AllRoles)
}

func printKeyStatus(label, value string) {
	status := "not configured"
	if value != "" {
		status = "configured"
	}
	fmt.Printf("%-20s %s\n", label+":", status)
}
