package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/agents"
	"tradingagents/internal/config"
	"tradingagents/internal/llm"
	"tradingagents/internal/market"
	"tradingagents/internal/models"
	"tradingagents/internal/tools"
)

// promptStub answers each turn from the system prompt, so one stub
// serves every role in a full run.
type promptStub struct{}

func (promptStub) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	system := ""
	if len(input) > 0 {
		system = input[0].Content
	}
	switch {
	case strings.Contains(system, "risk management judge"):
		return schema.AssistantMessage("Approved as proposed.\n\nConfidence: 0.7\n\nFINAL TRANSACTION PROPOSAL: **HOLD**", nil), nil
	case strings.Contains(system, "research manager"):
		return schema.AssistantMessage("Neither side convinces; wait for earnings.", nil), nil
	case strings.Contains(system, "trader"):
		return schema.AssistantMessage("Stay flat for now.\nFINAL TRANSACTION PROPOSAL: **HOLD**", nil), nil
	case strings.Contains(system, "bullish"):
		return schema.AssistantMessage("Momentum favors the longs.", nil), nil
	case strings.Contains(system, "bearish"):
		return schema.AssistantMessage("Valuation leaves no margin.", nil), nil
	case strings.Contains(system, "risk debator"):
		return schema.AssistantMessage("Size the position accordingly.", nil), nil
	default:
		// analyst roles: skip tools, forced invocation kicks in once
		return schema.AssistantMessage("Report: range-bound with firm support.", nil), nil
	}
}

func (promptStub) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported in stub")
}

type stubToolModel struct{ promptStub }

func (m stubToolModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type stubProvider struct{}

func (stubProvider) New(ctx context.Context, profile llm.Profile) (model.ToolCallingChatModel, error) {
	return stubToolModel{}, nil
}

func (stubProvider) FreshHandlePerInvoke() bool { return false }

func stubTeam(t *testing.T, cfg *config.Config) *agents.Team {
	t.Helper()
	reg := tools.NewRegistry()
	for _, role := range consts.AllRoles {
		name := "fetch_" + role + "_data"
		reg.Register(&tools.ToolDescriptor{
			Name:        name,
			Description: "fetch data",
			Args: []tools.ArgSpec{
				{Name: "ticker", Type: schema.String, Required: true, Description: "ticker", Ticker: true},
			},
			SideEffectFree: true,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return "close 2024-05-10: 12.3", nil
			},
		})
		if err := reg.BindRole(role, name); err != nil {
			t.Fatal(err)
		}
	}
	return agents.NewTeam(cfg, stubProvider{}, reg)
}

func runConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxDebateRounds = 1
	cfg.MaxRiskDiscussRounds = 1
	cfg.MaxToolIterations = 3
	cfg.ModelTimeoutSec = 5
	return cfg
}

func TestSequentialRunCompletes(t *testing.T) {
	cfg := runConfig()
	workflow, err := NewBuilder(cfg, stubTeam(t, cfg)).Build([]string{consts.RoleMarket})
	if err != nil {
		t.Fatal(err)
	}

	state := models.NewAgentState("002115", "2024-05-10")
	if err := workflow.Run(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	if state.MarketReport == "" {
		t.Fatal("market report empty")
	}
	if state.InvestDebate.Count != 2 {
		t.Fatalf("debate count = %d, want 2", state.InvestDebate.Count)
	}
	if state.RiskDebate.Count != 3 {
		t.Fatalf("risk count = %d, want 3", state.RiskDebate.Count)
	}
	if !strings.Contains(state.FinalTradeDecision, "**HOLD**") {
		t.Fatalf("final decision = %q", state.FinalTradeDecision)
	}
}

func TestDebateRoundsScaleWithDepth(t *testing.T) {
	cfg := runConfig()
	cfg.MaxDebateRounds = 2
	cfg.MaxRiskDiscussRounds = 2
	workflow, err := NewBuilder(cfg, stubTeam(t, cfg)).Build([]string{consts.RoleMarket})
	if err != nil {
		t.Fatal(err)
	}

	state := models.NewAgentState("002115", "2024-05-10")
	if err := workflow.Run(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if state.InvestDebate.Count != 4 {
		t.Fatalf("debate count = %d, want 4", state.InvestDebate.Count)
	}
	if state.RiskDebate.Count != 6 {
		t.Fatalf("risk count = %d, want 6", state.RiskDebate.Count)
	}
}

func TestParallelRunMergesDisjointReports(t *testing.T) {
	cfg := runConfig()
	cfg.ParallelAnalysts = true
	roles := []string{consts.RoleMarket, consts.RoleFundamentals}
	workflow, err := NewBuilder(cfg, stubTeam(t, cfg)).Build(roles)
	if err != nil {
		t.Fatal(err)
	}

	state := models.NewAgentState("AAPL", "2024-05-10")
	if err := workflow.Run(context.Background(), state); err != nil {
		t.Fatal(err)
	}

	if state.MarketReport == "" || state.FundamentalsReport == "" {
		t.Fatalf("reports: market=%q fundamentals=%q", state.MarketReport, state.FundamentalsReport)
	}
	if state.SentimentReport != "" || state.NewsReport != "" {
		t.Fatal("unselected role slots written")
	}
	// initial user message plus one final assistant message per branch
	if len(state.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(state.Messages))
	}

	perf := state.ParallelPerformance
	if perf == nil {
		t.Fatal("no parallel performance block")
	}
	if len(perf.PerRole) != 2 || perf.SuccessRate != 1.0 {
		t.Fatalf("perf = %+v", perf)
	}
}

func TestDriverRecursionLimit(t *testing.T) {
	g := NewStateGraph(10)
	g.AddNode("loop", func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		return nil, nil
	}, StaticNext("loop"))
	g.SetEntry("loop")

	err := g.Run(context.Background(), models.NewAgentState("AAPL", "2024-05-10"))
	var stuck *GraphStuckError
	if !errors.As(err, &stuck) {
		t.Fatalf("err = %v, want GraphStuckError", err)
	}
	if stuck.Steps != 10 || stuck.Node != "loop" {
		t.Fatalf("stuck = %+v", stuck)
	}
}

func TestDriverCancellationBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	g := NewStateGraph(100)
	g.AddNode("step", func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		steps++
		if steps == 2 {
			cancel()
		}
		return nil, nil
	}, StaticNext("step"))
	g.SetEntry("step")

	err := g.Run(ctx, models.NewAgentState("AAPL", "2024-05-10"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if steps != 2 {
		t.Fatalf("steps = %d, want 2", steps)
	}
}

func TestDriverNodeErrorPropagates(t *testing.T) {
	g := NewStateGraph(10)
	g.AddNode("boom", func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		return nil, fmt.Errorf("backend exploded")
	}, StaticNext(End))
	g.SetEntry("boom")

	err := g.Run(context.Background(), models.NewAgentState("AAPL", "2024-05-10"))
	if err == nil || !strings.Contains(err.Error(), "node boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnreachableRedisFallbackIsSkipped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.PrimaryBackend = "memory"
	cfg.Cache.FallbackBackends = []string{"redis"}
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	if _, err := buildCacheBackend(cfg, "redis"); err == nil {
		t.Fatal("expected ping failure for unreachable redis")
	}
	// the manager still comes up on the primary alone
	if _, err := buildCacheManager(cfg); err != nil {
		t.Fatalf("manager build failed: %v", err)
	}
}

func TestRunAnalysisRejectsBadInputs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.PrimaryBackend = "memory"
	cfg.Cache.FallbackBackends = nil

	g, err := NewTradingAgentsGraph(cfg)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = g.RunAnalysis(context.Background(), "NOT-A-TICKER-9", "2024-05-10", nil, 1)
	var invalid *market.InvalidTickerError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTickerError", err)
	}

	_, _, err = g.RunAnalysis(context.Background(), "AAPL", "05/10/2024", nil, 1)
	if err == nil || !strings.Contains(err.Error(), "invalid trade date") {
		t.Fatalf("err = %v", err)
	}
}
