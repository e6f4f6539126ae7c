package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/config"
	"tradingagents/internal/llm"
	"tradingagents/internal/models"
	"tradingagents/internal/tools"
)

// stubModel replays a fixed script of assistant turns.
type stubModel struct {
	script []*schema.Message
	turn   int
	err    error
}

func (m *stubModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.turn >= len(m.script) {
		return nil, fmt.Errorf("script exhausted at turn %d", m.turn)
	}
	msg := m.script[m.turn]
	m.turn++
	return msg, nil
}

func (m *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported in stub")
}

func (m *stubModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type stubProvider struct {
	model model.ToolCallingChatModel
	err   error
}

func (p *stubProvider) New(ctx context.Context, profile llm.Profile) (model.ToolCallingChatModel, error) {
	return p.model, p.err
}

func (p *stubProvider) FreshHandlePerInvoke() bool { return false }

func testTeam(t *testing.T, m model.ToolCallingChatModel) (*Team, *atomic.Int32) {
	t.Helper()
	var toolCalls atomic.Int32

	reg := tools.NewRegistry()
	reg.Register(&tools.ToolDescriptor{
		Name:        "fetch_price_data",
		Description: "fetch price data",
		Args: []tools.ArgSpec{
			{Name: "ticker", Type: schema.String, Required: true, Description: "ticker", Ticker: true},
			{Name: "start_date", Type: schema.String, Description: "start"},
			{Name: "end_date", Type: schema.String, Description: "end"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			toolCalls.Add(1)
			return "close 2024-05-09: 171.2\nclose 2024-05-10: 172.5", nil
		},
	})
	if err := reg.BindRole(consts.RoleMarket, "fetch_price_data"); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.MaxToolIterations = 4
	cfg.ModelTimeoutSec = 5
	return NewTeam(cfg, &stubProvider{model: m}, reg), &toolCalls
}

func TestAnalystToolLoopWritesReport(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: "fetch_price_data", Arguments: `{"ticker":"AAPL"}`},
		}}),
		schema.AssistantMessage("upward trend, support at 170", nil),
	}}
	team, toolCalls := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	update, err := team.Analyst(consts.RoleMarket)(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if update.MarketReport == nil || *update.MarketReport != "upward trend, support at 170" {
		t.Fatalf("report = %v", update.MarketReport)
	}
	if update.Sender != consts.MarketAnalyst {
		t.Fatalf("sender = %s", update.Sender)
	}
	if toolCalls.Load() != 1 {
		t.Fatalf("tool calls = %d, want 1", toolCalls.Load())
	}
}

func TestAnalystForcesPrimaryToolWhenModelSkipsData(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("looks fine, no data needed", nil),
		schema.AssistantMessage("grounded report", nil),
	}}
	team, toolCalls := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	update, err := team.Analyst(consts.RoleMarket)(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if *update.MarketReport != "grounded report" {
		t.Fatalf("report = %q", *update.MarketReport)
	}
	if toolCalls.Load() != 1 {
		t.Fatalf("forced tool calls = %d, want 1", toolCalls.Load())
	}
}

func TestAnalystDegradesToFailureReport(t *testing.T) {
	m := &stubModel{err: errors.New("backend unavailable")}
	team, _ := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	update, err := team.Analyst(consts.RoleMarket)(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if update.MarketReport == nil || !strings.Contains(*update.MarketReport, "market analysis failed") {
		t.Fatalf("report = %v", update.MarketReport)
	}
	if !strings.Contains(*update.MarketReport, "backend unavailable") {
		t.Fatalf("report lacks cause: %q", *update.MarketReport)
	}
}

func TestAnalystInvalidTickerDegrades(t *testing.T) {
	m := &stubModel{script: nil}
	team, _ := testTeam(t, m)

	state := models.NewAgentState("NOT-A-TICKER-9", "2024-05-10")
	update, err := team.Analyst(consts.RoleMarket)(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(*update.MarketReport, "invalid ticker") {
		t.Fatalf("report = %q", *update.MarketReport)
	}
}

func TestAnalystCancellationPropagates(t *testing.T) {
	m := &stubModel{err: context.Canceled}
	team, _ := testTeam(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := models.NewAgentState("AAPL", "2024-05-10")
	if _, err := team.Analyst(consts.RoleMarket)(ctx, state); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDebateRolesAppendHistories(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("growth is intact", nil),
		schema.AssistantMessage("valuation is stretched", nil),
	}}
	team, _ := testTeam(t, m)
	state := models.NewAgentState("AAPL", "2024-05-10")

	update, err := team.BullResearcher()(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	state.Apply(update)

	update, err = team.BearResearcher()(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	state.Apply(update)

	d := state.InvestDebate
	if d.Count != 2 {
		t.Fatalf("count = %d, want 2", d.Count)
	}
	if !strings.Contains(d.History, "Bull: growth is intact") ||
		!strings.Contains(d.History, "Bear: valuation is stretched") {
		t.Fatalf("history = %q", d.History)
	}
	if !strings.Contains(d.BullHistory, "growth") || strings.Contains(d.BullHistory, "valuation") {
		t.Fatalf("bull history = %q", d.BullHistory)
	}
}

func TestRiskRoundAndJudge(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("lean in", nil),
		schema.AssistantMessage("cut exposure", nil),
		schema.AssistantMessage("split the difference", nil),
		schema.AssistantMessage("approved with reduced size\nFINAL TRANSACTION PROPOSAL: **BUY**", nil),
	}}
	team, _ := testTeam(t, m)
	state := models.NewAgentState("AAPL", "2024-05-10")
	state.TraderInvestmentPlan = "buy on dips"

	for _, node := range []string{consts.RiskyDebator, consts.SafeDebator, consts.NeutralDebator} {
		update, err := team.RiskDebator(node)(context.Background(), state)
		if err != nil {
			t.Fatal(err)
		}
		state.Apply(update)
	}
	if state.RiskDebate.Count != 3 || state.RiskDebate.LatestSpeaker != consts.NeutralDebator {
		t.Fatalf("risk debate = %+v", state.RiskDebate)
	}

	update, err := team.RiskJudge()(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	state.Apply(update)
	if !strings.Contains(state.FinalTradeDecision, "FINAL TRANSACTION PROPOSAL: **BUY**") {
		t.Fatalf("final decision = %q", state.FinalTradeDecision)
	}
	if state.RiskAssessment == "" || state.RiskDebate.JudgeDecision == "" {
		t.Fatal("judge did not record assessment")
	}
}
