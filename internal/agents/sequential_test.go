package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/models"
)

// runStage drives one analyst stage the way the sequential driver does:
// model node, router, tools node, until the clear node closes it.
func runStage(t *testing.T, team *Team, role string, state *models.AgentState) {
	t.Helper()
	router := team.AnalystRouter(role)
	modelNode := team.AnalystModelNode(role)
	toolsNode := team.AnalystToolsNode(role)
	clearNode := team.AnalystClearNode(role)

	for steps := 0; steps < 20; steps++ {
		update, err := modelNode(context.Background(), state)
		if err != nil {
			t.Fatal(err)
		}
		state.Apply(update)

		switch next := router(state); next {
		case consts.AnalystToolsNodeName(role):
			update, err := toolsNode(context.Background(), state)
			if err != nil {
				t.Fatal(err)
			}
			state.Apply(update)
		case consts.AnalystClearNodeName(role):
			update, err := clearNode(context.Background(), state)
			if err != nil {
				t.Fatal(err)
			}
			state.Apply(update)
			return
		case consts.AnalystNodeName(role):
			// forced-data re-entry, loop back to the model node
		default:
			t.Fatalf("router sent to %q", next)
		}
	}
	t.Fatal("stage did not close")
}

func TestSequentialStageToolRoundTrip(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: "fetch_price_data", Arguments: `{"ticker":"AAPL"}`},
		}}),
		schema.AssistantMessage("trend is up, support at 170", nil),
	}}
	team, toolCalls := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	runStage(t, team, consts.RoleMarket, state)

	if state.MarketReport != "trend is up, support at 170" {
		t.Fatalf("report = %q", state.MarketReport)
	}
	if toolCalls.Load() != 1 {
		t.Fatalf("tool calls = %d, want 1", toolCalls.Load())
	}

	// the clear node must leave no stage messages behind
	for _, msg := range state.Messages {
		if msg.Role == schema.System || msg.Role == schema.Tool {
			t.Fatalf("stage message survived clear: %+v", msg)
		}
	}
	last := state.Messages[len(state.Messages)-1]
	if last.Role != schema.User || last.Content != "Continue" {
		t.Fatalf("placeholder = %+v", last)
	}
}

func TestSequentialStageForcedInvocation(t *testing.T) {
	m := &stubModel{script: []*schema.Message{
		schema.AssistantMessage("no data needed", nil),
		schema.AssistantMessage("grounded conclusion", nil),
	}}
	team, toolCalls := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	runStage(t, team, consts.RoleMarket, state)

	if state.MarketReport != "grounded conclusion" {
		t.Fatalf("report = %q", state.MarketReport)
	}
	if toolCalls.Load() != 1 {
		t.Fatalf("forced tool calls = %d, want 1", toolCalls.Load())
	}
}

func TestSequentialStageModelFailureDegrades(t *testing.T) {
	m := &stubModel{err: errors.New("backend unavailable")}
	team, _ := testTeam(t, m)

	state := models.NewAgentState("AAPL", "2024-05-10")
	runStage(t, team, consts.RoleMarket, state)

	if !strings.Contains(state.MarketReport, "market analysis failed") {
		t.Fatalf("report = %q", state.MarketReport)
	}
}
