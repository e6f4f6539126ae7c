package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/llm"
	"tradingagents/internal/models"
)

// RiskDebator returns the node for one of the three risk voices. Each
// turn appends to the shared history and the voice's own history.
func (t *Team) RiskDebator(node string) Node {
	label := map[string]string{
		consts.RiskyDebator:   "Risky",
		consts.SafeDebator:    "Safe",
		consts.NeutralDebator: "Neutral",
	}[node]

	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		if label == "" {
			return nil, fmt.Errorf("unknown risk debator %q", node)
		}
		resp, err := t.generate(ctx, llm.QuickThink, []*schema.Message{
			schema.SystemMessage(riskDebatorPrompt(node, state)),
			schema.UserMessage(fmt.Sprintf("Give your risk assessment of the %s proposal.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node, err)
		}

		debate := *state.RiskDebate
		entry := label + ": " + resp.Content
		debate.History = appendLine(debate.History, entry)
		switch node {
		case consts.RiskyDebator:
			debate.RiskyHistory = appendLine(debate.RiskyHistory, entry)
		case consts.SafeDebator:
			debate.SafeHistory = appendLine(debate.SafeHistory, entry)
		case consts.NeutralDebator:
			debate.NeutralHistory = appendLine(debate.NeutralHistory, entry)
		}
		debate.Count++
		debate.LatestSpeaker = node

		return &models.StateUpdate{
			RiskDebate: &debate,
			Sender:     node,
		}, nil
	}
}

// RiskJudge issues the binding final trade decision.
func (t *Team) RiskJudge() Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		resp, err := t.generate(ctx, llm.DeepThink, []*schema.Message{
			schema.SystemMessage(riskJudgePrompt(state)),
			schema.UserMessage(fmt.Sprintf("Issue the final decision for %s.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("risk judge: %w", err)
		}

		debate := *state.RiskDebate
		debate.JudgeDecision = resp.Content

		return &models.StateUpdate{
			FinalTradeDecision: models.Str(resp.Content),
			RiskAssessment:     models.Str(debate.History),
			RiskDebate:         &debate,
			Sender:             consts.RiskJudge,
		}, nil
	}
}
