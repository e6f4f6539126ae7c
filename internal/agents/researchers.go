package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/llm"
	"tradingagents/internal/models"
)

// BullResearcher argues the long case and appends to the debate.
func (t *Team) BullResearcher() Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		resp, err := t.generate(ctx, llm.QuickThink, []*schema.Message{
			schema.SystemMessage(bullPrompt(state)),
			schema.UserMessage(fmt.Sprintf("Present your bullish case for %s.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("bull researcher: %w", err)
		}

		debate := *state.InvestDebate
		entry := "Bull: " + resp.Content
		debate.History = appendLine(debate.History, entry)
		debate.BullHistory = appendLine(debate.BullHistory, entry)
		debate.Count++

		return &models.StateUpdate{
			InvestDebate: &debate,
			Sender:       consts.BullResearcher,
		}, nil
	}
}

// BearResearcher argues the short case and appends to the debate.
func (t *Team) BearResearcher() Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		resp, err := t.generate(ctx, llm.QuickThink, []*schema.Message{
			schema.SystemMessage(bearPrompt(state)),
			schema.UserMessage(fmt.Sprintf("Present your bearish case for %s.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("bear researcher: %w", err)
		}

		debate := *state.InvestDebate
		entry := "Bear: " + resp.Content
		debate.History = appendLine(debate.History, entry)
		debate.BearHistory = appendLine(debate.BearHistory, entry)
		debate.Count++

		return &models.StateUpdate{
			InvestDebate: &debate,
			Sender:       consts.BearResearcher,
		}, nil
	}
}

// ResearchManager adjudicates the debate and writes the investment plan.
func (t *Team) ResearchManager() Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		resp, err := t.generate(ctx, llm.DeepThink, []*schema.Message{
			schema.SystemMessage(researchManagerPrompt(state)),
			schema.UserMessage(fmt.Sprintf("Adjudicate the debate and write the investment plan for %s.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("research manager: %w", err)
		}

		debate := *state.InvestDebate
		debate.JudgeDecision = resp.Content

		return &models.StateUpdate{
			InvestmentPlan: models.Str(resp.Content),
			InvestDebate:   &debate,
			Sender:         consts.ResearchManager,
		}, nil
	}
}

func appendLine(history, entry string) string {
	if history == "" {
		return entry
	}
	return history + "\n" + entry
}
