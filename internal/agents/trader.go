package agents

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/llm"
	"tradingagents/internal/models"
)

// Trader turns the investment plan into a concrete trade proposal.
func (t *Team) Trader() Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		resp, err := t.generate(ctx, llm.QuickThink, []*schema.Message{
			schema.SystemMessage(traderPrompt(state)),
			schema.UserMessage(fmt.Sprintf("Write the trade proposal for %s.", state.CompanyOfInterest)),
		})
		if err != nil {
			return nil, fmt.Errorf("trader: %w", err)
		}
		return &models.StateUpdate{
			TraderInvestmentPlan: models.Str(resp.Content),
			Sender:               consts.Trader,
		}, nil
	}
}
