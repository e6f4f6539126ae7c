package graph

import (
	"tradingagents/internal/models"
)

// ConditionalLogic bounds the debate and risk discussion cycles.
type ConditionalLogic struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
}

func NewConditionalLogic(maxDebateRounds, maxRiskDiscussRounds int) *ConditionalLogic {
	if maxDebateRounds < 1 {
		maxDebateRounds = 1
	}
	if maxRiskDiscussRounds < 1 {
		maxRiskDiscussRounds = 1
	}
	return &ConditionalLogic{
		MaxDebateRounds:      maxDebateRounds,
		MaxRiskDiscussRounds: maxRiskDiscussRounds,
	}
}

// ShouldContinueDebate reports whether another bull/bear exchange fits.
// One round is one bull plus one bear turn.
func (cl *ConditionalLogic) ShouldContinueDebate(state *models.AgentState) bool {
	return state.InvestDebate.Count < 2*cl.MaxDebateRounds
}

// ShouldContinueRiskDiscussion reports whether another three-voice risk
// round fits.
func (cl *ConditionalLogic) ShouldContinueRiskDiscussion(state *models.AgentState) bool {
	return state.RiskDebate.Count < 3*cl.MaxRiskDiscussRounds
}
