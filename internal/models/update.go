package models

import "github.com/cloudwego/eino/schema"

// StateUpdate is the record a node returns. The driver folds it into
// the shared state: messages append, report slots overwrite only when
// present, debate states replace wholesale, sender adopts when set.
type StateUpdate struct {
	Messages []*schema.Message
	// ReplaceMessages swaps the whole message log for Messages instead
	// of appending. Only the stage-closing cleanup nodes set it.
	ReplaceMessages bool

	MarketReport       *string
	SentimentReport    *string
	NewsReport         *string
	FundamentalsReport *string

	InvestmentPlan       *string
	TraderInvestmentPlan *string
	FinalTradeDecision   *string
	RiskAssessment       *string

	InvestDebate *InvestDebateState
	RiskDebate   *RiskDebateState

	ParallelPerformance *ParallelPerformance

	Sender string
}

// Str wraps a report value for a StateUpdate slot.
func Str(s string) *string { return &s }

// Apply folds the update into the state in place.
func (s *AgentState) Apply(u *StateUpdate) {
	if u == nil {
		return
	}
	if u.ReplaceMessages {
		s.Messages = append([]*schema.Message(nil), u.Messages...)
	} else {
		s.Messages = append(s.Messages, u.Messages...)
	}

	setIf(&s.MarketReport, u.MarketReport)
	setIf(&s.SentimentReport, u.SentimentReport)
	setIf(&s.NewsReport, u.NewsReport)
	setIf(&s.FundamentalsReport, u.FundamentalsReport)
	setIf(&s.InvestmentPlan, u.InvestmentPlan)
	setIf(&s.TraderInvestmentPlan, u.TraderInvestmentPlan)
	setIf(&s.FinalTradeDecision, u.FinalTradeDecision)
	setIf(&s.RiskAssessment, u.RiskAssessment)

	if u.InvestDebate != nil {
		s.InvestDebate = u.InvestDebate
	}
	if u.RiskDebate != nil {
		s.RiskDebate = u.RiskDebate
	}
	if u.ParallelPerformance != nil {
		s.ParallelPerformance = u.ParallelPerformance
	}
	if u.Sender != "" {
		s.Sender = u.Sender
	}
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
