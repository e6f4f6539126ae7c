// Package models holds the shared run state flowing through the agent
// graph and the decision envelope emitted at the end.
package models

import (
	"github.com/cloudwego/eino/schema"
	"github.com/jinzhu/copier"
	"github.com/sirupsen/logrus"

	"tradingagents/consts"
)

// InvestDebateState tracks the bull/bear researcher exchange. Count is
// monotonically non-decreasing within a run.
type InvestDebateState struct {
	History       string `json:"history"`
	BullHistory   string `json:"bull_history"`
	BearHistory   string `json:"bear_history"`
	Count         int    `json:"count"`
	JudgeDecision string `json:"judge_decision"`
}

// RiskDebateState tracks the risky/safe/neutral debate.
type RiskDebateState struct {
	History        string `json:"history"`
	RiskyHistory   string `json:"risky_history"`
	SafeHistory    string `json:"safe_history"`
	NeutralHistory string `json:"neutral_history"`
	Count          int    `json:"count"`
	LatestSpeaker  string `json:"latest_speaker"`
	JudgeDecision  string `json:"judge_decision"`
}

// RoleTiming is one role's entry in the parallel diagnostics block.
type RoleTiming struct {
	DurationMS   int64  `json:"duration_ms"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	ReportLength int    `json:"report_length"`
}

// ParallelPerformance is the diagnostics block attached after a
// parallel analyst phase.
type ParallelPerformance struct {
	PerRole     map[string]RoleTiming `json:"per_role"`
	DurationMS  int64                 `json:"duration_ms"`
	SuccessRate float64               `json:"success_rate"`
}

// AgentState is the shared graph state. messages is an append-only
// log; each report slot has exactly one writer per run. Debate nodes
// that re-enter a stage append to the debate histories instead.
type AgentState struct {
	CompanyOfInterest string            `json:"company_of_interest"`
	TradeDate         string            `json:"trade_date"`
	Messages          []*schema.Message `json:"messages"`
	Sender            string            `json:"sender"`

	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`

	InvestmentPlan       string `json:"investment_plan"`
	TraderInvestmentPlan string `json:"trader_investment_plan"`
	FinalTradeDecision   string `json:"final_trade_decision"`
	RiskAssessment       string `json:"risk_assessment"`

	InvestDebate *InvestDebateState `json:"investment_debate_state"`
	RiskDebate   *RiskDebateState   `json:"risk_debate_state"`

	ParallelPerformance *ParallelPerformance `json:"parallel_performance,omitempty"`
}

// NewAgentState seeds a run for one ticker and trade date.
func NewAgentState(ticker, tradeDate string) *AgentState {
	return &AgentState{
		CompanyOfInterest: ticker,
		TradeDate:         tradeDate,
		Messages: []*schema.Message{
			schema.UserMessage(ticker),
		},
		InvestDebate: &InvestDebateState{},
		RiskDebate:   &RiskDebateState{},
	}
}

// DeepCopy produces an independently mutable copy for a parallel
// branch. When the deep copy fails a shallow copy is returned with a
// logged warning; branch writers only append, so shared message
// entries stay immutable.
func (s *AgentState) DeepCopy() *AgentState {
	clone := &AgentState{}
	if err := copier.CopyWithOption(clone, s, copier.Option{DeepCopy: true}); err != nil {
		logrus.WithError(err).Warn("deep copy failed, falling back to shallow state copy")
		shallow := *s
		shallow.Messages = append([]*schema.Message(nil), s.Messages...)
		if s.InvestDebate != nil {
			d := *s.InvestDebate
			shallow.InvestDebate = &d
		}
		if s.RiskDebate != nil {
			d := *s.RiskDebate
			shallow.RiskDebate = &d
		}
		return &shallow
	}
	return clone
}

// Report returns the slot written by the given analyst role.
func (s *AgentState) Report(role string) string {
	switch role {
	case consts.RoleMarket:
		return s.MarketReport
	case consts.RoleSocial:
		return s.SentimentReport
	case consts.RoleNews:
		return s.NewsReport
	case consts.RoleFundamentals:
		return s.FundamentalsReport
	}
	return ""
}
