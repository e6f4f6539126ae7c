package graph

import (
	"fmt"

	"tradingagents/consts"
	"tradingagents/internal/agents"
	"tradingagents/internal/config"
	"tradingagents/internal/models"
)

// Builder assembles the workflow graph for a run: analyst phase, the
// bull/bear debate, the trader and the risk management debate.
type Builder struct {
	cfg   *config.Config
	team  *agents.Team
	logic *ConditionalLogic
}

func NewBuilder(cfg *config.Config, team *agents.Team) *Builder {
	return &Builder{
		cfg:   cfg,
		team:  team,
		logic: NewConditionalLogic(cfg.MaxDebateRounds, cfg.MaxRiskDiscussRounds),
	}
}

// Build wires the topology for the selected analyst roles. With
// parallel analysts enabled the analyst phase collapses to a single
// fan-out node; otherwise the analysts chain in pipeline order.
func (b *Builder) Build(roles []string) (*StateGraph, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("no analyst roles selected")
	}
	for _, role := range roles {
		if consts.AnalystNodeName(role) == "" {
			return nil, fmt.Errorf("unknown analyst role %q", role)
		}
	}

	g := NewStateGraph(b.cfg.MaxRecurLimit)

	if b.cfg.ParallelAnalysts {
		// Tool loops run inside each analyst; one fan-out node covers
		// the whole phase.
		exec := NewParallelExecutor(b.team, b.cfg.MaxParallelWorkers, b.cfg.AnalystTimeoutSec)
		g.AddNode(consts.ParallelAnalysts, exec.Node(roles), StaticNext(consts.BullResearcher))
		g.SetEntry(consts.ParallelAnalysts)
	} else {
		// Each role expands into a model/tools/clear triple; the tool
		// loop is expressed through the edges.
		for i, role := range roles {
			next := consts.BullResearcher
			if i+1 < len(roles) {
				next = consts.AnalystNodeName(roles[i+1])
			}
			g.AddNode(consts.AnalystNodeName(role), b.team.AnalystModelNode(role), b.team.AnalystRouter(role))
			g.AddNode(consts.AnalystToolsNodeName(role), b.team.AnalystToolsNode(role),
				StaticNext(consts.AnalystNodeName(role)))
			g.AddNode(consts.AnalystClearNodeName(role), b.team.AnalystClearNode(role), StaticNext(next))
		}
		g.SetEntry(consts.AnalystNodeName(roles[0]))
	}

	// Bull and bear alternate until the round budget is spent, then the
	// research manager adjudicates.
	g.AddNode(consts.BullResearcher, b.team.BullResearcher(), StaticNext(consts.BearResearcher))
	g.AddNode(consts.BearResearcher, b.team.BearResearcher(), func(state *models.AgentState) string {
		if b.logic.ShouldContinueDebate(state) {
			return consts.BullResearcher
		}
		return consts.ResearchManager
	})
	g.AddNode(consts.ResearchManager, b.team.ResearchManager(), StaticNext(consts.Trader))
	g.AddNode(consts.Trader, b.team.Trader(), StaticNext(consts.RiskyDebator))

	// Risky, safe and neutral rotate; after each full round the logic
	// decides between another round and the judge.
	g.AddNode(consts.RiskyDebator, b.team.RiskDebator(consts.RiskyDebator), StaticNext(consts.SafeDebator))
	g.AddNode(consts.SafeDebator, b.team.RiskDebator(consts.SafeDebator), StaticNext(consts.NeutralDebator))
	g.AddNode(consts.NeutralDebator, b.team.RiskDebator(consts.NeutralDebator), func(state *models.AgentState) string {
		if b.logic.ShouldContinueRiskDiscussion(state) {
			return consts.RiskyDebator
		}
		return consts.RiskJudge
	})
	g.AddNode(consts.RiskJudge, b.team.RiskJudge(), StaticNext(End))

	return g, nil
}
