package consts

// Graph node names. The workflow driver routes on these.
const (
	// Analyst team
	MarketAnalyst       = "market_analyst"
	SocialMediaAnalyst  = "social_media_analyst"
	NewsAnalyst         = "news_analyst"
	FundamentalsAnalyst = "fundamentals_analyst"

	// Parallel-topology analyst stage
	ParallelAnalysts = "parallel_analysts"

	// Research team
	BullResearcher  = "bull_researcher"
	BearResearcher  = "bear_researcher"
	ResearchManager = "research_manager"

	// Trading team
	Trader = "trader"

	// Risk management team
	RiskyDebator   = "risky_debator"
	SafeDebator    = "safe_debator"
	NeutralDebator = "neutral_debator"
	RiskJudge      = "risk_judge"
)

// Analyst roles selectable by the caller.
const (
	RoleMarket       = "market"
	RoleSocial       = "social"
	RoleNews         = "news"
	RoleFundamentals = "fundamentals"
)

// AllRoles lists the closed analyst role set in pipeline order.
var AllRoles = []string{RoleMarket, RoleSocial, RoleNews, RoleFundamentals}

// AnalystToolsNodeName is the tools-execution node of an analyst stage
// in the sequential topology.
func AnalystToolsNodeName(role string) string {
	if n := AnalystNodeName(role); n != "" {
		return n + "_tools"
	}
	return ""
}

// AnalystClearNodeName is the message-cleaning node that closes an
// analyst stage in the sequential topology.
func AnalystClearNodeName(role string) string {
	if n := AnalystNodeName(role); n != "" {
		return n + "_clear"
	}
	return ""
}

// AnalystNodeName maps a role tag to its graph node name.
func AnalystNodeName(role string) string {
	switch role {
	case RoleMarket:
		return MarketAnalyst
	case RoleSocial:
		return SocialMediaAnalyst
	case RoleNews:
		return NewsAnalyst
	case RoleFundamentals:
		return FundamentalsAnalyst
	}
	return ""
}
