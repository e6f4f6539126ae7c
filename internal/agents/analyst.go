package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"tradingagents/consts"
	"tradingagents/internal/llm"
	"tradingagents/internal/market"
	"tradingagents/internal/models"
)

const analystLookbackDays = 30

// Analyst returns the node for one analyst role. The node runs the
// tool loop and writes its report slot. Failures degrade to an
// explanatory report; only cancellation propagates as an error.
func (t *Team) Analyst(role string) Node {
	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		report, err := t.runAnalyst(ctx, role, state)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.log.WithField("role", role).WithError(err).Warn("analyst degraded to failure report")
			report = fmt.Sprintf("%s analysis failed: %v", role, err)
		}

		update := &models.StateUpdate{
			Sender:   consts.AnalystNodeName(role),
			Messages: []*schema.Message{schema.AssistantMessage(report, nil)},
		}
		switch role {
		case consts.RoleMarket:
			update.MarketReport = models.Str(report)
		case consts.RoleSocial:
			update.SentimentReport = models.Str(report)
		case consts.RoleNews:
			update.NewsReport = models.Str(report)
		case consts.RoleFundamentals:
			update.FundamentalsReport = models.Str(report)
		default:
			return nil, fmt.Errorf("unknown analyst role %q", role)
		}
		return update, nil
	}
}

func (t *Team) runAnalyst(ctx context.Context, role string, state *models.AgentState) (string, error) {
	cls, err := market.Classify(state.CompanyOfInterest)
	if err != nil {
		return "", err
	}

	infos := t.tools.ToolInfos(role)
	toolNames := make([]string, 0, len(infos))
	for _, info := range infos {
		toolNames = append(toolNames, info.Name)
	}

	messages := []*schema.Message{
		schema.SystemMessage(analystSystemPrompt(role, cls, state.TradeDate, toolNames)),
		schema.UserMessage(fmt.Sprintf("Analyze %s as of %s and write your report.", cls.Normalized, state.TradeDate)),
	}

	maxIterations := t.cfg.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	forced := false
	sawToolData := false
	lastContent := ""
	for i := 0; i < maxIterations; i++ {
		resp, err := t.generateWithTools(ctx, llm.QuickThink, infos, messages)
		if err != nil {
			return "", fmt.Errorf("model turn %d: %w", i+1, err)
		}
		lastContent = resp.Content

		if len(resp.ToolCalls) == 0 {
			if sawToolData || forced {
				return resp.Content, nil
			}
			// The model answered from priors without touching data.
			// Run the role's primary tool once and hand it the result.
			forced = true
			text, ok := t.forcedPrimaryCall(ctx, role, cls, state.TradeDate)
			if !ok {
				return resp.Content, nil
			}
			messages = append(messages, schema.UserMessage(forcedDataPrefix+text))
			continue
		}

		t.warnForeignTickers(resp.ToolCalls, cls.Normalized)
		messages = append(messages, resp)
		messages = append(messages, t.dispatch.Dispatch(ctx, resp.ToolCalls)...)
		sawToolData = true
	}
	if lastContent != "" {
		return lastContent, nil
	}
	return "", fmt.Errorf("tool loop exhausted after %d iterations", maxIterations)
}

// warnForeignTickers flags tool calls that target a different symbol
// than the run's. The calls are still honored; the report stays
// attributed to the run's ticker.
func (t *Team) warnForeignTickers(calls []schema.ToolCall, ticker string) {
	for _, call := range calls {
		var args map[string]any
		if json.Unmarshal([]byte(call.Function.Arguments), &args) != nil {
			continue
		}
		if v, ok := args["ticker"].(string); ok && v != "" && v != ticker {
			t.log.WithFields(logrus.Fields{
				"tool":      call.Function.Name,
				"requested": v,
				"expected":  ticker,
			}).Warn("tool call targets a different ticker")
		}
	}
}

// forcedPrimaryCall invokes the role's primary tool with synthesized
// arguments derived from the run context.
func (t *Team) forcedPrimaryCall(ctx context.Context, role string, cls *market.Classification, tradeDate string) (string, bool) {
	desc, ok := t.tools.PrimaryTool(role)
	if !ok {
		return "", false
	}

	end := tradeDate
	start := ""
	if d, err := time.Parse("2006-01-02", tradeDate); err == nil {
		start = d.AddDate(0, 0, -analystLookbackDays).Format("2006-01-02")
	}

	args := make(map[string]any, len(desc.Args))
	for _, spec := range desc.Args {
		switch {
		case spec.Ticker:
			args[spec.Name] = cls.Normalized
		case spec.Name == "start_date":
			args[spec.Name] = start
		case spec.Name == "end_date", spec.Name == "curr_date":
			args[spec.Name] = end
		case spec.Name == "query":
			args[spec.Name] = cls.Normalized
		}
	}

	text, err := desc.Handler(ctx, args)
	if err != nil {
		t.log.WithField("tool", desc.Name).WithError(err).Warn("forced tool invocation failed")
		return "", false
	}
	return text, true
}
