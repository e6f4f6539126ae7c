package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/llm"
	"tradingagents/internal/market"
	"tradingagents/internal/models"
)

// forcedDataPrefix marks the injected user message carrying the result
// of a forced primary-tool invocation.
const forcedDataPrefix = "Before concluding, ground your report in this data:\n\n"

const clearPlaceholder = "Continue"

// The sequential topology expands each analyst stage into three graph
// nodes: the model node emits one assistant turn, the tools node
// answers its tool calls, and the clear node harvests the report and
// strips the stage's intermediate messages from the log.

// AnalystModelNode runs one model turn for the role. On first entry it
// seeds the stage prompts into the message log; the conversation then
// lives in state.Messages across tools-node round trips.
func (t *Team) AnalystModelNode(role string) Node {
	node := consts.AnalystNodeName(role)
	toolsNode := consts.AnalystToolsNodeName(role)

	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		update := &models.StateUpdate{Sender: node}

		cls, err := market.Classify(state.CompanyOfInterest)
		if err != nil {
			update.Messages = []*schema.Message{
				schema.AssistantMessage(fmt.Sprintf("%s analysis failed: %v", role, err), nil),
			}
			return update, nil
		}

		msgs := state.Messages
		if state.Sender != node && state.Sender != toolsNode {
			infos := t.tools.ToolInfos(role)
			toolNames := make([]string, 0, len(infos))
			for _, info := range infos {
				toolNames = append(toolNames, info.Name)
			}
			seed := []*schema.Message{
				schema.SystemMessage(analystSystemPrompt(role, cls, state.TradeDate, toolNames)),
				schema.UserMessage(fmt.Sprintf("Analyze %s as of %s and write your report.", cls.Normalized, state.TradeDate)),
			}
			update.Messages = seed
			msgs = append(append([]*schema.Message(nil), msgs...), seed...)
		}

		resp, err := t.generateWithTools(ctx, llm.QuickThink, t.tools.ToolInfos(role), msgs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.log.WithField("role", role).WithError(err).Warn("analyst model turn failed")
			update.Messages = append(update.Messages,
				schema.AssistantMessage(fmt.Sprintf("%s analysis failed: %v", role, err), nil))
			return update, nil
		}
		update.Messages = append(update.Messages, resp)

		stage := stageMessages(msgs)
		if len(resp.ToolCalls) == 0 && !hasToolData(stage) && !hasForcedData(stage) {
			if text, ok := t.forcedPrimaryCall(ctx, role, cls, state.TradeDate); ok {
				update.Messages = append(update.Messages, schema.UserMessage(forcedDataPrefix+text))
			}
		}
		return update, nil
	}
}

// AnalystToolsNode answers the tool calls of the stage's last assistant
// turn.
func (t *Team) AnalystToolsNode(role string) Node {
	node := consts.AnalystToolsNodeName(role)

	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		update := &models.StateUpdate{Sender: node}
		last := lastMessage(state.Messages)
		if last == nil || last.Role != schema.Assistant || len(last.ToolCalls) == 0 {
			return update, nil
		}
		t.warnForeignTickers(last.ToolCalls, state.CompanyOfInterest)
		update.Messages = t.dispatch.Dispatch(ctx, last.ToolCalls)
		return update, nil
	}
}

// AnalystClearNode writes the role's report slot and resets the message
// log to what preceded the stage plus a neutral placeholder, so later
// model calls never see dangling tool messages.
func (t *Team) AnalystClearNode(role string) Node {
	node := consts.AnalystClearNodeName(role)

	return func(ctx context.Context, state *models.AgentState) (*models.StateUpdate, error) {
		report := ""
		for _, msg := range stageMessages(state.Messages) {
			if msg.Role == schema.Assistant && msg.Content != "" {
				report = msg.Content
			}
		}
		if report == "" {
			report = fmt.Sprintf("%s analysis failed: no report produced", role)
		}

		cleaned := append([]*schema.Message(nil), preStageMessages(state.Messages)...)
		cleaned = append(cleaned, schema.UserMessage(clearPlaceholder))

		update := &models.StateUpdate{
			Messages:        cleaned,
			ReplaceMessages: true,
			Sender:          node,
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
		}
		return update, nil
	}
}

// AnalystRouter decides the next node after a model turn: answer tool
// calls, re-enter the model after injected data, or close the stage.
func (t *Team) AnalystRouter(role string) func(*models.AgentState) string {
	modelNode := consts.AnalystNodeName(role)
	toolsNode := consts.AnalystToolsNodeName(role)
	clearNode := consts.AnalystClearNodeName(role)
	maxIterations := t.cfg.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	return func(state *models.AgentState) string {
		last := lastMessage(state.Messages)
		if last == nil {
			return clearNode
		}
		if last.Role == schema.User && strings.HasPrefix(last.Content, forcedDataPrefix) {
			return modelNode
		}
		if last.Role == schema.Assistant && len(last.ToolCalls) > 0 &&
			assistantTurns(stageMessages(state.Messages)) < maxIterations {
			return toolsNode
		}
		return clearNode
	}
}

func lastMessage(msgs []*schema.Message) *schema.Message {
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// stageStart is the index of the current stage's system message.
func stageStart(msgs []*schema.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.System {
			return i
		}
	}
	return len(msgs)
}

func stageMessages(msgs []*schema.Message) []*schema.Message {
	return msgs[stageStart(msgs):]
}

func preStageMessages(msgs []*schema.Message) []*schema.Message {
	return msgs[:stageStart(msgs)]
}

func hasToolData(msgs []*schema.Message) bool {
	for _, msg := range msgs {
		if msg.Role == schema.Tool {
			return true
		}
	}
	return false
}

func hasForcedData(msgs []*schema.Message) bool {
	for _, msg := range msgs {
		if msg.Role == schema.User && strings.HasPrefix(msg.Content, forcedDataPrefix) {
			return true
		}
	}
	return false
}

func assistantTurns(msgs []*schema.Message) int {
	n := 0
	for _, msg := range msgs {
		if msg.Role == schema.Assistant {
			n++
		}
	}
	return n
}
