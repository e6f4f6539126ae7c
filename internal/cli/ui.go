package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tradingagents/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginTop(1)

	decisionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(1, 2).
			Width(76)

	buyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	sellStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	holdStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RenderDecision prints the decision envelope.
func RenderDecision(d *models.Decision) string {
	action := holdStyle.Render(string(d.Action))
	switch d.Action {
	case models.ActionBuy:
		action = buyStyle.Render(string(d.Action))
	case models.ActionSell:
		action = sellStyle.Render(string(d.Action))
	}

	target := "n/a"
	if d.TargetPrice != nil {
		target = d.TargetPrice.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticker:      %s\n", d.Ticker)
	fmt.Fprintf(&b, "Trade date:  %s\n", d.TradeDate)
	fmt.Fprintf(&b, "Action:      %s\n", action)
	fmt.Fprintf(&b, "Confidence:  %.0f%%\n", d.Confidence*100)
	fmt.Fprintf(&b, "Target:      %s\n\n", target)
	b.WriteString(dimStyle.Render(d.Reasoning))
	return decisionStyle.Render(b.String())
}

// RenderReports prints the analyst reports and downstream documents.
func RenderReports(state *models.AgentState) string {
	sections := []struct {
		title string
		body  string
	}{
		{"Market analysis", state.MarketReport},
		{"Sentiment analysis", state.SentimentReport},
		{"News analysis", state.NewsReport},
		{"Fundamentals analysis", state.FundamentalsReport},
		{"Investment plan", state.InvestmentPlan},
		{"Trade proposal", state.TraderInvestmentPlan},
		{"Final decision", state.FinalTradeDecision},
	}

	var b strings.Builder
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		b.WriteString(sectionStyle.Render("## " + s.title))
		b.WriteString("\n")
		b.WriteString(s.body)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderParallelPerformance prints the parallel phase diagnostics.
func RenderParallelPerformance(perf *models.ParallelPerformance) string {
	if perf == nil {
		return ""
	}
	roles := make([]string, 0, len(perf.PerRole))
	for role := range perf.PerRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var b strings.Builder
	b.WriteString(sectionStyle.Render("## Parallel analyst performance"))
	fmt.Fprintf(&b, "\nTotal: %dms, success rate %.0f%%\n", perf.DurationMS, perf.SuccessRate*100)
	for _, role := range roles {
		t := perf.PerRole[role]
		status := "ok"
		if !t.Success {
			status = "failed: " + t.Error
		}
		fmt.Fprintf(&b, "- %-14s %6dms  %5d chars  %s\n", role, t.DurationMS, t.ReportLength, status)
	}
	return b.String()
}
