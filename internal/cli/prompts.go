package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"tradingagents/consts"
	"tradingagents/internal/market"
)

// PromptForTicker asks for a stock symbol and validates it against the
// supported markets.
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker (e.g. 600519, 0700.HK, AAPL):",
		Help:    "CN-A shares are 6 digits, HK is 4-5 digits with optional .HK, US is 1-5 letters",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return fmt.Errorf("ticker cannot be empty")
		}
		if _, err := market.Classify(str); err != nil {
			return err
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ticker), nil
}

// PromptForAnalysisDate asks for the trade date, defaulting to today.
func PromptForAnalysisDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the analysis date (YYYY-MM-DD):",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		parsed, err := time.Parse("2006-01-02", str)
		if err != nil {
			return fmt.Errorf("invalid date format, use YYYY-MM-DD")
		}
		if parsed.After(time.Now().AddDate(0, 0, 1)) {
			return fmt.Errorf("analysis date cannot be in the future")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(dateStr), nil
}

var analystOptions = map[string]string{
	"Market analyst (price action, indicators, capital flow)": consts.RoleMarket,
	"Sentiment analyst (discussion heat, retail flow)":        consts.RoleSocial,
	"News analyst (headlines, material events)":               consts.RoleNews,
	"Fundamentals analyst (valuation, growth, dividends)":     consts.RoleFundamentals,
}

// PromptForAnalysts asks which analyst roles to run; empty selection
// means all four.
func PromptForAnalysts() ([]string, error) {
	labels := []string{
		"Market analyst (price action, indicators, capital flow)",
		"Sentiment analyst (discussion heat, retail flow)",
		"News analyst (headlines, material events)",
		"Fundamentals analyst (valuation, growth, dividends)",
	}

	var picked []string
	prompt := &survey.MultiSelect{
		Message: "Select the analyst team (space to toggle, enter to confirm):",
		Options: labels,
		Default: labels,
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(picked))
	for _, label := range picked {
		roles = append(roles, analystOptions[label])
	}
	if len(roles) == 0 {
		roles = consts.AllRoles
	}
	return roles, nil
}

// PromptForResearchDepth asks for the research depth level.
func PromptForResearchDepth() (int, error) {
	options := []string{
		"1 - Fast: single debate round, quick models",
		"2 - Light: single round with fuller data",
		"3 - Standard: default models and rounds",
		"4 - Deep: two debate rounds, deep models",
		"5 - Exhaustive: three debate rounds, deep models",
	}

	var picked string
	prompt := &survey.Select{
		Message: "Select research depth:",
		Options: options,
		Default: options[2],
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return 0, err
	}
	return int(picked[0] - '0'), nil
}
