package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

// FinnhubClient serves US company news and fundamental metrics.
type FinnhubClient struct {
	client *resty.Client
	apiKey string
}

func NewFinnhubClient(cfg *config.Config) *FinnhubClient {
	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	return &FinnhubClient{client: client, apiKey: cfg.FinnhubAPIKey}
}

func (fc *FinnhubClient) Configured() bool { return fc.apiKey != "" }

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	params["token"] = fc.apiKey
	resp, err := fc.client.R().SetContext(ctx).SetQueryParams(params).Get(path)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	switch {
	case resp.StatusCode() == 429:
		return nil, resilience.Errorf(resilience.KindRateLimit, "finnhub %s: rate limited", path)
	case resp.StatusCode() != 200:
		return nil, resilience.Errorf(resilience.KindTransient, "finnhub %s: http %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}

type finnhubNews struct {
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// News fetches company headlines for the week ending at req.End.
func (fc *FinnhubClient) News(ctx context.Context, req Request) (any, error) {
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		end = time.Now()
	}
	start := end.AddDate(0, 0, -7)

	body, err := fc.get(ctx, "/company-news", map[string]string{
		"symbol": req.Ticker,
		"from":   start.Format("2006-01-02"),
		"to":     end.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	var raw []finnhubNews
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}

	out := make([]NewsItem, 0, len(raw))
	for _, n := range raw {
		if n.Headline == "" {
			continue
		}
		out = append(out, NewsItem{
			Time:   time.Unix(n.DateTime, 0).UTC(),
			Title:  n.Headline,
			URL:    n.URL,
			Source: n.Source,
		})
	}
	return out, nil
}

// Fundamentals renders the basic-financials metric block as a report.
func (fc *FinnhubClient) Fundamentals(ctx context.Context, req Request) (any, error) {
	body, err := fc.get(ctx, "/stock/metric", map[string]string{
		"symbol": req.Ticker,
		"metric": "all",
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Metric map[string]any `json:"metric"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}
	if len(parsed.Metric) == 0 {
		return "", nil
	}

	keys := []struct{ metric, label string }{
		{"peTTM", "P/E (TTM)"},
		{"pbAnnual", "P/B"},
		{"epsTTM", "EPS (TTM)"},
		{"roeTTM", "ROE (TTM) %"},
		{"grossMarginTTM", "Gross margin %"},
		{"netProfitMarginTTM", "Net margin %"},
		{"revenueGrowthTTMYoy", "Revenue growth YoY %"},
		{"totalDebt/totalEquityAnnual", "Debt/Equity"},
		{"currentRatioAnnual", "Current ratio"},
		{"dividendYieldIndicatedAnnual", "Dividend yield %"},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Key financial metrics for %s\n", req.Ticker)
	for _, k := range keys {
		if v, ok := parsed.Metric[k.metric]; ok && v != nil {
			fmt.Fprintf(&b, "- %s: %v\n", k.label, v)
		}
	}
	return b.String(), nil
}
