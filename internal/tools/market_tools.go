package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"tradingagents/consts"
	"tradingagents/internal/config"
	"tradingagents/internal/dataflows"
)

// RegisterMarketTools registers the unified data tools against the
// provider registry and binds the per-role toolsets. The first tool of
// each role is its forced-invocation primary.
func RegisterMarketTools(reg *Registry, data *dataflows.Registry, cfg *config.Config) error {
	google := dataflows.NewGoogleNewsClient(cfg)

	reg.Register(marketDataTool(data))
	reg.Register(indicatorTool(data))
	reg.Register(capitalFlowTool(data))
	reg.Register(conceptOverviewTool(data))
	reg.Register(fundamentalsTool(data))
	reg.Register(stockInfoTool(data))
	reg.Register(dividendTool(data))
	reg.Register(stockNewsTool(data))
	reg.Register(globalNewsTool(google))
	reg.Register(sentimentTool(data))
	reg.Register(conceptAnalysisTool(data))

	if err := reg.BindRole(consts.RoleMarket,
		"get_stock_market_data_unified",
		"get_stock_stats_indicators_window",
		"get_capital_flow_analysis",
		"get_market_capital_flow_overview",
	); err != nil {
		return err
	}
	if err := reg.BindRole(consts.RoleFundamentals,
		"get_stock_fundamentals_unified",
		"get_stock_info_unified",
		"get_dividend_history",
	); err != nil {
		return err
	}
	if err := reg.BindRole(consts.RoleNews,
		"get_stock_news_unified",
		"get_global_news",
	); err != nil {
		return err
	}
	return reg.BindRole(consts.RoleSocial,
		"get_stock_sentiment_unified",
		"get_concept_analysis",
	)
}

var tickerArg = ArgSpec{
	Name:        "ticker",
	Type:        schema.String,
	Required:    true,
	Description: "Stock ticker: 6 digits for CN-A, 4-5 digits or NNNN.HK for HK, letters for US",
	Ticker:      true,
}

func dateArg(name, desc string, required bool) ArgSpec {
	return ArgSpec{Name: name, Type: schema.String, Required: required, Description: desc + ", YYYY-MM-DD"}
}

func marketDataTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_stock_market_data_unified",
		Description: "Get OHLCV price history for a stock over a date range, market-aware across CN-A, HK and US",
		Args: []ArgSpec{
			tickerArg,
			dateArg("start_date", "Range start", true),
			dateArg("end_date", "Range end", true),
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			start := String(args, "start_date", "")
			end := String(args, "end_date", "")
			bars, err := data.StockHistory(ctx, ticker, start, end)
			if err != nil {
				return "", err
			}
			if len(bars) == 0 {
				return fmt.Sprintf("no market data available for %s between %s and %s", ticker, start, end), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Price history for %s (%s to %s), %d rows\n", ticker, start, end, len(bars))
			b.WriteString("date | open | high | low | close | volume\n")
			for _, bar := range bars {
				fmt.Fprintf(&b, "%s | %s | %s | %s | %s | %d\n",
					bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			}
			last := bars[len(bars)-1]
			fmt.Fprintf(&b, "\nLatest close: %s on %s", last.Close, last.Date)
			return b.String(), nil
		},
	}
}

func indicatorTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_stock_stats_indicators_window",
		Description: "Compute a technical indicator series for a stock over a lookback window. Supported: " + strings.Join(supportedIndicators(), ", "),
		Args: []ArgSpec{
			tickerArg,
			{Name: "indicator", Type: schema.String, Required: true, Description: "Indicator name"},
			dateArg("curr_date", "Trading date to anchor the window", true),
			{Name: "look_back_days", Type: schema.Integer, Required: false, Description: "Window length in days (default 30)"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			indicator := String(args, "indicator", "")
			if _, ok := indicatorGuide[indicator]; !ok {
				return "", fmt.Errorf("indicator %s is not supported, choose from: %s",
					indicator, strings.Join(supportedIndicators(), ", "))
			}
			ticker := String(args, "ticker", "")
			currDate := String(args, "curr_date", "")
			lookBack := Int(args, "look_back_days", 30)

			end, err := time.Parse("2006-01-02", currDate)
			if err != nil {
				return "", fmt.Errorf("invalid curr_date %q", currDate)
			}
			start := end.AddDate(0, 0, -lookBack)
			// extra history so long-window indicators have data
			fetchStart := start.AddDate(0, 0, -300)

			bars, err := data.StockHistory(ctx, ticker, fetchStart.Format("2006-01-02"), currDate)
			if err != nil {
				return "", err
			}
			values, err := computeIndicator(bars, indicator, start.Format("2006-01-02"), currDate)
			if err != nil {
				return "", err
			}
			if len(values) == 0 {
				return fmt.Sprintf("not enough history to compute %s for %s", indicator, ticker), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "## %s for %s, %s to %s\n\n", indicator, ticker, start.Format("2006-01-02"), currDate)
			for _, v := range values {
				fmt.Fprintf(&b, "%s: %.4f\n", v.Date, v.Value)
			}
			b.WriteString("\n" + indicatorGuide[indicator])
			return b.String(), nil
		},
	}
}

func capitalFlowTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_capital_flow_analysis",
		Description: "Get intraday and recent daily capital flow for a CN-A stock",
		Args: []ArgSpec{
			tickerArg,
			dateArg("curr_date", "Trading date", false),
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			currDate := String(args, "curr_date", time.Now().Format("2006-01-02"))
			end, err := time.Parse("2006-01-02", currDate)
			if err != nil {
				return "", fmt.Errorf("invalid curr_date %q", currDate)
			}
			start := end.AddDate(0, 0, -10)

			var b strings.Builder
			realtime, err := data.CapitalFlowRealtime(ctx, ticker)
			if err != nil {
				return "", err
			}
			if len(realtime) > 0 {
				p := realtime[len(realtime)-1]
				fmt.Fprintf(&b, "Realtime capital flow for %s at %s\n", ticker, p.Time)
				fmt.Fprintf(&b, "- main: %s, super: %s, large: %s, mid: %s, small: %s\n\n",
					p.MainInflow, p.SuperInflow, p.LargeInflow, p.MidInflow, p.SmallInflow)
			}

			daily, err := data.CapitalFlowDaily(ctx, ticker, start.Format("2006-01-02"), currDate)
			if err != nil {
				return "", err
			}
			if len(daily) > 0 {
				fmt.Fprintf(&b, "Daily net flow, last %d sessions\n", len(daily))
				for _, p := range daily {
					fmt.Fprintf(&b, "%s | main %s | small %s\n", p.Time, p.MainInflow, p.SmallInflow)
				}
			}
			if b.Len() == 0 {
				return fmt.Sprintf("no capital flow data available for %s", ticker), nil
			}
			return b.String(), nil
		},
	}
}

func conceptOverviewTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_market_capital_flow_overview",
		Description: "Get market-wide concept board capital flow ranking for a 1, 5 or 10 day window",
		Args: []ArgSpec{
			{Name: "days_type", Type: schema.Integer, Required: false, Description: "Window: 1, 5 or 10 days (default 1)"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			daysType := Int(args, "days_type", 1)
			flows := data.ConceptCapitalFlow(ctx, "all", daysType)
			if len(flows) == 0 {
				return "no market capital flow data available", nil
			}
			limit := 15
			if len(flows) < limit {
				limit = len(flows)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Concept board capital flow, %d-day window, top %d\n", daysType, limit)
			for _, f := range flows[:limit] {
				fmt.Fprintf(&b, "%s | net %s | pct %s%%\n", f.Name, f.MainInflow, f.PctChange)
			}
			return b.String(), nil
		},
	}
}

func fundamentalsTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_stock_fundamentals_unified",
		Description: "Get a fundamentals report for a stock: valuation, profitability, growth and leverage",
		Args: []ArgSpec{
			tickerArg,
			dateArg("curr_date", "As-of date", false),
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			asOf := String(args, "curr_date", time.Now().Format("2006-01-02"))
			report, err := data.Fundamentals(ctx, ticker, asOf)
			if err != nil {
				return "", err
			}
			if report == "" {
				return fmt.Sprintf("no fundamentals data available for %s", ticker), nil
			}
			return report, nil
		},
	}
}

func stockInfoTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:           "get_stock_info_unified",
		Description:    "Get the static company profile: name, industry, market, currency, listing date",
		Args:           []ArgSpec{tickerArg},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			info, err := data.StockInfo(ctx, String(args, "ticker", ""))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (%s)\n- industry: %s\n- market: %s\n- currency: %s\n- listed: %s",
				info.Name, info.Ticker, info.Industry, info.Market, info.Currency, info.ListDate), nil
		},
	}
}

func dividendTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_dividend_history",
		Description: "Get dividend history rows for a stock, optionally bounded by year",
		Args: []ArgSpec{
			tickerArg,
			{Name: "start_year", Type: schema.Integer, Required: false, Description: "First year to include"},
			{Name: "end_year", Type: schema.Integer, Required: false, Description: "Last year to include"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			rows, err := data.DividendHistory(ctx, ticker, Int(args, "start_year", 0), Int(args, "end_year", 0))
			if err != nil {
				return "", err
			}
			if len(rows) == 0 {
				return fmt.Sprintf("no dividend history available for %s", ticker), nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Dividend history for %s\n", ticker)
			for _, row := range rows {
				fmt.Fprintf(&b, "%d | ex-date %s | cash/share %s | shares ratio %s\n",
					row.Year, row.ExDate, row.CashPerShare, row.SharesRatio)
			}
			return b.String(), nil
		},
	}
}

func stockNewsTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_stock_news_unified",
		Description: "Get recent news headlines for a stock",
		Args: []ArgSpec{
			tickerArg,
			dateArg("curr_date", "As-of date", false),
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			asOf := String(args, "curr_date", time.Now().Format("2006-01-02"))
			items, err := data.News(ctx, ticker, asOf)
			if err != nil {
				return "", err
			}
			if len(items) == 0 {
				return fmt.Sprintf("no news available for %s around %s", ticker, asOf), nil
			}
			return formatNews(fmt.Sprintf("News for %s", ticker), items), nil
		},
	}
}

func globalNewsTool(google *dataflows.GoogleNewsClient) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_global_news",
		Description: "Search global market news by free-text query",
		Args: []ArgSpec{
			{Name: "query", Type: schema.String, Required: true, Description: "Search phrase, e.g. a company or macro topic"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := String(args, "query", "")
			result, err := google.News(ctx, dataflows.Request{Ticker: query})
			if err != nil {
				return "", err
			}
			items, _ := result.([]dataflows.NewsItem)
			if len(items) == 0 {
				return fmt.Sprintf("no global news found for %q", query), nil
			}
			return formatNews(fmt.Sprintf("Global news for %q", query), items), nil
		},
	}
}

func sentimentTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_stock_sentiment_unified",
		Description: "Gauge discussion heat and tone around a stock from recent headlines and retail flow",
		Args: []ArgSpec{
			tickerArg,
			dateArg("curr_date", "As-of date", false),
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticker := String(args, "ticker", "")
			asOf := String(args, "curr_date", time.Now().Format("2006-01-02"))

			items, err := data.News(ctx, ticker, asOf)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Sentiment signals for %s as of %s\n", ticker, asOf)
			fmt.Fprintf(&b, "- headline volume (recent): %d\n", len(items))

			if flows, err := data.CapitalFlowRealtime(ctx, ticker); err == nil && len(flows) > 0 {
				p := flows[len(flows)-1]
				tone := "neutral"
				switch {
				case p.SmallInflow.IsPositive():
					tone = "retail accumulation"
				case p.SmallInflow.IsNegative():
					tone = "retail distribution"
				}
				fmt.Fprintf(&b, "- retail order flow: %s (small-order net %s)\n", tone, p.SmallInflow)
			}
			if len(items) > 0 {
				b.WriteString("- latest headlines:\n")
				limit := 5
				if len(items) < limit {
					limit = len(items)
				}
				for _, item := range items[:limit] {
					fmt.Fprintf(&b, "  - %s (%s)\n", item.Title, item.Source)
				}
			}
			return b.String(), nil
		},
	}
}

func conceptAnalysisTool(data *dataflows.Registry) *ToolDescriptor {
	return &ToolDescriptor{
		Name:        "get_concept_analysis",
		Description: "Look up a CN concept board by name or code: change, leader and top constituents",
		Args: []ArgSpec{
			{Name: "concept", Type: schema.String, Required: true, Description: "Concept board name or code, e.g. 人工智能 or BK0800"},
		},
		SideEffectFree: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := String(args, "concept", "")
			boards := data.ConceptList(ctx)
			if len(boards) == 0 {
				return "no concept board data available", nil
			}
			var match *dataflows.ConceptRow
			for i, board := range boards {
				if board.Code == query || board.Name == query {
					match = &boards[i]
					break
				}
				if match == nil && strings.Contains(board.Name, query) {
					match = &boards[i]
				}
			}
			if match == nil {
				return fmt.Sprintf("no concept board matches %q", query), nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Concept board %s (%s): %s%% today", match.Name, match.Code, match.PctChange)
			if match.Leader != "" {
				fmt.Fprintf(&b, ", led by %s", match.Leader)
			}
			b.WriteString("\n")

			stocks := data.ConceptStocks(ctx, match.Code)
			if len(stocks) > 0 {
				limit := 10
				if len(stocks) < limit {
					limit = len(stocks)
				}
				b.WriteString("Top constituents:\n")
				for _, s := range stocks[:limit] {
					fmt.Fprintf(&b, "%s %s | %s | %s%%\n", s.Ticker, s.Name, s.Price, s.PctChange)
				}
			}
			return b.String(), nil
		},
	}
}

func formatNews(header string, items []dataflows.NewsItem) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for _, item := range items {
		stamp := ""
		if !item.Time.IsZero() {
			stamp = item.Time.Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(&b, "- %s%s (%s) %s\n", stamp, item.Title, item.Source, item.URL)
	}
	return b.String()
}
