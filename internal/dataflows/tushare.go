package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

// TushareClient talks to the Tushare Pro JSON-RPC style endpoint. All
// queries go through a single POST with api_name and a params map.
type TushareClient struct {
	client *resty.Client
	token  string
}

func NewTushareClient(cfg *config.Config) *TushareClient {
	client := resty.New()
	client.SetBaseURL("https://api.tushare.pro")
	client.SetTimeout(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	return &TushareClient{client: client, token: cfg.TushareToken}
}

// Configured reports whether a token is present; the registry skips
// registration otherwise.
func (tc *TushareClient) Configured() bool { return tc.token != "" }

type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// cell renders a mixed-type tushare item value as a plain string.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	default:
		return fmt.Sprint(t)
	}
}

func (tc *TushareClient) query(ctx context.Context, apiName string, params map[string]string, fields string) ([]map[string]string, error) {
	body := map[string]any{
		"api_name": apiName,
		"token":    tc.token,
		"params":   params,
		"fields":   fields,
	}
	resp, err := tc.client.R().SetContext(ctx).SetBody(body).Post("/")
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	if resp.StatusCode() != 200 {
		return nil, resilience.Errorf(resilience.KindTransient, "tushare http %d", resp.StatusCode())
	}

	var parsed tushareResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}
	if parsed.Code != 0 {
		if strings.Contains(parsed.Msg, "每分钟") || strings.Contains(strings.ToLower(parsed.Msg), "limit") {
			return nil, resilience.Errorf(resilience.KindRateLimit, "tushare: %s", parsed.Msg)
		}
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "tushare code %d: %s", parsed.Code, parsed.Msg)
	}

	rows := make([]map[string]string, 0, len(parsed.Data.Items))
	for _, item := range parsed.Data.Items {
		if len(item) != len(parsed.Data.Fields) {
			return nil, resilience.Errorf(resilience.KindInvalidResponse, "tushare row width %d != %d fields", len(item), len(parsed.Data.Fields))
		}
		row := make(map[string]string, len(item))
		for i, field := range parsed.Data.Fields {
			row[field] = cell(item[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// tsCode maps a six-digit CN-A ticker to Tushare's suffixed form.
func tsCode(ticker string) string {
	switch ticker[0] {
	case '6', '9', '5':
		return ticker + ".SH"
	case '4', '8':
		return ticker + ".BJ"
	default:
		return ticker + ".SZ"
	}
}

func tsDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

// StockHistory fetches daily OHLCV bars, oldest first.
func (tc *TushareClient) StockHistory(ctx context.Context, req Request) (any, error) {
	rows, err := tc.query(ctx, "daily", map[string]string{
		"ts_code":    tsCode(req.Ticker),
		"start_date": tsDate(req.Start),
		"end_date":   tsDate(req.End),
	}, "trade_date,open,high,low,close,vol,amount,pct_chg")
	if err != nil {
		return nil, err
	}

	bars := make([]PriceBar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // tushare returns newest first
		row := rows[i]
		bar := PriceBar{
			Date:   formatTsDate(row["trade_date"]),
			Open:   parseDecimal(row["open"]),
			High:   parseDecimal(row["high"]),
			Low:    parseDecimal(row["low"]),
			Close:  parseDecimal(row["close"]),
			Amount: parseDecimal(row["amount"]),
			PctChg: parseDecimal(row["pct_chg"]),
		}
		// vol is in lots of 100 shares
		bar.Volume = parseDecimal(row["vol"]).Mul(decimal.NewFromInt(100)).IntPart()
		bars = append(bars, bar)
	}
	return bars, nil
}

// StockInfo fetches the static company profile.
func (tc *TushareClient) StockInfo(ctx context.Context, req Request) (any, error) {
	rows, err := tc.query(ctx, "stock_basic", map[string]string{
		"ts_code": tsCode(req.Ticker),
	}, "ts_code,name,industry,area,market,list_date")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "tushare: no stock_basic row for %s", req.Ticker)
	}
	row := rows[0]
	return &StockInfo{
		Ticker:   req.Ticker,
		Name:     row["name"],
		Industry: row["industry"],
		Area:     row["area"],
		Market:   string(req.Class.Market),
		Currency: req.Class.Currency,
		ListDate: formatTsDate(row["list_date"]),
	}, nil
}

// Fundamentals fetches the latest financial indicator row and renders
// it as a report.
func (tc *TushareClient) Fundamentals(ctx context.Context, req Request) (any, error) {
	rows, err := tc.query(ctx, "fina_indicator", map[string]string{
		"ts_code": tsCode(req.Ticker),
	}, "end_date,eps,roe,grossprofit_margin,netprofit_margin,debt_to_assets,or_yoy,netprofit_yoy")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return "", nil
	}

	row := rows[0]
	var b strings.Builder
	fmt.Fprintf(&b, "财务指标 (%s, 报告期 %s)\n", req.Ticker, formatTsDate(row["end_date"]))
	fmt.Fprintf(&b, "- 每股收益 EPS: %s\n", row["eps"])
	fmt.Fprintf(&b, "- 净资产收益率 ROE: %s%%\n", row["roe"])
	fmt.Fprintf(&b, "- 毛利率: %s%%\n", row["grossprofit_margin"])
	fmt.Fprintf(&b, "- 净利率: %s%%\n", row["netprofit_margin"])
	fmt.Fprintf(&b, "- 资产负债率: %s%%\n", row["debt_to_assets"])
	fmt.Fprintf(&b, "- 营收同比: %s%%\n", row["or_yoy"])
	fmt.Fprintf(&b, "- 净利润同比: %s%%\n", row["netprofit_yoy"])
	return b.String(), nil
}

// DividendHistory fetches cash dividend rows.
func (tc *TushareClient) DividendHistory(ctx context.Context, req Request) (any, error) {
	rows, err := tc.query(ctx, "dividend", map[string]string{
		"ts_code": tsCode(req.Ticker),
	}, "end_date,ex_date,cash_div_tax,stk_div")
	if err != nil {
		return nil, err
	}

	out := make([]DividendRow, 0, len(rows))
	for _, row := range rows {
		endDate := row["end_date"]
		if len(endDate) < 4 || row["ex_date"] == "" {
			continue
		}
		year := parseInt(endDate[:4])
		if y0 := parseInt(req.Extra["start_year"]); y0 > 0 && year < y0 {
			continue
		}
		if y1 := parseInt(req.Extra["end_year"]); y1 > 0 && year > y1 {
			continue
		}
		out = append(out, DividendRow{
			Year:         year,
			ExDate:       formatTsDate(row["ex_date"]),
			CashPerShare: parseDecimal(row["cash_div_tax"]),
			SharesRatio:  parseDecimal(row["stk_div"]),
		})
	}
	return out, nil
}

func formatTsDate(yyyymmdd string) string {
	if len(yyyymmdd) != 8 {
		return yyyymmdd
	}
	return yyyymmdd[:4] + "-" + yyyymmdd[4:6] + "-" + yyyymmdd[6:]
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(s string) int {
	var n int
	fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n
}
