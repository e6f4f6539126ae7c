package dataflows

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

var ten = decimal.NewFromInt(10)

// AKShareClient talks to a local AKTools bridge exposing AKShare
// endpoints over HTTP. Responses are arrays of row objects with
// Chinese column names.
type AKShareClient struct {
	client *resty.Client
}

func NewAKShareClient(cfg *config.Config) *AKShareClient {
	client := resty.New()
	client.SetBaseURL(cfg.AKToolsBaseURL)
	client.SetTimeout(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	return &AKShareClient{client: client}
}

func (ac *AKShareClient) fetch(ctx context.Context, endpoint string, params map[string]string) ([]map[string]string, error) {
	resp, err := ac.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/api/public/" + endpoint)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	if resp.StatusCode() == 429 {
		return nil, resilience.Errorf(resilience.KindRateLimit, "aktools %s: rate limited", endpoint)
	}
	if resp.StatusCode() != 200 {
		return nil, resilience.Errorf(resilience.KindTransient, "aktools %s: http %d", endpoint, resp.StatusCode())
	}

	var raw []map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}
	rows := make([]map[string]string, 0, len(raw))
	for _, obj := range raw {
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			row[k] = cell(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// StockHistory fetches daily bars via stock_zh_a_hist.
func (ac *AKShareClient) StockHistory(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_zh_a_hist", map[string]string{
		"symbol":     req.Ticker,
		"period":     "daily",
		"start_date": tsDate(req.Start),
		"end_date":   tsDate(req.End),
		"adjust":     "qfq",
	})
	if err != nil {
		return nil, err
	}

	bars := make([]PriceBar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, PriceBar{
			Date:     row["日期"],
			Open:     parseDecimal(row["开盘"]),
			High:     parseDecimal(row["最高"]),
			Low:      parseDecimal(row["最低"]),
			Close:    parseDecimal(row["收盘"]),
			Volume:   int64(parseInt(row["成交量"])) * 100,
			Amount:   parseDecimal(row["成交额"]),
			PctChg:   parseDecimal(row["涨跌幅"]),
			Turnover: parseDecimal(row["换手率"]),
		})
	}
	return bars, nil
}

// StockInfo fetches the item/value profile via stock_individual_info_em.
func (ac *AKShareClient) StockInfo(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_individual_info_em", map[string]string{"symbol": req.Ticker})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "akshare: empty profile for %s", req.Ticker)
	}

	kv := make(map[string]string, len(rows))
	for _, row := range rows {
		kv[row["item"]] = row["value"]
	}
	return &StockInfo{
		Ticker:   req.Ticker,
		Name:     kv["股票简称"],
		Industry: kv["行业"],
		Market:   string(req.Class.Market),
		Currency: req.Class.Currency,
		ListDate: kv["上市时间"],
	}, nil
}

// exchangePrefix picks the market flag stock_individual_fund_flow wants.
func exchangePrefix(ticker string) string {
	if len(ticker) > 0 {
		switch ticker[0] {
		case '6', '9', '5':
			return "sh"
		case '4', '8':
			return "bj"
		}
	}
	return "sz"
}

// CapitalFlowDaily fetches per-day fund flow via stock_individual_fund_flow.
func (ac *AKShareClient) CapitalFlowDaily(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_individual_fund_flow", map[string]string{
		"stock":  req.Ticker,
		"market": exchangePrefix(req.Ticker),
	})
	if err != nil {
		return nil, err
	}

	out := make([]FlowPoint, 0, len(rows))
	for _, row := range rows {
		date := row["日期"]
		if req.Start != "" && date < req.Start {
			continue
		}
		if req.End != "" && date > req.End {
			continue
		}
		out = append(out, FlowPoint{
			Time:        date,
			MainInflow:  parseDecimal(row["主力净流入-净额"]),
			SuperInflow: parseDecimal(row["超大单净流入-净额"]),
			LargeInflow: parseDecimal(row["大单净流入-净额"]),
			MidInflow:   parseDecimal(row["中单净流入-净额"]),
			SmallInflow: parseDecimal(row["小单净流入-净额"]),
		})
	}
	return out, nil
}

// ConceptList fetches concept boards via stock_board_concept_name_em.
func (ac *AKShareClient) ConceptList(ctx context.Context, _ Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_board_concept_name_em", nil)
	if err != nil {
		return nil, err
	}

	out := make([]ConceptRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, ConceptRow{
			Code:      row["板块代码"],
			Name:      row["板块名称"],
			PctChange: parseDecimal(row["涨跌幅"]),
			Leader:    row["领涨股票"],
		})
	}
	return out, nil
}

// ConceptStocks fetches board constituents via stock_board_concept_cons_em.
func (ac *AKShareClient) ConceptStocks(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_board_concept_cons_em", map[string]string{"symbol": req.Ticker})
	if err != nil {
		return nil, err
	}

	out := make([]ConceptStock, 0, len(rows))
	for _, row := range rows {
		out = append(out, ConceptStock{
			Ticker:    row["代码"],
			Name:      row["名称"],
			Price:     parseDecimal(row["最新价"]),
			PctChange: parseDecimal(row["涨跌幅"]),
		})
	}
	return out, nil
}

// ConceptCapitalFlow fetches board fund flow via stock_fund_flow_concept.
func (ac *AKShareClient) ConceptCapitalFlow(ctx context.Context, req Request) (any, error) {
	window := "即时"
	daysType := parseInt(req.Extra["days_type"])
	switch daysType {
	case 5:
		window = "5日排行"
	case 10:
		window = "10日排行"
	}
	rows, err := ac.fetch(ctx, "stock_fund_flow_concept", map[string]string{"symbol": window})
	if err != nil {
		return nil, err
	}

	out := make([]ConceptFlow, 0, len(rows))
	for _, row := range rows {
		flow := ConceptFlow{
			Code:       row["序号"],
			Name:       row["行业"],
			DaysType:   daysType,
			MainInflow: parseDecimal(row["净额"]),
			PctChange:  parseDecimal(row["行业指数涨跌幅"]),
		}
		if flow.Name == "" {
			flow.Name = row["板块名称"]
		}
		out = append(out, flow)
	}
	return out, nil
}

// News fetches recent headlines via stock_news_em.
func (ac *AKShareClient) News(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_news_em", map[string]string{"symbol": req.Ticker})
	if err != nil {
		return nil, err
	}

	out := make([]NewsItem, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse("2006-01-02 15:04:05", row["发布时间"])
		if err != nil {
			ts = time.Time{}
		}
		out = append(out, NewsItem{
			Time:   ts,
			Title:  row["新闻标题"],
			URL:    row["新闻链接"],
			Source: row["文章来源"],
		})
	}
	return out, nil
}

// DividendHistory fetches dividend plans via stock_fhps_detail_em.
func (ac *AKShareClient) DividendHistory(ctx context.Context, req Request) (any, error) {
	rows, err := ac.fetch(ctx, "stock_fhps_detail_em", map[string]string{"symbol": req.Ticker})
	if err != nil {
		return nil, err
	}

	out := make([]DividendRow, 0, len(rows))
	for _, row := range rows {
		exDate := row["除权除息日"]
		if len(exDate) < 4 {
			continue
		}
		year := parseInt(exDate[:4])
		if y0 := parseInt(req.Extra["start_year"]); y0 > 0 && year < y0 {
			continue
		}
		if y1 := parseInt(req.Extra["end_year"]); y1 > 0 && year > y1 {
			continue
		}
		out = append(out, DividendRow{
			Year:   year,
			ExDate: exDate,
			// 每10股 basis, normalize to per-share
			CashPerShare: parseDecimal(row["现金分红-现金分红比例"]).Div(ten),
			SharesRatio:  parseDecimal(row["送转股份-送转总比例"]).Div(ten),
		})
	}
	return out, nil
}
