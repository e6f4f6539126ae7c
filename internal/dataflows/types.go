// Package dataflows is the upstream data layer: typed row models, the
// capability registry and the per-vendor adapters. Adapters are
// untrusted; malformed payloads surface as invalid-response errors and
// the registry degrades to empty results instead of failing the run.
package dataflows

import (
	"time"

	"github.com/shopspring/decimal"

	"tradingagents/internal/market"
)

// Capability identifiers. Each names one data-fetch operation the
// registry can dispatch.
const (
	CapStockHistory        = "stock_history"
	CapStockInfo           = "stock_info"
	CapFundamentals        = "fundamentals"
	CapNews                = "news"
	CapCapitalFlowRealtime = "capital_flow_realtime"
	CapCapitalFlowDaily    = "capital_flow_daily"
	CapConceptList         = "concept_list"
	CapConceptStocks       = "concept_stocks"
	CapConceptCapitalFlow  = "concept_capital_flow"
	CapDividendHistory     = "dividend_history"
)

// dataTypeFor maps a capability to the cache data type that drives its
// default TTL.
var dataTypeFor = map[string]string{
	CapStockHistory:        "stock_data",
	CapStockInfo:           "stock_data",
	CapFundamentals:        "fundamentals",
	CapNews:                "news_data",
	CapCapitalFlowRealtime: "market_data",
	CapCapitalFlowDaily:    "capital_flow",
	CapConceptList:         "concept_data",
	CapConceptStocks:       "concept_data",
	CapConceptCapitalFlow:  "concept_data",
	CapDividendHistory:     "dividend_data",
}

// Request carries the dispatch arguments common to every capability.
// Ticker is already normalized and classified by the registry.
type Request struct {
	Ticker string                `json:"ticker"`
	Class  market.Classification `json:"class"`
	Start  string                `json:"start,omitempty"` // YYYY-MM-DD
	End    string                `json:"end,omitempty"`
	Extra  map[string]string     `json:"extra,omitempty"`
}

// PriceBar is one OHLCV row of a stock price history.
type PriceBar struct {
	Date     string          `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   int64           `json:"volume"`
	Amount   decimal.Decimal `json:"amount,omitempty"`
	PctChg   decimal.Decimal `json:"pct_chg,omitempty"`
	Turnover decimal.Decimal `json:"turnover,omitempty"`
}

// StockInfo is the static company profile.
type StockInfo struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Area     string `json:"area"`
	Market   string `json:"market"`
	Currency string `json:"currency"`
	ListDate string `json:"list_date"`
}

// NewsItem is one headline row.
type NewsItem struct {
	Time   time.Time `json:"time"`
	Title  string    `json:"title"`
	URL    string    `json:"url"`
	Source string    `json:"source"`
}

// FlowPoint is one capital-flow observation, intraday or daily.
type FlowPoint struct {
	Time        string          `json:"time"`
	MainInflow  decimal.Decimal `json:"main_inflow"`
	SuperInflow decimal.Decimal `json:"super_inflow"`
	LargeInflow decimal.Decimal `json:"large_inflow"`
	MidInflow   decimal.Decimal `json:"mid_inflow"`
	SmallInflow decimal.Decimal `json:"small_inflow"`
}

// ConceptRow is one concept/sector board.
type ConceptRow struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	PctChange decimal.Decimal `json:"pct_change"`
	Leader    string          `json:"leader,omitempty"`
}

// ConceptStock is one constituent of a concept board.
type ConceptStock struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	PctChange decimal.Decimal `json:"pct_change"`
}

// ConceptFlow is one capital-flow row for a concept board.
type ConceptFlow struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	DaysType   int             `json:"days_type"` // 1, 5 or 10
	MainInflow decimal.Decimal `json:"main_inflow"`
	PctChange  decimal.Decimal `json:"pct_change"`
}

// DividendRow is one dividend-history row.
type DividendRow struct {
	Year         int             `json:"year"`
	ExDate       string          `json:"ex_date"`
	CashPerShare decimal.Decimal `json:"cash_per_share"`
	SharesRatio  decimal.Decimal `json:"shares_ratio,omitempty"`
}
