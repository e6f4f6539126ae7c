package dataflows

import (
	"context"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

// LongportClient serves HK-market history and profiles through the
// Longport OpenAPI quote context.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, fmt.Errorf("longport credentials not configured")
	}
	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}
	quoteCtx, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	return &LongportClient{quoteCtx: quoteCtx}, nil
}

// StockHistory fetches up to a year of daily candlesticks and trims to
// the requested window.
func (lc *LongportClient) StockHistory(ctx context.Context, req Request) (any, error) {
	sticks, err := lc.quoteCtx.Candlesticks(ctx, req.Ticker, quote.PeriodDay, 365, quote.AdjustTypeNo)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, fmt.Errorf("longport candlesticks %s: %w", req.Ticker, err))
	}

	bars := make([]PriceBar, 0, len(sticks))
	for _, s := range sticks {
		if s == nil {
			continue
		}
		date := time.Unix(s.Timestamp, 0).UTC().Format("2006-01-02")
		if req.Start != "" && date < req.Start {
			continue
		}
		if req.End != "" && date > req.End {
			continue
		}
		bars = append(bars, PriceBar{
			Date:   date,
			Open:   deref(s.Open),
			High:   deref(s.High),
			Low:    deref(s.Low),
			Close:  deref(s.Close),
			Volume: s.Volume,
			Amount: deref(s.Turnover),
		})
	}
	return bars, nil
}

// StockInfo fetches the static profile.
func (lc *LongportClient) StockInfo(ctx context.Context, req Request) (any, error) {
	infos, err := lc.quoteCtx.StaticInfo(ctx, []string{req.Ticker})
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, fmt.Errorf("longport static info %s: %w", req.Ticker, err))
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "longport: no static info for %s", req.Ticker)
	}

	info := infos[0]
	name := info.NameEn
	if info.NameCn != "" {
		name = info.NameCn
	}
	return &StockInfo{
		Ticker:   req.Ticker,
		Name:     name,
		Area:     info.Exchange,
		Market:   string(req.Class.Market),
		Currency: req.Class.Currency,
	}, nil
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
