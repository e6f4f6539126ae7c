package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"

	"tradingagents/internal/resilience"
)

// YahooClient wraps the Yahoo Finance chart and quote surfaces for US
// symbols. The underlying library manages its own HTTP transport.
type YahooClient struct{}

func NewYahooClient() *YahooClient { return &YahooClient{} }

// StockHistory fetches daily bars between req.Start and req.End.
func (yc *YahooClient) StockHistory(ctx context.Context, req Request) (any, error) {
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "bad start date %q", req.Start)
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "bad end date %q", req.End)
	}
	if err := ctx.Err(); err != nil {
		return nil, resilience.WithKind(resilience.KindCancelled, err)
	}

	iter := chart.Get(&chart.Params{
		Symbol:   req.Ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []PriceBar
	for iter.Next() {
		bar := iter.Bar()
		bars = append(bars, PriceBar{
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC().Format("2006-01-02"),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, fmt.Errorf("yahoo chart %s: %w", req.Ticker, err))
	}
	return bars, nil
}

// StockInfo fetches the static profile from the quote surface.
func (yc *YahooClient) StockInfo(ctx context.Context, req Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, resilience.WithKind(resilience.KindCancelled, err)
	}
	q, err := quote.Get(req.Ticker)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, fmt.Errorf("yahoo quote %s: %w", req.Ticker, err))
	}
	if q == nil {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "yahoo: no quote for %s", req.Ticker)
	}
	return &StockInfo{
		Ticker:   req.Ticker,
		Name:     q.ShortName,
		Market:   string(req.Class.Market),
		Currency: req.Class.Currency,
		Area:     q.FullExchangeName,
	}, nil
}

// Fundamentals renders the equity's valuation fields as a short report.
// The valuation block lives on the equity surface, not the bare quote.
func (yc *YahooClient) Fundamentals(ctx context.Context, req Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, resilience.WithKind(resilience.KindCancelled, err)
	}
	q, err := equity.Get(req.Ticker)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, fmt.Errorf("yahoo equity %s: %w", req.Ticker, err))
	}
	if q == nil {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "yahoo: no equity data for %s", req.Ticker)
	}
	return renderEquityFundamentals(req.Ticker, q), nil
}

func renderEquityFundamentals(ticker string, q *finance.Equity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fundamentals snapshot for %s (%s)\n", ticker, q.ShortName)
	fmt.Fprintf(&b, "- Market cap: %d\n", q.MarketCap)
	fmt.Fprintf(&b, "- Trailing P/E: %.2f\n", q.TrailingPE)
	fmt.Fprintf(&b, "- Forward P/E: %.2f\n", q.ForwardPE)
	fmt.Fprintf(&b, "- EPS (trailing 12m): %.2f\n", q.EpsTrailingTwelveMonths)
	fmt.Fprintf(&b, "- Price/Book: %.2f\n", q.PriceToBook)
	fmt.Fprintf(&b, "- Book value: %.2f\n", q.BookValue)
	fmt.Fprintf(&b, "- 52w range: %.2f - %.2f\n", q.FiftyTwoWeekLow, q.FiftyTwoWeekHigh)
	fmt.Fprintf(&b, "- Avg daily volume (3m): %d\n", q.AverageDailyVolume3Month)
	return b.String()
}
