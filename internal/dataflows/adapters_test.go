package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"

	"tradingagents/internal/config"
	"tradingagents/internal/market"
	"tradingagents/internal/resilience"
)

func cnRequest(ticker string) Request {
	return Request{
		Ticker: ticker,
		Class:  market.Classification{Market: market.ChinaA, Normalized: ticker, Currency: "CNY"},
		Start:  "2024-05-01",
		End:    "2024-05-10",
	}
}

func TestAKShareStockHistoryParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/public/stock_zh_a_hist" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("start_date"); got != "20240501" {
			t.Errorf("start_date = %q", got)
		}
		w.Write([]byte(`[
			{"日期":"2024-05-09","开盘":1700.0,"收盘":1712.5,"最高":1720.0,"最低":1695.0,"成交量":25000,"成交额":4.3e9,"涨跌幅":0.74,"换手率":0.2},
			{"日期":"2024-05-10","开盘":1712.5,"收盘":1705.0,"最高":1715.0,"最低":1700.0,"成交量":21000,"成交额":3.6e9,"涨跌幅":-0.44,"换手率":0.17}
		]`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.AKToolsBaseURL = srv.URL
	ac := NewAKShareClient(cfg)

	result, err := ac.StockHistory(context.Background(), cnRequest("600519"))
	if err != nil {
		t.Fatal(err)
	}
	bars := result.([]PriceBar)
	if len(bars) != 2 {
		t.Fatalf("got %d bars", len(bars))
	}
	if bars[0].Date != "2024-05-09" || bars[0].Close.String() != "1712.5" {
		t.Fatalf("first bar = %+v", bars[0])
	}
	if bars[1].Volume != 2100000 {
		t.Fatalf("volume = %d, want lots converted to shares", bars[1].Volume)
	}
}

func TestAKShareMalformedPayloadIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.AKToolsBaseURL = srv.URL
	ac := NewAKShareClient(cfg)

	_, err := ac.StockHistory(context.Background(), cnRequest("600519"))
	if err == nil || resilience.KindOf(err) != resilience.KindInvalidResponse {
		t.Fatalf("err = %v, want invalid_response kind", err)
	}
}

func TestAKShareNewsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"关键词":"600519","新闻标题":"白酒板块走强","新闻内容":"...","发布时间":"2024-05-10 09:30:00","文章来源":"东方财富","新闻链接":"https://example.com/a"}
		]`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.AKToolsBaseURL = srv.URL
	ac := NewAKShareClient(cfg)

	result, err := ac.News(context.Background(), cnRequest("600519"))
	if err != nil {
		t.Fatal(err)
	}
	items := result.([]NewsItem)
	if len(items) != 1 || items[0].Title != "白酒板块走强" || items[0].Source != "东方财富" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Time.Format("15:04") != "09:30" {
		t.Fatalf("time = %v", items[0].Time)
	}
}

func TestTushareQueryRowMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":0,"msg":null,"data":{
			"fields":["trade_date","open","high","low","close","vol","amount","pct_chg"],
			"items":[
				["20240510",1712.5,1715.0,1700.0,1705.0,210.0,3.6,-0.44],
				["20240509",1700.0,1720.0,1695.0,1712.5,250.0,4.3,0.74]
			]}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.TushareToken = "test-token"
	tc := NewTushareClient(cfg)
	tc.client.SetBaseURL(srv.URL)

	result, err := tc.StockHistory(context.Background(), cnRequest("600519"))
	if err != nil {
		t.Fatal(err)
	}
	bars := result.([]PriceBar)
	if len(bars) != 2 {
		t.Fatalf("got %d bars", len(bars))
	}
	// oldest first after reversal
	if bars[0].Date != "2024-05-09" || bars[1].Date != "2024-05-10" {
		t.Fatalf("order = %s, %s", bars[0].Date, bars[1].Date)
	}
	if bars[0].Volume != 25000 {
		t.Fatalf("volume = %d, want lots x100", bars[0].Volume)
	}
}

func TestTushareErrorCodeIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"code":40001,"msg":"token invalid","data":null}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.TushareToken = "bad"
	tc := NewTushareClient(cfg)
	tc.client.SetBaseURL(srv.URL)

	_, err := tc.StockHistory(context.Background(), cnRequest("600519"))
	if err == nil || resilience.KindOf(err) != resilience.KindInvalidResponse {
		t.Fatalf("err = %v, want invalid_response kind", err)
	}
}

func TestTsCodeSuffixes(t *testing.T) {
	cases := map[string]string{
		"600519": "600519.SH",
		"000001": "000001.SZ",
		"300750": "300750.SZ",
		"830799": "830799.BJ",
	}
	for ticker, want := range cases {
		if got := tsCode(ticker); got != want {
			t.Errorf("tsCode(%s) = %s, want %s", ticker, got, want)
		}
	}
}

func TestSinaRealtimeFlowParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("daima"); got != "sh600519" {
			t.Errorf("daima = %q", got)
		}
		w.Write([]byte(`({r0_in:"1000.5",r0_out:"400.5",r1_in:"300",r1_out:"100",r2_in:"50",r2_out:"80",r3_in:"20",r3_out:"10",netamount:"780"})`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	sc := NewSinaClient(cfg)
	sc.client.SetBaseURL(srv.URL)
	sc.now = func() time.Time { return time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC) }

	result, err := sc.CapitalFlowRealtime(context.Background(), cnRequest("600519"))
	if err != nil {
		t.Fatal(err)
	}
	points := result.([]FlowPoint)
	if len(points) != 1 {
		t.Fatalf("got %d points", len(points))
	}
	p := points[0]
	if p.SuperInflow.String() != "600" || p.LargeInflow.String() != "200" {
		t.Fatalf("tiers = %+v", p)
	}
	if p.MainInflow.String() != "800" {
		t.Fatalf("main inflow = %s, want super+large", p.MainInflow)
	}
	if p.Time != "2024-05-10 10:30" {
		t.Fatalf("time = %s", p.Time)
	}
}

func TestFinnhubNewsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "fh-key" {
			t.Errorf("token = %q", got)
		}
		w.Write([]byte(`[
			{"datetime":1715330000,"headline":"Apple beats estimates","source":"Reuters","url":"https://example.com/n1"},
			{"datetime":1715320000,"headline":"","source":"Spam","url":""}
		]`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.FinnhubAPIKey = "fh-key"
	fc := NewFinnhubClient(cfg)
	fc.client.SetBaseURL(srv.URL)

	req := Request{
		Ticker: "AAPL",
		Class:  market.Classification{Market: market.US, Normalized: "AAPL", Currency: "USD"},
		End:    "2024-05-10",
	}
	result, err := fc.News(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	items := result.([]NewsItem)
	if len(items) != 1 {
		t.Fatalf("got %d items, want headline-less rows dropped", len(items))
	}
	if items[0].Title != "Apple beats estimates" || items[0].Source != "Reuters" {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestGoogleNewsRelativeTime(t *testing.T) {
	gc := NewGoogleNewsClient(config.DefaultConfig())
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	gc.now = func() time.Time { return base }

	cases := map[string]time.Time{
		"3 hours ago":  base.Add(-3 * time.Hour),
		"45 mins":      base.Add(-time.Hour), // unparseable fallback
		"2 days ago":   base.AddDate(0, 0, -2),
		"1 week ago":   base.AddDate(0, 0, -7),
		"5 minutes ago": base.Add(-5 * time.Minute),
	}
	for text, want := range cases {
		if got := gc.relativeTime(text); !got.Equal(want) {
			t.Errorf("relativeTime(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestYahooFundamentalsRendering(t *testing.T) {
	q := &finance.Equity{
		TrailingPE:              28.5,
		ForwardPE:               24.1,
		EpsTrailingTwelveMonths: 6.42,
		PriceToBook:             45.3,
		BookValue:               4.05,
		MarketCap:               2_800_000_000_000,
	}
	q.ShortName = "Apple Inc."
	q.FiftyTwoWeekLow = 164.08
	q.FiftyTwoWeekHigh = 199.62
	q.AverageDailyVolume3Month = 58_000_000

	report := renderEquityFundamentals("AAPL", q)
	for _, want := range []string{
		"Fundamentals snapshot for AAPL (Apple Inc.)",
		"Market cap: 2800000000000",
		"Trailing P/E: 28.50",
		"EPS (trailing 12m): 6.42",
		"52w range: 164.08 - 199.62",
		"Avg daily volume (3m): 58000000",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
