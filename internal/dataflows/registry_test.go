package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradingagents/internal/cache"
	"tradingagents/internal/config"
	"tradingagents/internal/market"
	"tradingagents/internal/resilience"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	mgr := cache.NewManager(cache.NewMemoryBackend(100), nil, cfg.Cache)
	r := NewRegistry(mgr, resilience.NewHandler(resilience.DefaultBreakerConfig()), cfg)
	r.policy = resilience.RetryPolicy{
		MaxAttempts:    1,
		Strategy:       resilience.Fixed,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		RetriableKinds: nil,
	}
	return r
}

func stubBars(n int) []PriceBar {
	bars := make([]PriceBar, n)
	for i := range bars {
		bars[i] = PriceBar{Date: "2024-05-0" + string(rune('1'+i))}
	}
	return bars
}

func TestRegistryMarketFiltering(t *testing.T) {
	r := newTestRegistry(t)
	cnCalled := false
	r.Register(CapStockHistory, Provider{
		Name:    "cn_vendor",
		Markets: []market.Market{market.ChinaA},
		Call: func(context.Context, Request) (any, error) {
			cnCalled = true
			return stubBars(1), nil
		},
	})
	r.Register(CapStockHistory, Provider{
		Name:    "us_vendor",
		Markets: []market.Market{market.US},
		Call: func(context.Context, Request) (any, error) {
			return stubBars(2), nil
		},
	})

	bars, err := r.StockHistory(context.Background(), "AAPL", "2024-05-01", "2024-05-10")
	if err != nil {
		t.Fatal(err)
	}
	if cnCalled {
		t.Fatal("CN-A provider consulted for a US ticker")
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 from us_vendor", len(bars))
	}
}

func TestRegistryFirstNonEmptyWins(t *testing.T) {
	r := newTestRegistry(t)
	secondCalled := false
	r.Register(CapStockHistory, Provider{
		Name: "empty_vendor",
		Call: func(context.Context, Request) (any, error) { return []PriceBar{}, nil },
	})
	r.Register(CapStockHistory, Provider{
		Name: "good_vendor",
		Call: func(context.Context, Request) (any, error) {
			secondCalled = true
			return stubBars(3), nil
		},
	})

	bars, err := r.StockHistory(context.Background(), "600519", "2024-05-01", "2024-05-10")
	if err != nil {
		t.Fatal(err)
	}
	if !secondCalled {
		t.Fatal("empty first result should fall through to next provider")
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
}

func TestRegistryFailureFallsThrough(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(CapStockHistory, Provider{
		Name: "broken_vendor",
		Call: func(context.Context, Request) (any, error) {
			return nil, resilience.Errorf(resilience.KindTransient, "connection reset")
		},
	})
	r.Register(CapStockHistory, Provider{
		Name: "good_vendor",
		Call: func(context.Context, Request) (any, error) { return stubBars(1), nil },
	})

	bars, err := r.StockHistory(context.Background(), "600519", "2024-05-01", "2024-05-10")
	if err != nil || len(bars) != 1 {
		t.Fatalf("StockHistory = (%d bars, %v), want fallthrough to good_vendor", len(bars), err)
	}
}

func TestRegistryAllFailReturnsEmpty(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(CapNews, Provider{
		Name: "down_vendor",
		Call: func(context.Context, Request) (any, error) {
			return nil, errors.New("service unavailable")
		},
	})

	items, err := r.News(context.Background(), "0700.HK", "2024-05-10")
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d items", len(items))
	}
}

func TestRegistryCachesFirstResult(t *testing.T) {
	r := newTestRegistry(t)
	calls := 0
	r.Register(CapStockHistory, Provider{
		Name: "counting_vendor",
		Call: func(context.Context, Request) (any, error) {
			calls++
			return stubBars(2), nil
		},
	})

	for i := 0; i < 3; i++ {
		bars, err := r.StockHistory(context.Background(), "600519", "2024-05-01", "2024-05-10")
		if err != nil || len(bars) != 2 {
			t.Fatalf("call %d: (%d bars, %v)", i, len(bars), err)
		}
	}
	if calls != 1 {
		t.Fatalf("provider called %d times, want 1 (cache should serve repeats)", calls)
	}
}

func TestRegistryInvalidTicker(t *testing.T) {
	r := newTestRegistry(t)
	called := false
	r.Register(CapStockHistory, Provider{
		Name: "vendor",
		Call: func(context.Context, Request) (any, error) {
			called = true
			return stubBars(1), nil
		},
	})

	_, err := r.StockHistory(context.Background(), "700", "2024-05-01", "2024-05-10")
	var invalid *market.InvalidTickerError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTickerError", err)
	}
	if called {
		t.Fatal("no fetch may happen for an invalid ticker")
	}
}

func TestRegistryOfflineFilter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OnlineTools = false
	mgr := cache.NewManager(cache.NewMemoryBackend(100), nil, cfg.Cache)
	r := NewRegistry(mgr, resilience.NewHandler(resilience.DefaultBreakerConfig()), cfg)

	onlineCalled := false
	r.Register(CapStockHistory, Provider{
		Name: "online_vendor",
		Call: func(context.Context, Request) (any, error) {
			onlineCalled = true
			return stubBars(1), nil
		},
	})
	r.Register(CapStockHistory, Provider{
		Name:    "offline_vendor",
		Offline: true,
		Call:    func(context.Context, Request) (any, error) { return stubBars(2), nil },
	})

	bars, err := r.StockHistory(context.Background(), "600519", "2024-05-01", "2024-05-10")
	if err != nil {
		t.Fatal(err)
	}
	if onlineCalled {
		t.Fatal("online-only provider used while online tools are disabled")
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 from offline_vendor", len(bars))
	}
}

func TestRegistryNormalizesTickerBeforeDispatch(t *testing.T) {
	r := newTestRegistry(t)
	var seen string
	r.Register(CapStockInfo, Provider{
		Name: "vendor",
		Call: func(_ context.Context, req Request) (any, error) {
			seen = req.Ticker
			return &StockInfo{Ticker: req.Ticker, Name: "Tencent"}, nil
		},
	})

	info, err := r.StockInfo(context.Background(), "00700")
	if err != nil {
		t.Fatal(err)
	}
	if seen != "00700.HK" {
		t.Fatalf("provider saw %q, want normalized 00700.HK", seen)
	}
	if info.Name != "Tencent" {
		t.Fatalf("info = %+v", info)
	}
}
