package tools

import (
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"tradingagents/internal/dataflows"
)

func barsFromCloses(closes ...float64) []dataflows.PriceBar {
	out := make([]dataflows.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = dataflows.PriceBar{
			Date:   fmt.Sprintf("2024-01-%02d", i+1),
			Open:   decimal.NewFromFloat(c),
			High:   decimal.NewFromFloat(c + 1),
			Low:    decimal.NewFromFloat(c - 1),
			Close:  decimal.NewFromFloat(c),
			Volume: 1000,
		}
	}
	return out
}

func approx(t *testing.T, got, want, eps float64, label string) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %v, want %v", label, got, want)
	}
}

func TestSMASeries(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13, 14)
	out := smaSeries(bars, 3, "", "")
	if len(out) != 3 {
		t.Fatalf("points = %d, want 3", len(out))
	}
	approx(t, out[0].Value, 11, 1e-9, "sma[0]")
	approx(t, out[2].Value, 13, 1e-9, "sma[2]")
	if out[0].Date != "2024-01-03" {
		t.Fatalf("first date = %s", out[0].Date)
	}
}

func TestSMAWindowFilter(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13, 14)
	out := smaSeries(bars, 3, "2024-01-04", "2024-01-05")
	if len(out) != 2 {
		t.Fatalf("points = %d, want 2", len(out))
	}
	if out[0].Date != "2024-01-04" || out[1].Date != "2024-01-05" {
		t.Fatalf("dates = %s, %s", out[0].Date, out[1].Date)
	}
}

func TestEMAValues(t *testing.T) {
	ema := emaValues([]float64{1, 2, 3, 4, 5}, 3)
	if len(ema) != 3 {
		t.Fatalf("points = %d, want 3", len(ema))
	}
	// seed 2.0, k=0.5: 4*0.5+2*0.5=3, 5*0.5+3*0.5=4
	approx(t, ema[0], 2, 1e-9, "ema[0]")
	approx(t, ema[1], 3, 1e-9, "ema[1]")
	approx(t, ema[2], 4, 1e-9, "ema[2]")
}

func TestRSIExtremes(t *testing.T) {
	up := barsFromCloses(10, 11, 12, 13, 14, 15, 16)
	out := rsiSeries(up, 3, "", "")
	if len(out) == 0 {
		t.Fatal("no RSI points")
	}
	approx(t, out[len(out)-1].Value, 100, 1e-9, "rsi all-gains")

	down := barsFromCloses(16, 15, 14, 13, 12, 11, 10)
	out = rsiSeries(down, 3, "", "")
	approx(t, out[len(out)-1].Value, 0, 1e-9, "rsi all-losses")
}

func TestMACDAlignment(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes...)

	macd := macdRaw(bars)
	if len(macd) != 40-25 {
		t.Fatalf("macd points = %d, want %d", len(macd), 40-25)
	}
	if macd[0].Date != bars[25].Date {
		t.Fatalf("first macd date = %s, want %s", macd[0].Date, bars[25].Date)
	}
	// steady uptrend keeps the fast EMA above the slow one
	if macd[len(macd)-1].Value <= 0 {
		t.Fatalf("macd on uptrend = %v", macd[len(macd)-1].Value)
	}

	hist := macdHistogramSeries(bars, "", "")
	for _, h := range hist {
		if h.Date < macd[8].Date {
			t.Fatalf("histogram point %s precedes signal availability", h.Date)
		}
	}
}

func TestBollingerBandsBracketSMA(t *testing.T) {
	bars := barsFromCloses(10, 12, 11, 13, 12, 14, 13, 15, 14, 16)
	mid := smaSeries(bars, 5, "", "")
	upper := bollingerSeries(bars, 5, 2, "", "")
	lower := bollingerSeries(bars, 5, -2, "", "")
	if len(mid) != len(upper) || len(mid) != len(lower) {
		t.Fatalf("lengths: mid %d upper %d lower %d", len(mid), len(upper), len(lower))
	}
	for i := range mid {
		if !(lower[i].Value < mid[i].Value && mid[i].Value < upper[i].Value) {
			t.Fatalf("bands out of order at %s: %v %v %v",
				mid[i].Date, lower[i].Value, mid[i].Value, upper[i].Value)
		}
	}
}

func TestATRConstantRange(t *testing.T) {
	// high-low is always 2 and closes move less than that
	bars := barsFromCloses(10, 10.5, 10, 10.5, 10, 10.5, 10)
	out := atrSeries(bars, 3, "", "")
	if len(out) == 0 {
		t.Fatal("no ATR points")
	}
	for _, v := range out {
		approx(t, v.Value, 2, 1e-9, "atr "+v.Date)
	}
}

func TestComputeIndicatorUnsupported(t *testing.T) {
	bars := barsFromCloses(10, 11, 12)
	if _, err := computeIndicator(bars, "close_7_wma", "", ""); err == nil {
		t.Fatal("expected error for unsupported indicator")
	}
	if _, err := computeIndicator(nil, "rsi", "", ""); err == nil {
		t.Fatal("expected error for empty bars")
	}
}

func TestComputeIndicatorSortsBars(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13, 14)
	// shuffle: computeIndicator must sort by date first
	bars[0], bars[4] = bars[4], bars[0]
	out, err := computeIndicator(bars, "boll", "", "")
	if err != nil {
		t.Fatal(err)
	}
	// boll is the 20 SMA; with 5 bars there is nothing to emit, but
	// sorting must not panic. Use a direct series for the value check.
	if len(out) != 0 {
		t.Fatalf("points = %d, want 0", len(out))
	}
	series := smaSeries(bars, 3, "", "")
	approx(t, series[0].Value, 11, 1e-9, "sma after sort")
}
