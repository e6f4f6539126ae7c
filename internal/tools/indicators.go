package tools

import (
	"fmt"
	"math"
	"sort"

	"tradingagents/internal/dataflows"
)

// IndicatorValue is one dated point of a computed indicator series.
type IndicatorValue struct {
	Date  string
	Value float64
}

// indicatorGuide describes each supported indicator for the model.
var indicatorGuide = map[string]string{
	"close_50_sma":  "50 SMA: medium-term trend benchmark and dynamic support/resistance. Lags price; pair with faster signals.",
	"close_200_sma": "200 SMA: long-term trend confirmation and golden/death cross setups. Reacts slowly.",
	"close_10_ema":  "10 EMA: responsive short-term average for momentum shifts. Noisy in choppy markets.",
	"vwma":          "VWMA: volume-weighted moving average confirming trends with volume. Sensitive to volume spikes.",
	"macd":          "MACD: EMA-difference momentum; crossovers and divergence flag trend changes.",
	"macds":         "MACD Signal: 9-EMA smoothing of MACD; crossovers trigger entries.",
	"macdh":         "MACD Histogram: gap between MACD and signal; early divergence read.",
	"rsi":           "RSI: momentum oscillator; 70/30 thresholds for overbought/oversold.",
	"mfi":           "MFI: volume-weighted RSI; >80 overbought, <20 oversold.",
	"boll":          "Bollinger Middle: 20 SMA basis of the bands.",
	"boll_ub":       "Bollinger Upper: +2 std dev; overbought and breakout zone.",
	"boll_lb":       "Bollinger Lower: -2 std dev; oversold zone.",
	"atr":           "ATR: average true range; volatility gauge for stops and sizing.",
}

func supportedIndicators() []string {
	out := make([]string, 0, len(indicatorGuide))
	for name := range indicatorGuide {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// computeIndicator evaluates one indicator over bars within [start, end].
// Bars must carry enough leading history for the lookback window.
func computeIndicator(bars []dataflows.PriceBar, indicator, start, end string) ([]IndicatorValue, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price data")
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })

	switch indicator {
	case "close_50_sma":
		return smaSeries(bars, 50, start, end), nil
	case "close_200_sma":
		return smaSeries(bars, 200, start, end), nil
	case "close_10_ema":
		return emaSeries(bars, 10, start, end), nil
	case "rsi":
		return rsiSeries(bars, 14, start, end), nil
	case "macd":
		return macdSeries(bars, start, end), nil
	case "macds":
		return macdSignalSeries(bars, start, end), nil
	case "macdh":
		return macdHistogramSeries(bars, start, end), nil
	case "boll":
		return smaSeries(bars, 20, start, end), nil
	case "boll_ub":
		return bollingerSeries(bars, 20, 2, start, end), nil
	case "boll_lb":
		return bollingerSeries(bars, 20, -2, start, end), nil
	case "atr":
		return atrSeries(bars, 14, start, end), nil
	case "vwma":
		return vwmaSeries(bars, 20, start, end), nil
	case "mfi":
		return mfiSeries(bars, 14, start, end), nil
	default:
		return nil, fmt.Errorf("unsupported indicator: %s", indicator)
	}
}

func inWindow(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && date > end {
		return false
	}
	return true
}

func closeOf(bar dataflows.PriceBar) float64 {
	f, _ := bar.Close.Float64()
	return f
}

func smaSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	var out []IndicatorValue
	for i := period - 1; i < len(bars); i++ {
		if !inWindow(bars[i].Date, start, end) {
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += closeOf(bars[j])
		}
		out = append(out, IndicatorValue{Date: bars[i].Date, Value: sum / float64(period)})
	}
	return out
}

// emaValues computes the full EMA series starting at index period-1.
func emaValues(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)
	out := []float64{ema}
	for i := period; i < len(closes); i++ {
		ema = closes[i]*multiplier + ema*(1-multiplier)
		out = append(out, ema)
	}
	return out
}

func closes(bars []dataflows.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = closeOf(bar)
	}
	return out
}

func emaSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	values := emaValues(closes(bars), period)
	var out []IndicatorValue
	for i, v := range values {
		date := bars[period-1+i].Date
		if inWindow(date, start, end) {
			out = append(out, IndicatorValue{Date: date, Value: v})
		}
	}
	return out
}

func rsiSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	if len(bars) < period+1 {
		return nil
	}
	cs := closes(bars)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := cs[i] - cs[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	var out []IndicatorValue
	for i := period; i < len(cs); i++ {
		change := cs[i] - cs[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		rsi := 100.0
		if avgLoss != 0 {
			rs := avgGain / avgLoss
			rsi = 100 - 100/(1+rs)
		}
		if inWindow(bars[i].Date, start, end) {
			out = append(out, IndicatorValue{Date: bars[i].Date, Value: rsi})
		}
	}
	return out
}

// macdRaw returns the MACD line aligned to bars starting at index 25.
func macdRaw(bars []dataflows.PriceBar) []IndicatorValue {
	cs := closes(bars)
	ema12 := emaValues(cs, 12)
	ema26 := emaValues(cs, 26)
	if ema26 == nil {
		return nil
	}
	// align ema12 (starts at index 11) to ema26 (starts at index 25)
	offset := 26 - 12
	var out []IndicatorValue
	for i := range ema26 {
		out = append(out, IndicatorValue{
			Date:  bars[25+i].Date,
			Value: ema12[offset+i] - ema26[i],
		})
	}
	return out
}

func macdSeries(bars []dataflows.PriceBar, start, end string) []IndicatorValue {
	var out []IndicatorValue
	for _, v := range macdRaw(bars) {
		if inWindow(v.Date, start, end) {
			out = append(out, v)
		}
	}
	return out
}

func macdSignalRaw(bars []dataflows.PriceBar) []IndicatorValue {
	macd := macdRaw(bars)
	if len(macd) < 9 {
		return nil
	}
	values := make([]float64, len(macd))
	for i, v := range macd {
		values[i] = v.Value
	}
	signal := emaValues(values, 9)
	var out []IndicatorValue
	for i, v := range signal {
		out = append(out, IndicatorValue{Date: macd[8+i].Date, Value: v})
	}
	return out
}

func macdSignalSeries(bars []dataflows.PriceBar, start, end string) []IndicatorValue {
	var out []IndicatorValue
	for _, v := range macdSignalRaw(bars) {
		if inWindow(v.Date, start, end) {
			out = append(out, v)
		}
	}
	return out
}

func macdHistogramSeries(bars []dataflows.PriceBar, start, end string) []IndicatorValue {
	macd := macdRaw(bars)
	signal := macdSignalRaw(bars)
	byDate := make(map[string]float64, len(signal))
	for _, v := range signal {
		byDate[v.Date] = v.Value
	}
	var out []IndicatorValue
	for _, v := range macd {
		sig, ok := byDate[v.Date]
		if !ok || !inWindow(v.Date, start, end) {
			continue
		}
		out = append(out, IndicatorValue{Date: v.Date, Value: v.Value - sig})
	}
	return out
}

// bollingerSeries computes SMA + devs x std. Negative devs gives the
// lower band.
func bollingerSeries(bars []dataflows.PriceBar, period int, devs float64, start, end string) []IndicatorValue {
	var out []IndicatorValue
	for i := period - 1; i < len(bars); i++ {
		if !inWindow(bars[i].Date, start, end) {
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += closeOf(bars[j])
		}
		sma := sum / float64(period)

		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := closeOf(bars[j]) - sma
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))
		out = append(out, IndicatorValue{Date: bars[i].Date, Value: sma + devs*std})
	}
	return out
}

func atrSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	if len(bars) < period+1 {
		return nil
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		high, _ := bars[i].High.Float64()
		low, _ := bars[i].Low.Float64()
		prevClose := closeOf(bars[i-1])
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)

	var out []IndicatorValue
	if inWindow(bars[period].Date, start, end) {
		out = append(out, IndicatorValue{Date: bars[period].Date, Value: atr})
	}
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
		if inWindow(bars[i+1].Date, start, end) {
			out = append(out, IndicatorValue{Date: bars[i+1].Date, Value: atr})
		}
	}
	return out
}

func vwmaSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	var out []IndicatorValue
	for i := period - 1; i < len(bars); i++ {
		if !inWindow(bars[i].Date, start, end) {
			continue
		}
		var pv, vol float64
		for j := i - period + 1; j <= i; j++ {
			v := float64(bars[j].Volume)
			pv += closeOf(bars[j]) * v
			vol += v
		}
		if vol == 0 {
			continue
		}
		out = append(out, IndicatorValue{Date: bars[i].Date, Value: pv / vol})
	}
	return out
}

func mfiSeries(bars []dataflows.PriceBar, period int, start, end string) []IndicatorValue {
	if len(bars) < period+1 {
		return nil
	}
	typical := make([]float64, len(bars))
	for i, bar := range bars {
		high, _ := bar.High.Float64()
		low, _ := bar.Low.Float64()
		typical[i] = (high + low + closeOf(bar)) / 3
	}

	var out []IndicatorValue
	for i := period; i < len(bars); i++ {
		var posFlow, negFlow float64
		for j := i - period + 1; j <= i; j++ {
			flow := typical[j] * float64(bars[j].Volume)
			if typical[j] > typical[j-1] {
				posFlow += flow
			} else if typical[j] < typical[j-1] {
				negFlow += flow
			}
		}
		mfi := 100.0
		if negFlow != 0 {
			ratio := posFlow / negFlow
			mfi = 100 - 100/(1+ratio)
		}
		if inWindow(bars[i].Date, start, end) {
			out = append(out, IndicatorValue{Date: bars[i].Date, Value: mfi})
		}
	}
	return out
}
