// Package market classifies ticker symbols into the exchanges the data
// layer can route on. Classification is pure: no lookups, no network.
package market

import (
	"fmt"
	"regexp"
	"strings"
)

// Market identifies the exchange family a ticker belongs to.
type Market string

const (
	ChinaA   Market = "CN-A"
	HongKong Market = "HK"
	US       Market = "US"
)

// Classification is the result of classifying a raw ticker.
type Classification struct {
	Market     Market
	Normalized string
	Currency   string
}

// InvalidTickerError reports a ticker that matches no supported market.
type InvalidTickerError struct {
	Ticker string
}

func (e *InvalidTickerError) Error() string {
	return fmt.Sprintf("invalid ticker %q: not a CN-A, HK or US symbol", e.Ticker)
}

var (
	cnPattern = regexp.MustCompile(`^\d{6}$`)
	hkPattern = regexp.MustCompile(`^(?i)(\d{4,5})(\.HK)?$`)
	usPattern = regexp.MustCompile(`^[A-Za-z]{1,5}$`)
)

// Classify determines the market, normalized form and trading currency of
// a ticker. CN-A is exactly six digits, HK is four or five digits with an
// optional .HK suffix, US is one to five letters.
func Classify(ticker string) (*Classification, error) {
	t := strings.TrimSpace(ticker)

	switch {
	case cnPattern.MatchString(t):
		return &Classification{Market: ChinaA, Normalized: t, Currency: "CNY"}, nil
	case hkPattern.MatchString(t):
		m := hkPattern.FindStringSubmatch(t)
		return &Classification{
			Market:     HongKong,
			Normalized: m[1] + ".HK",
			Currency:   "HKD",
		}, nil
	case usPattern.MatchString(t):
		return &Classification{Market: US, Normalized: strings.ToUpper(t), Currency: "USD"}, nil
	}
	return nil, &InvalidTickerError{Ticker: ticker}
}

// IsValid reports whether a ticker classifies without an error.
func IsValid(ticker string) bool {
	_, err := Classify(ticker)
	return err == nil
}
