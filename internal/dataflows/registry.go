package dataflows

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"

	"tradingagents/internal/cache"
	"tradingagents/internal/config"
	"tradingagents/internal/market"
	"tradingagents/internal/resilience"
)

// ProviderFunc executes one capability call against a single vendor.
// The returned value must be the capability's row type.
type ProviderFunc func(ctx context.Context, req Request) (any, error)

// Provider is one vendor adapter registered for a capability.
type Provider struct {
	Name    string
	Markets []market.Market
	Offline bool // callable when online tools are disabled
	Call    ProviderFunc
}

func (p Provider) covers(m market.Market) bool {
	if len(p.Markets) == 0 {
		return true
	}
	for _, pm := range p.Markets {
		if pm == m {
			return true
		}
	}
	return false
}

// Registry holds an ordered provider chain per capability and fronts
// every dispatch with the cache and the robust-call wrapper. Provider
// failures never escape: a chain where every provider errors or
// returns nothing yields an empty result and a warning.
type Registry struct {
	providers   map[string][]Provider
	cache       *cache.Manager
	robust      *resilience.Handler
	policy      resilience.RetryPolicy
	onlineTools bool
	log         *logrus.Entry
}

func NewRegistry(cacheMgr *cache.Manager, robust *resilience.Handler, cfg *config.Config) *Registry {
	return &Registry{
		providers:   make(map[string][]Provider),
		cache:       cacheMgr,
		robust:      robust,
		policy:      resilience.NetworkHeavyPolicy(),
		onlineTools: cfg.OnlineTools,
		log:         logrus.WithField("component", "dataflows"),
	}
}

// Register appends a provider to a capability's chain. Order is rank:
// earlier providers are tried first.
func (r *Registry) Register(capability string, p Provider) {
	r.providers[capability] = append(r.providers[capability], p)
}

// Providers returns the chain registered for a capability, after the
// market and online filters.
func (r *Registry) eligible(capability string, m market.Market) []Provider {
	chain := r.providers[capability]
	out := make([]Provider, 0, len(chain))
	for _, p := range chain {
		if !r.onlineTools && !p.Offline {
			continue
		}
		if p.covers(m) {
			out = append(out, p)
		}
	}
	return out
}

// classify resolves and normalizes the ticker; rejection propagates to
// the caller before any fetch is attempted.
func (r *Registry) classify(ticker string) (market.Classification, error) {
	cls, err := market.Classify(ticker)
	if err != nil {
		return market.Classification{}, err
	}
	return *cls, nil
}

// dispatch runs the provider chain for one capability. The first
// provider returning a non-empty result wins and is cached. ok=false
// means the caller gets the zero value: either nothing was registered
// or every provider failed.
func (r *Registry) dispatch(ctx context.Context, capability string, req Request, decode func([]byte) (any, bool), nonEmpty func(any) bool) (any, bool) {
	extra := cacheParams(req)

	if payload, hit := r.cache.Get(ctx, capability, req.Ticker, extra); hit {
		if value, ok := decode(payload); ok {
			return value, true
		}
		r.cache.Delete(ctx, capability, req.Ticker, extra)
	}

	var lastErr error
	for _, p := range r.eligible(capability, req.Class.Market) {
		function := capability + "." + p.Name
		result, err := r.robust.Call(ctx, function, r.policy, func(ctx context.Context) (any, error) {
			return p.Call(ctx, req)
		}, nil)
		if err != nil {
			if resilience.KindOf(err) == resilience.KindCancelled {
				return nil, false
			}
			lastErr = err
			continue
		}
		if !nonEmpty(result) {
			continue
		}
		if payload, err := json.Marshal(result); err == nil {
			r.cache.Set(ctx, capability, req.Ticker, payload, dataTypeFor[capability], -1, extra)
		}
		return result, true
	}

	fields := logrus.Fields{"capability": capability, "ticker": req.Ticker}
	if lastErr != nil {
		r.log.WithFields(fields).WithError(lastErr).Warn("all providers failed, returning empty")
	} else {
		r.log.WithFields(fields).Warn("no provider produced data")
	}
	return nil, false
}

func cacheParams(req Request) map[string]string {
	extra := make(map[string]string, len(req.Extra)+2)
	for k, v := range req.Extra {
		extra[k] = v
	}
	if req.Start != "" {
		extra["start"] = req.Start
	}
	if req.End != "" {
		extra["end"] = req.End
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func fetchRows[T any](ctx context.Context, r *Registry, capability string, req Request) []T {
	decode := func(payload []byte) (any, bool) {
		var rows []T
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, false
		}
		return rows, true
	}
	nonEmpty := func(v any) bool {
		rows, ok := v.([]T)
		return ok && len(rows) > 0
	}
	result, ok := r.dispatch(ctx, capability, req, decode, nonEmpty)
	if !ok {
		return nil
	}
	rows, _ := result.([]T)
	return rows
}

func fetchOne[T any](ctx context.Context, r *Registry, capability string, req Request) (*T, bool) {
	decode := func(payload []byte) (any, bool) {
		var row T
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, false
		}
		return &row, true
	}
	nonEmpty := func(v any) bool {
		row, ok := v.(*T)
		return ok && row != nil
	}
	result, ok := r.dispatch(ctx, capability, req, decode, nonEmpty)
	if !ok {
		return nil, false
	}
	row, ok := result.(*T)
	return row, ok
}

func fetchText(ctx context.Context, r *Registry, capability string, req Request) string {
	decode := func(payload []byte) (any, bool) {
		return string(payload), true
	}
	nonEmpty := func(v any) bool {
		text, ok := v.(string)
		return ok && text != ""
	}
	result, ok := r.dispatch(ctx, capability, req, decode, nonEmpty)
	if !ok {
		return ""
	}
	text, _ := result.(string)
	return text
}

// StockHistory returns OHLCV rows between start and end, oldest first.
// Empty on total provider failure, error only for an invalid ticker.
func (r *Registry) StockHistory(ctx context.Context, ticker, start, end string) ([]PriceBar, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class, Start: start, End: end}
	return fetchRows[PriceBar](ctx, r, CapStockHistory, req), nil
}

// StockInfo returns the static company profile.
func (r *Registry) StockInfo(ctx context.Context, ticker string) (*StockInfo, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class}
	info, ok := fetchOne[StockInfo](ctx, r, CapStockInfo, req)
	if !ok {
		return &StockInfo{Ticker: class.Normalized, Market: string(class.Market), Currency: class.Currency}, nil
	}
	return info, nil
}

// Fundamentals returns a structured fundamentals report as text.
func (r *Registry) Fundamentals(ctx context.Context, ticker, asOfDate string) (string, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return "", err
	}
	req := Request{Ticker: class.Normalized, Class: class, End: asOfDate}
	return fetchText(ctx, r, CapFundamentals, req), nil
}

// News returns recent headlines for the ticker around asOfDate.
func (r *Registry) News(ctx context.Context, ticker, asOfDate string) ([]NewsItem, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class, End: asOfDate}
	return fetchRows[NewsItem](ctx, r, CapNews, req), nil
}

// CapitalFlowRealtime returns today's intraday capital-flow series.
func (r *Registry) CapitalFlowRealtime(ctx context.Context, ticker string) ([]FlowPoint, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class}
	return fetchRows[FlowPoint](ctx, r, CapCapitalFlowRealtime, req), nil
}

// CapitalFlowDaily returns daily capital-flow rows between start and end.
func (r *Registry) CapitalFlowDaily(ctx context.Context, ticker, start, end string) ([]FlowPoint, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class, Start: start, End: end}
	return fetchRows[FlowPoint](ctx, r, CapCapitalFlowDaily, req), nil
}

// ConceptList returns all concept boards. Ticker-free: no classifier.
func (r *Registry) ConceptList(ctx context.Context) []ConceptRow {
	req := Request{Ticker: "all", Class: market.Classification{Market: market.ChinaA}}
	return fetchRows[ConceptRow](ctx, r, CapConceptList, req)
}

// ConceptStocks returns the constituents of a concept board.
func (r *Registry) ConceptStocks(ctx context.Context, conceptCode string) []ConceptStock {
	req := Request{Ticker: conceptCode, Class: market.Classification{Market: market.ChinaA}}
	return fetchRows[ConceptStock](ctx, r, CapConceptStocks, req)
}

// ConceptCapitalFlow returns board-level capital flow for a 1, 5 or 10
// day window.
func (r *Registry) ConceptCapitalFlow(ctx context.Context, conceptCode string, daysType int) []ConceptFlow {
	if daysType != 1 && daysType != 5 && daysType != 10 {
		daysType = 1
	}
	req := Request{
		Ticker: conceptCode,
		Class:  market.Classification{Market: market.ChinaA},
		Extra:  map[string]string{"days_type": strconv.Itoa(daysType)},
	}
	return fetchRows[ConceptFlow](ctx, r, CapConceptCapitalFlow, req)
}

// DividendHistory returns dividend rows, optionally bounded by year.
func (r *Registry) DividendHistory(ctx context.Context, ticker string, startYear, endYear int) ([]DividendRow, error) {
	class, err := r.classify(ticker)
	if err != nil {
		return nil, err
	}
	req := Request{Ticker: class.Normalized, Class: class}
	if startYear > 0 {
		req.Extra = map[string]string{"start_year": strconv.Itoa(startYear), "end_year": strconv.Itoa(endYear)}
	}
	return fetchRows[DividendRow](ctx, r, CapDividendHistory, req), nil
}
