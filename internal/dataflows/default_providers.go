package dataflows

import (
	"github.com/sirupsen/logrus"

	"tradingagents/internal/cache"
	"tradingagents/internal/config"
	"tradingagents/internal/market"
	"tradingagents/internal/resilience"
)

var cnOnly = []market.Market{market.ChinaA}

// NewDefaultRegistry wires the standard provider chains. Per capability
// the chain is ordered by regional fit: the configured Chinese source
// leads for CN-A, Longport leads for HK, Yahoo leads for US. Vendors
// without credentials are left out of their chains.
func NewDefaultRegistry(cacheMgr *cache.Manager, robust *resilience.Handler, cfg *config.Config) *Registry {
	r := NewRegistry(cacheMgr, robust, cfg)
	log := logrus.WithField("component", "dataflows")

	akshare := NewAKShareClient(cfg)
	sina := NewSinaClient(cfg)
	yahoo := NewYahooClient()
	tushare := NewTushareClient(cfg)
	finnhub := NewFinnhubClient(cfg)
	google := NewGoogleNewsClient(cfg)

	akshareP := func(call ProviderFunc) Provider {
		return Provider{Name: "akshare", Markets: cnOnly, Call: call}
	}
	tushareP := func(call ProviderFunc) Provider {
		return Provider{Name: "tushare", Markets: cnOnly, Call: call}
	}

	// CN-A history/info/dividends: configured source first. baostock
	// and tdx have no native Go client, so both route to the AKTools
	// bridge which proxies them.
	cnHistory := []Provider{akshareP(akshare.StockHistory)}
	cnInfo := []Provider{akshareP(akshare.StockInfo)}
	cnDividend := []Provider{akshareP(akshare.DividendHistory)}
	if tushare.Configured() {
		if cfg.DefaultChinaDataSource == "tushare" {
			cnHistory = append([]Provider{tushareP(tushare.StockHistory)}, cnHistory...)
			cnInfo = append([]Provider{tushareP(tushare.StockInfo)}, cnInfo...)
			cnDividend = append([]Provider{tushareP(tushare.DividendHistory)}, cnDividend...)
		} else {
			cnHistory = append(cnHistory, tushareP(tushare.StockHistory))
			cnInfo = append(cnInfo, tushareP(tushare.StockInfo))
			cnDividend = append(cnDividend, tushareP(tushare.DividendHistory))
		}
	}
	for _, p := range cnHistory {
		r.Register(CapStockHistory, p)
	}
	for _, p := range cnInfo {
		r.Register(CapStockInfo, p)
	}
	for _, p := range cnDividend {
		r.Register(CapDividendHistory, p)
	}

	// HK history and profiles come from Longport when credentials are
	// present; Yahoo understands NNNN.HK symbols as a fallback.
	hkMarkets := []market.Market{market.HongKong}
	if longport, err := NewLongportClient(cfg); err == nil {
		r.Register(CapStockHistory, Provider{Name: "longport", Markets: hkMarkets, Call: longport.StockHistory})
		r.Register(CapStockInfo, Provider{Name: "longport", Markets: hkMarkets, Call: longport.StockInfo})
	} else {
		log.WithError(err).Debug("longport disabled")
	}

	usHK := []market.Market{market.US, market.HongKong}
	r.Register(CapStockHistory, Provider{Name: "yahoo", Markets: usHK, Call: yahoo.StockHistory})
	r.Register(CapStockInfo, Provider{Name: "yahoo", Markets: usHK, Call: yahoo.StockInfo})

	// Fundamentals.
	if tushare.Configured() {
		r.Register(CapFundamentals, tushareP(tushare.Fundamentals))
	}
	if finnhub.Configured() {
		r.Register(CapFundamentals, Provider{Name: "finnhub", Markets: []market.Market{market.US}, Call: finnhub.Fundamentals})
	}
	r.Register(CapFundamentals, Provider{Name: "yahoo", Markets: usHK, Call: yahoo.Fundamentals})

	// News: regional API vendors first, scraper last for every market.
	r.Register(CapNews, akshareP(akshare.News))
	if finnhub.Configured() {
		r.Register(CapNews, Provider{Name: "finnhub", Markets: []market.Market{market.US}, Call: finnhub.News})
	}
	r.Register(CapNews, Provider{Name: "google_news", Call: google.News})

	// Capital flow and concept boards are CN-A surfaces.
	r.Register(CapCapitalFlowRealtime, Provider{Name: "sina", Markets: cnOnly, Call: sina.CapitalFlowRealtime})
	r.Register(CapCapitalFlowDaily, akshareP(akshare.CapitalFlowDaily))
	r.Register(CapCapitalFlowDaily, Provider{Name: "sina", Markets: cnOnly, Call: sina.CapitalFlowDaily})
	r.Register(CapConceptList, akshareP(akshare.ConceptList))
	r.Register(CapConceptStocks, akshareP(akshare.ConceptStocks))
	r.Register(CapConceptCapitalFlow, akshareP(akshare.ConceptCapitalFlow))

	return r
}
