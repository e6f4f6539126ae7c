package dataflows

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"tradingagents/internal/config"
	"tradingagents/internal/resilience"
)

// SinaClient reads the Sina Finance money-flow endpoints. The realtime
// endpoint answers with a JS object literal, not JSON, so fields are
// pulled out with a regex.
type SinaClient struct {
	client *resty.Client
	now    func() time.Time
}

func NewSinaClient(cfg *config.Config) *SinaClient {
	client := resty.New()
	client.SetBaseURL("https://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php")
	client.SetTimeout(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	client.SetHeader("Referer", "https://finance.sina.com.cn")
	return &SinaClient{client: client, now: time.Now}
}

func sinaSymbol(ticker string) string {
	return exchangePrefix(ticker) + ticker
}

var sinaFieldPattern = regexp.MustCompile(`(r\d_(?:in|out)|netamount)\s*:\s*"?(-?[\d.]+)"?`)

// CapitalFlowRealtime returns today's aggregate super/large/mid/small
// inflow snapshot as a single point. r0 is the largest order tier.
func (sc *SinaClient) CapitalFlowRealtime(ctx context.Context, req Request) (any, error) {
	resp, err := sc.client.R().
		SetContext(ctx).
		SetQueryParam("daima", sinaSymbol(req.Ticker)).
		Get("/MoneyFlow.ssi_ssfx_flzjtj")
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	if resp.StatusCode() != 200 {
		return nil, resilience.Errorf(resilience.KindTransient, "sina http %d", resp.StatusCode())
	}

	fields := make(map[string]string)
	for _, m := range sinaFieldPattern.FindAllStringSubmatch(resp.String(), -1) {
		fields[m[1]] = m[2]
	}
	if len(fields) == 0 {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "sina: unparseable money flow payload for %s", req.Ticker)
	}

	net := func(tier string) decimal.Decimal {
		return parseDecimal(fields[tier+"_in"]).Sub(parseDecimal(fields[tier+"_out"]))
	}
	superIn := net("r0")
	largeIn := net("r1")
	point := FlowPoint{
		Time:        sc.now().Format("2006-01-02 15:04"),
		MainInflow:  superIn.Add(largeIn),
		SuperInflow: superIn,
		LargeInflow: largeIn,
		MidInflow:   net("r2"),
		SmallInflow: net("r3"),
	}
	return []FlowPoint{point}, nil
}

type sinaDailyFlowRow struct {
	Opendate     string `json:"opendate"`
	Netamount    string `json:"netamount"`
	R0Net        string `json:"r0_net"`
	R1Net        string `json:"r1_net"`
	R2Net        string `json:"r2_net"`
	R3Net        string `json:"r3_net"`
}

// CapitalFlowDaily returns per-day net flow rows, oldest first.
func (sc *SinaClient) CapitalFlowDaily(ctx context.Context, req Request) (any, error) {
	resp, err := sc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":  "1",
			"num":   "60",
			"sort":  "opendate",
			"asc":   "0",
			"daima": sinaSymbol(req.Ticker),
		}).
		Get("/MoneyFlow.ssl_qsfx_zjlrqs")
	if err != nil {
		return nil, resilience.WithKind(resilience.KindTransient, err)
	}
	if resp.StatusCode() != 200 {
		return nil, resilience.Errorf(resilience.KindTransient, "sina http %d", resp.StatusCode())
	}

	var rows []sinaDailyFlowRow
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, resilience.WithKind(resilience.KindInvalidResponse, err)
	}

	out := make([]FlowPoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // newest first upstream
		row := rows[i]
		if req.Start != "" && row.Opendate < req.Start {
			continue
		}
		if req.End != "" && row.Opendate > req.End {
			continue
		}
		superIn := parseDecimal(row.R0Net)
		largeIn := parseDecimal(row.R1Net)
		out = append(out, FlowPoint{
			Time:        row.Opendate,
			MainInflow:  superIn.Add(largeIn),
			SuperInflow: superIn,
			LargeInflow: largeIn,
			MidInflow:   parseDecimal(row.R2Net),
			SmallInflow: parseDecimal(row.R3Net),
		})
	}
	return out, nil
}
