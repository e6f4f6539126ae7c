package models

import (
	"github.com/shopspring/decimal"
)

// Action is the final trade call.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
	ActionSell Action = "SELL"
)

// Decision is the envelope emitted at the end of a run. TargetPrice is
// nil when the decision text never names one.
type Decision struct {
	Ticker      string           `json:"ticker"`
	TradeDate   string           `json:"trade_date"`
	Action      Action           `json:"action"`
	Confidence  float64          `json:"confidence"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	Reasoning   string           `json:"reasoning"`
}
