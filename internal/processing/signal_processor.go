// Package processing turns the risk judge's free-text decision into the
// structured decision envelope.
package processing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tradingagents/internal/models"
)

const defaultConfidence = 0.5

var (
	proposalTagPattern = regexp.MustCompile(`FINAL TRANSACTION PROPOSAL:\s*\*\*\s*(BUY|HOLD|SELL)\s*\*\*`)
	actionWordPattern  = regexp.MustCompile(`\b(BUY|HOLD|SELL)\b`)
	confidencePattern  = regexp.MustCompile(`(?i)confidence[^0-9]{0,20}(\d+(?:\.\d+)?)\s*(%)?`)
	pricePattern       = regexp.MustCompile(`(?i)(?:target price|目标价)[^0-9\-]{0,20}(\d+(?:\.\d+)?)`)
)

// SignalProcessor extracts action, confidence, target price and
// reasoning from a final decision text. Extraction never fails: absent
// fields fall back to HOLD, 0.5 and a nil target.
type SignalProcessor struct {
	log *logrus.Entry
}

func NewSignalProcessor() *SignalProcessor {
	return &SignalProcessor{log: logrus.WithField("component", "signal_processor")}
}

// Process builds the decision envelope for one run.
func (p *SignalProcessor) Process(ticker, tradeDate, finalDecision string) *models.Decision {
	action := p.extractAction(finalDecision)
	return &models.Decision{
		Ticker:      ticker,
		TradeDate:   tradeDate,
		Action:      action,
		Confidence:  p.extractConfidence(finalDecision),
		TargetPrice: p.extractTargetPrice(finalDecision),
		Reasoning:   finalParagraph(finalDecision),
	}
}

// extractAction prefers the explicit proposal tag anywhere in the text,
// then the first action keyword in the final paragraph, then HOLD.
func (p *SignalProcessor) extractAction(text string) models.Action {
	if m := proposalTagPattern.FindStringSubmatch(text); m != nil {
		return models.Action(m[1])
	}
	if m := actionWordPattern.FindStringSubmatch(strings.ToUpper(finalParagraph(text))); m != nil {
		return models.Action(m[1])
	}
	p.log.Debug("no action signal found, defaulting to HOLD")
	return models.ActionHold
}

// extractConfidence reads a "confidence" figure; percentages collapse
// to [0,1]. Out-of-range or missing values return the default.
func (p *SignalProcessor) extractConfidence(text string) float64 {
	m := confidencePattern.FindStringSubmatch(text)
	if m == nil {
		return defaultConfidence
	}
	v, err := decimal.NewFromString(m[1])
	if err != nil {
		return defaultConfidence
	}
	f, _ := v.Float64()
	if m[2] == "%" || f > 1 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return defaultConfidence
	}
	return f
}

// extractTargetPrice reads the first target-price figure. The value is
// currency-agnostic; the listing currency gives it meaning.
func (p *SignalProcessor) extractTargetPrice(text string) *decimal.Decimal {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := decimal.NewFromString(m[1])
	if err != nil || !v.IsPositive() {
		return nil
	}
	return &v
}

// finalParagraph returns the last non-empty paragraph of the text.
func finalParagraph(text string) string {
	paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
	for i := len(paragraphs) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(paragraphs[i]); p != "" {
			return p
		}
	}
	return strings.TrimSpace(text)
}
