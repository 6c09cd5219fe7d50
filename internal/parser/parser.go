// Package parser extracts liquidation events from WhaleBot-style chat messages.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// rule is one named extraction step. A required rule that finds no capture
// rejects the message.
type rule struct {
	name     string
	re       *regexp.Regexp
	required bool
}

const (
	ruleSide   = "side"
	ruleAmount = "amount"
	ruleSymbol = "symbol"
)

// rules run in order; extraction stops at the first required miss.
var rules = []rule{
	{name: ruleSide, re: regexp.MustCompile(`(?i)\bLiquidated\s+(Long|Short)\b`), required: true},
	{name: ruleAmount, re: regexp.MustCompile(`:\s*(?:Buy|Sell)\s*\$([\d,]+(?:\.\d+)?)`), required: true},
	{name: ruleSymbol, re: regexp.MustCompile(`\b(?i:on)\s+([A-Z0-9_\-/:]+)\s+(?i:at)\b`), required: false},
}

// capture returns the first submatch of r in text.
func (r rule) capture(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Parse extracts a liquidation event from text. ok is false when the message is not
// a liquidation: no side phrase, or a side phrase without a parsable amount.
// The returned event carries no timestamp.
func Parse(text string) (event models.LiquidationEvent, ok bool) {
	if text == "" {
		return models.LiquidationEvent{}, false
	}
	captures := make(map[string]string, len(rules))
	for _, r := range rules {
		c, found := r.capture(text)
		if !found {
			if r.required {
				return models.LiquidationEvent{}, false
			}
			continue
		}
		captures[r.name] = c
	}

	amount, err := strconv.ParseFloat(strings.ReplaceAll(captures[ruleAmount], ",", ""), 64)
	if err != nil || amount < 0 {
		return models.LiquidationEvent{}, false
	}
	return models.LiquidationEvent{
		Side:      models.Side(strings.ToLower(captures[ruleSide])),
		AmountUSD: amount,
		Symbol:    captures[ruleSymbol],
	}, true
}

// MatchesFilter reports whether raw message text contains filter, ignoring case.
// An empty filter matches everything. The raw text is used rather than the extracted
// symbol because the symbol rule does not match every in-scope message.
func MatchesFilter(text, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(filter))
}

// Result counts how the messages of one ParseMessages call were disposed of.
type Result struct {
	Events   []models.LiquidationEvent
	Messages int
	Rejected int
	Filtered int
	NoSymbol int
}

// ParseMessages parses every message, drops non-liquidations, then keeps events whose
// raw text matches symbolFilter. Events inherit their message's timestamp.
func ParseMessages(msgs []models.RawMessage, symbolFilter string) Result {
	res := Result{Messages: len(msgs), Events: []models.LiquidationEvent{}}
	for _, msg := range msgs {
		ev, ok := Parse(msg.Text)
		if !ok {
			res.Rejected++
			continue
		}
		if !MatchesFilter(msg.Text, symbolFilter) {
			res.Filtered++
			continue
		}
		if ev.Symbol == "" {
			res.NoSymbol++
		}
		ev.Timestamp = msg.Timestamp.UTC()
		res.Events = append(res.Events, ev)
	}
	return res
}
