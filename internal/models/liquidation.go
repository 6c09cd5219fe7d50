// Package models defines the core domain entities: chat messages, liquidation events,
// price bars, aggregated buckets, dataset rows and analysis results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// RawMessage is one timestamped chat message as produced by the retrieval collaborator.
type RawMessage struct {
	ID        int64     `json:"message_id"`
	Timestamp time.Time `json:"timestamp_utc"`
	Text      string    `json:"text"`
}

// Side is the liquidated position side.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// LiquidationEvent is a liquidation extracted from exactly one RawMessage.
// Symbol is empty when the message did not name a trading pair.
type LiquidationEvent struct {
	Side      Side      `json:"side"`
	AmountUSD float64   `json:"amount_usd"`
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// Interval is the bucket width used for aggregation and price bars.
type Interval string

const (
	Interval1h Interval = "1h"
	Interval1d Interval = "1d"
)

// ParseInterval accepts "1h" or "1d" in any case.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case Interval1h:
		return Interval1h, nil
	case Interval1d:
		return Interval1d, nil
	}
	return "", fmt.Errorf("interval must be 1h or 1d, got %q", s)
}

// Duration returns the bucket width. It panics on an unvalidated interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	}
	panic(fmt.Sprintf("models: unknown interval %q", string(i)))
}

// DefaultHorizons returns the forward-return horizons, in buckets, studied for the interval.
func (i Interval) DefaultHorizons() []int {
	if i == Interval1d {
		return []int{1, 2, 3, 5, 10}
	}
	return []int{1, 3, 6, 12, 24}
}

// BucketLabel returns the closing instant of the right-closed bucket (label-w, label]
// that contains t.
func (i Interval) BucketLabel(t time.Time) time.Time {
	w := i.Duration()
	t = t.UTC()
	floor := t.Truncate(w)
	if floor.Equal(t) {
		return floor
	}
	return floor.Add(w)
}
