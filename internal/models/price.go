package models

import (
	"errors"
	"math"
	"time"
)

// PriceBar is one OHLCV bar labelled by its closing instant.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp_utc"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks bar field constraints.
func (b *PriceBar) Validate() error {
	if b.Timestamp.IsZero() {
		return errors.New("bar timestamp must be set")
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("bar values must be finite")
		}
	}
	if b.Close <= 0 {
		return errors.New("close price must be positive")
	}
	if b.High < b.Low {
		return errors.New("high must be >= low")
	}
	if b.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	return nil
}
