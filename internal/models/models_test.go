package models

import (
	"math"
	"testing"
	"time"
)

func TestPriceBarValidate(t *testing.T) {
	ts := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		bar     PriceBar
		wantErr bool
	}{
		{
			name:    "valid bar",
			bar:     PriceBar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 105, Volume: 12.5},
			wantErr: false,
		},
		{
			name:    "zero timestamp",
			bar:     PriceBar{Open: 100, High: 110, Low: 95, Close: 105},
			wantErr: true,
		},
		{
			name:    "non-positive close",
			bar:     PriceBar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 0},
			wantErr: true,
		},
		{
			name:    "high below low",
			bar:     PriceBar{Timestamp: ts, Open: 100, High: 90, Low: 95, Close: 92},
			wantErr: true,
		},
		{
			name:    "negative volume",
			bar:     PriceBar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 105, Volume: -1},
			wantErr: true,
		},
		{
			name:    "NaN close",
			bar:     PriceBar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: math.NaN()},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bar.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("PriceBar.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input   string
		want    Interval
		wantErr bool
	}{
		{"1h", Interval1h, false},
		{"1H", Interval1h, false},
		{" 1d ", Interval1d, false},
		{"1D", Interval1d, false},
		{"4h", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInterval(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseInterval(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBucketLabel(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2024, 3, 1, h, m, 0, 0, time.UTC) }
	tests := []struct {
		name     string
		interval Interval
		in       time.Time
		want     time.Time
	}{
		{"inside hour rounds up", Interval1h, day(10, 5), day(11, 0)},
		{"late in hour rounds up", Interval1h, day(10, 40), day(11, 0)},
		{"exact boundary is closed on the right", Interval1h, day(11, 0), day(11, 0)},
		{"day bucket", Interval1d, day(10, 5), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"midnight stays", Interval1d, day(0, 0), day(0, 0)},
		{
			"non-UTC input is normalized",
			Interval1h,
			time.Date(2024, 3, 1, 12, 5, 0, 0, time.FixedZone("CET", 3600)),
			day(12, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.interval.BucketLabel(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("BucketLabel(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultHorizons(t *testing.T) {
	if got := Interval1h.DefaultHorizons(); len(got) != 5 || got[4] != 24 {
		t.Errorf("1h horizons = %v", got)
	}
	if got := Interval1d.DefaultHorizons(); len(got) != 5 || got[4] != 10 {
		t.Errorf("1d horizons = %v", got)
	}
}

func TestStat(t *testing.T) {
	if s := Defined(math.NaN()); s.Valid {
		t.Error("NaN should be undefined")
	}
	if s := Defined(math.Inf(1)); s.Valid {
		t.Error("Inf should be undefined")
	}
	if got := (Stat{}).String(); got != UndefinedMarker {
		t.Errorf("undefined String() = %q", got)
	}
	if got := Defined(0.1).String(); got != "0.1" {
		t.Errorf("Defined(0.1).String() = %q", got)
	}
	if !math.IsNaN((Stat{}).Float64()) {
		t.Error("undefined Float64() should be NaN")
	}
}

func TestDatasetRowPredictor(t *testing.T) {
	r := DatasetRow{
		AggregatedBucket: AggregatedBucket{LongLiqUSD: 10, ShortLiqUSD: 4, LongCount: 2, ShortCount: 1},
		NetLiqUSD:        -6,
		LiqTotalUSD:      14,
	}
	for _, name := range DefaultPredictors() {
		if _, ok := r.Predictor(name); !ok {
			t.Errorf("predictor %s should be defined", name)
		}
	}
	if v, _ := r.Predictor(PredictorShortCount); v != 1 {
		t.Errorf("short_count = %v, want 1", v)
	}
	if _, ok := r.Predictor("close"); ok {
		t.Error("close is not a predictor")
	}
	r.NetLiqUSD = math.NaN()
	if _, ok := r.Predictor(PredictorNetLiqUSD); ok {
		t.Error("NaN predictor should be reported missing")
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-03-01T11:00:00Z",
		"2024-03-01T12:00:00+01:00",
		"2024-03-01 11:00:00+00:00",
		"2024-03-01 11:00:00",
		"2024-03-01T11:00:00",
		" 2024-03-01T11:00 ",
	}
	for _, in := range inputs {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
	if got := FormatTimestamp(want); got != "2024-03-01T11:00:00Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
}
