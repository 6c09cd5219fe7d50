package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/models"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func testConfig(baseURL string) config.BinanceConfig {
	return config.BinanceConfig{
		BaseURL:           baseURL,
		Symbol:            "BTCUSDT",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		RetryDelayBase:    time.Millisecond,
		RequestsPerSecond: 1000,
		PageLimit:         2,
	}
}

func kline(open time.Time, width time.Duration, close float64) string {
	openMs := open.UnixMilli()
	closeMs := open.Add(width).UnixMilli() - 1
	return fmt.Sprintf(`[%d,"%g","%g","%g","%g","12.5",%d,"0",10,"0","0","0"]`,
		openMs, close-1, close+2, close-2, close, closeMs)
}

// hourlyServer serves hourly klines from startTime up to endTime, limit per page.
func hourlyServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))

		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		end, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var rows []string
		for open := time.UnixMilli(start).UTC(); open.UnixMilli() < end && len(rows) < limit; open = open.Add(time.Hour) {
			rows = append(rows, kline(open, time.Hour, 100+float64(open.Hour())))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchKlines_Paging(t *testing.T) {
	var requests int32
	srv := hourlyServer(t, &requests)
	c := NewClient(testConfig(srv.URL))

	bars, err := c.FetchKlines(context.Background(), "BTCUSDT", models.Interval1h, t0, t0.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	for i, b := range bars {
		// labelled at the bar's closing instant
		assert.Equal(t, t0.Add(time.Duration(i+1)*time.Hour), b.Timestamp)
		assert.Equal(t, 100+float64(10+i), b.Close)
		assert.Equal(t, 12.5, b.Volume)
	}
}

func TestFetchKlines_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	bars, err := NewClient(testConfig(srv.URL)).FetchKlines(context.Background(), "BTCUSDT", models.Interval1h, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}

func TestFetchKlines_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "[%s]", kline(t0, time.Hour, 100))
	}))
	defer srv.Close()

	bars, err := NewClient(testConfig(srv.URL)).FetchKlines(context.Background(), "BTCUSDT", models.Interval1h, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchKlines_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).FetchKlines(context.Background(), "NOPE", models.Interval1h, t0, t0.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "Invalid symbol")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchKlines_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).FetchKlines(context.Background(), "BTCUSDT", models.Interval1h, t0, t0.Add(time.Hour))
	require.Error(t, err)
	assert.False(t, IsClientError(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDecodeKlines(t *testing.T) {
	body := fmt.Sprintf("[%s,%s]", kline(t0, 24*time.Hour, 200), kline(t0, 24*time.Hour, 300))
	bars, lastClose, err := decodeKlines([]byte(body))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0.Add(24*time.Hour).UnixMilli()-1, lastClose)
	assert.Equal(t, t0.Add(24*time.Hour), bars[0].Timestamp)
	assert.Equal(t, 199.0, bars[0].Open)
	assert.Equal(t, 202.0, bars[0].High)
	assert.Equal(t, 198.0, bars[0].Low)

	_, _, err = decodeKlines([]byte(`[[1,"1","1"]]`))
	assert.Error(t, err)

	_, _, err = decodeKlines([]byte(`[[1,"1","1","1","abc","1",2]]`))
	assert.Error(t, err)
}
