// Package binance retrieves spot price bars from the Binance klines API.
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/liqstudy/internal/config"
	"github.com/rewired-gh/liqstudy/internal/dataset"
	"github.com/rewired-gh/liqstudy/internal/models"
)

// Client provides access to the Binance klines endpoint
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryDelayBase time.Duration
	pageLimit      int
}

// NewClient creates a new Binance client
func NewClient(cfg config.BinanceConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	c := &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		pageLimit:      cfg.PageLimit,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.retryDelayBase <= 0 {
		c.retryDelayBase = 500 * time.Millisecond
	}
	if c.pageLimit <= 0 || c.pageLimit > 1000 {
		c.pageLimit = 1000
	}
	return c
}

// statusError is a non-retryable HTTP failure
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// FetchKlines retrieves the bars of symbol at interval whose open time lies in
// [start, end). Each bar is labelled with its closing instant (close_time + 1ms), so an
// hourly bar covering 10:00-11:00 carries 11:00. Bars are returned in ascending order
// with duplicates removed.
func (c *Client) FetchKlines(ctx context.Context, symbol string, interval models.Interval, start, end time.Time) ([]models.PriceBar, error) {
	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	bars := []models.PriceBar{}
	for startMs < endMs {
		u, err := url.Parse(c.baseURL + "/api/v3/klines")
		if err != nil {
			return nil, fmt.Errorf("failed to parse URL: %w", err)
		}
		q := u.Query()
		q.Set("symbol", symbol)
		q.Set("interval", string(interval))
		q.Set("limit", strconv.Itoa(c.pageLimit))
		q.Set("startTime", strconv.FormatInt(startMs, 10))
		q.Set("endTime", strconv.FormatInt(endMs, 10))
		u.RawQuery = q.Encode()

		body, err := c.doRequest(ctx, u.String())
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines: %w", err)
		}
		page, lastClose, err := decodeKlines(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode klines: %w", err)
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)

		next := lastClose + 1
		if next <= startMs {
			break
		}
		startMs = next
	}

	return dataset.DedupeBars(bars), nil
}

// decodeKlines parses a klines response: an array of
// [open_time, open, high, low, close, volume, close_time, ...] rows with prices as strings.
func decodeKlines(body []byte) ([]models.PriceBar, int64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, 0, err
	}

	bars := make([]models.PriceBar, 0, len(rows))
	var lastClose int64
	for i, row := range rows {
		if len(row) < 7 {
			return nil, 0, fmt.Errorf("row %d: got %d fields, want at least 7", i, len(row))
		}
		var vals [5]float64
		for j := range vals {
			v, err := number(row[j+1])
			if err != nil {
				return nil, 0, fmt.Errorf("row %d field %d: %w", i, j+1, err)
			}
			vals[j] = v
		}
		closeTime, err := number(row[6])
		if err != nil {
			return nil, 0, fmt.Errorf("row %d close_time: %w", i, err)
		}
		lastClose = int64(closeTime)

		bar := models.PriceBar{
			Timestamp: time.UnixMilli(lastClose + 1).UTC(),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		}
		if err := bar.Validate(); err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	return bars, lastClose, nil
}

// number accepts both JSON numbers and numeric strings
func number(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected value %v", v)
	}
}

// doRequest performs HTTP request with retry logic. Transport errors and 5xx responses
// are retried with linear backoff; other non-200 responses fail immediately.
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsClientError reports whether err is a non-retryable 4xx response.
func IsClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}
