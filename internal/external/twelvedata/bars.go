package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/pulse/internal/intraday"
)

// timeSeriesResponse is the JSON shape of the time_series endpoint.
// TwelveData reports API-level errors inside a 200 body.
type timeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// FetchBars fetches the 1-minute bars for a symbol and trading date,
// ordered ascending by timestamp.
// ⭐ SSOT: time_series 엔드포인트 호출과 실패 분류는 이 함수에서만
func (c *Client) FetchBars(ctx context.Context, symbol string, date time.Time) ([]intraday.OHLCVBar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("local rate limit wait: %v: %w", err, intraday.ErrUnavailable)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", barInterval)
	q.Set("outputsize", strconv.Itoa(barOutputSize))
	q.Set("date", date.Format("2006-01-02"))
	q.Set("apikey", c.cfg.APIKey)

	fullURL := fmt.Sprintf("%s/time_series?%s", c.cfg.BaseURL, q.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("twelvedata request failed: %v: %w", err, intraday.ErrUnavailable)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %v: %w", err, intraday.ErrUnavailable)
	}

	var ts timeSeriesResponse
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, intraday.ErrUnavailable)
	}

	if ts.Status == "error" {
		return nil, classifyAPIError(ts.Code, ts.Message)
	}

	bars, err := c.parseBars(ts)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"date":   date.Format("2006-01-02"),
		"bars":   len(bars),
	}).Debug("Fetched intraday bars")

	return bars, nil
}

// parseBars converts the string-typed payload and restores ascending order
// (the API returns newest-first).
func (c *Client) parseBars(ts timeSeriesResponse) ([]intraday.OHLCVBar, error) {
	bars := make([]intraday.OHLCVBar, 0, len(ts.Values))

	for _, v := range ts.Values {
		tm, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parse datetime %q: %v: %w", v.Datetime, err, intraday.ErrUnavailable)
		}

		open, err := strconv.ParseFloat(v.Open, 64)
		if err != nil {
			return nil, fmt.Errorf("parse open %q: %v: %w", v.Open, err, intraday.ErrUnavailable)
		}
		high, err := strconv.ParseFloat(v.High, 64)
		if err != nil {
			return nil, fmt.Errorf("parse high %q: %v: %w", v.High, err, intraday.ErrUnavailable)
		}
		low, err := strconv.ParseFloat(v.Low, 64)
		if err != nil {
			return nil, fmt.Errorf("parse low %q: %v: %w", v.Low, err, intraday.ErrUnavailable)
		}
		closePrice, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %v: %w", v.Close, err, intraday.ErrUnavailable)
		}
		volume, err := strconv.ParseInt(v.Volume, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %v: %w", v.Volume, err, intraday.ErrUnavailable)
		}

		bars = append(bars, intraday.OHLCVBar{
			Timestamp: tm,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return bars, nil
}

// classifyStatus maps HTTP status codes to the typed fetch outcomes.
func classifyStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusOK:
		return nil
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("twelvedata http %d: %w", statusCode, intraday.ErrNotFound)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("twelvedata http %d: %w", statusCode, intraday.ErrRateLimited)
	default:
		return fmt.Errorf("twelvedata http %d: %w", statusCode, intraday.ErrUnavailable)
	}
}

// classifyAPIError maps body-level error codes (sent inside 200 responses).
func classifyAPIError(code int, message string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("twelvedata: %s: %w", message, intraday.ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("twelvedata: %s: %w", message, intraday.ErrRateLimited)
	default:
		return fmt.Errorf("twelvedata: %s: %w", message, intraday.ErrUnavailable)
	}
}
