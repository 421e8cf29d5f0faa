package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/intraday"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/httputil"
	"github.com/wonny/pulse/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewNop()
	httpClient := httputil.New(&config.Config{}, log).DisableRetry()

	return NewClient(config.TwelveDataConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		CreditsPerMin: 600, // don't throttle tests
	}, httpClient, log)
}

const sampleResponse = `{
	"meta": {"symbol": "AAPL", "interval": "1min"},
	"values": [
		{"datetime": "2026-08-31 09:32:00", "open": "101.0", "high": "102.0", "low": "100.5", "close": "101.5", "volume": "900"},
		{"datetime": "2026-08-31 09:31:00", "open": "100.5", "high": "101.2", "low": "100.1", "close": "101.0", "volume": "1100"},
		{"datetime": "2026-08-31 09:30:00", "open": "100.0", "high": "100.8", "low": "99.7", "close": "100.5", "volume": "1500"}
	],
	"status": "ok"
}`

func TestClient_FetchBars(t *testing.T) {
	var gotQuery map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"symbol":     r.URL.Query().Get("symbol"),
			"interval":   r.URL.Query().Get("interval"),
			"date":       r.URL.Query().Get("date"),
			"apikey":     r.URL.Query().Get("apikey"),
			"outputsize": r.URL.Query().Get("outputsize"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	})

	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	bars, err := client.FetchBars(context.Background(), "AAPL", date)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"symbol":     "AAPL",
		"interval":   "1min",
		"date":       "2026-08-31",
		"apikey":     "test-key",
		"outputsize": "390",
	}, gotQuery)

	// API returns newest-first; client must restore ascending order
	require.Len(t, bars, 3)
	assert.Equal(t, "09:30:00", bars[0].Timestamp.Format("15:04:05"))
	assert.Equal(t, "09:31:00", bars[1].Timestamp.Format("15:04:05"))
	assert.Equal(t, "09:32:00", bars[2].Timestamp.Format("15:04:05"))

	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 100.8, bars[0].High)
	assert.Equal(t, 99.7, bars[0].Low)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, int64(1500), bars[0].Volume)

	for _, b := range bars {
		assert.NoError(t, b.Validate())
	}
}

func TestClient_FetchBars_TypedFailures(t *testing.T) {
	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "body-level not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"code": 404, "message": "symbol not found", "status": "error"}`))
			},
			wantErr: intraday.ErrNotFound,
		},
		{
			name: "body-level rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"code": 429, "message": "API credits exhausted", "status": "error"}`))
			},
			wantErr: intraday.ErrRateLimited,
		},
		{
			name: "http 404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantErr: intraday.ErrNotFound,
		},
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantErr: intraday.ErrRateLimited,
		},
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: intraday.ErrUnavailable,
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>maintenance</html>`))
			},
			wantErr: intraday.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			bars, err := client.FetchBars(context.Background(), "AAPL", date)
			assert.Nil(t, bars)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_FetchBars_ServerUnreachable(t *testing.T) {
	log := logger.NewNop()
	httpClient := httputil.New(&config.Config{}, log).DisableRetry()
	client := NewClient(config.TwelveDataConfig{
		APIKey:        "test-key",
		BaseURL:       "http://127.0.0.1:1", // nothing listens here
		CreditsPerMin: 600,
	}, httpClient, log)

	_, err := client.FetchBars(context.Background(), "AAPL", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, intraday.ErrUnavailable)
}
