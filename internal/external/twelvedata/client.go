// Package twelvedata implements the upstream market data client against the
// TwelveData REST API.
package twelvedata

import (
	"golang.org/x/time/rate"

	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/httputil"
	"github.com/wonny/pulse/pkg/logger"
)

const (
	// 1-minute bars; a full US session is 390 of them
	barInterval   = "1min"
	barOutputSize = 390
)

// Client fetches 1-minute OHLCV bars from TwelveData.
// ⭐ SSOT: TwelveData API 호출은 이 클라이언트에서만
type Client struct {
	cfg        config.TwelveDataConfig
	httpClient *httputil.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient creates a TwelveData client. The local token bucket keeps a
// single process under the per-minute credit budget even before the shared
// Redis limiter is consulted.
func NewClient(cfg config.TwelveDataConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	creditsPerMin := cfg.CreditsPerMin
	if creditsPerMin <= 0 {
		creditsPerMin = 55
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(creditsPerMin)/60.0), 5),
		logger:     log,
	}
}
