package intraday

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Typed fetch outcomes from the upstream market data provider.
// 모두 stale-serve-or-miss 정책으로 흡수되고 호출자에게 전파되지 않음
var (
	// ErrNotFound means the provider has no bars for the symbol/date.
	ErrNotFound = errors.New("intraday: symbol not found")

	// ErrRateLimited means the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("intraday: upstream rate limited")

	// ErrUnavailable covers transport failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("intraday: upstream unavailable")
)

// OHLCVBar is one 1-minute open/high/low/close/volume sample.
type OHLCVBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Validate checks the price/volume invariants of a single bar.
// low ≤ open,close ≤ high이고 volume ≥ 0이어야 함
func (b OHLCVBar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar has zero timestamp")
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar at %s has negative volume %d", b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("bar at %s has negative price", b.Timestamp.Format(time.RFC3339))
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar at %s violates low <= open,close <= high (o=%.4f h=%.4f l=%.4f c=%.4f)",
			b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// Snapshot holds the most recent bar set fetched for one (symbol, trading date).
// 성공한 fetch가 통째로 교체하며, 생성 후에는 수정하지 않음
type Snapshot struct {
	Symbol      string     `json:"symbol"`
	TradingDate time.Time  `json:"trading_date"`
	Bars        []OHLCVBar `json:"bars"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// Key returns the cache key for the snapshot: SYMBOL:YYYY-MM-DD.
func (s *Snapshot) Key() string {
	return Key(s.Symbol, s.TradingDate)
}

// Age returns how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Key builds the per-(symbol, trading date) cache key.
func Key(symbol string, date time.Time) string {
	return fmt.Sprintf("%s:%s", symbol, date.Format("2006-01-02"))
}

// BarFetcher is the upstream provider boundary.
// 구현체는 ErrNotFound / ErrRateLimited / ErrUnavailable 중 하나로 실패를 분류해야 함
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, date time.Time) ([]OHLCVBar, error)
}
