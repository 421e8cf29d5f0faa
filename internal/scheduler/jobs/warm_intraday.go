// Package jobs holds the concrete scheduled jobs wired into the scheduler.
package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/pulse/internal/intraday"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// warmUniverseLimit caps how many symbols one warm pass touches. The cache
// worker pool bounds concurrency below this.
const warmUniverseLimit = 50

// WarmIntradayJob pre-warms intraday snapshots for the active watchlist
// every minute during the trading window.
// ⭐ SSOT: 인트라데이 워밍 스케줄은 이 Job에서만
type WarmIntradayJob struct {
	cache  *intraday.Cache
	db     *database.DB
	logger *logger.Logger
}

// NewWarmIntradayJob creates a new intraday warm job
func NewWarmIntradayJob(cache *intraday.Cache, db *database.DB, log *logger.Logger) *WarmIntradayJob {
	return &WarmIntradayJob{
		cache:  cache,
		db:     db,
		logger: log,
	}
}

// Name returns the job name
func (j *WarmIntradayJob) Name() string {
	return "warm_intraday"
}

// Schedule returns the cron schedule (every minute, US trading hours ET)
func (j *WarmIntradayJob) Schedule() string {
	return "0 * 9-16 * * MON-FRI"
}

// Run warms the snapshot cache for the active symbols
func (j *WarmIntradayJob) Run(ctx context.Context) error {
	symbols, err := j.activeSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load warm universe: %w", err)
	}
	if len(symbols) == 0 {
		j.logger.Warn("No active symbols to warm")
		return nil
	}

	warmed := j.cache.WarmMany(ctx, symbols, false)

	j.logger.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"warmed":  warmed,
	}).Info("Intraday warm pass completed")

	return nil
}

func (j *WarmIntradayJob) activeSymbols(ctx context.Context) ([]string, error) {
	rows, err := j.db.Pool.Query(ctx, `
		SELECT symbol FROM tickers
		WHERE is_active = true
		ORDER BY id
		LIMIT $1`, warmUniverseLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}
