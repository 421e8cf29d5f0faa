package commands

import (
	"fmt"

	"github.com/wonny/pulse/internal/external/twelvedata"
	"github.com/wonny/pulse/internal/intraday"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/httputil"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

// initIntradayCache wires the snapshot cache: Redis-backed store with the
// shared rate limiter when Redis is enabled, in-memory store otherwise.
// ⭐ SSOT: 인트라데이 캐시 조립은 이 함수에서만
func initIntradayCache(cfg *config.Config, log *logger.Logger) (*intraday.Cache, func(), error) {
	httpClient := httputil.New(cfg, log)

	var store intraday.SnapshotStore
	cleanup := func() {}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}

		store = intraday.NewRedisStore(redisClient.Redis(), cfg.Intraday.Namespace, cfg.Intraday.StoreTTL)

		// Shared sliding-window limit across all processes hitting TwelveData
		limiter := redis.NewRateLimiter(redisClient, "ratelimit")
		httpClient = httpClient.WithRateLimiter(limiter, redis.TwelveDataRateLimit)

		cleanup = func() { _ = redisClient.Close() }

		log.WithField("namespace", cfg.Intraday.Namespace).Info("Using Redis snapshot store")
	} else {
		store = intraday.NewMemoryStore()
		log.Warn("Redis disabled, using in-memory snapshot store")
	}

	fetcher := twelvedata.NewClient(cfg.TwelveData, httpClient, log)
	cache := intraday.NewCache(store, fetcher, cfg.Intraday, log)

	return cache, cleanup, nil
}
