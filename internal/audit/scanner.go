package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// tableSpec describes one audited table: how to measure its completeness
// against the active ticker universe, where its newest timestamp lives, and
// how stale it is allowed to get before the freshness score decays.
type tableSpec struct {
	Name     string
	Critical bool
	Cadence  time.Duration

	// completenessQuery must return (total, complete) over the sampled
	// universe. $1 is the sample limit; NULLIF($1, 0) disables it.
	completenessQuery string

	// freshnessQuery must return the newest ingestion timestamp, NULL on
	// an empty table.
	freshnessQuery string

	// rowCountQuery returns the exact row count. Never sampled.
	rowCountQuery string

	// missingQuery lists offending ticker symbols for detail mode.
	missingQuery string
}

// detailLimit caps per-table offender lists so detail mode stays readable.
const detailLimit = 50

// sampledTickers limits the audited universe to the first N active tickers
// by id. Row counts stay exact regardless of sampling.
const sampledTickers = `
	SELECT id, symbol FROM tickers
	WHERE is_active = true
	ORDER BY id
	LIMIT NULLIF($1, 0)
`

// auditedTables is the fixed audit surface, in presentation order.
// ⭐ SSOT: 감사 대상 테이블과 주기 정의는 여기에서만
var auditedTables = []tableSpec{
	{
		Name:     "tickers",
		Critical: true,
		Cadence:  30 * 24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT t.id) FILTER (WHERE t.name <> '' AND t.exchange <> '')
			FROM universe u
			JOIN tickers t ON t.id = u.id`,
		freshnessQuery: `SELECT MAX(updated_at) FROM tickers WHERE is_active = true`,
		rowCountQuery:  `SELECT COUNT(*) FROM tickers`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT u.symbol FROM universe u
			JOIN tickers t ON t.id = u.id
			WHERE t.name = '' OR t.exchange = ''
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Name:     "daily_prices",
		Critical: true,
		Cadence:  24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(date) AS d FROM daily_prices)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT p.ticker_id)
			FROM universe u
			LEFT JOIN daily_prices p
			       ON p.ticker_id = u.id
			      AND p.date = (SELECT d FROM latest)
			      AND p.close IS NOT NULL`,
		freshnessQuery: `SELECT MAX(created_at) FROM daily_prices`,
		rowCountQuery:  `SELECT COUNT(*) FROM daily_prices`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(date) AS d FROM daily_prices)
			SELECT u.symbol FROM universe u
			LEFT JOIN daily_prices p
			       ON p.ticker_id = u.id
			      AND p.date = (SELECT d FROM latest)
			      AND p.close IS NOT NULL
			WHERE p.ticker_id IS NULL
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Name:    "fundamentals",
		Cadence: 90 * 24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT f.ticker_id)
			FROM universe u
			LEFT JOIN fundamentals f ON f.ticker_id = u.id`,
		freshnessQuery: `SELECT MAX(updated_at) FROM fundamentals`,
		rowCountQuery:  `SELECT COUNT(*) FROM fundamentals`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT u.symbol FROM universe u
			LEFT JOIN fundamentals f ON f.ticker_id = u.id
			WHERE f.ticker_id IS NULL
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Name:    "indicators",
		Cadence: 24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(date) AS d FROM indicators)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT i.ticker_id)
			FROM universe u
			LEFT JOIN indicators i
			       ON i.ticker_id = u.id
			      AND i.date = (SELECT d FROM latest)`,
		freshnessQuery: `SELECT MAX(computed_at) FROM indicators`,
		rowCountQuery:  `SELECT COUNT(*) FROM indicators`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(date) AS d FROM indicators)
			SELECT u.symbol FROM universe u
			LEFT JOIN indicators i
			       ON i.ticker_id = u.id
			      AND i.date = (SELECT d FROM latest)
			WHERE i.ticker_id IS NULL
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Name:    "company_profiles",
		Cadence: 30 * 24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT c.ticker_id) FILTER (WHERE c.profile IS NOT NULL)
			FROM universe u
			LEFT JOIN company_profiles c ON c.ticker_id = u.id`,
		freshnessQuery: `SELECT MAX(updated_at) FROM company_profiles`,
		rowCountQuery:  `SELECT COUNT(*) FROM company_profiles`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `)
			SELECT u.symbol FROM universe u
			LEFT JOIN company_profiles c ON c.ticker_id = u.id
			WHERE c.ticker_id IS NULL OR c.profile IS NULL
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Name:    "feature_snapshots",
		Cadence: 24 * time.Hour,
		completenessQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(captured_at) AS c FROM feature_snapshots)
			SELECT COUNT(DISTINCT u.id),
			       COUNT(DISTINCT s.ticker_id)
			FROM universe u
			LEFT JOIN feature_snapshots s
			       ON s.ticker_id = u.id
			      AND s.captured_at = (SELECT c FROM latest)`,
		freshnessQuery: `SELECT MAX(captured_at) FROM feature_snapshots`,
		rowCountQuery:  `SELECT COUNT(*) FROM feature_snapshots`,
		missingQuery: `
			WITH universe AS (` + sampledTickers + `),
			latest AS (SELECT MAX(captured_at) AS c FROM feature_snapshots)
			SELECT u.symbol FROM universe u
			LEFT JOIN feature_snapshots s
			       ON s.ticker_id = u.id
			      AND s.captured_at = (SELECT c FROM latest)
			WHERE s.ticker_id IS NULL
			ORDER BY u.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
}

// Scanner measures one table at a time against the live database.
type Scanner struct {
	db     *database.DB
	logger *logger.Logger
}

// NewScanner creates a table scanner.
func NewScanner(db *database.DB, log *logger.Logger) *Scanner {
	return &Scanner{db: db, logger: log}
}

// ScanTable runs the three measurement queries for one table and folds them
// into a TableResult. A query failure marks the table FAIL with the error
// recorded, never a silent zero score.
func (s *Scanner) ScanTable(ctx context.Context, spec tableSpec, sampleLimit int, detail bool, now time.Time) TableResult {
	result := TableResult{TableName: spec.Name}

	if err := s.db.Pool.QueryRow(ctx, spec.rowCountQuery).Scan(&result.RowCount); err != nil {
		return failedTable(spec.Name, fmt.Errorf("row count: %w", err))
	}

	var total, complete int64
	if err := s.db.Pool.QueryRow(ctx, spec.completenessQuery, sampleLimit).Scan(&total, &complete); err != nil {
		return failedTable(spec.Name, fmt.Errorf("completeness: %w", err))
	}
	if total > 0 {
		result.Completeness = float64(complete) / float64(total)
	}

	var newest *time.Time
	if err := s.db.Pool.QueryRow(ctx, spec.freshnessQuery).Scan(&newest); err != nil {
		return failedTable(spec.Name, fmt.Errorf("freshness: %w", err))
	}
	if newest != nil {
		result.Freshness = FreshnessRatio(now.Sub(*newest), spec.Cadence)
	}

	result.HealthPercent = HealthPercent(result.Completeness, result.Freshness)
	result.Status = StatusFor(result.HealthPercent)

	if detail {
		missing, err := s.queryIdentifiers(ctx, spec.missingQuery, sampleLimit)
		if err != nil {
			s.logger.WithError(err).WithField("table", spec.Name).Warn("Detail query failed")
		} else {
			result.Missing = missing
		}
	}

	return result
}

func (s *Scanner) queryIdentifiers(ctx context.Context, query string, sampleLimit int) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, query, sampleLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// failedTable builds the FAIL result for a table whose scan itself broke.
// 스캔 실패 = 0점 + FAIL, 다른 테이블에는 영향 없음
func failedTable(name string, err error) TableResult {
	return TableResult{
		TableName: name,
		Status:    StatusFail,
		Error:     err.Error(),
	}
}
