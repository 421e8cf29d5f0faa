package audit

import (
	"context"
	"fmt"

	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// crossCheck is one cross-table consistency rule: a count of anomalous rows
// plus an offender listing for detail mode. Checks run independently; one
// failing never stops the rest.
type crossCheck struct {
	Label string

	// countQuery must return a single non-negative anomaly count.
	countQuery string

	// offendersQuery lists offending row identifiers for detail mode.
	offendersQuery string
}

// builtinChecks is the default registration set. Order is presentation order.
var builtinChecks = []crossCheck{
	{
		Label: "orphaned_prices",
		countQuery: `
			SELECT COUNT(*) FROM daily_prices p
			LEFT JOIN tickers t ON t.id = p.ticker_id
			WHERE t.id IS NULL`,
		offendersQuery: `
			SELECT DISTINCT p.ticker_id::text FROM daily_prices p
			LEFT JOIN tickers t ON t.id = p.ticker_id
			WHERE t.id IS NULL
			ORDER BY 1
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Label: "duplicate_feature_snapshots",
		countQuery: `
			SELECT COALESCE(SUM(cnt - 1), 0) FROM (
				SELECT COUNT(*) AS cnt
				FROM feature_snapshots
				GROUP BY ticker_id, captured_at
				HAVING COUNT(*) > 1
			) d`,
		offendersQuery: `
			SELECT ticker_id::text || '@' || captured_at::text
			FROM feature_snapshots
			GROUP BY ticker_id, captured_at
			HAVING COUNT(*) > 1
			ORDER BY 1
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Label: "missing_profile_fields",
		countQuery: `
			SELECT COUNT(*) FROM company_profiles c
			JOIN tickers t ON t.id = c.ticker_id
			WHERE t.is_active = true
			  AND (COALESCE(c.profile->>'sector', '') = ''
			    OR COALESCE(c.profile->>'industry', '') = '')`,
		offendersQuery: `
			SELECT t.symbol FROM company_profiles c
			JOIN tickers t ON t.id = c.ticker_id
			WHERE t.is_active = true
			  AND (COALESCE(c.profile->>'sector', '') = ''
			    OR COALESCE(c.profile->>'industry', '') = '')
			ORDER BY t.symbol
			LIMIT ` + fmt.Sprint(detailLimit),
	},
	{
		Label: "orphaned_indicators",
		countQuery: `
			SELECT COUNT(*) FROM indicators i
			LEFT JOIN tickers t ON t.id = i.ticker_id
			WHERE t.id IS NULL`,
		offendersQuery: `
			SELECT DISTINCT i.ticker_id::text FROM indicators i
			LEFT JOIN tickers t ON t.id = i.ticker_id
			WHERE t.id IS NULL
			ORDER BY 1
			LIMIT ` + fmt.Sprint(detailLimit),
	},
}

// CheckRunner executes registered cross-checks against the live database.
type CheckRunner struct {
	db     *database.DB
	logger *logger.Logger
	checks []crossCheck
}

// NewCheckRunner creates a runner preloaded with the builtin checks.
func NewCheckRunner(db *database.DB, log *logger.Logger) *CheckRunner {
	checks := make([]crossCheck, len(builtinChecks))
	copy(checks, builtinChecks)

	return &CheckRunner{db: db, logger: log, checks: checks}
}

// Register appends a custom check. Checks report in registration order.
func (r *CheckRunner) Register(label, countQuery, offendersQuery string) {
	r.checks = append(r.checks, crossCheck{
		Label:          label,
		countQuery:     countQuery,
		offendersQuery: offendersQuery,
	})
}

// Labels returns the registered check labels in order.
func (r *CheckRunner) Labels() []string {
	labels := make([]string, len(r.checks))
	for i, c := range r.checks {
		labels[i] = c.Label
	}
	return labels
}

// RunChecks executes every registered check. A failed check carries its
// error marker in the result instead of a fabricated zero count.
func (r *CheckRunner) RunChecks(ctx context.Context, detail bool) []CheckResult {
	results := make([]CheckResult, 0, len(r.checks))

	for _, check := range r.checks {
		result := CheckResult{Label: check.Label}

		if err := r.db.Pool.QueryRow(ctx, check.countQuery).Scan(&result.AnomalyCount); err != nil {
			result.Error = err.Error()
			r.logger.WithError(err).WithField("check", check.Label).Warn("Cross-check failed")
			results = append(results, result)
			continue
		}

		if detail && result.AnomalyCount > 0 {
			offenders, err := r.queryOffenders(ctx, check.offendersQuery)
			if err != nil {
				r.logger.WithError(err).WithField("check", check.Label).Warn("Offender query failed")
			} else {
				result.Offenders = offenders
			}
		}

		results = append(results, result)
	}

	return results
}

func (r *CheckRunner) queryOffenders(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offenders []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		offenders = append(offenders, id)
	}
	return offenders, rows.Err()
}
