package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// ErrStoreUnavailable aborts a run when the database itself cannot be
// reached. Per-table failures never escalate to this.
var ErrStoreUnavailable = errors.New("audit store unavailable")

// auditParallelism bounds concurrent table scans per run.
const auditParallelism = 4

// Options control one audit run.
type Options struct {
	// SampleLimit caps the audited ticker universe; 0 means the full
	// universe. Row counts stay exact either way.
	SampleLimit int

	// Detail attaches offending identifier lists to the report.
	Detail bool
}

type tableScanner interface {
	ScanTable(ctx context.Context, spec tableSpec, sampleLimit int, detail bool, now time.Time) TableResult
}

type checkRunner interface {
	RunChecks(ctx context.Context, detail bool) []CheckResult
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Engine orchestrates one full audit: reachability probe, parallel table
// scans, cross-checks, weighted aggregation.
type Engine struct {
	scanner tableScanner
	checks  checkRunner
	pinger  pinger
	tables  []tableSpec
	logger  *logger.Logger

	nowFn func() time.Time
}

// NewEngine wires the engine against a live database.
func NewEngine(db *database.DB, log *logger.Logger) *Engine {
	return &Engine{
		scanner: NewScanner(db, log),
		checks:  NewCheckRunner(db, log),
		pinger:  db,
		tables:  auditedTables,
		logger:  log,
		nowFn:   time.Now,
	}
}

// Checks exposes the cross-check runner for custom registrations. Returns
// nil when the engine was built without the default runner.
func (e *Engine) Checks() *CheckRunner {
	runner, _ := e.checks.(*CheckRunner)
	return runner
}

// Run executes one audit. The only fatal outcome is an unreachable
// database; everything else is isolated to its own table or check result.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	start := e.nowFn()

	if err := e.pinger.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.logger.WithFields(map[string]interface{}{
		"tables":       len(e.tables),
		"sample_limit": opts.SampleLimit,
		"detail":       opts.Detail,
	}).Info("Audit run started")

	// Freshness is measured against a single instant for the whole run.
	now := start

	results := make([]TableResult, len(e.tables))
	var cross []CheckResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditParallelism)

	for i, spec := range e.tables {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = e.scanner.ScanTable(gctx, spec, opts.SampleLimit, opts.Detail, now)
			return nil
		})
	}
	g.Go(func() error {
		cross = e.checks.RunChecks(gctx, opts.Detail)
		return nil
	})
	// Scan and check errors are folded into per-item results, never returned.
	_ = g.Wait()

	report := &Report{
		Tables:      make(map[string]TableResult, len(results)),
		Cross:       cross,
		GeneratedAt: now,
	}
	for _, r := range results {
		report.Tables[r.TableName] = r
	}
	report.Overall = e.aggregate(results)

	e.logger.WithFields(map[string]interface{}{
		"health":   fmt.Sprintf("%.1f%%", report.Overall.SystemHealthPercent),
		"grade":    string(report.Overall.Grade),
		"duration": e.nowFn().Sub(start).String(),
	}).Info("Audit run finished")

	return report, nil
}

// aggregate folds per-table scores into the overall grade. Critical tables
// weigh double; failed scans drag the mean down at their zero score.
func (e *Engine) aggregate(results []TableResult) Overall {
	var weighted, totalWeight float64

	for i, r := range results {
		weight := defaultTableWeight
		if e.tables[i].Critical {
			weight = criticalTableWeight
		}
		weighted += r.HealthPercent * weight
		totalWeight += weight
	}

	var health float64
	if totalWeight > 0 {
		health = weighted / totalWeight
	}

	return Overall{
		SystemHealthPercent: health,
		Grade:               GradeFor(health),
	}
}
