package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/pkg/logger"
)

type stubScanner struct {
	mu      sync.Mutex
	scanned []string

	// results keyed by table name; missing entries scan as healthy
	results map[string]TableResult
}

func (s *stubScanner) ScanTable(_ context.Context, spec tableSpec, _ int, _ bool, _ time.Time) TableResult {
	s.mu.Lock()
	s.scanned = append(s.scanned, spec.Name)
	s.mu.Unlock()

	if r, ok := s.results[spec.Name]; ok {
		return r
	}
	return TableResult{
		TableName:     spec.Name,
		RowCount:      100,
		Completeness:  1.0,
		Freshness:     1.0,
		HealthPercent: 100,
		Status:        StatusOK,
	}
}

type stubChecker struct {
	results []CheckResult
}

func (s *stubChecker) RunChecks(context.Context, bool) []CheckResult {
	return s.results
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func newTestEngine(scanner *stubScanner, checker *stubChecker, ping error) *Engine {
	now := time.Date(2026, 8, 31, 17, 30, 0, 0, time.UTC)

	return &Engine{
		scanner: scanner,
		checks:  checker,
		pinger:  &stubPinger{err: ping},
		tables: []tableSpec{
			{Name: "tickers", Critical: true},
			{Name: "daily_prices", Critical: true},
			{Name: "fundamentals"},
			{Name: "indicators"},
		},
		logger: logger.NewNop(),
		nowFn:  func() time.Time { return now },
	}
}

func TestEngine_Run_AllHealthy(t *testing.T) {
	scanner := &stubScanner{}
	checker := &stubChecker{results: []CheckResult{
		{Label: "orphaned_prices", AnomalyCount: 0},
	}}

	engine := newTestEngine(scanner, checker, nil)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Len(t, report.Tables, 4)
	assert.ElementsMatch(t, []string{"tickers", "daily_prices", "fundamentals", "indicators"}, scanner.scanned)

	assert.InDelta(t, 100.0, report.Overall.SystemHealthPercent, 1e-9)
	assert.Equal(t, GradeExcellent, report.Overall.Grade)
	assert.Equal(t, checker.results, report.Cross)
	assert.Equal(t, time.Date(2026, 8, 31, 17, 30, 0, 0, time.UTC), report.GeneratedAt)
}

func TestEngine_Run_StoreUnavailableAborts(t *testing.T) {
	engine := newTestEngine(&stubScanner{}, &stubChecker{}, errors.New("connection refused"))

	report, err := engine.Run(context.Background(), Options{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestEngine_Run_TableFailureIsIsolated(t *testing.T) {
	scanner := &stubScanner{results: map[string]TableResult{
		"indicators": failedTable("indicators", errors.New("relation does not exist")),
	}}

	engine := newTestEngine(scanner, &stubChecker{}, nil)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	// Failed table is FAIL at zero health; the other three still scored.
	failed := report.Tables["indicators"]
	assert.Equal(t, StatusFail, failed.Status)
	assert.Contains(t, failed.Error, "relation does not exist")
	assert.Zero(t, failed.HealthPercent)

	assert.Equal(t, StatusOK, report.Tables["tickers"].Status)
	assert.Equal(t, StatusOK, report.Tables["daily_prices"].Status)
	assert.Equal(t, StatusOK, report.Tables["fundamentals"].Status)
}

func TestEngine_Run_CriticalTablesWeighDouble(t *testing.T) {
	// tickers and daily_prices are critical (weight 2), the other two
	// weight 1: mean = (2*100 + 2*100 + 40 + 100) / 6 = 90.
	scanner := &stubScanner{results: map[string]TableResult{
		"fundamentals": {
			TableName:     "fundamentals",
			HealthPercent: 40,
			Status:        StatusFail,
		},
	}}

	engine := newTestEngine(scanner, &stubChecker{}, nil)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.InDelta(t, 90.0, report.Overall.SystemHealthPercent, 1e-9)
	assert.Equal(t, GradeGood, report.Overall.Grade)
}

func TestEngine_Run_CriticalFailureDragsGrade(t *testing.T) {
	scanner := &stubScanner{results: map[string]TableResult{
		"daily_prices": {
			TableName: "daily_prices",
			Status:    StatusFail,
		},
	}}

	engine := newTestEngine(scanner, &stubChecker{}, nil)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	// (2*100 + 2*0 + 100 + 100) / 6 = 66.67 → Poor
	assert.InDelta(t, 400.0/6.0, report.Overall.SystemHealthPercent, 1e-6)
	assert.Equal(t, GradePoor, report.Overall.Grade)
}

func TestEngine_Run_FailedCheckKeepsErrorMarker(t *testing.T) {
	checker := &stubChecker{results: []CheckResult{
		{Label: "orphaned_prices", AnomalyCount: 2},
		{Label: "duplicate_feature_snapshots", Error: "query timeout"},
	}}

	engine := newTestEngine(&stubScanner{}, checker, nil)

	report, err := engine.Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Cross, 2)
	assert.False(t, report.Cross[0].Failed())
	assert.True(t, report.Cross[1].Failed())
	assert.Zero(t, report.Cross[1].AnomalyCount)
}

func TestCheckRunner_RegisterPreservesOrder(t *testing.T) {
	runner := NewCheckRunner(nil, logger.NewNop())
	runner.Register("stale_intraday_keys", "SELECT 0", "SELECT NULL LIMIT 0")

	labels := runner.Labels()
	require.Len(t, labels, len(builtinChecks)+1)

	assert.Equal(t, "orphaned_prices", labels[0])
	assert.Equal(t, "duplicate_feature_snapshots", labels[1])
	assert.Equal(t, "missing_profile_fields", labels[2])
	assert.Equal(t, "orphaned_indicators", labels[3])
	assert.Equal(t, "stale_intraday_keys", labels[4])
}
