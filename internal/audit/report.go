// Package audit scores the health and consistency of the ingested dataset
// across all tables and produces a structured report.
package audit

import (
	"encoding/json"
	"time"
)

// Status classifies one table's health.
type Status string

// Grade classifies overall system health.
type Grade string

const (
	StatusOK   Status = "OK"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"

	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradePoor      Grade = "Poor"
)

// Health blend and grading thresholds.
// 완성도/신선도 70/30 블렌드, 임계값은 고정 계약
const (
	completenessWeight = 0.70
	freshnessWeight    = 0.30

	okThreshold        = 95.0
	warnThreshold      = 80.0
	excellentThreshold = 95.0
	goodThreshold      = 80.0

	// criticalTableWeight is used in the overall mean for tables whose
	// absence breaks every downstream consumer.
	criticalTableWeight = 2.0
	defaultTableWeight  = 1.0
)

// StatusFor maps a health percent to its status. Fixed contract:
// ≥95 OK, 80–95 WARN, <80 FAIL.
func StatusFor(healthPercent float64) Status {
	switch {
	case healthPercent >= okThreshold:
		return StatusOK
	case healthPercent >= warnThreshold:
		return StatusWarn
	default:
		return StatusFail
	}
}

// GradeFor maps the overall health percent to its grade. Fixed contract:
// ≥95 Excellent, 80–95 Good, <80 Poor.
func GradeFor(healthPercent float64) Grade {
	switch {
	case healthPercent >= excellentThreshold:
		return GradeExcellent
	case healthPercent >= goodThreshold:
		return GradeGood
	default:
		return GradePoor
	}
}

// HealthPercent blends completeness and freshness ratios into a 0–100 score.
func HealthPercent(completeness, freshness float64) float64 {
	h := 100 * (completenessWeight*completeness + freshnessWeight*freshness)
	if h < 0 {
		return 0
	}
	if h > 100 {
		return 100
	}
	return h
}

// FreshnessRatio scores the age of the newest row against the table's
// expected ingestion cadence: 1.0 within cadence, linear decay to 0.0 at
// four times the cadence.
func FreshnessRatio(age, cadence time.Duration) float64 {
	if cadence <= 0 {
		return 0
	}
	if age <= cadence {
		return 1.0
	}
	ratio := 1.0 - float64(age-cadence)/float64(3*cadence)
	if ratio < 0 {
		return 0
	}
	return ratio
}

// TableResult is the health summary for one table. Produced once per run
// and never mutated afterwards.
type TableResult struct {
	TableName     string  `json:"table_name"`
	RowCount      int64   `json:"row_count"`
	Completeness  float64 `json:"completeness_ratio"`
	Freshness     float64 `json:"freshness_ratio"`
	HealthPercent float64 `json:"health_percent"`
	Status        Status  `json:"status"`

	// Error distinguishes a failed scan from a genuinely unhealthy table.
	Error string `json:"error,omitempty"`

	// Missing carries offending ticker symbols when detail is requested.
	Missing []string `json:"missing,omitempty"`
}

// CheckResult is the outcome of one cross-table consistency check. A failed
// check keeps its error marker; it is never coerced to a zero count.
type CheckResult struct {
	Label        string `json:"label"`
	AnomalyCount int64  `json:"anomaly_count"`
	Error        string `json:"error,omitempty"`

	// Offenders carries offending row identifiers when detail is requested.
	Offenders []string `json:"offenders,omitempty"`
}

// Failed reports whether the check itself failed to run.
func (c CheckResult) Failed() bool {
	return c.Error != ""
}

// Overall is the aggregated system-level score.
type Overall struct {
	SystemHealthPercent float64 `json:"system_health_percent"`
	Grade               Grade   `json:"grade"`
}

// Report is the full audit output. Tables are keyed by name; cross-check
// results keep their registration order for stable presentation.
type Report struct {
	Tables      map[string]TableResult `json:"tables"`
	Cross       []CheckResult          `json:"cross"`
	Overall     Overall                `json:"overall"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// ToJSON serializes the report for export and log-sink writes. Map keys are
// emitted sorted, so two runs over the same data produce identical bytes
// apart from generated_at.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
