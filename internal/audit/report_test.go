package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		health float64
		want   Status
	}{
		{100, StatusOK},
		{95, StatusOK},
		{94.9, StatusWarn},
		{80, StatusWarn},
		{79.9, StatusFail},
		{0, StatusFail},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.health), "health=%.1f", tt.health)
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		health float64
		want   Grade
	}{
		{100, GradeExcellent},
		{95, GradeExcellent},
		{94.9, GradeGood},
		{80, GradeGood},
		{79.9, GradePoor},
		{0, GradePoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.health), "health=%.1f", tt.health)
	}
}

func TestHealthPercent(t *testing.T) {
	// 70/30 blend of completeness and freshness
	assert.InDelta(t, 100.0, HealthPercent(1.0, 1.0), 1e-9)
	assert.InDelta(t, 70.0, HealthPercent(1.0, 0.0), 1e-9)
	assert.InDelta(t, 30.0, HealthPercent(0.0, 1.0), 1e-9)
	assert.InDelta(t, 85.0, HealthPercent(1.0, 0.5), 1e-9)
	assert.InDelta(t, 0.0, HealthPercent(0.0, 0.0), 1e-9)
}

func TestFreshnessRatio(t *testing.T) {
	cadence := 24 * time.Hour

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"brand new", 0, 1.0},
		{"within cadence", 23 * time.Hour, 1.0},
		{"exactly at cadence", 24 * time.Hour, 1.0},
		{"halfway through decay", 60 * time.Hour, 0.5},
		{"fully decayed", 96 * time.Hour, 0.0},
		{"beyond decay window", 200 * time.Hour, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FreshnessRatio(tt.age, cadence), 1e-9)
		})
	}

	assert.Zero(t, FreshnessRatio(time.Hour, 0))
}

func TestReport_ToJSON(t *testing.T) {
	report := &Report{
		Tables: map[string]TableResult{
			"daily_prices": {
				TableName:     "daily_prices",
				RowCount:      1200,
				Completeness:  0.98,
				Freshness:     1.0,
				HealthPercent: 98.6,
				Status:        StatusOK,
			},
		},
		Cross: []CheckResult{
			{Label: "orphaned_prices", AnomalyCount: 0},
			{Label: "duplicate_feature_snapshots", AnomalyCount: 3},
		},
		Overall:     Overall{SystemHealthPercent: 98.6, Grade: GradeExcellent},
		GeneratedAt: time.Date(2026, 8, 31, 17, 30, 0, 0, time.UTC),
	}

	data, err := report.ToJSON()
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report.Tables, decoded.Tables)
	assert.Equal(t, report.Cross, decoded.Cross)
	assert.Equal(t, report.Overall, decoded.Overall)

	// Cross-check order must survive the round trip.
	require.Len(t, decoded.Cross, 2)
	assert.Equal(t, "orphaned_prices", decoded.Cross[0].Label)
	assert.Equal(t, "duplicate_feature_snapshots", decoded.Cross[1].Label)
}

func TestCheckResult_Failed(t *testing.T) {
	assert.False(t, CheckResult{Label: "x", AnomalyCount: 5}.Failed())
	assert.True(t, CheckResult{Label: "x", Error: "timeout"}.Failed())
}
