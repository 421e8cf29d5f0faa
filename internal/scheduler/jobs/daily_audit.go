package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/pulse/internal/audit"
	"github.com/wonny/pulse/pkg/logger"
)

// DailyAuditJob runs the full data audit after the ingestion pipeline
// settles and archives the report as JSON.
// ⭐ SSOT: 일일 감사 스케줄은 이 Job에서만
type DailyAuditJob struct {
	engine    *audit.Engine
	logger    *logger.Logger
	exportDir string
}

// NewDailyAuditJob creates a new daily audit job. exportDir may be empty to
// skip report archiving.
func NewDailyAuditJob(engine *audit.Engine, log *logger.Logger, exportDir string) *DailyAuditJob {
	return &DailyAuditJob{
		engine:    engine,
		logger:    log,
		exportDir: exportDir,
	}
}

// Name returns the job name
func (j *DailyAuditJob) Name() string {
	return "daily_audit"
}

// Schedule returns the cron schedule (every day at 5:30 PM)
func (j *DailyAuditJob) Schedule() string {
	return "0 30 17 * * *"
}

// Run executes the audit over the full universe
func (j *DailyAuditJob) Run(ctx context.Context) error {
	report, err := j.engine.Run(ctx, audit.Options{})
	if err != nil {
		return fmt.Errorf("audit run: %w", err)
	}

	for name, table := range report.Tables {
		if table.Status == audit.StatusFail {
			j.logger.WithFields(map[string]interface{}{
				"table":  name,
				"health": fmt.Sprintf("%.1f%%", table.HealthPercent),
				"error":  table.Error,
			}).Warn("Table failed audit")
		}
	}
	for _, check := range report.Cross {
		if check.Failed() || check.AnomalyCount > 0 {
			j.logger.WithFields(map[string]interface{}{
				"check":     check.Label,
				"anomalies": check.AnomalyCount,
				"error":     check.Error,
			}).Warn("Cross-check flagged anomalies")
		}
	}

	if j.exportDir != "" {
		if err := j.export(report); err != nil {
			// Archiving is best-effort; the audit itself succeeded.
			j.logger.WithError(err).Warn("Failed to archive audit report")
		}
	}

	return nil
}

func (j *DailyAuditJob) export(report *audit.Report) error {
	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.MkdirAll(j.exportDir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(j.exportDir, fmt.Sprintf("audit_%s.json", report.GeneratedAt.Format("2006-01-02")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	j.logger.WithField("path", path).Info("Audit report archived")
	return nil
}
