package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/pulse/internal/audit"
	"github.com/wonny/pulse/pkg/logger"
)

// AuditRunner runs one audit pass. Satisfied by *audit.Engine.
type AuditRunner interface {
	Run(ctx context.Context, opts audit.Options) (*audit.Report, error)
}

// AuditHandler handles data audit API endpoints
// ⭐ SSOT: 감사 API 핸들러는 이 구조체에서만
type AuditHandler struct {
	engine AuditRunner
	logger *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(engine AuditRunner, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		engine: engine,
		logger: log,
	}
}

// GetReport runs an audit and returns the full report
// GET /api/audit/report?sample=500&detail=1
func (h *AuditHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := audit.Options{
		Detail: r.URL.Query().Get("detail") == "1",
	}
	if sampleStr := r.URL.Query().Get("sample"); sampleStr != "" {
		sample, err := strconv.Atoi(sampleStr)
		if err != nil || sample < 0 {
			respondError(w, http.StatusBadRequest, "sample must be a non-negative integer")
			return
		}
		opts.SampleLimit = sample
	}

	report, err := h.engine.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, audit.ErrStoreUnavailable) {
			h.logger.WithError(err).Error("Audit aborted, store unavailable")
			respondError(w, http.StatusServiceUnavailable, "data store unavailable")
			return
		}
		h.logger.WithError(err).Error("Audit run failed")
		respondError(w, http.StatusInternalServerError, "audit run failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}
