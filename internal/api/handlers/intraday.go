package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/pulse/internal/intraday"
	"github.com/wonny/pulse/pkg/logger"
)

// IntradayHandler handles intraday snapshot API endpoints
// ⭐ SSOT: 인트라데이 API 핸들러는 이 구조체에서만
type IntradayHandler struct {
	cache  *intraday.Cache
	logger *logger.Logger
}

// NewIntradayHandler creates a new intraday handler
func NewIntradayHandler(cache *intraday.Cache, log *logger.Logger) *IntradayHandler {
	return &IntradayHandler{
		cache:  cache,
		logger: log,
	}
}

// SnapshotResponse represents an intraday snapshot for API response
type SnapshotResponse struct {
	Symbol      string              `json:"symbol"`
	TradingDate string              `json:"trading_date"`
	FetchedAt   string              `json:"fetched_at"`
	BarCount    int                 `json:"bar_count"`
	Bars        []intraday.OHLCVBar `json:"bars"`
}

// GetSnapshot returns the intraday snapshot for a symbol
// GET /api/intraday/{symbol}?force=1
func (h *IntradayHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	force := r.URL.Query().Get("force") == "1"

	snap, ok := h.cache.Get(ctx, symbol, force)
	if !ok {
		respondError(w, http.StatusNotFound, "snapshot unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": SnapshotResponse{
			Symbol:      snap.Symbol,
			TradingDate: snap.TradingDate.Format("2006-01-02"),
			FetchedAt:   snap.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
			BarCount:    len(snap.Bars),
			Bars:        snap.Bars,
		},
	})
}

// WarmRequest is the payload for a manual warm pass
type WarmRequest struct {
	Symbols []string `json:"symbols"`
	Force   bool     `json:"force"`
}

// Warm pre-warms snapshots for a list of symbols
// POST /api/intraday/warm
func (h *IntradayHandler) Warm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req WarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		respondError(w, http.StatusBadRequest, "symbols are required")
		return
	}

	warmed := h.cache.WarmMany(ctx, req.Symbols, req.Force)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"requested": len(req.Symbols),
		"warmed":    warmed,
	})
}
