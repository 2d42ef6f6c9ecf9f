package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"papertrade/internal/market"
	"papertrade/internal/models"
	"papertrade/internal/portfolio"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	db    *gorm.DB
	svc   *portfolio.Service
	clock market.Clock
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB, svc *portfolio.Service, clock market.Clock) *APIHandler {
	return &APIHandler{log: log, db: db, svc: svc, clock: clock}
}

// Register wires all routes onto mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.HealthHandler)
	mux.HandleFunc("GET /api/market", h.MarketStatusHandler)
	mux.HandleFunc("GET /api/assets", h.AssetsHandler)

	mux.HandleFunc("POST /api/profile/init", h.InitProfileHandler)
	mux.HandleFunc("POST /api/profile/reset", h.ResetProfileHandler)
	mux.HandleFunc("GET /api/profile", h.ProfileHandler)

	mux.HandleFunc("POST /api/trades", h.TradeHandler)
	mux.HandleFunc("GET /api/trades", h.HistoryHandler)

	mux.HandleFunc("GET /api/orders/pending", h.PendingOrdersHandler)
	mux.HandleFunc("POST /api/orders/pending/process", h.ProcessPendingHandler)
	mux.HandleFunc("DELETE /api/orders/pending/{id}", h.CancelPendingHandler)

	mux.HandleFunc("POST /api/snapshots", h.CreateSnapshotHandler)
	mux.HandleFunc("GET /api/snapshots", h.SnapshotsHandler)

	mux.HandleFunc("GET /api/watchlist", h.WatchlistHandler)
	mux.HandleFunc("POST /api/watchlist", h.AddWatchlistHandler)
	mux.HandleFunc("PUT /api/watchlist/{assetID}", h.UpdateWatchlistHandler)
	mux.HandleFunc("DELETE /api/watchlist/{assetID}", h.RemoveWatchlistHandler)
}

// errorBody is the JSON error envelope: a stable kind plus a human-readable
// message.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Message = err.Error()

	status := http.StatusInternalServerError
	body.Error.Kind = "Internal"

	switch {
	case errors.Is(err, portfolio.ErrNotFound):
		status, body.Error.Kind = http.StatusNotFound, "NotFound"
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		status, body.Error.Kind = http.StatusUnprocessableEntity, "InsufficientFunds"
	case errors.Is(err, portfolio.ErrInsufficientQuantity):
		status, body.Error.Kind = http.StatusUnprocessableEntity, "InsufficientQuantity"
	case errors.Is(err, portfolio.ErrNoHoldings):
		status, body.Error.Kind = http.StatusUnprocessableEntity, "NoHoldings"
	case errors.Is(err, portfolio.ErrQuoteUnavailable):
		status, body.Error.Kind = http.StatusBadGateway, "QuoteUnavailable"
	case errors.Is(err, portfolio.ErrValidation):
		status, body.Error.Kind = http.StatusBadRequest, "ValidationError"
	}

	h.writeJSON(w, status, body)
}

// userID extracts the caller's identity. Authentication is handled upstream;
// the API trusts the forwarded header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n"))
}

func (h *APIHandler) MarketStatusHandler(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"open": h.clock.IsOpen(now),
		"time": now.Format(time.RFC3339),
	})
}

func (h *APIHandler) AssetsHandler(w http.ResponseWriter, r *http.Request) {
	var assets []models.Asset
	if err := h.db.Order("symbol ASC").Find(&assets).Error; err != nil {
		h.log.Error("Failed to list assets", zap.Error(err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assets)
}

func (h *APIHandler) InitProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.InitializeProfile(userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) ResetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.ResetProfile(userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetProfile(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

type tradeRequest struct {
	AssetID      uint            `json:"asset_id"`
	Type         string          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

func (h *APIHandler) TradeHandler(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}

	marketOpen := h.clock.IsOpen(h.clock.Now())
	record, err := h.svc.ExecuteTrade(r.Context(), userID(r), req.AssetID, req.Type, req.Quantity, req.PricePerUnit, marketOpen)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if record.Pending {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, record)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	filter := portfolio.HistoryFilter{Type: r.URL.Query().Get("type")}

	if v := r.URL.Query().Get("asset_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			h.writeError(w, portfolio.ErrValidation)
			return
		}
		filter.AssetID = uint(id)
	}
	if v := r.URL.Query().Get("cursor"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			h.writeError(w, portfolio.ErrValidation)
			return
		}
		filter.Cursor = uint(id)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, portfolio.ErrValidation)
			return
		}
		filter.Limit = limit
	}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}

	page, err := h.svc.GetTransactionHistory(userID(r), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *APIHandler) PendingOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.GetPendingOrders(userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *APIHandler) ProcessPendingHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ProcessPendingOrders(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) CancelPendingHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	if err := h.svc.CancelPendingOrder(userID(r), uint(orderID)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type snapshotRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD, default today
}

func (h *APIHandler) CreateSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, portfolio.ErrValidation)
			return
		}
	}

	var at time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.writeError(w, portfolio.ErrValidation)
			return
		}
		at = parsed
	}

	snapshot, err := h.svc.CreateSnapshot(r.Context(), userID(r), at)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *APIHandler) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}

	snapshots, err := h.svc.GetSnapshots(userID(r), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

type watchlistRequest struct {
	AssetID      uint             `json:"asset_id"`
	TargetPrice  *decimal.Decimal `json:"target_price,omitempty"`
	AlertEnabled bool             `json:"alert_enabled"`
}

func (h *APIHandler) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.GetWatchlist(userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *APIHandler) AddWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	item, err := h.svc.AddToWatchlist(userID(r), req.AssetID, req.TargetPrice, req.AlertEnabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *APIHandler) UpdateWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseUint(r.PathValue("assetID"), 10, 32)
	if err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	item, err := h.svc.UpdateWatchlist(userID(r), uint(assetID), req.TargetPrice, req.AlertEnabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *APIHandler) RemoveWatchlistHandler(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseUint(r.PathValue("assetID"), 10, 32)
	if err != nil {
		h.writeError(w, portfolio.ErrValidation)
		return
	}
	if err := h.svc.RemoveFromWatchlist(userID(r), uint(assetID)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
