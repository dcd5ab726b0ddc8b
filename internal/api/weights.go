package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Pulse/internal/pulse"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
	"github.com/MikeSquared-Agency/Pulse/internal/weights"
)

type WeightsHandler struct {
	svc    *pulse.Service
	logger *slog.Logger
}

func NewWeightsHandler(svc *pulse.Service, logger *slog.Logger) *WeightsHandler {
	return &WeightsHandler{svc: svc, logger: logger}
}

type WeightsResponse struct {
	Weights weights.Set `json:"weights"`
	Sectors []string    `json:"sectors"`
	Total   float64     `json:"total"`
}

func newWeightsResponse(w weights.Set) WeightsResponse {
	return WeightsResponse{
		Weights: w,
		Sectors: w.Names(),
		Total:   math.Round(w.Sum()*100) / 100,
	}
}

func (h *WeightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newWeightsResponse(h.svc.Weights()))
}

// RedistributeRequest carries the raw UI value: a JSON number, a numeric
// string, an empty string or null.
type RedistributeRequest struct {
	Category string          `json:"category" validate:"required"`
	Value    json.RawMessage `json:"value"`
}

func (h *WeightsHandler) Redistribute(w http.ResponseWriter, r *http.Request) {
	var req RedistributeRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	update, err := h.svc.Redistribute(r.Context(), req.Category, weights.ParseRequested(req.Value), clientID(r))
	if errors.Is(err, weights.ErrUnknownCategory) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("redistribute failed", "sector", req.Category, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to redistribute weights")
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (h *WeightsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.Reset(r.Context(), clientID(r))
	if err != nil {
		h.logger.Error("reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset weights")
		return
	}
	writeJSON(w, http.StatusOK, newWeightsResponse(set))
}

func (h *WeightsHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newWeightsResponse(h.svc.Defaults()))
}

type SetDefaultsRequest struct {
	MarketCaps map[string]float64 `json:"market_caps" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
}

func (h *WeightsHandler) SetDefaults(w http.ResponseWriter, r *http.Request) {
	var req SetDefaultsRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	set, err := h.svc.SetDefaultsFromMarketCaps(r.Context(), req.MarketCaps, clientID(r))
	if errors.Is(err, pulse.ErrInvalidMarketCap) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("set defaults failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update defaults")
		return
	}
	writeJSON(w, http.StatusOK, newWeightsResponse(set))
}

func (h *WeightsHandler) Changes(w http.ResponseWriter, r *http.Request) {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	changes, err := h.svc.Changes(r.Context(), limit)
	if err != nil {
		h.logger.Error("list changes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}
	if changes == nil {
		changes = []*store.WeightChange{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"changes": changes})
}
