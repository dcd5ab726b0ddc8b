package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Pulse/internal/pulse"
	"github.com/MikeSquared-Agency/Pulse/internal/store"
)

const maxHistoryDays = 365

type PulseHandler struct {
	svc    *pulse.Service
	logger *slog.Logger
}

func NewPulseHandler(svc *pulse.Service, logger *slog.Logger) *PulseHandler {
	return &PulseHandler{svc: svc, logger: logger}
}

func (h *PulseHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Pulse())
}

func (h *PulseHandler) History(w http.ResponseWriter, r *http.Request) {
	days := pulse.DefaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	snaps, err := h.svc.History(r.Context(), days)
	if err != nil {
		h.logger.Error("list history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if snaps == nil {
		snaps = []*store.PulseSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": days, "snapshots": snaps})
}

func (h *PulseHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}
