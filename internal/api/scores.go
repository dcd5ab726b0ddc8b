package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/Pulse/internal/pulse"
)

type ScoresHandler struct {
	svc    *pulse.Service
	logger *slog.Logger
}

func NewScoresHandler(svc *pulse.Service, logger *slog.Logger) *ScoresHandler {
	return &ScoresHandler{svc: svc, logger: logger}
}

func (h *ScoresHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"scores": h.svc.Scores()})
}

type UpdateScoresRequest struct {
	Scores map[string]float64 `json:"scores" validate:"required,min=1,dive,keys,required,endkeys,gte=0,lte=100"`
}

// Update merges the given scores and returns the resulting pulse.
func (h *ScoresHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateScoresRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.svc.UpdateScores(r.Context(), req.Scores)
	if errors.Is(err, pulse.ErrInvalidScore) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("update scores failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update scores")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Pulse())
}
