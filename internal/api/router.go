package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Pulse/internal/config"
	"github.com/MikeSquared-Agency/Pulse/internal/pulse"
)

var validate = validator.New()

func NewRouter(svc *pulse.Service, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-ID"},
		MaxAge:         300,
	}))
	r.Use(RateLimitMiddleware(cfg.RateLimit))

	wh := NewWeightsHandler(svc, logger)
	sh := NewScoresHandler(svc, logger)
	ph := NewPulseHandler(svc, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ClientIDMiddleware)

		r.Get("/weights", wh.Get)
		r.Post("/weights/redistribute", wh.Redistribute)
		r.Post("/weights/reset", wh.Reset)
		r.Get("/weights/defaults", wh.Defaults)
		r.Get("/weights/changes", wh.Changes)

		r.Get("/scores", sh.Get)

		r.Get("/pulse", ph.Get)
		r.Get("/pulse/history", ph.History)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Put("/weights/defaults", wh.SetDefaults)
			r.Put("/scores", sh.Update)
			r.Post("/pulse/snapshot", ph.Snapshot)
		})
	})

	return r
}

// NewMetricsRouter serves /health and the Prometheus metrics gathered from g.
func NewMetricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeRequest reads a JSON body into v and runs its validate tags. On
// failure it writes a 400 and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
