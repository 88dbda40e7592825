package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quiz-tournament-client/internal/app"
	"quiz-tournament-client/internal/domain"
)

// RouterConfig wires the play server routes.
type RouterConfig struct {
	Service        *app.TournamentService
	Sessions       app.SessionRepository
	Watcher        StatusNotifier
	Logger         *slog.Logger
	AllowedOrigins []string
}

type statusResponse struct {
	TournamentID string                  `json:"tournamentId"`
	Status       domain.TournamentStatus `json:"status"`
	At           time.Time               `json:"at"`
}

// NewRouter builds the play server: health, status lookups, session snapshots
// and the websocket endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	ws := NewWSHandler(cfg.Service, cfg.Sessions, cfg.Watcher, cfg.Logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(cfg.Logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/tournaments/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		status, err := cfg.Service.Status(r.Context(), id)
		if err != nil {
			writeError(w, cfg.Logger, err)
			return
		}
		writeJSON(w, cfg.Logger, http.StatusOK, statusResponse{TournamentID: id, Status: status, At: cfg.Service.Now()})
	})
	router.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		controller, ok := cfg.Sessions.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, cfg.Logger, domain.ErrSessionNotFound)
			return
		}
		writeJSON(w, cfg.Logger, http.StatusOK, controller.Snapshot())
	})
	router.Get("/ws", ws.ServeWS)
	return router
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNetwork):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	}
	if status >= 500 {
		logger.Error("request failed", slog.Any("error", err))
	}
	writeJSON(w, logger, status, errorFor(err))
}
