package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/hub"
	"github.com/DoyleJ11/battleships-client/internal/ws"
)

func SetupRoutes(h *hub.Hub, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/sessions", CreateSession(h, log))

	r.Route("/sessions/{code}", func(r chi.Router) {
		r.Use(withSession(h))
		r.Get("/", GetSession)
		r.Delete("/", DeleteSession(h))
		r.Post("/games", CreateGame)
		r.Put("/draft/ships/{shipID}", EditShip)
		r.Post("/draft/reset", ResetDraft)
		r.Post("/placement", SubmitPlacement)
		r.Post("/fire", Fire)
		r.Post("/refresh", Refresh)
		r.Post("/reset", Reset)
		r.Get("/ws", ws.Handler(log))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
