package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/debatearena/debate-platform/config"
	"github.com/debatearena/debate-platform/handlers"
	"github.com/debatearena/debate-platform/middleware"
)

// InitRoutes собирает HTTP-поверхность сервера. Основной трафик идёт через
// WebSocket-канал /ws; остальные маршруты вспомогательные.
func InitRoutes(cfg *config.Config, wsHandler *handlers.WebSocketHandler, debateHandler *handlers.DebateHandler) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Get("/ws", wsHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(cfg.JWTSecretKey))
		r.Get("/debates/{debateID}", debateHandler.GetDebate)
	})

	return router
}
