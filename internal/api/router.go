package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", apiHandler.LoginHandler)
			// Authenticated by the refresh token itself
			r.Post("/refresh", apiHandler.RefreshHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/chat/new-id", apiHandler.NewChatIDHandler)
			r.Get("/chat/history", apiHandler.HistoryHandler)
			r.Get("/chat/sessions", apiHandler.SessionsHandler)
			r.Post("/chat/messages", apiHandler.PostMessageHandler)
		})
	})

	return r
}
