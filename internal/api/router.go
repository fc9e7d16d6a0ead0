// Package api exposes the bookstore over HTTP (chi router) and over MCP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/bookwise/internal/auth"
	"github.com/kalambet/bookwise/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Server holds the handler dependencies.
type Server struct {
	store  *storage.Store
	agent  Assistant
	tokens *auth.Tokens
	logger *slog.Logger
}

// NewRouter wires all routes. Admin-only mutations sit behind the bearer
// middleware plus a role check; the chat surface is anonymous.
func NewRouter(store *storage.Store, assistant Assistant, tokens *auth.Tokens, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, agent: assistant, tokens: tokens, logger: logger}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Post("/chat", s.handleChat)
	r.Post("/chat/stream", s.handleChatStream)

	r.Route("/books", func(r chi.Router) {
		r.Get("/", s.handleListBooks)
		r.Get("/{id}", s.handleGetBook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens, store))
			r.Post("/{id}/like", s.handleLikeBook)
			r.Delete("/{id}/like", s.handleUnlikeBook)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/", s.handleCreateBook)
				r.Put("/{id}", s.handleUpdateBook)
				r.Delete("/{id}", s.handleDeleteBook)
			})
		})
	})

	r.Route("/authors", func(r chi.Router) {
		r.Get("/", s.handleListAuthors)
		r.Get("/{id}", s.handleGetAuthor)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens, store))
			r.Use(auth.RequireAdmin)
			r.Post("/", s.handleCreateAuthor)
			r.Put("/{id}", s.handleUpdateAuthor)
			r.Delete("/{id}", s.handleDeleteAuthor)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens, s.store))
			r.Get("/me", s.handleMe)
			r.Get("/me/preferences", s.handleGetPreferences)
			r.Post("/me/preferences", s.handleAddPreference)
			r.Get("/me/likes", s.handleLikedBooks)
			r.Get("/me/recommendations", s.handleRecommendations)
			r.Get("/me/activities", s.handleActivities)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	respondJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
