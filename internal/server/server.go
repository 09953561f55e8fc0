// Package server exposes the classification service over HTTP: streaming
// classify and chat endpoints plus account introspection, behind bearer
// auth and CORS.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/customs-ai/hs-classify/internal/auth"
	"github.com/customs-ai/hs-classify/internal/chat"
	"github.com/customs-ai/hs-classify/internal/credits"
	"github.com/customs-ai/hs-classify/internal/pipeline"
	"github.com/customs-ai/hs-classify/internal/store"
)

// Server routes API traffic to the pipeline, chat assistant, and metering
// gate. Store may be nil in dev mode; handlers degrade per endpoint.
type Server struct {
	orchestrator *pipeline.Orchestrator
	assistant    *chat.Assistant
	gate         *credits.Gate
	store        store.Store
	verifier     *auth.Verifier
	origins      []string
}

// New assembles a Server. st may be nil when no database is configured.
func New(orch *pipeline.Orchestrator, assistant *chat.Assistant, gate *credits.Gate, st store.Store, verifier *auth.Verifier, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		orchestrator: orch,
		assistant:    assistant,
		gate:         gate,
		store:        st,
		verifier:     verifier,
		origins:      origins,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)
		r.Post("/api/classify", s.handleClassify)
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/user/credits", s.handleCredits)
		r.Get("/api/user/history", s.handleHistory)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["store"] = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
