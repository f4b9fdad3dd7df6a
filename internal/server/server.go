// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"impactlens/internal/config"
	"impactlens/internal/server/handlers"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// Deps bundles the handler dependencies the server exposes
type Deps struct {
	Runs      handlers.RunService
	Items     handlers.ScoredItemSource
	Digests   handlers.DigestSource
	RunLookup handlers.RunHistorySource
	Artifacts handlers.ArtifactSource
	Narrative handlers.NarrativeCache
	Progress  handlers.ProgressSource
	Logger    *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	runHandler := handlers.NewRunHandler(deps.Runs)
	topicHandler := handlers.NewTopicHandler(deps.Items, deps.Artifacts)
	synthesisHandler := handlers.NewSynthesisHandler(deps.Narrative, deps.Digests, deps.RunLookup)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Runs API
			r.Route("/runs", func(r chi.Router) {
				r.Post("/", runHandler.StartRun)
				r.Get("/{id}", runHandler.GetRun)
				r.Post("/{id}/cancel", runHandler.CancelRun)
			})

			// Topic artifacts API
			r.Route("/topics/{id}", func(r chi.Router) {
				r.Get("/scores", topicHandler.GetScores)
				r.Get("/emotions", topicHandler.GetEmotions)
				r.Get("/graph", topicHandler.GetGraph)
				r.Get("/synthesis", synthesisHandler.GetSynthesis)
			})
		})
	})

	// WebSocket endpoint for run progress streaming
	router.Get("/ws/runs/{id}", handlers.RunProgressHandler(deps.Progress, deps.Logger))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Router exposes the chi router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
