package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/config"
	httphandler "github.com/windfall/poplingo_service/internal/handler/http"
	wshandler "github.com/windfall/poplingo_service/internal/handler/ws"
	"github.com/windfall/poplingo_service/internal/metrics"
	"github.com/windfall/poplingo_service/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health    *httphandler.HealthHandler
	Auth      *httphandler.AuthHandler
	Lookup    *httphandler.LookupHandler
	Notebook  *httphandler.NotebookHandler
	Study     *httphandler.StudyHandler
	Story     *httphandler.StoryHandler
	Speech    *httphandler.SpeechHandler
	WebSocket *wshandler.Handler
}

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewHTTPServer creates a new HTTP server.
func NewHTTPServer(
	cfg *config.Config,
	log zerolog.Logger,
	h Handlers,
	tokens middleware.TokenValidator,
	hub *WebSocketHub,
	m *metrics.Metrics,
) *HTTPServer {
	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      NewRouter(cfg, log, h, tokens, hub, m),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &HTTPServer{
		server: server,
		log:    log,
	}
}

// NewRouter builds the chi router.
func NewRouter(
	cfg *config.Config,
	log zerolog.Logger,
	h Handlers,
	tokens middleware.TokenValidator,
	hub *WebSocketHub,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Metrics(m))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (public)
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Get("/live", h.Health.Live)
	r.Handle("/metrics", metrics.Handler())

	// The upgrade must not be compressed, so /ws sits outside the
	// compressed API group.
	r.With(middleware.Auth(tokens)).Get("/ws", hub.Handler(h.WebSocket))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))

		r.Get("/languages", httphandler.Languages)
		r.Post("/audio/decode", h.Speech.Decode)

		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)

		// Protected endpoints (require JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))

			r.Get("/auth/me", h.Auth.Me)

			r.Post("/lookup", h.Lookup.Lookup)

			r.Route("/notebook", func(r chi.Router) {
				r.Get("/", h.Notebook.List)
				r.Post("/", h.Notebook.Save)
				r.Post("/toggle", h.Notebook.Toggle)
				r.Get("/{id}", h.Notebook.Get)
				r.Delete("/{id}", h.Notebook.Delete)
			})

			r.Route("/study/sessions", func(r chi.Router) {
				r.Post("/", h.Study.Start)
				r.Get("/{id}", h.Study.Current)
				r.Delete("/{id}", h.Study.End)
				r.Post("/{id}/next", h.Study.Next)
				r.Post("/{id}/prev", h.Study.Prev)
				r.Post("/{id}/flip", h.Study.Flip)
			})

			r.Post("/story", h.Story.Generate)
			r.Post("/speech", h.Speech.Speak)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
