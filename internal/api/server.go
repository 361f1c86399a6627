// Package api exposes the analyzer and matcher over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/config"
	"github.com/snarg/audiosift/internal/database"
	"github.com/snarg/audiosift/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// Deps are the subsystems the HTTP layer fronts. DB may be nil.
type Deps struct {
	Analyzer  AudioAnalyzer
	Matcher   *MatcherState
	DB        *database.DB
	Version   string
	StartTime time.Time
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.Middleware)

	// Unauthenticated: health and scrape endpoints
	health := NewHealthHandler(deps.DB, deps.Matcher, deps.Version, deps.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		analyze := NewAnalyzeHandler(deps.Analyzer, deps.Matcher, log)
		r.Post("/api/v1/analyze", analyze.Analyze)

		segments := NewSegmentsHandler(deps.Matcher, deps.DB)
		r.Route("/api/v1/segments", segments.Routes)

		matchH := NewMatchHandler(deps.Matcher)
		r.Post("/api/v1/match", matchH.Match)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
