// Package server provides the HTTP server and routing for Vega.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/events"
	marketdatahandlers "github.com/aristath/vega/internal/modules/marketdata/handlers"
	optimizationhandlers "github.com/aristath/vega/internal/modules/optimization/handlers"
	optionshandlers "github.com/aristath/vega/internal/modules/options/handlers"
	portfoliohandlers "github.com/aristath/vega/internal/modules/portfolio/handlers"
	rebalancinghandlers "github.com/aristath/vega/internal/modules/rebalancing/handlers"
	riskhandlers "github.com/aristath/vega/internal/modules/risk/handlers"
)

// Config holds server configuration.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	Bus     *events.Bus

	Options      *optionshandlers.Handler
	MarketData   *marketdatahandlers.Handler
	Risk         *riskhandlers.Handler
	Optimization *optimizationhandlers.Handler
	Portfolio    *portfoliohandlers.Handler
	Rebalancing  *rebalancinghandlers.Handler
	System       *SystemHandlers
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// WriteTimeout stays unset: the event streams hold their
	// connections open past any fixed deadline.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes. The event streams sit outside the
// timeout group so long-lived connections are not cut off.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.Bus != nil {
			stream := NewEventsStreamHandler(s.cfg.Bus, s.log)
			r.Get("/events/stream", stream.ServeHTTP)

			socket := NewEventsSocketHandler(s.cfg.Bus, s.log)
			r.Get("/events/ws", socket.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			if s.cfg.System != nil {
				r.Route("/system", func(r chi.Router) {
					r.Get("/status", s.cfg.System.HandleSystemStatus)
					r.Post("/backup", s.cfg.System.HandleCreateBackup)
					r.Get("/backups", s.cfg.System.HandleListBackups)
					r.Post("/sync/prices", s.cfg.System.HandleSyncPrices)
				})
			}

			if s.cfg.Options != nil {
				s.cfg.Options.RegisterRoutes(r)
			}
			if s.cfg.MarketData != nil {
				s.cfg.MarketData.RegisterRoutes(r)
			}
			if s.cfg.Risk != nil {
				s.cfg.Risk.RegisterRoutes(r)
			}
			if s.cfg.Optimization != nil {
				s.cfg.Optimization.RegisterRoutes(r)
			}
			if s.cfg.Portfolio != nil {
				s.cfg.Portfolio.RegisterRoutes(r)
			}
			if s.cfg.Rebalancing != nil {
				s.cfg.Rebalancing.RegisterRoutes(r)
			}
		})
	})
}

// Router exposes the configured routes, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vega",
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
