package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/emotion-sense/internal/config"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/source"
	"github.com/kozaktomas/emotion-sense/internal/web/handlers"
	"github.com/kozaktomas/emotion-sense/internal/web/middleware"
	"github.com/kozaktomas/emotion-sense/internal/web/ws"
	"github.com/sirupsen/logrus"
)

// Dependencies are the pipeline components the server exposes.
type Dependencies struct {
	Model    handlers.ModelLoader
	Capturer pipeline.Capturer
	Source   source.FrameSource // optional
	Monitor  *pipeline.Monitor  // optional
	Catalog  *emotion.Catalog
	Log      *logrus.Logger
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
	hub        *ws.Hub
	log        *logrus.Logger

	// ctx lives until Shutdown and bounds the hub and model loads.
	ctx         context.Context
	cancel      context.CancelFunc
	readings    <-chan pipeline.Reading
	unsubscribe func()
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
		hub:    ws.NewHub(deps.Log),
		log:    deps.Log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if deps.Monitor != nil {
		s.readings, s.unsubscribe = deps.Monitor.Subscribe()
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	// No write timeout: status events and the monitor socket are long-lived.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the monitor fan-out. It blocks until the
// server stops.
func (s *Server) Start() error {
	if s.readings != nil {
		go s.hub.Run(s.ctx, s.readings)
	}

	s.log.WithField("addr", s.httpServer.Addr).Info("[Web] starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("[Web] shutting down server")

	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
