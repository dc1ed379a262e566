package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/emotion-sense/internal/web/handlers"
	"github.com/kozaktomas/emotion-sense/internal/web/middleware"
	"github.com/kozaktomas/emotion-sense/internal/web/ws"
)

func (s *Server) setupRoutes() {
	statusHandler := handlers.NewStatusHandler(s.deps.Model)
	modelHandler := handlers.NewModelHandler(s.ctx, s.deps.Model, s.log)
	classifyHandler := handlers.NewClassifyHandler(s.deps.Capturer, s.deps.Source, s.config.Worker.Timeout, s.log)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Model lifecycle
		r.Get("/status", statusHandler.Get)
		r.Get("/status/events", statusHandler.Events)
		r.Post("/model/init", modelHandler.Init)

		// Classification
		r.Post("/classify", classifyHandler.Capture)
		r.Post("/classify/image", classifyHandler.Upload)

		if s.deps.Monitor != nil {
			monitorHandler := handlers.NewMonitorHandler(s.deps.Monitor, s.deps.Catalog)
			r.Get("/monitor", monitorHandler.Get)
		}
	})

	if s.deps.Monitor != nil {
		wsHandler := ws.NewHandler(s.hub, s.deps.Monitor.Latest, middleware.OriginChecker(s.config.Web.AllowedOrigins))
		s.router.Handle("/ws/emotions", wsHandler)
	}
}
