package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.service)
	indexHandler := handlers.NewIndexHandler(s.service)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/recognize/batch", recognizeHandler.RecognizeBatch)

		// Index operations
		r.Post("/index/reload", indexHandler.Reload)
		r.Get("/index/stats", indexHandler.Stats)

		// Enrollment audit
		r.Get("/enrollments", indexHandler.Enrollments)
	})
}
