package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/smart-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	captureHandler := handlers.NewCaptureHandler(s.pipeline)
	attendanceHandler := handlers.NewAttendanceHandler(s.ledger)
	studentsHandler := handlers.NewStudentsHandler(s.roster, s.detector)
	streamHandler := handlers.NewStreamHandler(s.pipeline)
	eventsHandler := handlers.NewEventsHandler(s.broker)

	// Health check.
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Short-lived API routes get a request timeout; the streaming
	// endpoints below stay outside it.
	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/api/v1", func(r chi.Router) {
			// Capture control
			r.Post("/capture/start", captureHandler.Start)
			r.Post("/capture/stop", captureHandler.Stop)
			r.Get("/capture/status", captureHandler.Status)

			// Attendance ledger
			r.Get("/attendance", attendanceHandler.ListDates)
			r.Get("/attendance/stats", attendanceHandler.Stats)
			r.Get("/attendance/{date}", attendanceHandler.ListByDate)
			r.Get("/attendance/{date}/export", attendanceHandler.Export)

			// Roster
			r.Get("/students", studentsHandler.List)
			r.Post("/students", studentsHandler.Enroll)
			r.Post("/students/photos", studentsHandler.AddPhoto)
		})
	})

	// Live streams (open-ended responses).
	s.router.Get("/api/v1/events", eventsHandler.Stream)
	s.router.Get("/video_feed", streamHandler.VideoFeed)
}
