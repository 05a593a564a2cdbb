package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/web/handlers"
)

func (s *Server) setupRoutes(processor handlers.Processor, st store.EventStore, index *store.DropoffIndex) {
	intakeHandler := handlers.NewIntakeHandler(processor, &s.config.Uploads)
	eventsHandler := handlers.NewEventsHandler(st, index)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/dropoff", intakeHandler.Dropoff)
		r.Post("/pickup", intakeHandler.Pickup)

		r.Get("/events", eventsHandler.List)
		r.Get("/events/{id}", eventsHandler.Get)
		r.Get("/events/{id}/similar", eventsHandler.Similar)
	})
}
