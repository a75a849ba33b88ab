// Package api implements the SES v2-compatible HTTP API handlers for the twin.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-ses/internal/simulate"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// Handler holds all API handler state.
type Handler struct {
	store      *store.MemoryStore
	patterns   *simulate.PatternTable
	dispatcher *simulate.Dispatcher
	mw         *twincore.Middleware
	logger     *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s *store.MemoryStore, patterns *simulate.PatternTable, dispatcher *simulate.Dispatcher, mw *twincore.Middleware, logger *slog.Logger) *Handler {
	return &Handler{
		store:      s,
		patterns:   patterns,
		dispatcher: dispatcher,
		mw:         mw,
		logger:     logger,
	}
}

// Routes mounts the SES v2 API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/ses/v2", func(r chi.Router) {
		r.Use(h.mw.FaultInjection)

		r.Get("/account", h.GetAccount)

		r.Route("/email", func(r chi.Router) {
			r.Get("/identities/{identity}", h.GetIdentity)
			r.Post("/identities", h.CreateIdentity)
			r.Delete("/identities/{identity}", h.DeleteIdentity)
			r.Put("/identities/{identity}/mail-from", h.PutMailFrom)
			r.Post("/outbound-emails", h.SendEmail)
			r.Post("/configuration-sets/{name}/event-destinations", h.CreateEventDestination)
		})
	})

	r.Get("/api/emails", h.ListEmails)
}
