package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/cufy/campusmatch/internal/server"
)

// Register mounts the operator console routes behind the admin-key
// middleware. Nothing here is reachable without the key.
func (s *Service) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(server.RequireAdmin(s.appCtx.Config.App.AdminKey))
		r.Get("/matches", s.handleMatchesGet)
		r.Post("/matches", s.handleMatchesPost)
		r.Get("/bulk-assign", s.handleBulkAssignGet)
		r.Post("/bulk-assign", s.handleBulkAssignPost)
		r.Post("/assignments/create", s.handleCreateAssignment)
		r.Get("/payments", s.handlePaymentsGet)
		r.Post("/payments", s.handlePaymentsPost)
		r.Get("/stats", s.handleStats)
		r.Get("/temporary-matches", s.handleTempMatches)
		r.Get("/permanent-matches", s.handlePermMatches)
		r.Post("/force-disengage", s.handleForceDisengage)
		r.Post("/user-actions", s.handleUserActions)
	})
}
