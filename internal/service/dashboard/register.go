package dashboard

import "github.com/go-chi/chi/v5"

// Register mounts the dashboard endpoints on the API router.
func (s *Service) Register(r chi.Router) {
	r.Get("/dashboard", s.handleGet)
	r.Post("/dashboard", s.handlePost)
}
