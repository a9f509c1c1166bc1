package account

import "github.com/go-chi/chi/v5"

// Register mounts the self-service endpoints on the API router.
func (s *Service) Register(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/select-profile", s.handleSelectProfile)
		r.Post("/reveal-profile", s.handleRevealProfile)
		// Older clients post to the -new path; both run the same reveal.
		r.Post("/reveal-profile-new", s.handleRevealProfile)
		r.Post("/disengage", s.handleDisengage)
		r.Post("/disengage-specific", s.handleDisengageSpecific)
		r.Post("/accept-match", s.handleAcceptMatch)
		r.Post("/payment-proof", s.handlePaymentProof)
		r.Get("/assignments", s.handleListAssignments)
		r.Get("/temporary-matches", s.handleListTempMatches)
		r.Get("/permanent-matches", s.handleListPermMatches)
	})
	r.Get("/subscriptions", s.handleListPlans)
}
