package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/db"
	svcErr "github.com/cufy/campusmatch/internal/errors"
	"github.com/cufy/campusmatch/internal/repository"
	"github.com/cufy/campusmatch/internal/service/lifecycle"
	"github.com/cufy/campusmatch/internal/utils/httputil"
)

// Service exposes the self-service endpoints. Every handler resolves the
// acting user from the X-User-Email header set by the auth gateway and
// then delegates state transitions to the lifecycle service.
type Service struct {
	appCtx    *app.AppContext
	lifecycle *lifecycle.Service

	users       *repository.UserRepository
	assignments *repository.AssignmentRepository
	matches     *repository.MatchRepository
	plans       *repository.PlanRepository
}

func NewService(appCtx *app.AppContext, lc *lifecycle.Service) *Service {
	return &Service{
		appCtx:      appCtx,
		lifecycle:   lc,
		users:       repository.NewUserRepository(appCtx.DB),
		assignments: repository.NewAssignmentRepository(appCtx.DB),
		matches:     repository.NewMatchRepository(appCtx.DB),
		plans:       repository.NewPlanRepository(appCtx.DB),
	}
}

// actor resolves the authenticated user for the request.
func (s *Service) actor(r *http.Request) (*db.User, error) {
	email, err := httputil.ActorEmail(r)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.Unauthorized("unknown user")
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, svcErr.Forbidden("account is banned")
	}
	s.Touch(r.Context(), user.ID)
	return user, nil
}

type assignmentIDRequest struct {
	AssignmentID string `json:"assignmentId"`
}

// handleSelectProfile and handleRevealProfile share one transition: both
// routes historically existed and both must land on the same canonical
// reveal semantics, including the idempotent double-submit behavior.
func (s *Service) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	s.reveal(w, r, "Profile selected! The decision window has started.")
}

func (s *Service) handleRevealProfile(w http.ResponseWriter, r *http.Request) {
	s.reveal(w, r, "Profile revealed! The decision window has started.")
}

func (s *Service) reveal(w http.ResponseWriter, r *http.Request, message string) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	var req assignmentIDRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.AssignmentID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "assignmentId is required")
		return
	}

	res, err := s.lifecycle.Reveal(r.Context(), user.ID, req.AssignmentID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if res.AlreadyRevealed {
		message = "Profile already revealed."
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    message,
		"assignment": res.Assignment,
		"tempMatch":  res.TempMatch,
		"expiresAt":  res.ExpiresAt,
	})
}

func (s *Service) handleDisengage(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	res, err := s.lifecycle.Disengage(r.Context(), user.ID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Disengaged from current match.",
		"freedProfiles": res.FreedProfiles,
		"newRound":      res.NewRound,
	})
}

func (s *Service) handleDisengageSpecific(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	var req assignmentIDRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.AssignmentID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "assignmentId is required")
		return
	}

	if err := s.lifecycle.DisengageSpecific(r.Context(), user.ID, req.AssignmentID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Disengaged from the selected profile.",
	})
}

func (s *Service) handleAcceptMatch(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	var req struct {
		MatchID string `json:"matchId"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.MatchID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	bothAccepted, err := s.lifecycle.AcceptMatch(r.Context(), user.ID, req.MatchID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	message := "Match accepted. Waiting for the other side."
	if bothAccepted {
		message = "It's a match! Both sides accepted."
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      message,
		"bothAccepted": bothAccepted,
	})
}

func (s *Service) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if user.Gender != db.GenderMale {
		httputil.WriteError(w, http.StatusForbidden, "assignments are only visible to the deciding side")
		return
	}

	rows, err := s.assignments.ListForMale(r.Context(), user.ID,
		db.AssignmentAssigned, db.AssignmentRevealed, db.AssignmentSelected)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, a := range rows {
		entry := map[string]any{
			"id":          a.ID,
			"status":      a.Status,
			"roundNumber": a.RoundNumber,
			"isSelected":  a.IsSelected,
			"assignedAt":  a.AssignedAt,
		}
		if female, err := s.users.GetByID(r.Context(), a.FemaleUserID); err == nil {
			entry["profile"] = publicProfile(female)
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"assignments": out,
	})
}

func (s *Service) handleListTempMatches(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	var rows []db.TemporaryMatch
	switch user.Gender {
	case db.GenderMale:
		tm, err := s.matches.ActiveTempForMale(r.Context(), user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.WriteServiceError(w, err)
			return
		}
		if tm != nil {
			rows = append(rows, *tm)
		}
	case db.GenderFemale:
		rows, err = s.matches.ActiveTempForFemale(r.Context(), user.ID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	out := make([]map[string]any, 0, len(rows))
	for _, tm := range rows {
		otherID := tm.FemaleUserID
		if user.Gender == db.GenderFemale {
			otherID = tm.MaleUserID
		}
		entry := map[string]any{
			"id":        tm.ID,
			"status":    tm.Status,
			"expiresAt": tm.ExpiresAt,
			"createdAt": tm.CreatedAt,
		}
		if other, err := s.users.GetByID(r.Context(), otherID); err == nil {
			entry["profile"] = publicProfile(other)
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": out,
	})
}

func (s *Service) handleListPermMatches(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	var rows []db.PermanentMatch
	switch user.Gender {
	case db.GenderMale:
		pm, err := s.matches.ActivePermForMale(r.Context(), user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.WriteServiceError(w, err)
			return
		}
		if pm != nil {
			rows = append(rows, *pm)
		}
	case db.GenderFemale:
		rows, err = s.matches.ActivePermForFemale(r.Context(), user.ID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	out := make([]map[string]any, 0, len(rows))
	for _, pm := range rows {
		otherID := pm.FemaleUserID
		if user.Gender == db.GenderFemale {
			otherID = pm.MaleUserID
		}
		entry := map[string]any{
			"id":        pm.ID,
			"matchedAt": pm.MatchedAt,
		}
		if other, err := s.users.GetByID(r.Context(), otherID); err == nil {
			entry["profile"] = publicProfile(other)
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": out,
	})
}

func (s *Service) handlePaymentProof(w http.ResponseWriter, r *http.Request) {
	user, err := s.actor(r)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	var req struct {
		ProofURL string `json:"payment_proof_url"`
		PlanType string `json:"plan_type"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.ProofURL == "" {
		httputil.WriteError(w, http.StatusBadRequest, "payment_proof_url is required")
		return
	}

	fields := map[string]interface{}{
		"payment_proof_url":   req.ProofURL,
		"subscription_status": "pending",
		"payment_confirmed":   false,
	}
	if req.PlanType != "" {
		if _, err := s.plans.GetByType(r.Context(), req.PlanType); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				httputil.WriteError(w, http.StatusBadRequest, "unknown plan type")
				return
			}
			httputil.WriteServiceError(w, err)
			return
		}
		fields["subscription_type"] = req.PlanType
	}
	if err := s.users.UpdateFields(r.Context(), user.ID, fields); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment proof submitted. An admin will confirm it shortly.",
	})
}

func (s *Service) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListActive(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"plans":   plans,
	})
}

func publicProfile(u *db.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"full_name":     u.FullName,
		"age":           u.Age,
		"university":    u.University,
		"profile_photo": u.ProfilePhoto,
		"bio":           u.Bio,
		"instagram":     u.Instagram,
	}
}

// Touch updates the activity timestamp. Called by handlers that indicate
// a live session; failures are logged and swallowed.
func (s *Service) Touch(ctx context.Context, userID string) {
	now := time.Now()
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{
		"last_activity_at": &now,
	}); err != nil {
		s.appCtx.Logger.Warn("activity touch failed", "user", userID, "err", err)
	}
}
