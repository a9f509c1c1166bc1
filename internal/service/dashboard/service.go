package dashboard

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

// Service builds the two-sided dashboard read model from User +
// ProfileAssignment + TemporaryMatch + PermanentMatch and dispatches the
// dashboard actions into the lifecycle service.
type Service struct {
	appCtx    *app.AppContext
	lifecycle *lifecycle.Service

	users       *repository.UserRepository
	assignments *repository.AssignmentRepository
	matches     *repository.MatchRepository
}

// NewService creates the dashboard service on top of the lifecycle
// manager.
func NewService(appCtx *app.AppContext, lc *lifecycle.Service) *Service {
	return &Service{
		appCtx:      appCtx,
		lifecycle:   lc,
		users:       repository.NewUserRepository(appCtx.DB),
		assignments: repository.NewAssignmentRepository(appCtx.DB),
		matches:     repository.NewMatchRepository(appCtx.DB),
	}
}

// profileView is the subset of User surfaced to the opposite side.
type profileView struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Age          int    `json:"age"`
	University   string `json:"university"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Instagram    string `json:"instagram,omitempty"`
}

func toProfileView(u *db.User) *profileView {
	if u == nil {
		return nil
	}
	return &profileView{
		ID:           u.ID,
		FullName:     u.FullName,
		Age:          u.Age,
		University:   u.University,
		ProfilePhoto: u.ProfilePhoto,
		Bio:          u.Bio,
		Instagram:    u.Instagram,
	}
}

type assignedProfile struct {
	AssignmentID string       `json:"assignment_id"`
	Status       string       `json:"status"`
	RoundNumber  int          `json:"round_number"`
	AssignedAt   time.Time    `json:"assigned_at"`
	Profile      *profileView `json:"profile"`
}

// MaleDashboard is the decision-side view.
type MaleDashboard struct {
	User             *db.User          `json:"user"`
	AssignedProfiles []assignedProfile `json:"assignedProfiles"`
	CurrentTempMatch map[string]any    `json:"currentTempMatch,omitempty"`
	PermanentMatch   map[string]any    `json:"permanentMatch,omitempty"`
	CanReveal        bool              `json:"canReveal"`
	HasActiveMatch   bool              `json:"hasActiveDecision"`
	DecisionExpires  *time.Time        `json:"decisionExpiresAt,omitempty"`
	CanRequestRound2 bool              `json:"canRequestRound2"`
	IsLocked         bool              `json:"isLocked"`
	MaxAssignments   int               `json:"maxAssignments"`
}

// FemaleDashboard lists the males who selected her plus confirmed matches.
type FemaleDashboard struct {
	User             *db.User         `json:"user"`
	MaleProfiles     []map[string]any `json:"maleProfiles"`
	PermanentMatches []map[string]any `json:"permanentMatches"`
}

// Dashboard resolves the user by email and builds the gender-appropriate
// view. The user's timer cache is treated as derived state: when the
// authoritative expiry has passed, the overdue sweep runs first so the
// reader never sees a stale "active" timer.
func (s *Service) Dashboard(ctx context.Context, email string) (string, any, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, svcErr.NotFound("user not found")
		}
		return "", nil, err
	}

	if user.DecisionTimerActive && user.DecisionTimerExpiresAt != nil &&
		time.Now().After(*user.DecisionTimerExpiresAt) {
		if _, err := s.lifecycle.ExpireOverdue(ctx); err != nil {
			s.appCtx.Logger.Warn("lazy expiry failed", "user", user.ID, "err", err)
		}
		if refreshed, err := s.users.GetByID(ctx, user.ID); err == nil {
			user = refreshed
		}
	}

	switch user.Gender {
	case db.GenderMale:
		view, err := s.maleDashboard(ctx, user)
		return "male", view, err
	case db.GenderFemale:
		view, err := s.femaleDashboard(ctx, user)
		return "female", view, err
	default:
		return "", nil, svcErr.Validation("invalid user gender")
	}
}

func (s *Service) maleDashboard(ctx context.Context, user *db.User) (*MaleDashboard, error) {
	assignments, err := s.assignments.ListForMale(ctx, user.ID, db.AssignmentAssigned)
	if err != nil {
		return nil, err
	}

	profiles := make([]assignedProfile, 0, len(assignments))
	for _, a := range assignments {
		female, err := s.users.GetByID(ctx, a.FemaleUserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		profiles = append(profiles, assignedProfile{
			AssignmentID: a.ID,
			Status:       a.Status,
			RoundNumber:  a.RoundNumber,
			AssignedAt:   a.AssignedAt,
			Profile:      toProfileView(female),
		})
	}

	var tempView map[string]any
	tempMatch, err := s.matches.ActiveTempForMale(ctx, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if tempMatch != nil {
		female, _ := s.users.GetByID(ctx, tempMatch.FemaleUserID)
		tempView = map[string]any{
			"id":         tempMatch.ID,
			"status":     tempMatch.Status,
			"expires_at": tempMatch.ExpiresAt,
			"profile":    toProfileView(female),
		}
	}

	var permView map[string]any
	permMatch, err := s.matches.ActivePermForMale(ctx, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if permMatch != nil {
		female, _ := s.users.GetByID(ctx, permMatch.FemaleUserID)
		permView = map[string]any{
			"id":         permMatch.ID,
			"matched_at": permMatch.MatchedAt,
			"profile":    toProfileView(female),
		}
	}

	return &MaleDashboard{
		User:             user,
		AssignedProfiles: profiles,
		CurrentTempMatch: tempView,
		PermanentMatch:   permView,
		CanReveal:        len(profiles) > 0 && tempMatch == nil && permMatch == nil,
		HasActiveMatch:   user.DecisionTimerActive && tempMatch != nil,
		DecisionExpires:  user.DecisionTimerExpiresAt,
		CanRequestRound2: user.SubscriptionType == db.PlanPremium &&
			user.CurrentRound == 1 &&
			tempMatch != nil &&
			user.DecisionTimerActive,
		IsLocked:       permMatch != nil,
		MaxAssignments: lifecycle.MaxAssignments(user.SubscriptionType, user.CurrentRound),
	}, nil
}

func (s *Service) femaleDashboard(ctx context.Context, user *db.User) (*FemaleDashboard, error) {
	tempMatches, err := s.matches.ActiveTempForFemale(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	males := make([]map[string]any, 0, len(tempMatches))
	for _, tm := range tempMatches {
		male, err := s.users.GetByID(ctx, tm.MaleUserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		males = append(males, map[string]any{
			"tempMatchId": tm.ID,
			"selectedAt":  tm.CreatedAt,
			"expiresAt":   tm.ExpiresAt,
			"profile":     toProfileView(male),
		})
	}

	permMatches, err := s.matches.ActivePermForFemale(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	perms := make([]map[string]any, 0, len(permMatches))
	for _, pm := range permMatches {
		male, err := s.users.GetByID(ctx, pm.MaleUserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		perms = append(perms, map[string]any{
			"permMatchId": pm.ID,
			"matchedAt":   pm.MatchedAt,
			"profile":     toProfileView(male),
		})
	}

	return &FemaleDashboard{
		User:             user,
		MaleProfiles:     males,
		PermanentMatches: perms,
	}, nil
}

//
// HTTP handlers
//

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("userId")
	if email == "" {
		httputil.WriteError(w, http.StatusBadRequest, "user email is required")
		return
	}

	kind, view, err := s.Dashboard(r.Context(), email)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"type":      kind,
		"dashboard": view,
	})
}

type actionRequest struct {
	Action string `json:"action"`
	UserID string `json:"userId"` // actually email
	Data   struct {
		AssignmentID string `json:"assignmentId"`
	} `json:"data"`
}

func (s *Service) handlePost(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteServiceError(w, err)
		return
	}

	switch req.Action {
	case "reveal_profile":
		res, err := s.lifecycle.Reveal(r.Context(), user.ID, req.Data.AssignmentID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"tempMatch": res.TempMatch,
			"message":   "Profile revealed! You have 48 hours to decide.",
		})

	case "request_round_2":
		if err := s.lifecycle.ProgressToRound2(r.Context(), user.ID); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Round 2 requested! You can now be assigned new profiles.",
		})

	case "confirm_match":
		perm, err := s.lifecycle.ConfirmMatch(r.Context(), user.ID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"permMatch": perm,
			"message":   "Match confirmed! You can now connect with each other.",
		})

	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid action")
	}
}
