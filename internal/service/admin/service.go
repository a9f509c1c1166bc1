package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/db"
	"github.com/cufy/campusmatch/internal/repository"
	"github.com/cufy/campusmatch/internal/service/lifecycle"
	"github.com/cufy/campusmatch/internal/utils/httputil"
)

// Plan prices in rupees, used for the revenue figure on the stats page.
const (
	pricePremium = 249
	priceBasic   = 99
)

const statsTTL = time.Hour

// Service backs the operator console. All routes sit behind the admin-key
// middleware; handlers here never resolve an acting user.
type Service struct {
	appCtx    *app.AppContext
	lifecycle *lifecycle.Service

	users       *repository.UserRepository
	assignments *repository.AssignmentRepository
	matches     *repository.MatchRepository
}

func NewService(appCtx *app.AppContext, lc *lifecycle.Service) *Service {
	return &Service{
		appCtx:      appCtx,
		lifecycle:   lc,
		users:       repository.NewUserRepository(appCtx.DB),
		assignments: repository.NewAssignmentRepository(appCtx.DB),
		matches:     repository.NewMatchRepository(appCtx.DB),
	}
}

//
// GET /admin/matches
//

type enhancedMale struct {
	User           *db.User           `json:"user"`
	Assignments    []map[string]any   `json:"assignments"`
	TempMatch      *db.TemporaryMatch `json:"tempMatch,omitempty"`
	PermanentMatch *db.PermanentMatch `json:"permanentMatch,omitempty"`
	MaxAssignments int                `json:"maxAssignments"`
}

type femaleWithLoad struct {
	User          *db.User `json:"user"`
	AssignedCount int64    `json:"assignedCount"`
}

// handleMatchesGet builds the console's pairing board: every paying male
// with his assignment rows and match state, plus the female pool with the
// cached per-female assignment counters.
func (s *Service) handleMatchesGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan := r.URL.Query().Get("planType")

	males, err := s.users.ListMales(ctx, plan)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	maleIDs := make([]string, 0, len(males))
	for _, m := range males {
		maleIDs = append(maleIDs, m.ID)
	}
	assignmentRows, err := s.assignments.ListByMaleIDs(ctx, maleIDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	tempRows, err := s.matches.ListTempByMaleIDs(ctx, maleIDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	permRows, err := s.matches.ListPermByMaleIDs(ctx, maleIDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	assignmentsByMale := make(map[string][]db.ProfileAssignment)
	for _, a := range assignmentRows {
		assignmentsByMale[a.MaleUserID] = append(assignmentsByMale[a.MaleUserID], a)
	}
	tempByMale := make(map[string]db.TemporaryMatch)
	for _, tm := range tempRows {
		if tm.Status == db.TempMatchActive {
			tempByMale[tm.MaleUserID] = tm
		}
	}
	permByMale := make(map[string]db.PermanentMatch)
	for _, pm := range permRows {
		if pm.Status == db.PermMatchActive {
			permByMale[pm.MaleUserID] = pm
		}
	}

	females, err := s.users.ListFemales(ctx)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	femaleByID := make(map[string]db.User, len(females))
	for _, f := range females {
		femaleByID[f.ID] = f
	}

	enhanced := make([]enhancedMale, 0, len(males))
	for i := range males {
		male := males[i]
		rows := assignmentsByMale[male.ID]
		views := make([]map[string]any, 0, len(rows))
		for _, a := range rows {
			view := map[string]any{
				"id":          a.ID,
				"status":      a.Status,
				"roundNumber": a.RoundNumber,
				"isSelected":  a.IsSelected,
				"assignedAt":  a.AssignedAt,
			}
			if f, ok := femaleByID[a.FemaleUserID]; ok {
				view["female"] = map[string]any{
					"id":        f.ID,
					"full_name": f.FullName,
					"age":       f.Age,
				}
			}
			views = append(views, view)
		}

		em := enhancedMale{
			User:           &male,
			Assignments:    views,
			MaxAssignments: lifecycle.MaxAssignments(male.SubscriptionType, male.CurrentRound),
		}
		if tm, ok := tempByMale[male.ID]; ok {
			em.TempMatch = &tm
		}
		if pm, ok := permByMale[male.ID]; ok {
			em.PermanentMatch = &pm
		}
		enhanced = append(enhanced, em)
	}

	pool := make([]femaleWithLoad, 0, len(females))
	for i := range females {
		f := females[i]
		count, err := s.appCtx.RedisCache.GetAssignedCount(ctx, f.ID)
		if err != nil || count == 0 {
			// Cache miss or cold counter: rebuild from the table.
			if n, dbErr := s.assignments.CountAssignedForFemale(ctx, f.ID); dbErr == nil {
				count = n
				_ = s.appCtx.RedisCache.SetAssignedCount(ctx, f.ID, n)
			}
		}
		pool = append(pool, femaleWithLoad{User: &f, AssignedCount: count})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"maleUsers":   enhanced,
		"femaleUsers": pool,
	})
}

//
// POST /admin/matches
//

type matchActionRequest struct {
	Action       string `json:"action"`
	MaleUserID   string `json:"maleUserId"`
	FemaleUserID string `json:"femaleUserId"`
	Data         struct {
		AssignmentID string `json:"assignmentId"`
	} `json:"data"`
}

func (s *Service) handleMatchesPost(w http.ResponseWriter, r *http.Request) {
	var req matchActionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.MaleUserID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "maleUserId is required")
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "assign_profile":
		if req.FemaleUserID == "" {
			httputil.WriteError(w, http.StatusBadRequest, "femaleUserId is required")
			return
		}
		assignment, err := s.lifecycle.AssignProfile(ctx, req.MaleUserID, req.FemaleUserID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		s.invalidateStats(ctx)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"assignment": assignment,
		})

	case "select_profile":
		if req.Data.AssignmentID == "" {
			httputil.WriteError(w, http.StatusBadRequest, "assignmentId is required")
			return
		}
		res, err := s.lifecycle.Reveal(ctx, req.MaleUserID, req.Data.AssignmentID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		s.invalidateStats(ctx)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"tempMatch": res.TempMatch,
			"expiresAt": res.ExpiresAt,
		})

	case "disengage_profile":
		res, err := s.lifecycle.Disengage(ctx, req.MaleUserID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		s.invalidateStats(ctx)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"freedProfiles": res.FreedProfiles,
			"newRound":      res.NewRound,
		})

	case "confirm_match":
		perm, err := s.lifecycle.ConfirmMatch(ctx, req.MaleUserID)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		s.invalidateStats(ctx)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"permMatch": perm,
		})

	case "progress_to_round_2":
		if err := s.lifecycle.ProgressToRound2(ctx, req.MaleUserID); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		s.invalidateStats(ctx)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "User progressed to round 2.",
		})

	case "clear_history":
		if err := s.lifecycle.ClearHistory(ctx, req.MaleUserID); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Match history cleared.",
		})

	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid action")
	}
}

//
// Bulk assignment
//

func (s *Service) handleBulkAssignPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assignments []lifecycle.BulkPair `json:"assignments"`
		Options     struct {
			PlanType string `json:"planType"`
		} `json:"options"`
	}
	// The body is optional: an empty POST runs the full pool.
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	stats, err := s.lifecycle.BulkAssign(r.Context(), lifecycle.BulkAssignRequest{
		Assignments: req.Assignments,
		PlanType:    req.Options.PlanType,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (s *Service) handleBulkAssignGet(w http.ResponseWriter, r *http.Request) {
	preview, err := s.lifecycle.BulkPreview(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"preview": preview,
	})
}

// POST /admin/assignments/create runs the single-user first-fit path.
func (s *Service) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.UserID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "userId is required")
		return
	}

	assignment, err := s.lifecycle.CreateAssignment(r.Context(), req.UserID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	s.invalidateStats(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"assignment": assignment,
	})
}

//
// Payments
//

func (s *Service) handlePaymentsGet(w http.ResponseWriter, r *http.Request) {
	all, err := s.users.ListAll(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	pending := make([]map[string]any, 0)
	for _, u := range all {
		if u.PaymentConfirmed || u.PaymentProofURL == "" {
			continue
		}
		pending = append(pending, map[string]any{
			"id":              u.ID,
			"full_name":       u.FullName,
			"email":           u.Email,
			"plan":            u.SubscriptionType,
			"paymentProofUrl": u.PaymentProofURL,
			"submittedAt":     u.UpdatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"payments": pending,
	})
}

func (s *Service) handlePaymentsPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Action string `json:"action"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	ctx := r.Context()

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteServiceError(w, err)
		return
	}

	switch req.Action {
	case "confirm":
		err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
			"payment_confirmed":   true,
			"subscription_status": "active",
		})
	case "reject":
		err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
			"payment_confirmed":   false,
			"payment_proof_url":   "",
			"subscription_status": "inactive",
			"subscription_type":   db.PlanNone,
		})
	default:
		httputil.WriteError(w, http.StatusBadRequest, "action must be confirm or reject")
		return
	}
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	s.invalidateStats(ctx)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Payment " + req.Action + "ed.",
	})
}

//
// Stats
//

type statsPayload struct {
	TotalUsers      int              `json:"totalUsers"`
	MaleUsers       int              `json:"maleUsers"`
	FemaleUsers     int              `json:"femaleUsers"`
	PayingUsers     int              `json:"payingUsers"`
	PremiumUsers    int              `json:"premiumUsers"`
	BasicUsers      int              `json:"basicUsers"`
	Revenue         int              `json:"revenue"`
	Assignments     map[string]int64 `json:"assignmentsByStatus"`
	ActiveTemp      int              `json:"activeTempMatches"`
	PermanentActive int              `json:"permanentMatches"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// handleStats serves the analytics payload cache-first: Redis holds the
// marshalled result for an hour and every mutating admin action drops the
// key.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := s.appCtx.RedisCache.KeyForAdminStats()

	if cached, err := s.appCtx.RedisCache.Get(ctx, key); err == nil && cached != "" {
		var payload statsPayload
		if json.Unmarshal([]byte(cached), &payload) == nil {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"stats":   payload,
				"cached":  true,
			})
			return
		}
	}

	payload, err := s.computeStats(ctx)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if raw, err := json.Marshal(payload); err == nil {
		if err := s.appCtx.RedisCache.Set(ctx, key, raw, statsTTL); err != nil {
			s.appCtx.Logger.Warn("stats cache write failed", "err", err)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   payload,
		"cached":  false,
	})
}

func (s *Service) computeStats(ctx context.Context) (*statsPayload, error) {
	all, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	payload := &statsPayload{GeneratedAt: time.Now()}
	for _, u := range all {
		payload.TotalUsers++
		switch u.Gender {
		case db.GenderMale:
			payload.MaleUsers++
		case db.GenderFemale:
			payload.FemaleUsers++
		}
		if !u.PaymentConfirmed {
			continue
		}
		switch u.SubscriptionType {
		case db.PlanPremium:
			payload.PayingUsers++
			payload.PremiumUsers++
			payload.Revenue += pricePremium
		case db.PlanBasic:
			payload.PayingUsers++
			payload.BasicUsers++
			payload.Revenue += priceBasic
		}
	}

	payload.Assignments, err = s.assignments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	temps, err := s.matches.ListAllTemp(ctx)
	if err != nil {
		return nil, err
	}
	for _, tm := range temps {
		if tm.Status == db.TempMatchActive {
			payload.ActiveTemp++
		}
	}

	perms, err := s.matches.ListAllPerm(ctx)
	if err != nil {
		return nil, err
	}
	for _, pm := range perms {
		if pm.Status == db.PermMatchActive {
			payload.PermanentActive++
		}
	}
	return payload, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForAdminStats()); err != nil {
		s.appCtx.Logger.Warn("stats cache invalidation failed", "err", err)
	}
}

//
// Match listings
//

func (s *Service) handleTempMatches(w http.ResponseWriter, r *http.Request) {
	rows, err := s.matches.ListAllTemp(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": rows,
	})
}

func (s *Service) handlePermMatches(w http.ResponseWriter, r *http.Request) {
	rows, err := s.matches.ListAllPerm(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"matches": rows,
	})
}

// POST /admin/force-disengage
func (s *Service) handleForceDisengage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TempMatchID string `json:"tempMatchId"`
		Reason      string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if req.TempMatchID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "tempMatchId is required")
		return
	}

	if err := s.lifecycle.ForceDisengage(r.Context(), req.TempMatchID, req.Reason); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	s.invalidateStats(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Match disengaged by admin.",
	})
}

//
// User moderation
//

func (s *Service) handleUserActions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Action string `json:"action"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	ctx := r.Context()

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		httputil.WriteServiceError(w, err)
		return
	}

	var fields map[string]interface{}
	switch req.Action {
	case "suspend":
		fields = map[string]interface{}{"is_suspended": true}
	case "unsuspend":
		fields = map[string]interface{}{"is_suspended": false}
	case "ban":
		fields = map[string]interface{}{"is_banned": true}
	case "unban":
		fields = map[string]interface{}{"is_banned": false}
	case "verify":
		fields = map[string]interface{}{"is_verified": true}
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid action")
		return
	}

	if err := s.users.UpdateFields(ctx, req.UserID, fields); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User " + req.Action + " applied.",
	})
}
