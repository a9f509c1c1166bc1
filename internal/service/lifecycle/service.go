package lifecycle

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/db"
	svcErr "github.com/cufy/campusmatch/internal/errors"
	"github.com/cufy/campusmatch/internal/repository"
)

// Service owns the assignment / reveal / disengage / round-progression
// state machine across profile_assignments, temporary_matches and
// permanent_matches, plus the denormalized timer cache on users.
//
// Every compound transition runs inside one database transaction so a
// crash mid-sequence cannot leave an assignment selected while its
// siblings are still visible.
type Service struct {
	appCtx *app.AppContext
	window time.Duration

	// now is swappable in tests to drive timer expiry.
	now func() time.Time
}

// NewService creates the lifecycle service with dependencies from
// AppContext. The decision window (48h in production) comes from config.
func NewService(appCtx *app.AppContext) *Service {
	window := 48 * time.Hour
	if appCtx.Config != nil && appCtx.Config.App.DecisionWindow > 0 {
		window = appCtx.Config.App.DecisionWindow
	}
	return &Service{
		appCtx: appCtx,
		window: window,
		now:    time.Now,
	}
}

// WithNow overrides the service clock. Tests use it to drive timer
// expiry without sleeping.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// MaxAssignments is the per-round assignment quota for a plan. Re-derived
// on every call, never persisted per user.
func MaxAssignments(plan string, round int) int {
	switch plan {
	case db.PlanPremium:
		if round == 1 {
			return 2
		}
		return 3
	case db.PlanBasic:
		return 1
	default:
		return 0
	}
}

// assignmentTransitions is the canonical transition table for
// ProfileAssignment.Status. Any transition absent from the table is
// rejected with a conflict, which collapses the previously divergent
// reveal/select call sites into one rule set.
var assignmentTransitions = map[string]map[string]bool{
	db.AssignmentAssigned: {
		db.AssignmentRevealed:       true,
		db.AssignmentSelected:       true,
		db.AssignmentHidden:         true,
		db.AssignmentDisengaged:     true,
		db.AssignmentExpired:        true,
		db.AssignmentRoundCompleted: true,
	},
	db.AssignmentRevealed: {
		db.AssignmentSelected:       true,
		db.AssignmentHidden:         true,
		db.AssignmentDisengaged:     true,
		db.AssignmentExpired:        true,
		db.AssignmentRoundCompleted: true,
	},
	db.AssignmentSelected: {
		db.AssignmentDisengaged:     true,
		db.AssignmentExpired:        true,
		db.AssignmentRoundCompleted: true,
	},
	db.AssignmentHidden: {
		db.AssignmentAssigned:       true,
		db.AssignmentDisengaged:     true,
		db.AssignmentRoundCompleted: true,
	},
}

func canTransition(from, to string) bool {
	return assignmentTransitions[from][to]
}

func opposite(gender string) string {
	if gender == db.GenderMale {
		return db.GenderFemale
	}
	return db.GenderMale
}

// recordAction writes an audit row. Best effort: a failure is logged and
// never propagated to the caller.
func (s *Service) recordAction(ctx context.Context, userID, actionType, targetUserID, details string) {
	action := db.UserAction{
		UserID:       userID,
		ActionType:   actionType,
		TargetUserID: targetUserID,
		Details:      details,
	}
	if err := s.appCtx.DB.WithContext(ctx).Create(&action).Error; err != nil {
		s.appCtx.Logger.Warn("audit write failed", "action", actionType, "user", userID, "err", err)
	}
}

// bumpAssignedCount adjusts the cached per-female assignment counter.
// Cache maintenance is never allowed to fail a transition.
func (s *Service) bumpAssignedCount(ctx context.Context, femaleUserID string, delta int64) {
	key := s.appCtx.RedisCache.KeyForAssignedCount(femaleUserID)
	var err error
	if delta >= 0 {
		_, err = s.appCtx.RedisCache.Incr(ctx, key)
	} else {
		_, err = s.appCtx.RedisCache.Decr(ctx, key)
	}
	if err != nil {
		s.appCtx.Logger.Warn("assignment counter update failed", "female", femaleUserID, "err", err)
	}
	_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
}

// CreateAssignment finds the first eligible opposite-gender candidate for
// userID and creates a status = assigned pairing (first-fit, no scoring).
//
// Preconditions: confirmed payment, a real plan, not locked by a permanent
// match, and free quota in the current round. The TemporaryMatch
// placeholder is best effort; its failure does not roll back the
// assignment.
func (s *Service) CreateAssignment(ctx context.Context, userID string) (*db.ProfileAssignment, error) {
	users := repository.NewUserRepository(s.appCtx.DB)
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)
	matches := repository.NewMatchRepository(s.appCtx.DB)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, err
	}

	if !user.PaymentConfirmed {
		return nil, svcErr.Conflict("cannot assign profile to " + user.FullName + ": payment not yet confirmed")
	}
	if user.SubscriptionType == db.PlanNone {
		return nil, svcErr.Conflict("cannot assign profile to " + user.FullName + ": no active subscription")
	}
	if _, err := matches.ActivePermForMale(ctx, userID); err == nil && user.Gender == db.GenderMale {
		return nil, svcErr.Conflict(user.FullName + " already has a confirmed match")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user.Gender == db.GenderMale {
		quota := MaxAssignments(user.SubscriptionType, user.CurrentRound)
		n, err := assignments.CountAssigned(ctx, userID, user.CurrentRound)
		if err != nil {
			return nil, err
		}
		if int(n) >= quota {
			return nil, svcErr.Conflict(user.FullName + " already has an active assignment")
		}
	} else {
		n, err := assignments.CountAssignedForFemale(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, svcErr.Conflict(user.FullName + " already has an active assignment")
		}
	}

	candidate, err := users.FirstFitCandidate(ctx, opposite(user.Gender), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("no compatible " + opposite(user.Gender) + " profiles available for assignment")
		}
		return nil, err
	}

	maleID, femaleID := userID, candidate.ID
	round := user.CurrentRound
	if user.Gender == db.GenderFemale {
		maleID, femaleID = candidate.ID, userID
		round = candidate.CurrentRound
	}

	assignment := &db.ProfileAssignment{
		MaleUserID:   maleID,
		FemaleUserID: femaleID,
		Status:       db.AssignmentAssigned,
		RoundNumber:  round,
		AssignedAt:   s.now(),
	}
	if err := assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	// Placeholder window so both dashboards can show the pairing before
	// the reveal. Accepted partial-failure policy: log and continue.
	placeholder := &db.TemporaryMatch{
		MaleUserID:   maleID,
		FemaleUserID: femaleID,
		AssignmentID: &assignment.ID,
		Status:       db.TempMatchPending,
		RoundNumber:  round,
		ExpiresAt:    s.now().Add(s.window),
	}
	if err := matches.CreateTemp(ctx, placeholder); err != nil {
		s.appCtx.Logger.Warn("placeholder temp match failed", "assignment", assignment.ID, "err", err)
	}

	s.bumpAssignedCount(ctx, femaleID, 1)
	s.recordAction(ctx, userID, "auto_assign", candidate.ID, "assignment "+assignment.ID)

	return assignment, nil
}

// AssignProfile creates an admin-chosen pairing, enforcing the quota, the
// no-re-offer rule and the selection freeze (a male with a running decision
// timer receives nothing new).
func (s *Service) AssignProfile(ctx context.Context, maleUserID, femaleUserID string) (*db.ProfileAssignment, error) {
	users := repository.NewUserRepository(s.appCtx.DB)
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)

	male, err := users.GetByID(ctx, maleUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("male user not found")
		}
		return nil, err
	}
	female, err := users.GetByID(ctx, femaleUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("female user not found")
		}
		return nil, err
	}
	if male.Gender != db.GenderMale || female.Gender != db.GenderFemale {
		return nil, svcErr.Validation("assignment requires one male and one female user")
	}

	if male.DecisionTimerActive {
		return nil, svcErr.Conflict("user has already selected a profile and timer is active, cannot assign more profiles")
	}
	if male.PermanentMatchID != nil {
		return nil, svcErr.Conflict("user already has a confirmed match")
	}

	quota := MaxAssignments(male.SubscriptionType, male.CurrentRound)
	n, err := assignments.CountAssigned(ctx, maleUserID, male.CurrentRound)
	if err != nil {
		return nil, err
	}
	if int(n) >= quota {
		return nil, svcErr.Conflict("maximum assignments reached for this round")
	}

	if prior, err := assignments.GetPair(ctx, maleUserID, femaleUserID); err == nil {
		if prior.Status == db.AssignmentDisengaged {
			return nil, svcErr.Conflict("this profile cannot be reassigned: the user disengaged earlier")
		}
		return nil, svcErr.Conflict("this profile is already assigned to the user")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	assignment := &db.ProfileAssignment{
		MaleUserID:   maleUserID,
		FemaleUserID: femaleUserID,
		Status:       db.AssignmentAssigned,
		RoundNumber:  male.CurrentRound,
		AssignedAt:   s.now(),
	}
	if err := assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	s.bumpAssignedCount(ctx, femaleUserID, 1)
	return assignment, nil
}

// RevealResult is the outcome of the canonical reveal/select transition.
type RevealResult struct {
	Assignment      *db.ProfileAssignment
	TempMatch       *db.TemporaryMatch
	AlreadyRevealed bool
	HiddenCount     int
	ExpiresAt       time.Time
}

// Reveal finalizes one assignment as the male user's active choice and
// starts the decision window.
//
// Behavior:
//   - a double submit on an already revealed assignment is an idempotent
//     no-op returning the existing state;
//   - the chosen row becomes selected/is_selected with timer fields set;
//   - every sibling in assigned or revealed flips to hidden (kept, not
//     deleted, so a later disengage can close them out as history);
//   - the TemporaryMatch is upserted to active with the same expiry;
//   - the user's timer cache is updated last.
//
// All steps share one transaction, which together with the partial unique
// index keeps the at-most-one-selected invariant under concurrent submits.
func (s *Service) Reveal(ctx context.Context, actingUserID, assignmentID string) (*RevealResult, error) {
	users := repository.NewUserRepository(s.appCtx.DB)

	actor, err := users.GetByID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, err
	}
	if actor.Gender != db.GenderMale {
		return nil, svcErr.Forbidden("only male users can reveal profiles")
	}
	if actor.PermanentMatchID != nil {
		return nil, svcErr.Conflict("match already confirmed, no further selections possible")
	}

	var result RevealResult
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		assignment, err := assignments.GetOwned(ctx, assignmentID, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("assignment not found")
			}
			return err
		}

		if assignment.MaleRevealed {
			result = RevealResult{Assignment: assignment, AlreadyRevealed: true}
			if tm, err := matches.TempForAssignment(ctx, assignment.ID); err == nil {
				result.TempMatch = tm
				result.ExpiresAt = tm.ExpiresAt
			}
			return nil
		}

		if !canTransition(assignment.Status, db.AssignmentSelected) {
			return svcErr.Conflict("assignment cannot be selected from status " + assignment.Status)
		}

		if existing, err := matches.ActiveTempForMale(ctx, actingUserID); err == nil &&
			existing.AssignmentID != nil && *existing.AssignmentID != assignment.ID &&
			existing.MaleAccepted {
			return svcErr.Conflict("you already have an active selection")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := s.now()
		expiresAt := now.Add(s.window)

		err = assignments.UpdateFields(ctx, assignment.ID, map[string]interface{}{
			"status":           db.AssignmentSelected,
			"is_selected":      true,
			"male_revealed":    true,
			"revealed_at":      now,
			"selected_at":      now,
			"timer_started_at": now,
			"timer_expires_at": expiresAt,
		})
		if err != nil {
			return err
		}

		hidden, err := assignments.UpdateSiblings(ctx, actingUserID, assignment.ID,
			[]string{db.AssignmentAssigned, db.AssignmentRevealed},
			map[string]interface{}{"status": db.AssignmentHidden})
		if err != nil {
			return err
		}

		tempMatch, err := matches.TempForAssignment(ctx, assignment.ID)
		switch {
		case err == nil:
			err = matches.UpdateTempFields(ctx, tempMatch.ID, map[string]interface{}{
				"status":           db.TempMatchActive,
				"male_accepted":    true,
				"male_accepted_at": now,
				"expires_at":       expiresAt,
			})
			if err != nil {
				return err
			}
			tempMatch.Status = db.TempMatchActive
			tempMatch.MaleAccepted = true
			tempMatch.ExpiresAt = expiresAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			tempMatch = &db.TemporaryMatch{
				MaleUserID:     assignment.MaleUserID,
				FemaleUserID:   assignment.FemaleUserID,
				AssignmentID:   &assignment.ID,
				Status:         db.TempMatchActive,
				RoundNumber:    assignment.RoundNumber,
				MaleAccepted:   true,
				MaleAcceptedAt: &now,
				ExpiresAt:      expiresAt,
			}
			if err := matches.CreateTemp(ctx, tempMatch); err != nil {
				return err
			}
		default:
			return err
		}

		err = txUsers.UpdateFields(ctx, actingUserID, map[string]interface{}{
			"decision_timer_active":     true,
			"decision_timer_started_at": now,
			"decision_timer_expires_at": expiresAt,
			"temp_match_id":             tempMatch.ID,
			"last_activity_at":          now,
		})
		if err != nil {
			return err
		}

		assignment.Status = db.AssignmentSelected
		assignment.IsSelected = true
		assignment.MaleRevealed = true
		result = RevealResult{
			Assignment:  assignment,
			TempMatch:   tempMatch,
			HiddenCount: len(hidden),
			ExpiresAt:   expiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyRevealed {
		s.recordAction(ctx, actingUserID, "reveal_profile", result.Assignment.FemaleUserID,
			"assignment "+result.Assignment.ID)
	}
	return &result, nil
}

// DisengageResult reports what a full disengage freed up.
type DisengageResult struct {
	Assignment    *db.ProfileAssignment
	FreedProfiles int
	NewRound      int
}

// Disengage abandons the male user's current selection: the selected
// assignment and every sibling row flip to disengaged history rows (they
// block any future re-offer of those pairs) while the sibling females
// return to the candidate pool, the temporary match closes, the timer
// cache clears and the user advances from round 1 to round 2.
func (s *Service) Disengage(ctx context.Context, actingUserID string) (*DisengageResult, error) {
	users := repository.NewUserRepository(s.appCtx.DB)

	actor, err := users.GetByID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, err
	}
	if actor.Gender != db.GenderMale {
		return nil, svcErr.Forbidden("only male users can disengage")
	}

	var result DisengageResult
	var freedFemales []string
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		selected, err := assignments.Selected(ctx, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.Conflict("no active selection to disengage from")
			}
			return err
		}

		now := s.now()
		err = assignments.UpdateFields(ctx, selected.ID, map[string]interface{}{
			"status":        db.AssignmentDisengaged,
			"is_selected":   false,
			"disengaged_at": now,
		})
		if err != nil {
			return err
		}

		// Siblings flip to disengaged rather than being deleted: the kept
		// rows block any re-offer of the same pair while their females,
		// no longer in an assigned row, return to the candidate pool.
		siblings, err := assignments.UpdateSiblings(ctx, actingUserID, selected.ID,
			[]string{db.AssignmentAssigned, db.AssignmentRevealed, db.AssignmentHidden},
			map[string]interface{}{
				"status":        db.AssignmentDisengaged,
				"disengaged_at": now,
			})
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			freedFemales = append(freedFemales, sib.FemaleUserID)
		}

		if _, err := matches.DisengageActiveTempForMale(ctx, actingUserID); err != nil {
			return err
		}

		fields := map[string]interface{}{
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
			"temp_match_id":             nil,
			"last_activity_at":          now,
		}
		newRound := actor.CurrentRound
		if actor.CurrentRound == 1 {
			newRound = 2
			fields["current_round"] = 2
			fields["round_1_completed"] = true
		}
		if err := txUsers.UpdateFields(ctx, actingUserID, fields); err != nil {
			return err
		}

		selected.Status = db.AssignmentDisengaged
		selected.IsSelected = false
		result = DisengageResult{
			Assignment:    selected,
			FreedProfiles: len(siblings),
			NewRound:      newRound,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, femaleID := range freedFemales {
		s.bumpAssignedCount(ctx, femaleID, -1)
	}
	s.recordAction(ctx, actingUserID, "disengage", result.Assignment.FemaleUserID,
		"assignment "+result.Assignment.ID)

	return &result, nil
}

// DisengageSpecific abandons a single revealed/selected assignment while
// leaving the male user's other assignments untouched. No round advance.
func (s *Service) DisengageSpecific(ctx context.Context, actingUserID, assignmentID string) error {
	users := repository.NewUserRepository(s.appCtx.DB)

	actor, err := users.GetByID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user not found")
		}
		return err
	}
	if actor.Gender != db.GenderMale {
		return svcErr.Forbidden("only male users can disengage")
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		assignment, err := assignments.GetOwned(ctx, assignmentID, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("assignment not found")
			}
			return err
		}
		if assignment.Status != db.AssignmentRevealed && assignment.Status != db.AssignmentSelected {
			return svcErr.Conflict("can only disengage from revealed or selected assignments")
		}

		now := s.now()
		err = assignments.UpdateFields(ctx, assignment.ID, map[string]interface{}{
			"status":        db.AssignmentDisengaged,
			"is_selected":   false,
			"disengaged_at": now,
		})
		if err != nil {
			return err
		}

		if err := matches.DeleteTempForAssignment(ctx, assignment.ID); err != nil {
			return err
		}

		if assignment.IsSelected {
			err = txUsers.UpdateFields(ctx, actingUserID, map[string]interface{}{
				"decision_timer_active":     false,
				"decision_timer_started_at": nil,
				"decision_timer_expires_at": nil,
				"temp_match_id":             nil,
				"last_activity_at":          now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAction(ctx, actingUserID, "disengage_specific", "", "assignment "+assignmentID)
	return nil
}

// ConfirmMatch promotes the male user's active temporary match to a
// permanent one. After this the user is locked: no further assignments,
// reveals or disengages.
func (s *Service) ConfirmMatch(ctx context.Context, actingUserID string) (*db.PermanentMatch, error) {
	var perm *db.PermanentMatch
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		tempMatch, err := matches.ActiveTempForMale(ctx, actingUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("no active temporary match found")
			}
			return err
		}

		now := s.now()
		perm = &db.PermanentMatch{
			TemporaryMatchID: &tempMatch.ID,
			MaleUserID:       tempMatch.MaleUserID,
			FemaleUserID:     tempMatch.FemaleUserID,
			Status:           db.PermMatchActive,
			MatchedAt:        now,
		}
		if err := matches.CreatePerm(ctx, perm); err != nil {
			return err
		}

		err = txUsers.UpdateFields(ctx, actingUserID, map[string]interface{}{
			"permanent_match_id":        perm.ID,
			"match_confirmed_at":        now,
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
			"last_activity_at":          now,
		})
		if err != nil {
			return err
		}

		return matches.UpdateTempFields(ctx, tempMatch.ID, map[string]interface{}{
			"status": db.TempMatchPromoted,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAction(ctx, actingUserID, "confirm_match", perm.FemaleUserID, "permanent match "+perm.ID)
	return perm, nil
}

// AcceptMatch records the female side's acceptance of a live temporary
// match. When the male side has already accepted, the pairing promotes to
// a permanent match immediately and the temp match closes as
// both_accepted.
func (s *Service) AcceptMatch(ctx context.Context, actingUserID, tempMatchID string) (bool, error) {
	users := repository.NewUserRepository(s.appCtx.DB)

	actor, err := users.GetByID(ctx, actingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, svcErr.NotFound("user not found")
		}
		return false, err
	}
	if actor.Gender != db.GenderFemale {
		return false, svcErr.Forbidden("only female users can accept matches")
	}

	var bothAccepted bool
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		tempMatch, err := matches.TempByID(ctx, tempMatchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("match not found")
			}
			return err
		}
		if tempMatch.FemaleUserID != actingUserID {
			return svcErr.NotFound("match not found")
		}

		now := s.now()
		if now.After(tempMatch.ExpiresAt) {
			return svcErr.Conflict("match has expired")
		}
		if tempMatch.Status != db.TempMatchActive && tempMatch.Status != db.TempMatchPending {
			return svcErr.Conflict("match is no longer pending")
		}

		err = matches.UpdateTempFields(ctx, tempMatch.ID, map[string]interface{}{
			"female_accepted":    true,
			"female_accepted_at": now,
		})
		if err != nil {
			return err
		}

		bothAccepted = tempMatch.MaleAccepted
		if !bothAccepted {
			return nil
		}

		perm := &db.PermanentMatch{
			TemporaryMatchID: &tempMatch.ID,
			MaleUserID:       tempMatch.MaleUserID,
			FemaleUserID:     tempMatch.FemaleUserID,
			Status:           db.PermMatchActive,
			MatchedAt:        now,
		}
		if err := matches.CreatePerm(ctx, perm); err != nil {
			return err
		}
		err = matches.UpdateTempFields(ctx, tempMatch.ID, map[string]interface{}{
			"status": db.TempMatchBothAccepted,
		})
		if err != nil {
			return err
		}
		return txUsers.UpdateFields(ctx, tempMatch.MaleUserID, map[string]interface{}{
			"permanent_match_id":        perm.ID,
			"match_confirmed_at":        now,
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
		})
	})
	if err != nil {
		return false, err
	}

	s.recordAction(ctx, actingUserID, "accept_match", "", "temp match "+tempMatchID)
	return bothAccepted, nil
}

// ProgressToRound2 moves a round-1 user into round 2: the round flag flips
// exactly once, live temporary matches disengage and round-1 assignments
// close out as round_completed. The round-2 quota is re-derived by the
// next assignment call, nothing is stored here.
func (s *Service) ProgressToRound2(ctx context.Context, userID string) error {
	users := repository.NewUserRepository(s.appCtx.DB)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user not found")
		}
		return err
	}
	if user.CurrentRound != 1 {
		return svcErr.Conflict("user is not in round 1")
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		err := txUsers.UpdateFields(ctx, userID, map[string]interface{}{
			"current_round":             2,
			"round_1_completed":         true,
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
			"temp_match_id":             nil,
		})
		if err != nil {
			return err
		}

		if _, err := matches.DisengageActiveTempForMale(ctx, userID); err != nil {
			return err
		}

		return assignments.CompleteRound(ctx, userID, 1)
	})
	if err != nil {
		return err
	}

	s.recordAction(ctx, userID, "progress_round_2", "", "")
	return nil
}

// ForceDisengage is the admin override: it closes a live temporary match
// regardless of who holds it and clears the male user's timer cache.
func (s *Service) ForceDisengage(ctx context.Context, tempMatchID, reason string) error {
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		tempMatch, err := matches.TempByID(ctx, tempMatchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("temporary match not found")
			}
			return err
		}
		if tempMatch.Status != db.TempMatchActive && tempMatch.Status != db.TempMatchPending {
			return svcErr.Conflict("match is not active")
		}

		err = matches.UpdateTempFields(ctx, tempMatch.ID, map[string]interface{}{
			"status": db.TempMatchDisengaged,
		})
		if err != nil {
			return err
		}

		if tempMatch.AssignmentID != nil {
			err = tx.Model(&db.ProfileAssignment{}).
				Where("id = ? AND status IN ?", *tempMatch.AssignmentID,
					[]string{db.AssignmentSelected, db.AssignmentRevealed}).
				Updates(map[string]interface{}{
					"status":        db.AssignmentDisengaged,
					"is_selected":   false,
					"disengaged_at": s.now(),
				}).Error
			if err != nil {
				return err
			}
		}

		return txUsers.UpdateFields(ctx, tempMatch.MaleUserID, map[string]interface{}{
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
			"temp_match_id":             nil,
		})
	})
	if err != nil {
		return err
	}

	if reason == "" {
		reason = "admin forced disengagement"
	}
	s.recordAction(ctx, "admin", "force_disengage", "", "temp match "+tempMatchID+": "+reason)
	return nil
}

// ClearHistory wipes every assignment and match of a male user and resets
// the user row to round 1. The only path that erases disengage history.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := repository.NewAssignmentRepository(tx)
		matches := repository.NewMatchRepository(tx)
		txUsers := repository.NewUserRepository(tx)

		if err := assignments.DeleteForMale(ctx, userID); err != nil {
			return err
		}
		if err := matches.DeleteTempForMale(ctx, userID); err != nil {
			return err
		}
		if err := matches.DeletePermForMale(ctx, userID); err != nil {
			return err
		}

		return txUsers.UpdateFields(ctx, userID, map[string]interface{}{
			"current_round":             1,
			"round_1_completed":         false,
			"round_2_completed":         false,
			"decision_timer_active":     false,
			"decision_timer_started_at": nil,
			"decision_timer_expires_at": nil,
			"temp_match_id":             nil,
			"permanent_match_id":        nil,
			"match_confirmed_at":        nil,
			"last_activity_at":          s.now(),
		})
	})
	if err != nil {
		return err
	}

	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForAdminStats())
	s.recordAction(ctx, userID, "clear_history", "", "")
	return nil
}

// ExpireOverdue transitions every live temporary match whose window has
// passed, expires the linked assignments and clears the owners' timer
// caches. Called by the background sweeper; reads still lazily compare
// expires_at to now so the sweep is a hardening layer, not a dependency.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	var expired []db.TemporaryMatch
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)

		overdue, err := matches.ExpireOverdueTemp(ctx, s.now())
		if err != nil {
			return err
		}
		expired = overdue
		if len(overdue) == 0 {
			return nil
		}

		maleIDs := make([]string, 0, len(overdue))
		assignmentIDs := make([]string, 0, len(overdue))
		for _, m := range overdue {
			maleIDs = append(maleIDs, m.MaleUserID)
			if m.AssignmentID != nil {
				assignmentIDs = append(assignmentIDs, *m.AssignmentID)
			}
		}

		if len(assignmentIDs) > 0 {
			err = tx.Model(&db.ProfileAssignment{}).
				Where("id IN ? AND status IN ?", assignmentIDs,
					[]string{db.AssignmentSelected, db.AssignmentRevealed, db.AssignmentAssigned}).
				Updates(map[string]interface{}{
					"status":      db.AssignmentExpired,
					"is_selected": false,
				}).Error
			if err != nil {
				return err
			}
		}

		return tx.Model(&db.User{}).
			Where("id IN ? AND decision_timer_active = ?", maleIDs, true).
			Updates(map[string]interface{}{
				"decision_timer_active":     false,
				"decision_timer_started_at": nil,
				"decision_timer_expires_at": nil,
				"temp_match_id":             nil,
			}).Error
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		s.appCtx.Logger.Info("expired overdue matches", "count", len(expired))
	}
	return len(expired), nil
}
