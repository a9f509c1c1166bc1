package lifecycle

import (
	"context"
	"fmt"

	"github.com/cufy/campusmatch/internal/db"
	svcErr "github.com/cufy/campusmatch/internal/errors"
	"github.com/cufy/campusmatch/internal/repository"
)

// BulkPair is one requested pairing in a bulk run.
type BulkPair struct {
	MaleUserID   string `json:"maleUserId"`
	FemaleUserID string `json:"femaleUserId"`
}

// BulkAssignRequest drives one bulk run. With an explicit Assignments
// list each pair is validated and created individually; with an empty
// list the run auto-fills every eligible male's quota first-fit,
// optionally narrowed by PlanType.
type BulkAssignRequest struct {
	Assignments []BulkPair
	PlanType    string
}

// BulkAssignStats summarizes one bulk run for the admin console.
type BulkAssignStats struct {
	Requested      int      `json:"requested"`
	EligibleMales  int      `json:"eligibleMales"`
	Created        int      `json:"created"`
	SkippedExist   int      `json:"skippedExisting"`
	SkippedAtQuota int      `json:"skippedAtQuota"`
	SkippedBusy    int      `json:"skippedBusy"`
	Errors         []string `json:"errors,omitempty"`
}

// BulkAssign creates assignments in batch with the same partial-failure
// policy as CreateAssignment: one bad pairing is recorded in the stats
// and does not abort the run.
func (s *Service) BulkAssign(ctx context.Context, req BulkAssignRequest) (*BulkAssignStats, error) {
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)

	pairs, err := assignments.ExistingPairKeys(ctx)
	if err != nil {
		return nil, err
	}
	busy, err := assignments.AssignedFemaleIDs(ctx)
	if err != nil {
		return nil, err
	}

	var stats *BulkAssignStats
	if len(req.Assignments) > 0 {
		stats, err = s.bulkAssignPairs(ctx, req.Assignments, pairs, busy)
	} else {
		stats, err = s.bulkAssignAuto(ctx, req.PlanType, pairs, busy)
	}
	if err != nil {
		return nil, err
	}

	if stats.Created > 0 {
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForAdminStats())
	}
	s.appCtx.Logger.Info("bulk assignment finished",
		"requested", stats.Requested,
		"created", stats.Created,
		"errors", len(stats.Errors))
	return stats, nil
}

// bulkAssignPairs processes an explicit admin-provided pair list.
func (s *Service) bulkAssignPairs(ctx context.Context, reqPairs []BulkPair, pairs, busy map[string]bool) (*BulkAssignStats, error) {
	users := repository.NewUserRepository(s.appCtx.DB)
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)

	maleIDs := make([]string, 0, len(reqPairs))
	seen := make(map[string]bool, len(reqPairs))
	for _, p := range reqPairs {
		if p.MaleUserID == "" || p.FemaleUserID == "" {
			return nil, svcErr.Validation("each assignment needs maleUserId and femaleUserId")
		}
		if !seen[p.MaleUserID] {
			seen[p.MaleUserID] = true
			maleIDs = append(maleIDs, p.MaleUserID)
		}
	}
	validPayers, err := users.ValidPayerIDs(ctx, maleIDs)
	if err != nil {
		return nil, err
	}

	stats := &BulkAssignStats{Requested: len(reqPairs)}
	quotaUsed := map[string]int{}

	for _, p := range reqPairs {
		if !validPayers[p.MaleUserID] {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("%s: no confirmed payment or active plan", p.MaleUserID))
			continue
		}
		if pairs[p.MaleUserID+":"+p.FemaleUserID] {
			stats.SkippedExist++
			continue
		}
		if busy[p.FemaleUserID] {
			stats.SkippedBusy++
			continue
		}

		male, err := users.GetByID(ctx, p.MaleUserID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", p.MaleUserID, err))
			continue
		}
		if male.DecisionTimerActive || male.PermanentMatchID != nil || male.IsSuspended || male.IsBanned {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("%s: not eligible for new assignments", p.MaleUserID))
			continue
		}

		quota := MaxAssignments(male.SubscriptionType, male.CurrentRound)
		have, err := assignments.CountAssigned(ctx, male.ID, male.CurrentRound)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", male.ID, err))
			continue
		}
		if int(have)+quotaUsed[male.ID] >= quota {
			stats.SkippedAtQuota++
			continue
		}

		if err := s.createBulkRow(ctx, male.ID, p.FemaleUserID, male.CurrentRound); err != nil {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("%s/%s: %v", male.ID, p.FemaleUserID, err))
			continue
		}
		pairs[male.ID+":"+p.FemaleUserID] = true
		busy[p.FemaleUserID] = true
		quotaUsed[male.ID]++
		stats.Created++
	}
	return stats, nil
}

// bulkAssignAuto fills every eligible male's quota for his current round
// with first-fit females.
func (s *Service) bulkAssignAuto(ctx context.Context, planType string, pairs, busy map[string]bool) (*BulkAssignStats, error) {
	users := repository.NewUserRepository(s.appCtx.DB)
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)

	males, err := users.ListMales(ctx, planType)
	if err != nil {
		return nil, err
	}
	females, err := users.ListFemales(ctx)
	if err != nil {
		return nil, err
	}

	// First-fit wants registration order; ListFemales returns newest first
	// for the console, so walk it back to front.
	pool := make([]db.User, 0, len(females))
	for i := len(females) - 1; i >= 0; i-- {
		f := females[i]
		if !f.PaymentConfirmed || f.SubscriptionType == db.PlanNone {
			continue
		}
		if f.PermanentMatchID != nil || f.IsSuspended || f.IsBanned {
			continue
		}
		pool = append(pool, f)
	}

	stats := &BulkAssignStats{}
	for _, male := range males {
		if male.IsSuspended || male.IsBanned || male.DecisionTimerActive || male.PermanentMatchID != nil {
			continue
		}
		stats.EligibleMales++

		quota := MaxAssignments(male.SubscriptionType, male.CurrentRound)
		have, err := assignments.CountAssigned(ctx, male.ID, male.CurrentRound)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", male.ID, err))
			continue
		}
		need := quota - int(have)
		if need <= 0 {
			stats.SkippedAtQuota++
			continue
		}

		for _, female := range pool {
			if need <= 0 {
				break
			}
			if busy[female.ID] || pairs[male.ID+":"+female.ID] {
				continue
			}
			if err := s.createBulkRow(ctx, male.ID, female.ID, male.CurrentRound); err != nil {
				stats.Errors = append(stats.Errors,
					fmt.Sprintf("%s/%s: %v", male.ID, female.ID, err))
				continue
			}
			busy[female.ID] = true
			pairs[male.ID+":"+female.ID] = true
			need--
			stats.Created++
		}
	}
	return stats, nil
}

// createBulkRow writes one assignment plus its best-effort placeholder
// window and bumps the cached counter.
func (s *Service) createBulkRow(ctx context.Context, maleID, femaleID string, round int) error {
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)
	matches := repository.NewMatchRepository(s.appCtx.DB)

	assignment := &db.ProfileAssignment{
		MaleUserID:   maleID,
		FemaleUserID: femaleID,
		Status:       db.AssignmentAssigned,
		RoundNumber:  round,
		AssignedAt:   s.now(),
	}
	if err := assignments.Create(ctx, assignment); err != nil {
		return err
	}

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
	return nil
}

// BulkPreview reports the pool sizes and the current assignment status
// histogram without writing anything.
func (s *Service) BulkPreview(ctx context.Context) (map[string]any, error) {
	users := repository.NewUserRepository(s.appCtx.DB)
	assignments := repository.NewAssignmentRepository(s.appCtx.DB)

	males, err := users.ListMales(ctx, "")
	if err != nil {
		return nil, err
	}
	eligible := 0
	for _, m := range males {
		if m.IsSuspended || m.IsBanned || m.DecisionTimerActive || m.PermanentMatchID != nil {
			continue
		}
		eligible++
	}

	females, err := users.ListFemales(ctx)
	if err != nil {
		return nil, err
	}
	busy, err := assignments.AssignedFemaleIDs(ctx)
	if err != nil {
		return nil, err
	}
	available := 0
	for _, f := range females {
		if f.PaymentConfirmed && f.SubscriptionType != db.PlanNone &&
			f.PermanentMatchID == nil && !busy[f.ID] {
			available++
		}
	}

	byStatus, err := assignments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"eligibleMales":       eligible,
		"availableFemales":    available,
		"assignmentsByStatus": byStatus,
	}, nil
}
