package lifecycle_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cufy/campusmatch/internal/app"
	"github.com/cufy/campusmatch/internal/cache"
	"github.com/cufy/campusmatch/internal/config"
	"github.com/cufy/campusmatch/internal/db"
	svcErr "github.com/cufy/campusmatch/internal/errors"
	"github.com/cufy/campusmatch/internal/service/lifecycle"
)

//
// Test helpers
//

// seedUsers inserts a deterministic fixture:
//   - m-premium: paid premium male, round 1 (quota 2)
//   - m-basic:   paid basic male, round 1 (quota 1)
//   - m-unpaid:  male without a confirmed payment
//   - f-1, f-2, f-3: paid females, created in that order so first-fit
//     always picks f-1 first
func seedUsers(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []db.User{
		{ID: "m-premium", Email: "m1@test.com", FullName: "Male Premium", Gender: db.GenderMale,
			SubscriptionType: db.PlanPremium, PaymentConfirmed: true, CurrentRound: 1, CreatedAt: base},
		{ID: "m-basic", Email: "m2@test.com", FullName: "Male Basic", Gender: db.GenderMale,
			SubscriptionType: db.PlanBasic, PaymentConfirmed: true, CurrentRound: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "m-unpaid", Email: "m3@test.com", FullName: "Male Unpaid", Gender: db.GenderMale,
			SubscriptionType: db.PlanNone, PaymentConfirmed: false, CurrentRound: 1, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "f-1", Email: "f1@test.com", FullName: "Female One", Gender: db.GenderFemale,
			SubscriptionType: db.PlanBasic, PaymentConfirmed: true, CurrentRound: 1, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "f-2", Email: "f2@test.com", FullName: "Female Two", Gender: db.GenderFemale,
			SubscriptionType: db.PlanBasic, PaymentConfirmed: true, CurrentRound: 1, CreatedAt: base.Add(4 * time.Minute)},
		{ID: "f-3", Email: "f3@test.com", FullName: "Female Three", Gender: db.GenderFemale,
			SubscriptionType: db.PlanBasic, PaymentConfirmed: true, CurrentRound: 1, CreatedAt: base.Add(5 * time.Minute)},
	}
	require.NoError(t, gdb.Create(&users).Error)
}

// setupService spins up an in-memory SQLite DB, applies migrations, seeds
// the fixture, starts a miniredis and wires everything into a lifecycle
// service. Each test gets its own isolated DB + Redis.
func setupService(t *testing.T) (*lifecycle.Service, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	seedUsers(t, gdb)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.App.DecisionWindow = 48 * time.Hour

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(gdb, redisCache, logger, cfg)
	return lifecycle.NewService(appCtx), gdb
}

func requireKind(t *testing.T, err error, kind svcErr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, svcErr.IsKind(err, kind), "expected kind %v, got %v", kind, err)
}

//
// Tests
//

func TestMaxAssignments(t *testing.T) {
	assert.Equal(t, 2, lifecycle.MaxAssignments(db.PlanPremium, 1))
	assert.Equal(t, 3, lifecycle.MaxAssignments(db.PlanPremium, 2))
	assert.Equal(t, 1, lifecycle.MaxAssignments(db.PlanBasic, 1))
	assert.Equal(t, 1, lifecycle.MaxAssignments(db.PlanBasic, 2))
	assert.Equal(t, 0, lifecycle.MaxAssignments(db.PlanNone, 1))
}

// TestCreateAssignmentFirstFit verifies registration-order matching with
// no scoring: the earliest eligible female wins.
func TestCreateAssignmentFirstFit(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	assert.Equal(t, "f-1", a.FemaleUserID)
	assert.Equal(t, db.AssignmentAssigned, a.Status)
	assert.Equal(t, 1, a.RoundNumber)

	// The pending placeholder window exists but is not a live selection.
	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "assignment_id = ?", a.ID).Error)
	assert.Equal(t, db.TempMatchPending, tm.Status)
	assert.False(t, tm.MaleAccepted)

	// f-1 is taken now, so the next male gets f-2.
	b, err := svc.CreateAssignment(ctx, "m-basic")
	require.NoError(t, err)
	assert.Equal(t, "f-2", b.FemaleUserID)
}

func TestCreateAssignmentRequiresConfirmedPayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.CreateAssignment(ctx, "m-unpaid")
	requireKind(t, err, svcErr.KindConflict)
}

// TestCreateAssignmentQuota drives both plans to their round-1 limits.
func TestCreateAssignmentQuota(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	// Premium round 1: two assignments, then conflict.
	_, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "m-premium")
	requireKind(t, err, svcErr.KindConflict)

	// Basic round 1: one assignment, then conflict.
	_, err = svc.CreateAssignment(ctx, "m-basic")
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, "m-basic")
	requireKind(t, err, svcErr.KindConflict)
}

// TestRevealHidesSiblingsAndStartsTimer covers the canonical selection
// transition: exactly one selected row, siblings hidden, an active
// temporary match and a running timer on the user.
func TestRevealHidesSiblingsAndStartsTimer(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a1, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	a2, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)

	res, err := svc.Reveal(ctx, "m-premium", a1.ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyRevealed)
	assert.Equal(t, 1, res.HiddenCount)
	require.NotNil(t, res.TempMatch)
	assert.Equal(t, db.TempMatchActive, res.TempMatch.Status)
	assert.True(t, res.TempMatch.MaleAccepted)

	var selected db.ProfileAssignment
	require.NoError(t, gdb.First(&selected, "id = ?", a1.ID).Error)
	assert.Equal(t, db.AssignmentSelected, selected.Status)
	assert.True(t, selected.IsSelected)
	assert.True(t, selected.MaleRevealed)

	var sibling db.ProfileAssignment
	require.NoError(t, gdb.First(&sibling, "id = ?", a2.ID).Error)
	assert.Equal(t, db.AssignmentHidden, sibling.Status)

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.True(t, user.DecisionTimerActive)
	require.NotNil(t, user.DecisionTimerExpiresAt)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), *user.DecisionTimerExpiresAt, time.Minute)
}

// TestRevealIdempotentDoubleSubmit replays the same reveal: the second
// call is a no-op returning the existing state, and only one temporary
// match exists afterward.
func TestRevealIdempotentDoubleSubmit(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)

	first, err := svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	second, err := svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRevealed)
	require.NotNil(t, second.TempMatch)
	assert.Equal(t, first.TempMatch.ID, second.TempMatch.ID)

	var count int64
	require.NoError(t, gdb.Model(&db.TemporaryMatch{}).
		Where("male_user_id = ? AND status = ?", "m-premium", db.TempMatchActive).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRevealForeignAssignment(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)

	_, err = svc.Reveal(ctx, "m-basic", a.ID)
	requireKind(t, err, svcErr.KindNotFound)
}

func TestRevealFemaleForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Reveal(ctx, "f-1", "whatever")
	requireKind(t, err, svcErr.KindForbidden)
}

// TestDisengageAdvancesRoundAndFreesPool checks the full disengage: the
// selected row and its hidden sibling both stay as disengaged history,
// the sibling's female returns to the pool, and the user moves to round 2.
func TestDisengageAdvancesRoundAndFreesPool(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a1, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	a2, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "m-premium", a1.ID)
	require.NoError(t, err)

	res, err := svc.Disengage(ctx, "m-premium")
	require.NoError(t, err)
	assert.Equal(t, 1, res.FreedProfiles)
	assert.Equal(t, 2, res.NewRound)

	// Selected row survives as the no-re-offer record.
	var kept db.ProfileAssignment
	require.NoError(t, gdb.First(&kept, "id = ?", a1.ID).Error)
	assert.Equal(t, db.AssignmentDisengaged, kept.Status)
	assert.False(t, kept.IsSelected)

	// The hidden sibling is kept too, closed out as disengaged.
	var sibling db.ProfileAssignment
	require.NoError(t, gdb.First(&sibling, "id = ?", a2.ID).Error)
	assert.Equal(t, db.AssignmentDisengaged, sibling.Status)
	assert.NotNil(t, sibling.DisengagedAt)

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.Equal(t, 2, user.CurrentRound)
	assert.True(t, user.Round1Completed)
	assert.False(t, user.DecisionTimerActive)
	assert.Nil(t, user.TempMatchID)
}

func TestDisengageWithoutSelection(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Disengage(ctx, "m-premium")
	requireKind(t, err, svcErr.KindConflict)
}

// TestDisengagedPairNeverReOffered is the no-re-offer rule end to end:
// neither the admin path nor first-fit may resurface a disengaged pair.
func TestDisengagedPairNeverReOffered(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	require.Equal(t, "f-1", a.FemaleUserID)
	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)
	_, err = svc.Disengage(ctx, "m-premium")
	require.NoError(t, err)

	_, err = svc.AssignProfile(ctx, "m-premium", "f-1")
	requireKind(t, err, svcErr.KindConflict)

	// First-fit skips f-1 because of the pair history.
	next, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	assert.Equal(t, "f-2", next.FemaleUserID)
	assert.Equal(t, 2, next.RoundNumber)
}

// TestDisengageFreedSiblingNotReOffered covers the sibling side of the
// rule: a female freed by a disengage goes back into the pool for other
// males but never resurfaces for the male who held her assignment.
func TestDisengageFreedSiblingNotReOffered(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	a1, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	require.Equal(t, "f-1", a1.FemaleUserID)
	a2, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	require.Equal(t, "f-2", a2.FemaleUserID)

	_, err = svc.Reveal(ctx, "m-premium", a1.ID)
	require.NoError(t, err)
	_, err = svc.Disengage(ctx, "m-premium")
	require.NoError(t, err)

	// Round 2 first-fit must skip both f-1 and f-2.
	next, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	assert.Equal(t, "f-3", next.FemaleUserID)

	// The freed females are back in the pool for everyone else, in
	// registration order.
	other, err := svc.CreateAssignment(ctx, "m-basic")
	require.NoError(t, err)
	assert.Equal(t, "f-1", other.FemaleUserID)
}

// TestConfirmMatchLocksUser promotes the active window and verifies the
// lock: no further reveals or assignments for the matched user.
func TestConfirmMatchLocksUser(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	perm, err := svc.ConfirmMatch(ctx, "m-premium")
	require.NoError(t, err)
	assert.Equal(t, "m-premium", perm.MaleUserID)
	assert.Equal(t, "f-1", perm.FemaleUserID)
	assert.Equal(t, db.PermMatchActive, perm.Status)

	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "male_user_id = ?", "m-premium").Error)
	assert.Equal(t, db.TempMatchPromoted, tm.Status)

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	require.NotNil(t, user.PermanentMatchID)
	assert.Equal(t, perm.ID, *user.PermanentMatchID)
	assert.False(t, user.DecisionTimerActive)

	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	requireKind(t, err, svcErr.KindConflict)
	_, err = svc.AssignProfile(ctx, "m-premium", "f-2")
	requireKind(t, err, svcErr.KindConflict)
}

func TestConfirmMatchWithoutSelection(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.ConfirmMatch(ctx, "m-premium")
	requireKind(t, err, svcErr.KindNotFound)
}

// TestAcceptMatchPromotesWhenBothSides has the male reveal first, then the
// female accept: the pairing promotes immediately.
func TestAcceptMatchPromotesWhenBothSides(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	res, err := svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	both, err := svc.AcceptMatch(ctx, "f-1", res.TempMatch.ID)
	require.NoError(t, err)
	assert.True(t, both)

	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "id = ?", res.TempMatch.ID).Error)
	assert.Equal(t, db.TempMatchBothAccepted, tm.Status)
	assert.True(t, tm.FemaleAccepted)

	var perm db.PermanentMatch
	require.NoError(t, gdb.First(&perm, "male_user_id = ?", "m-premium").Error)
	assert.Equal(t, "f-1", perm.FemaleUserID)

	var male db.User
	require.NoError(t, gdb.First(&male, "id = ?", "m-premium").Error)
	assert.NotNil(t, male.PermanentMatchID)
}

// TestAcceptMatchBeforeReveal accepts a pending placeholder: recorded as
// the female's acceptance, but no promotion until the male reveals.
func TestAcceptMatchBeforeReveal(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)

	var placeholder db.TemporaryMatch
	require.NoError(t, gdb.First(&placeholder, "assignment_id = ?", a.ID).Error)

	both, err := svc.AcceptMatch(ctx, "f-1", placeholder.ID)
	require.NoError(t, err)
	assert.False(t, both)

	var n int64
	require.NoError(t, gdb.Model(&db.PermanentMatch{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAcceptMatchMaleForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.AcceptMatch(ctx, "m-premium", "whatever")
	requireKind(t, err, svcErr.KindForbidden)
}

func TestAcceptMatchWrongFemale(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	res, err := svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	_, err = svc.AcceptMatch(ctx, "f-2", res.TempMatch.ID)
	requireKind(t, err, svcErr.KindNotFound)
}

// TestProgressToRound2 closes round 1: flags flip once, live windows
// disengage and round-1 assignments become round_completed.
func TestProgressToRound2(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ProgressToRound2(ctx, "m-premium"))

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.Equal(t, 2, user.CurrentRound)
	assert.True(t, user.Round1Completed)
	assert.False(t, user.DecisionTimerActive)

	var assignment db.ProfileAssignment
	require.NoError(t, gdb.First(&assignment, "id = ?", a.ID).Error)
	assert.Equal(t, db.AssignmentRoundCompleted, assignment.Status)

	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "male_user_id = ?", "m-premium").Error)
	assert.Equal(t, db.TempMatchDisengaged, tm.Status)

	// Round flag flips exactly once.
	err = svc.ProgressToRound2(ctx, "m-premium")
	requireKind(t, err, svcErr.KindConflict)
}

func TestForceDisengage(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	res, err := svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ForceDisengage(ctx, res.TempMatch.ID, "policy violation"))

	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "id = ?", res.TempMatch.ID).Error)
	assert.Equal(t, db.TempMatchDisengaged, tm.Status)

	var assignment db.ProfileAssignment
	require.NoError(t, gdb.First(&assignment, "id = ?", a.ID).Error)
	assert.Equal(t, db.AssignmentDisengaged, assignment.Status)
	assert.False(t, assignment.IsSelected)

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.False(t, user.DecisionTimerActive)

	// A closed match cannot be force-disengaged again.
	err = svc.ForceDisengage(ctx, res.TempMatch.ID, "")
	requireKind(t, err, svcErr.KindConflict)
}

// TestExpireOverdueSweep advances the clock past the window and runs the
// sweep: the match expires, the assignment expires and the timer clears.
func TestExpireOverdueSweep(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)

	// Inside the window: nothing to do.
	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(49 * time.Hour)
	n, err = svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var tm db.TemporaryMatch
	require.NoError(t, gdb.First(&tm, "male_user_id = ?", "m-premium").Error)
	assert.Equal(t, db.TempMatchExpired, tm.Status)

	var assignment db.ProfileAssignment
	require.NoError(t, gdb.First(&assignment, "id = ?", a.ID).Error)
	assert.Equal(t, db.AssignmentExpired, assignment.Status)
	assert.False(t, assignment.IsSelected)

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.False(t, user.DecisionTimerActive)
	assert.Nil(t, user.DecisionTimerExpiresAt)
}

func TestBulkAssignExplicitPairs(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	stats, err := svc.BulkAssign(ctx, lifecycle.BulkAssignRequest{
		Assignments: []lifecycle.BulkPair{
			{MaleUserID: "m-premium", FemaleUserID: "f-1"},
			{MaleUserID: "m-premium", FemaleUserID: "f-1"}, // duplicate of the row just created
			{MaleUserID: "m-basic", FemaleUserID: "f-1"},   // f-1 is now taken
			{MaleUserID: "m-basic", FemaleUserID: "f-2"},
			{MaleUserID: "m-basic", FemaleUserID: "f-3"}, // basic quota is 1
			{MaleUserID: "m-unpaid", FemaleUserID: "f-3"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Requested)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.SkippedExist)
	assert.Equal(t, 1, stats.SkippedBusy)
	assert.Equal(t, 1, stats.SkippedAtQuota)
	assert.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "m-unpaid")

	var n int64
	require.NoError(t, gdb.Model(&db.ProfileAssignment{}).
		Where("status = ?", db.AssignmentAssigned).Count(&n).Error)
	assert.EqualValues(t, 2, n)

	require.NoError(t, gdb.Model(&db.TemporaryMatch{}).
		Where("status = ?", db.TempMatchPending).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestBulkAssignPairsRejectEmptyIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.BulkAssign(ctx, lifecycle.BulkAssignRequest{
		Assignments: []lifecycle.BulkPair{{MaleUserID: "m-premium"}},
	})
	requireKind(t, err, svcErr.KindValidation)
}

func TestClearHistoryResetsUser(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	a, err := svc.CreateAssignment(ctx, "m-premium")
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, "m-premium", a.ID)
	require.NoError(t, err)
	_, err = svc.ConfirmMatch(ctx, "m-premium")
	require.NoError(t, err)

	require.NoError(t, svc.ClearHistory(ctx, "m-premium"))

	for _, model := range []any{&db.ProfileAssignment{}, &db.TemporaryMatch{}, &db.PermanentMatch{}} {
		var n int64
		require.NoError(t, gdb.Model(model).Where("male_user_id = ?", "m-premium").Count(&n).Error)
		assert.Zero(t, n)
	}

	var user db.User
	require.NoError(t, gdb.First(&user, "id = ?", "m-premium").Error)
	assert.Equal(t, 1, user.CurrentRound)
	assert.False(t, user.Round1Completed)
	assert.Nil(t, user.PermanentMatchID)
	assert.Nil(t, user.TempMatchID)
}
