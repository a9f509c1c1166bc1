package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/cufy/campusmatch/internal/db"
	"github.com/cufy/campusmatch/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setup in-memory DB with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func paidUser(id, gender string, createdAt time.Time) db.User {
	return db.User{
		ID:               id,
		Email:            id + "@test.com",
		FullName:         id,
		Gender:           gender,
		SubscriptionType: db.PlanBasic,
		PaymentConfirmed: true,
		CurrentRound:     1,
		CreatedAt:        createdAt,
	}
}

func TestFirstFitCandidateOrder(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewUserRepository(dbase)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []db.User{
		paidUser("m-1", db.GenderMale, base),
		paidUser("f-late", db.GenderFemale, base.Add(2*time.Hour)),
		paidUser("f-early", db.GenderFemale, base.Add(time.Hour)),
	}
	require.NoError(t, dbase.Create(&users).Error)

	got, err := repo.FirstFitCandidate(ctx, db.GenderFemale, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "f-early", got.ID)
}

func TestFirstFitCandidateExclusions(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewUserRepository(dbase)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	unpaid := paidUser("f-unpaid", db.GenderFemale, base)
	unpaid.PaymentConfirmed = false
	users := []db.User{
		paidUser("m-1", db.GenderMale, base),
		unpaid,
		paidUser("f-busy", db.GenderFemale, base.Add(time.Minute)),
		paidUser("f-history", db.GenderFemale, base.Add(2*time.Minute)),
		paidUser("f-free", db.GenderFemale, base.Add(3*time.Minute)),
	}
	require.NoError(t, dbase.Create(&users).Error)

	// f-busy holds a live assignment from another male.
	require.NoError(t, dbase.Create(&db.ProfileAssignment{
		ID: "a-busy", MaleUserID: "m-other", FemaleUserID: "f-busy",
		Status: db.AssignmentAssigned, RoundNumber: 1,
	}).Error)
	// f-history disengaged from m-1 earlier; the pair must never resurface.
	require.NoError(t, dbase.Create(&db.ProfileAssignment{
		ID: "a-history", MaleUserID: "m-1", FemaleUserID: "f-history",
		Status: db.AssignmentDisengaged, RoundNumber: 1,
	}).Error)

	got, err := repo.FirstFitCandidate(ctx, db.GenderFemale, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "f-free", got.ID)
}

func TestFirstFitCandidateExcludesMatched(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewUserRepository(dbase)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []db.User{
		paidUser("m-1", db.GenderMale, base),
		paidUser("f-locked", db.GenderFemale, base),
	}
	require.NoError(t, dbase.Create(&users).Error)
	require.NoError(t, dbase.Create(&db.PermanentMatch{
		ID: "pm-1", MaleUserID: "m-other", FemaleUserID: "f-locked",
		Status: db.PermMatchActive,
	}).Error)

	_, err := repo.FirstFitCandidate(ctx, db.GenderFemale, "m-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestValidPayerIDs(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewUserRepository(dbase)

	base := time.Now()
	unpaid := paidUser("m-unpaid", db.GenderMale, base)
	unpaid.PaymentConfirmed = false
	users := []db.User{paidUser("m-paid", db.GenderMale, base), unpaid}
	require.NoError(t, dbase.Create(&users).Error)

	valid, err := repo.ValidPayerIDs(ctx, []string{"m-paid", "m-unpaid", "m-missing"})
	require.NoError(t, err)
	assert.True(t, valid["m-paid"])
	assert.False(t, valid["m-unpaid"])
	assert.False(t, valid["m-missing"])
}
