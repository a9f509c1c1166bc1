package repository_test

import (
	"context"
	"testing"

	"github.com/cufy/campusmatch/internal/db"
	"github.com/cufy/campusmatch/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSiblingsKeepsSelected(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAssignmentRepository(dbase)

	rows := []db.ProfileAssignment{
		{ID: "a-1", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.AssignmentAssigned, RoundNumber: 1},
		{ID: "a-2", MaleUserID: "m-1", FemaleUserID: "f-2", Status: db.AssignmentRevealed, RoundNumber: 1},
		{ID: "a-3", MaleUserID: "m-1", FemaleUserID: "f-3", Status: db.AssignmentDisengaged, RoundNumber: 1},
		{ID: "a-4", MaleUserID: "m-2", FemaleUserID: "f-4", Status: db.AssignmentAssigned, RoundNumber: 1},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	hidden, err := repo.UpdateSiblings(ctx, "m-1", "a-1",
		[]string{db.AssignmentAssigned, db.AssignmentRevealed},
		map[string]interface{}{"status": db.AssignmentHidden})
	require.NoError(t, err)

	// Only a-2: a-1 is kept, a-3 is not in a source status, a-4 belongs
	// to another male.
	require.Len(t, hidden, 1)
	assert.Equal(t, "a-2", hidden[0].ID)

	var kept db.ProfileAssignment
	require.NoError(t, dbase.First(&kept, "id = ?", "a-1").Error)
	assert.Equal(t, db.AssignmentAssigned, kept.Status)

	var other db.ProfileAssignment
	require.NoError(t, dbase.First(&other, "id = ?", "a-4").Error)
	assert.Equal(t, db.AssignmentAssigned, other.Status)
}

func TestCountAssignedPerRound(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAssignmentRepository(dbase)

	rows := []db.ProfileAssignment{
		{ID: "a-1", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.AssignmentAssigned, RoundNumber: 1},
		{ID: "a-2", MaleUserID: "m-1", FemaleUserID: "f-2", Status: db.AssignmentRoundCompleted, RoundNumber: 1},
		{ID: "a-3", MaleUserID: "m-1", FemaleUserID: "f-3", Status: db.AssignmentAssigned, RoundNumber: 2},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	n, err := repo.CountAssigned(ctx, "m-1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountAssigned(ctx, "m-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExistingPairKeysAndAssignedFemales(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAssignmentRepository(dbase)

	rows := []db.ProfileAssignment{
		{ID: "a-1", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.AssignmentAssigned, RoundNumber: 1},
		{ID: "a-2", MaleUserID: "m-1", FemaleUserID: "f-2", Status: db.AssignmentDisengaged, RoundNumber: 1},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	pairs, err := repo.ExistingPairKeys(ctx)
	require.NoError(t, err)
	assert.True(t, pairs["m-1:f-1"])
	assert.True(t, pairs["m-1:f-2"])
	assert.False(t, pairs["m-1:f-3"])

	busy, err := repo.AssignedFemaleIDs(ctx)
	require.NoError(t, err)
	assert.True(t, busy["f-1"])
	assert.False(t, busy["f-2"]) // disengaged rows do not hold the female
}

// TestSelectedUniqueIndex exercises the partial unique index: two
// is_selected rows for the same male must be rejected by the database
// even if application checks are bypassed.
func TestSelectedUniqueIndex(t *testing.T) {
	dbase := setupTestDB(t)

	first := db.ProfileAssignment{
		ID: "a-1", MaleUserID: "m-1", FemaleUserID: "f-1",
		Status: db.AssignmentSelected, RoundNumber: 1, IsSelected: true,
	}
	require.NoError(t, dbase.Create(&first).Error)

	second := db.ProfileAssignment{
		ID: "a-2", MaleUserID: "m-1", FemaleUserID: "f-2",
		Status: db.AssignmentSelected, RoundNumber: 1, IsSelected: true,
	}
	assert.Error(t, dbase.Create(&second).Error)

	// A non-selected second row is fine.
	third := db.ProfileAssignment{
		ID: "a-3", MaleUserID: "m-1", FemaleUserID: "f-3",
		Status: db.AssignmentHidden, RoundNumber: 1,
	}
	assert.NoError(t, dbase.Create(&third).Error)
}
