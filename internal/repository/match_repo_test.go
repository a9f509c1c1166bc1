package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/cufy/campusmatch/internal/db"
	"github.com/cufy/campusmatch/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestActiveTempForMaleIgnoresPending(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	expires := time.Now().Add(48 * time.Hour)
	rows := []db.TemporaryMatch{
		{ID: "tm-pending", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.TempMatchPending, ExpiresAt: expires},
		{ID: "tm-active", MaleUserID: "m-1", FemaleUserID: "f-2", Status: db.TempMatchActive, ExpiresAt: expires},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	got, err := repo.ActiveTempForMale(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "tm-active", got.ID)

	// With only a placeholder left there is no live selection.
	require.NoError(t, dbase.Delete(&db.TemporaryMatch{}, "id = ?", "tm-active").Error)
	_, err = repo.ActiveTempForMale(ctx, "m-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDisengageActiveTempForMale(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	expires := time.Now().Add(48 * time.Hour)
	rows := []db.TemporaryMatch{
		{ID: "tm-1", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.TempMatchActive, ExpiresAt: expires},
		{ID: "tm-2", MaleUserID: "m-1", FemaleUserID: "f-2", Status: db.TempMatchPending, ExpiresAt: expires},
		{ID: "tm-3", MaleUserID: "m-1", FemaleUserID: "f-3", Status: db.TempMatchPromoted, ExpiresAt: expires},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	n, err := repo.DisengageActiveTempForMale(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var promoted db.TemporaryMatch
	require.NoError(t, dbase.First(&promoted, "id = ?", "tm-3").Error)
	assert.Equal(t, db.TempMatchPromoted, promoted.Status)
}

func TestExpireOverdueTemp(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMatchRepository(dbase)

	now := time.Now()
	rows := []db.TemporaryMatch{
		{ID: "tm-overdue", MaleUserID: "m-1", FemaleUserID: "f-1", Status: db.TempMatchActive, ExpiresAt: now.Add(-time.Hour)},
		{ID: "tm-live", MaleUserID: "m-2", FemaleUserID: "f-2", Status: db.TempMatchActive, ExpiresAt: now.Add(time.Hour)},
		{ID: "tm-closed", MaleUserID: "m-3", FemaleUserID: "f-3", Status: db.TempMatchDisengaged, ExpiresAt: now.Add(-time.Hour)},
	}
	require.NoError(t, dbase.Create(&rows).Error)

	overdue, err := repo.ExpireOverdueTemp(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "tm-overdue", overdue[0].ID)

	var flipped db.TemporaryMatch
	require.NoError(t, dbase.First(&flipped, "id = ?", "tm-overdue").Error)
	assert.Equal(t, db.TempMatchExpired, flipped.Status)

	var untouched db.TemporaryMatch
	require.NoError(t, dbase.First(&untouched, "id = ?", "tm-live").Error)
	assert.Equal(t, db.TempMatchActive, untouched.Status)
}
