package repository

import (
	"context"
	"time"

	"github.com/cufy/campusmatch/internal/db"

	"gorm.io/gorm"
)

// MatchRepository provides data access for TemporaryMatch and
// PermanentMatch rows.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB
// connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) CreateTemp(ctx context.Context, m *db.TemporaryMatch) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MatchRepository) TempByID(ctx context.Context, id string) (*db.TemporaryMatch, error) {
	var m db.TemporaryMatch
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ActiveTempForMale returns the male user's running decision window, if
// any. Pending rows are pre-reveal placeholders and do not count.
func (r *MatchRepository) ActiveTempForMale(ctx context.Context, maleUserID string) (*db.TemporaryMatch, error) {
	var m db.TemporaryMatch
	err := r.db.WithContext(ctx).
		First(&m, "male_user_id = ? AND status = ?", maleUserID, db.TempMatchActive).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// TempForAssignment returns the temp match referencing an assignment, used
// by the idempotent double-reveal path.
func (r *MatchRepository) TempForAssignment(ctx context.Context, assignmentID string) (*db.TemporaryMatch, error) {
	var m db.TemporaryMatch
	err := r.db.WithContext(ctx).
		First(&m, "assignment_id = ?", assignmentID).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ActiveTempForFemale lists live selections pointed at a female user, the
// backbone of her dashboard. Pending placeholders stay invisible until
// the male reveals.
func (r *MatchRepository) ActiveTempForFemale(ctx context.Context, femaleUserID string) ([]db.TemporaryMatch, error) {
	var rows []db.TemporaryMatch
	err := r.db.WithContext(ctx).
		Where("female_user_id = ? AND status = ?", femaleUserID, db.TempMatchActive).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) ListTempByMaleIDs(ctx context.Context, maleUserIDs []string) ([]db.TemporaryMatch, error) {
	var rows []db.TemporaryMatch
	err := r.db.WithContext(ctx).
		Where("male_user_id IN ?", maleUserIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) ListAllTemp(ctx context.Context) ([]db.TemporaryMatch, error) {
	var rows []db.TemporaryMatch
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) UpdateTempFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&db.TemporaryMatch{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// DisengageActiveTempForMale turns every live window of a male user into
// disengaged and reports how many rows changed.
func (r *MatchRepository) DisengageActiveTempForMale(ctx context.Context, maleUserID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.TemporaryMatch{}).
		Where("male_user_id = ? AND status IN ?", maleUserID,
			[]string{db.TempMatchActive, db.TempMatchPending}).
		Update("status", db.TempMatchDisengaged)
	return res.RowsAffected, res.Error
}

func (r *MatchRepository) DeleteTempForMale(ctx context.Context, maleUserID string) error {
	return r.db.WithContext(ctx).
		Delete(&db.TemporaryMatch{}, "male_user_id = ?", maleUserID).Error
}

func (r *MatchRepository) DeleteTempForAssignment(ctx context.Context, assignmentID string) error {
	return r.db.WithContext(ctx).
		Delete(&db.TemporaryMatch{}, "assignment_id = ?", assignmentID).Error
}

// ExpireOverdueTemp flips live windows whose expires_at has passed. The
// sweeper calls this on a schedule; dashboard reads still lazily check
// expires_at themselves so a stopped sweeper never surfaces stale timers.
func (r *MatchRepository) ExpireOverdueTemp(ctx context.Context, now time.Time) ([]db.TemporaryMatch, error) {
	var overdue []db.TemporaryMatch
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?",
			[]string{db.TempMatchActive, db.TempMatchPending}, now).
		Find(&overdue).Error
	if err != nil {
		return nil, err
	}
	if len(overdue) == 0 {
		return nil, nil
	}

	ids := make([]string, len(overdue))
	for i, m := range overdue {
		ids[i] = m.ID
	}
	err = r.db.WithContext(ctx).
		Model(&db.TemporaryMatch{}).
		Where("id IN ?", ids).
		Update("status", db.TempMatchExpired).Error
	if err != nil {
		return nil, err
	}
	return overdue, nil
}

func (r *MatchRepository) CreatePerm(ctx context.Context, m *db.PermanentMatch) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MatchRepository) ActivePermForMale(ctx context.Context, maleUserID string) (*db.PermanentMatch, error) {
	var m db.PermanentMatch
	err := r.db.WithContext(ctx).
		First(&m, "male_user_id = ? AND status = ?", maleUserID, db.PermMatchActive).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) ActivePermForFemale(ctx context.Context, femaleUserID string) ([]db.PermanentMatch, error) {
	var rows []db.PermanentMatch
	err := r.db.WithContext(ctx).
		Where("female_user_id = ? AND status = ?", femaleUserID, db.PermMatchActive).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) ListPermByMaleIDs(ctx context.Context, maleUserIDs []string) ([]db.PermanentMatch, error) {
	var rows []db.PermanentMatch
	err := r.db.WithContext(ctx).
		Where("male_user_id IN ?", maleUserIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) ListAllPerm(ctx context.Context) ([]db.PermanentMatch, error) {
	var rows []db.PermanentMatch
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MatchRepository) DeletePermForMale(ctx context.Context, maleUserID string) error {
	return r.db.WithContext(ctx).
		Delete(&db.PermanentMatch{}, "male_user_id = ?", maleUserID).Error
}
