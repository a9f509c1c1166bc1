package repository

import (
	"context"

	"github.com/cufy/campusmatch/internal/db"

	"gorm.io/gorm"
)

// AssignmentRepository provides data access methods for ProfileAssignment.
// All lifecycle transitions that touch several rows go through one of these
// methods inside a single transaction held by the caller.
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new repository bound to the given DB
// connection.
func NewAssignmentRepository(database *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: database}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *db.ProfileAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*db.ProfileAssignment, error) {
	var a db.ProfileAssignment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOwned fetches an assignment and verifies it belongs to the given male
// user in one query.
func (r *AssignmentRepository) GetOwned(ctx context.Context, id, maleUserID string) (*db.ProfileAssignment, error) {
	var a db.ProfileAssignment
	err := r.db.WithContext(ctx).
		First(&a, "id = ? AND male_user_id = ?", id, maleUserID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetPair returns the assignment between a male/female pair in any status,
// or gorm.ErrRecordNotFound. Any row at all blocks a re-offer.
func (r *AssignmentRepository) GetPair(ctx context.Context, maleUserID, femaleUserID string) (*db.ProfileAssignment, error) {
	var a db.ProfileAssignment
	err := r.db.WithContext(ctx).
		First(&a, "male_user_id = ? AND female_user_id = ?", maleUserID, femaleUserID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAssigned counts status = assigned rows for a male user within one
// round. Compared against the plan quota before creating another.
func (r *AssignmentRepository) CountAssigned(ctx context.Context, maleUserID string, round int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Where("male_user_id = ? AND round_number = ? AND status = ?", maleUserID, round, db.AssignmentAssigned).
		Count(&count).Error
	return count, err
}

// CountAssignedForFemale counts status = assigned rows pointing at a
// female user. A female may sit in several concurrent assignments; this
// feeds the admin view and the female-side eligibility check.
func (r *AssignmentRepository) CountAssignedForFemale(ctx context.Context, femaleUserID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Where("female_user_id = ? AND status = ?", femaleUserID, db.AssignmentAssigned).
		Count(&count).Error
	return count, err
}

// ListForMale returns a male user's assignments filtered to the given
// statuses; with no statuses it returns everything.
func (r *AssignmentRepository) ListForMale(ctx context.Context, maleUserID string, statuses ...string) ([]db.ProfileAssignment, error) {
	q := r.db.WithContext(ctx).Where("male_user_id = ?", maleUserID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var rows []db.ProfileAssignment
	if err := q.Order("assigned_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AssignmentRepository) ListByMaleIDs(ctx context.Context, maleUserIDs []string) ([]db.ProfileAssignment, error) {
	var rows []db.ProfileAssignment
	err := r.db.WithContext(ctx).
		Where("male_user_id IN ?", maleUserIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Selected returns the one is_selected row for a male user, if any.
func (r *AssignmentRepository) Selected(ctx context.Context, maleUserID string) (*db.ProfileAssignment, error) {
	var a db.ProfileAssignment
	err := r.db.WithContext(ctx).
		First(&a, "male_user_id = ? AND is_selected = ?", maleUserID, true).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateFields applies a partial update to one assignment row.
func (r *AssignmentRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateSiblings applies fields to every other assignment of the same male
// user currently in one of fromStatuses, returning the affected rows.
// Reveal uses it to hide competing options; disengage uses it to close
// them out as history. Rows are never deleted here, so every pair that
// was ever offered stays on record.
func (r *AssignmentRepository) UpdateSiblings(ctx context.Context, maleUserID, keepID string, fromStatuses []string, fields map[string]interface{}) ([]db.ProfileAssignment, error) {
	var siblings []db.ProfileAssignment
	err := r.db.WithContext(ctx).
		Where("male_user_id = ? AND id <> ? AND status IN ?", maleUserID, keepID, fromStatuses).
		Find(&siblings).Error
	if err != nil {
		return nil, err
	}
	if len(siblings) == 0 {
		return nil, nil
	}

	ids := make([]string, len(siblings))
	for i, s := range siblings {
		ids[i] = s.ID
	}
	err = r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Where("id IN ?", ids).
		Updates(fields).Error
	if err != nil {
		return nil, err
	}
	return siblings, nil
}

// CompleteRound closes out a male user's still-open assignments for one
// round, marking them round_completed.
func (r *AssignmentRepository) CompleteRound(ctx context.Context, maleUserID string, round int) error {
	return r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Where("male_user_id = ? AND round_number = ? AND status IN ?", maleUserID, round,
			[]string{db.AssignmentAssigned, db.AssignmentRevealed, db.AssignmentHidden, db.AssignmentSelected}).
		Update("status", db.AssignmentRoundCompleted).Error
}

// DeleteForMale wipes every assignment of a male user (admin clear history).
func (r *AssignmentRepository) DeleteForMale(ctx context.Context, maleUserID string) error {
	return r.db.WithContext(ctx).
		Delete(&db.ProfileAssignment{}, "male_user_id = ?", maleUserID).Error
}

// ExistingPairKeys returns the set of "maleID:femaleID" keys that already
// have an assignment row. Used by bulk assignment duplicate skipping.
func (r *AssignmentRepository) ExistingPairKeys(ctx context.Context) (map[string]bool, error) {
	var rows []db.ProfileAssignment
	err := r.db.WithContext(ctx).
		Select("male_user_id", "female_user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(rows))
	for _, a := range rows {
		keys[a.MaleUserID+":"+a.FemaleUserID] = true
	}
	return keys, nil
}

// AssignedFemaleIDs returns the females currently held by a status =
// assigned row. A female carries at most one concurrent assignment, so
// bulk assignment skips everyone in this set.
func (r *AssignmentRepository) AssignedFemaleIDs(ctx context.Context) (map[string]bool, error) {
	var rows []db.ProfileAssignment
	err := r.db.WithContext(ctx).
		Select("female_user_id").
		Where("status = ?", db.AssignmentAssigned).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool, len(rows))
	for _, a := range rows {
		busy[a.FemaleUserID] = true
	}
	return busy, nil
}

// CountByStatus aggregates assignment rows per status for the bulk-assign
// stats endpoint.
func (r *AssignmentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&db.ProfileAssignment{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
