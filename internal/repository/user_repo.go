package repository

import (
	"context"

	"github.com/cufy/campusmatch/internal/db"

	"gorm.io/gorm"
)

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB
// connection. Bind it to a transaction handle inside compound transitions.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateFields applies a partial update to one user row.
func (r *UserRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// FirstFitCandidate returns the first eligible opposite-gender candidate
// for forUserID, or gorm.ErrRecordNotFound when the pool is empty.
//
// Eligibility:
//   - requested gender, payment confirmed, a real subscription plan;
//   - not present in any status = assigned row (either side);
//   - no assignment history with forUserID in any status; a disengaged
//     pair must never be re-offered;
//   - not locked by an active permanent match.
//
// First-fit by registration order, no ranking or compatibility scoring.
func (r *UserRepository) FirstFitCandidate(ctx context.Context, gender, forUserID string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Where("gender = ? AND payment_confirmed = ? AND subscription_type <> ?", gender, true, db.PlanNone).
		Where(`NOT EXISTS (
			SELECT 1 FROM profile_assignments pa
			WHERE pa.status = ?
			  AND (pa.male_user_id = users.id OR pa.female_user_id = users.id)
		)`, db.AssignmentAssigned).
		Where(`NOT EXISTS (
			SELECT 1 FROM profile_assignments ph
			WHERE (ph.male_user_id = users.id AND ph.female_user_id = ?)
			   OR (ph.female_user_id = users.id AND ph.male_user_id = ?)
		)`, forUserID, forUserID).
		Where(`NOT EXISTS (
			SELECT 1 FROM permanent_matches pm
			WHERE pm.status = ?
			  AND (pm.male_user_id = users.id OR pm.female_user_id = users.id)
		)`, db.PermMatchActive).
		Order("created_at ASC").
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListMales returns paid male users, optionally filtered by plan type.
// Ordered newest first, matching the admin console listing.
func (r *UserRepository) ListMales(ctx context.Context, planType string) ([]db.User, error) {
	q := r.db.WithContext(ctx).
		Where("gender = ? AND payment_confirmed = ?", db.GenderMale, true)
	if planType != "" && planType != "all" {
		q = q.Where("subscription_type = ?", planType)
	}

	var users []db.User
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ListFemales(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("gender = ?", db.GenderFemale).
		Order("created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]db.User, error) {
	var users []db.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ValidPayerIDs filters ids down to those with a confirmed payment and an
// active subscription. Used by bulk assignment validation.
func (r *UserRepository) ValidPayerIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	var rows []db.User
	err := r.db.WithContext(ctx).
		Select("id").
		Where("id IN ?", ids).
		Where("payment_confirmed = ? AND subscription_type <> ?", true, db.PlanNone).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	valid := make(map[string]bool, len(rows))
	for _, u := range rows {
		valid[u.ID] = true
	}
	return valid, nil
}
