package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cufy/campusmatch/internal/db"
)

// PlanRepository reads the purchasable subscription tiers.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(gdb *gorm.DB) *PlanRepository {
	return &PlanRepository{db: gdb}
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]db.SubscriptionPlan, error) {
	var plans []db.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price ASC").
		Find(&plans).Error
	return plans, err
}

func (r *PlanRepository) GetByType(ctx context.Context, planType string) (*db.SubscriptionPlan, error) {
	var plan db.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("type = ?", planType).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
