package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gender values accepted for User.Gender.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Subscription plan tiers. PlanNone means the user registered but never
// purchased a plan and is not eligible for assignments.
const (
	PlanNone    = "none"
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// ProfileAssignment.Status lifecycle values.
const (
	AssignmentAssigned       = "assigned"
	AssignmentRevealed       = "revealed"
	AssignmentSelected       = "selected"
	AssignmentHidden         = "hidden"
	AssignmentDisengaged     = "disengaged"
	AssignmentExpired        = "expired"
	AssignmentRoundCompleted = "round_completed"
)

// TemporaryMatch.Status lifecycle values.
const (
	TempMatchActive       = "active"
	TempMatchPending      = "pending"
	TempMatchDisengaged   = "disengaged"
	TempMatchPromoted     = "promoted"
	TempMatchExpired      = "expired"
	TempMatchBothAccepted = "both_accepted"
)

// PermanentMatch.Status values.
const (
	PermMatchActive   = "active"
	PermMatchInactive = "inactive"
)

// User holds the profile, subscription and the denormalized match-state
// cache (timer fields, match pointers). The cache is maintained by every
// lifecycle transition; the authoritative timer lives on TemporaryMatch.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	FullName     string `gorm:"size:128;not null"`
	Age          int
	University   string `gorm:"size:128"`
	Bio          string
	Instagram    string `gorm:"size:64"`
	ProfilePhoto string
	Gender       string `gorm:"size:16;not null;index"`
	PasswordHash string `gorm:"size:255"`

	SubscriptionType   string `gorm:"size:16;not null;default:none"`
	SubscriptionStatus string `gorm:"size:16;not null;default:inactive"`
	PaymentConfirmed   bool   `gorm:"not null;default:false"`
	PaymentProofURL    string

	CurrentRound    int  `gorm:"not null;default:1"`
	Round1Completed bool `gorm:"column:round_1_completed;not null;default:false"`
	Round2Completed bool `gorm:"column:round_2_completed;not null;default:false"`

	DecisionTimerActive    bool `gorm:"not null;default:false"`
	DecisionTimerStartedAt *time.Time
	DecisionTimerExpiresAt *time.Time
	TempMatchID            *string `gorm:"size:36"`
	PermanentMatchID       *string `gorm:"size:36"`
	MatchConfirmedAt       *time.Time

	IsSuspended bool `gorm:"not null;default:false"`
	IsBanned    bool `gorm:"not null;default:false"`
	IsVerified  bool `gorm:"not null;default:false"`

	LastActivityAt *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// ProfileAssignment is a proposed male/female pairing awaiting the male's
// decision.
//
// Invariant: at most one row per male user may carry is_selected = true.
// The application enforces it inside the reveal transaction; the partial
// unique index one_selected_per_male backs it at the database level.
//
// A female user may appear in several concurrent assignments to different
// males; exclusivity starts only once a selection promotes one pairing.
type ProfileAssignment struct {
	ID           string `gorm:"primaryKey;size:36"`
	MaleUserID   string `gorm:"size:36;not null;index:idx_assignments_male_status,priority:1"`
	FemaleUserID string `gorm:"size:36;not null;index:idx_assignments_female"`
	Status       string `gorm:"size:24;not null;default:assigned;index:idx_assignments_male_status,priority:2"`
	RoundNumber  int    `gorm:"not null;default:1"`

	IsSelected     bool `gorm:"not null;default:false"`
	MaleRevealed   bool `gorm:"not null;default:false"`
	FemaleRevealed bool `gorm:"not null;default:false"`

	AssignedAt     time.Time `gorm:"autoCreateTime"`
	RevealedAt     *time.Time
	SelectedAt     *time.Time
	DisengagedAt   *time.Time
	TimerStartedAt *time.Time
	TimerExpiresAt *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (a *ProfileAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// TemporaryMatch is the time-boxed decision window created when a male
// reveals an assignment. Terminated by promotion, disengage or expiry.
type TemporaryMatch struct {
	ID           string  `gorm:"primaryKey;size:36"`
	MaleUserID   string  `gorm:"size:36;not null;index:idx_temp_matches_male_status,priority:1"`
	FemaleUserID string  `gorm:"size:36;not null;index:idx_temp_matches_female"`
	AssignmentID *string `gorm:"size:36;index"`
	Status       string  `gorm:"size:24;not null;default:active;index:idx_temp_matches_male_status,priority:2"`
	RoundNumber  int     `gorm:"not null;default:1"`

	MaleAccepted     bool `gorm:"not null;default:false"`
	FemaleAccepted   bool `gorm:"not null;default:false"`
	MaleAcceptedAt   *time.Time
	FemaleAcceptedAt *time.Time

	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (m *TemporaryMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PermanentMatch is the confirmed, durable pairing. Immutable after
// creation except for the status flip to inactive by admin action.
type PermanentMatch struct {
	ID               string  `gorm:"primaryKey;size:36"`
	TemporaryMatchID *string `gorm:"size:36"`
	MaleUserID       string  `gorm:"size:36;not null;index"`
	FemaleUserID     string  `gorm:"size:36;not null;index"`
	Status           string  `gorm:"size:16;not null;default:active"`

	MatchedAt time.Time `gorm:"autoCreateTime"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (m *PermanentMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SubscriptionPlan is a purchasable tier shown during onboarding.
type SubscriptionPlan struct {
	ID       string `gorm:"primaryKey;size:36"`
	Type     string `gorm:"size:16;not null;uniqueIndex"`
	Name     string `gorm:"size:64;not null"`
	Price    int    `gorm:"not null"`
	Features string
	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// UserAction is an audit row. Writes are best effort and never fail the
// parent operation.
type UserAction struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:36;not null;index"`
	ActionType   string `gorm:"size:32;not null"`
	TargetUserID string `gorm:"size:36"`
	Details      string

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (a *UserAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
