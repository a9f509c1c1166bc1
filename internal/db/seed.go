package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with demo users for
// local development.
//
// Behavior:
//  1. Clears every domain table.
//  2. Creates the two purchasable plans.
//  3. Creates 20 users (10 male, 10 female) with hashed passwords; males
//     get a mix of premium, basic and unpaid accounts.
//  4. Creates a handful of assignments so the dashboards are not empty.
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	tables := []string{
		"user_actions",
		"permanent_matches",
		"temporary_matches",
		"profile_assignments",
		"subscription_plans",
		"users",
	}
	for _, t := range tables {
		if err := gdb.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	log.Println("Cleared existing data")

	plans := []SubscriptionPlan{
		{Type: PlanBasic, Name: "Basic", Price: 99, Features: "1 profile per round"},
		{Type: PlanPremium, Name: "Premium", Price: 249, Features: "2 profiles in round 1, 3 in round 2"},
	}
	if err := gdb.Create(&plans).Error; err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}

	universities := []string{"IIT Delhi", "DU North Campus", "Jamia", "NSUT", "IP University"}

	var maleIDs, femaleIDs []string
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gender := GenderMale
		if i > 10 {
			gender = GenderFemale
		}

		plan := PlanPremium
		if i%3 == 0 {
			plan = PlanBasic
		}
		paymentConfirmed := true
		if gender == GenderMale && i%5 == 0 {
			// Leave a couple of unpaid males to exercise the eligibility gate.
			plan = PlanNone
			paymentConfirmed = false
		}

		status := "active"
		if !paymentConfirmed {
			status = "inactive"
		}

		user := User{
			Email:              fmt.Sprintf("user%d@example.com", i),
			FullName:           fmt.Sprintf("Demo User %d", i),
			Age:                19 + r.Intn(6),
			University:         universities[i%len(universities)],
			Gender:             gender,
			PasswordHash:       string(hash),
			SubscriptionType:   plan,
			SubscriptionStatus: status,
			PaymentConfirmed:   paymentConfirmed,
			CurrentRound:       1,
		}
		if err := gdb.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		if gender == GenderMale {
			maleIDs = append(maleIDs, user.ID)
		} else {
			femaleIDs = append(femaleIDs, user.ID)
		}
	}
	log.Println("Seeded 20 users.")

	// A few starter assignments so the first dashboard load shows data.
	// One female per male, no overlaps.
	n := len(maleIDs)
	if len(femaleIDs) < n {
		n = len(femaleIDs)
	}
	if n > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		assignment := ProfileAssignment{
			MaleUserID:   maleIDs[i],
			FemaleUserID: femaleIDs[i],
			Status:       AssignmentAssigned,
			RoundNumber:  1,
			AssignedAt:   time.Now(),
		}
		if err := gdb.Create(&assignment).Error; err != nil {
			return fmt.Errorf("failed to seed assignment: %w", err)
		}
	}
	log.Printf("Seeded %d assignments.", n)

	return nil
}

// SeedMinimalTestData loads the smallest fixture that exercises the full
// lifecycle: one premium male, one basic male and three paid females.
func SeedMinimalTestData(gdb *gorm.DB) error {
	tables := []string{
		"user_actions",
		"permanent_matches",
		"temporary_matches",
		"profile_assignments",
		"subscription_plans",
		"users",
	}
	for _, t := range tables {
		if err := gdb.Exec("DELETE FROM " + t).Error; err != nil {
			return err
		}
	}

	plans := []SubscriptionPlan{
		{Type: PlanBasic, Name: "Basic", Price: 99},
		{Type: PlanPremium, Name: "Premium", Price: 249},
	}
	if err := gdb.Create(&plans).Error; err != nil {
		return err
	}

	users := []User{
		{ID: "m-premium", Email: "m1@test.com", FullName: "Male Premium", Gender: GenderMale,
			SubscriptionType: PlanPremium, SubscriptionStatus: "active", PaymentConfirmed: true, CurrentRound: 1},
		{ID: "m-basic", Email: "m2@test.com", FullName: "Male Basic", Gender: GenderMale,
			SubscriptionType: PlanBasic, SubscriptionStatus: "active", PaymentConfirmed: true, CurrentRound: 1},
		{ID: "f-1", Email: "f1@test.com", FullName: "Female One", Gender: GenderFemale,
			SubscriptionType: PlanBasic, SubscriptionStatus: "active", PaymentConfirmed: true, CurrentRound: 1},
		{ID: "f-2", Email: "f2@test.com", FullName: "Female Two", Gender: GenderFemale,
			SubscriptionType: PlanBasic, SubscriptionStatus: "active", PaymentConfirmed: true, CurrentRound: 1},
		{ID: "f-3", Email: "f3@test.com", FullName: "Female Three", Gender: GenderFemale,
			SubscriptionType: PlanBasic, SubscriptionStatus: "active", PaymentConfirmed: true, CurrentRound: 1},
	}
	if err := gdb.Create(&users).Error; err != nil {
		return err
	}

	return nil
}
