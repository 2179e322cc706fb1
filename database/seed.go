package database

import (
	"errors"
	"fmt"
	"os"

	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/auth"
	"gorm.io/gorm"
)

// RunSeeds populates a fresh database with an admin account and a small
// course catalog for local development. Existing rows are left alone, so
// re-running is safe.
func RunSeeds(db *gorm.DB) error {
	if err := seedAdmin(db); err != nil {
		return err
	}
	return seedCourses(db)
}

// seedAdmin creates the admin user from ADMIN_EMAIL / ADMIN_PASSWORD.
// Skipped when either variable is unset.
func seedAdmin(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Println("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin user")
		return nil
	}

	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		fmt.Printf("Admin user %s already exists, skipping\n", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Admin",
		Role:         model.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	fmt.Printf("Created admin user %s\n", email)
	return nil
}

func seedCourses(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("Courses already seeded (%d rows), skipping\n", count)
		return nil
	}

	capped := 25
	courses := []model.Course{
		{
			Title:       "Distributed Systems Cohort",
			Description: "Consensus, replication and failure handling over eight weeks of labs.",
			Price:       50000,
			Currency:    "NGN",
			Status:      model.CourseStatusPublished,
			MaxStudents: &capped,
		},
		{
			Title:       "Backend Engineering with Go",
			Description: "HTTP services, databases and deployment from scratch.",
			Price:       35000,
			Currency:    "NGN",
			Status:      model.CourseStatusPublished,
		},
		{
			Title:       "Product Analytics Fundamentals",
			Description: "Metrics, experimentation and dashboards for product teams.",
			Price:       20000,
			Currency:    "NGN",
			Status:      model.CourseStatusDraft,
		},
	}

	for i := range courses {
		if err := db.Create(&courses[i]).Error; err != nil {
			return fmt.Errorf("failed to seed course %q: %w", courses[i].Title, err)
		}
	}

	fmt.Printf("Seeded %d courses\n", len(courses))
	return nil
}
