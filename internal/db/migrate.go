package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stageboard/stageboard/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Stage{},
		&models.Task{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SampleUser describes a development account created by SeedUsers.
type SampleUser struct {
	Name     string
	Email    string
	Role     models.Role
	Password string
}

// DefaultSampleUsers are the accounts seeded into an empty database.
var DefaultSampleUsers = []SampleUser{
	{Name: "Joao Silva", Email: "joao@empresa.com", Role: models.RoleManager, Password: "manager"},
	{Name: "Maria Santos", Email: "maria@cliente.com", Role: models.RoleClient, Password: "client"},
}

// SeedUsers inserts the sample users when the users table is empty. It
// returns the number of users created.
func SeedUsers(db *gorm.DB, users []SampleUser) (int, error) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("db: count users: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now()
	for _, su := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("db: hash password for %s: %w", su.Email, err)
		}
		u := models.User{
			ID:           uuid.NewString(),
			Name:         su.Name,
			Email:        su.Email,
			Role:         su.Role,
			PasswordHash: string(hash),
			CreatedAt:    now,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&u)
		if result.Error != nil {
			return 0, fmt.Errorf("db: seed user %s: %w", su.Email, result.Error)
		}
	}
	return len(users), nil
}
