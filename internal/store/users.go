package store

import (
	"errors"
	"fmt"

	"github.com/stageboard/stageboard/internal/models"
	"gorm.io/gorm"
)

// Users is the user repository with an email lookup on top of the
// generic operations.
type Users struct {
	*GormRepo[models.User]
}

// NewUsers returns the user repository.
func NewUsers(db *gorm.DB) *Users {
	return &Users{GormRepo: newGormRepo[models.User](db, "user", "created_at ASC, id ASC")}
}

// GetByEmail returns the user registered with email, or ErrNotFound.
func (u *Users) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := u.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: user with email %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get user by email: %w: %w", ErrPersistence, err)
	}
	return &user, nil
}
