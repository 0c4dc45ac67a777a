package models

import "time"

// User is a manager or client account. Users are immutable after registration.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role         Role      `gorm:"size:16;not null" json:"role"`
	PasswordHash string    `gorm:"size:72" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsManager reports whether the user manages projects.
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// Touch stamps CreatedAt on first save. Users carry no UpdatedAt.
func (u *User) Touch(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
}

// Key returns the primary key.
func (u *User) Key() string { return u.ID }
