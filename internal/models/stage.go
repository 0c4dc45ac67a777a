package models

import "time"

// Stage is an ordered phase of a project. Progress and Status are derived
// from its tasks.
type Stage struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string    `gorm:"size:36;not null;index" json:"projectId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Order       int       `gorm:"column:sort_order" json:"order"`
	Status      Status    `gorm:"size:16" json:"status"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Touch stamps CreatedAt on first save and refreshes UpdatedAt.
func (s *Stage) Touch(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// Key returns the primary key.
func (s *Stage) Key() string { return s.ID }
