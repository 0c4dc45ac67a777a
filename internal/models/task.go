package models

import "time"

// Task is a leaf unit of work inside a stage. ProjectID duplicates the
// stage's project for direct lookups.
type Task struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	StageID     string    `gorm:"size:36;not null;index" json:"stageId"`
	ProjectID   string    `gorm:"size:36;not null;index" json:"projectId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Order       int       `gorm:"column:sort_order" json:"order"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Touch stamps CreatedAt on first save and refreshes UpdatedAt.
func (t *Task) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// Key returns the primary key.
func (t *Task) Key() string { return t.ID }
