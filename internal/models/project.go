package models

import "time"

// Project is the top-level unit of work. Progress and Status are derived from
// its stages; only the user-set cancelled status is written directly.
type Project struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Value       float64    `json:"value"`
	ManagerID   string     `gorm:"size:36;index" json:"managerId"`
	ManagerName string     `gorm:"size:128" json:"managerName"`
	ClientID    string     `gorm:"size:36;index" json:"clientId"`
	ClientName  string     `gorm:"size:128" json:"clientName"`
	Status      Status     `gorm:"size:16;index" json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Touch stamps CreatedAt on first save and refreshes UpdatedAt.
func (p *Project) Touch(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// Key returns the primary key.
func (p *Project) Key() string { return p.ID }

// Cancelled reports whether the project was cancelled by its manager.
func (p *Project) Cancelled() bool {
	return p.Status == StatusCancelled
}
