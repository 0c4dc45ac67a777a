package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/stageboard/stageboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Parent names the foreign-key column used by GetByParent.
type Parent string

const (
	ByProject Parent = "project_id"
	ByStage   Parent = "stage_id"
)

// Record is implemented by every persisted entity.
type Record interface {
	Key() string
	Touch(now time.Time)
}

// Repository is the read/write contract for one entity kind.
type Repository[T any] interface {
	GetAll() ([]T, error)
	GetByID(id string) (*T, error)
	GetByParent(parent Parent, id string) ([]T, error)
	Save(v *T) error
	Delete(id string) error
}

// GormRepo implements Repository over a gorm connection.
type GormRepo[T any] struct {
	db      *gorm.DB
	kind    string
	order   string
	parents map[Parent]bool
	now     func() time.Time
}

func newGormRepo[T any](db *gorm.DB, kind, order string, parents ...Parent) *GormRepo[T] {
	allowed := make(map[Parent]bool, len(parents))
	for _, p := range parents {
		allowed[p] = true
	}
	return &GormRepo[T]{db: db, kind: kind, order: order, parents: allowed, now: time.Now}
}

// NewProjects returns the project repository.
func NewProjects(db *gorm.DB) *GormRepo[models.Project] {
	return newGormRepo[models.Project](db, "project", "created_at ASC, id ASC")
}

// NewStages returns the stage repository. Stages are listed by project.
func NewStages(db *gorm.DB) *GormRepo[models.Stage] {
	return newGormRepo[models.Stage](db, "stage", "sort_order ASC, created_at ASC", ByProject)
}

// NewTasks returns the task repository. Tasks are listed by stage or project.
func NewTasks(db *gorm.DB) *GormRepo[models.Task] {
	return newGormRepo[models.Task](db, "task", "sort_order ASC, created_at ASC", ByStage, ByProject)
}

// GetAll returns every record of this kind.
func (r *GormRepo[T]) GetAll() ([]T, error) {
	var out []T
	if err := r.db.Order(r.order).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list %ss: %w: %w", r.kind, ErrPersistence, err)
	}
	return out, nil
}

// GetByID returns the record with the given ID, or ErrNotFound.
func (r *GormRepo[T]) GetByID(id string) (*T, error) {
	var v T
	if err := r.db.Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: %s %s: %w", r.kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get %s %s: %w: %w", r.kind, id, ErrPersistence, err)
	}
	return &v, nil
}

// GetByParent returns the children of a parent, in display order.
func (r *GormRepo[T]) GetByParent(parent Parent, id string) ([]T, error) {
	if !r.parents[parent] {
		return nil, fmt.Errorf("store: %ss cannot be listed by %s: %w", r.kind, parent, ErrInvalid)
	}
	var out []T
	if err := r.db.Where(string(parent)+" = ?", id).Order(r.order).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list %ss by %s %s: %w: %w", r.kind, parent, id, ErrPersistence, err)
	}
	return out, nil
}

// Save upserts by ID and refreshes the timestamps.
func (r *GormRepo[T]) Save(v *T) error {
	rec, ok := any(v).(Record)
	if !ok {
		return fmt.Errorf("store: %s does not implement Record: %w", r.kind, ErrInvalid)
	}
	if rec.Key() == "" {
		return fmt.Errorf("store: save %s without id: %w", r.kind, ErrInvalid)
	}
	rec.Touch(r.now())
	if err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(v).Error; err != nil {
		return fmt.Errorf("store: save %s %s: %w: %w", r.kind, rec.Key(), ErrPersistence, err)
	}
	return nil
}

// Delete removes the record. Deleting an absent ID is not an error.
func (r *GormRepo[T]) Delete(id string) error {
	var v T
	if err := r.db.Where("id = ?", id).Delete(&v).Error; err != nil {
		return fmt.Errorf("store: delete %s %s: %w: %w", r.kind, id, ErrPersistence, err)
	}
	return nil
}
