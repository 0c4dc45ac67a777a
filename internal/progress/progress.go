// Package progress computes stage and project completion percentages and
// maps them onto lifecycle statuses.
//
// Stage progress is weighted by task count. Project progress is the
// unweighted mean of its stages, so a stage with one task counts as much as
// a stage with fifty.
package progress

import (
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/store"
)

// StageProgress returns round(100 * completed / total), or 0 for no tasks.
func StageProgress(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return roundDiv(100*completed, len(tasks))
}

// ProjectProgress returns the rounded mean of the stage progresses, or 0 for
// no stages.
func ProjectProgress(stageProgress []int) int {
	if len(stageProgress) == 0 {
		return 0
	}
	sum := 0
	for _, p := range stageProgress {
		sum += p
	}
	return roundDiv(sum, len(stageProgress))
}

// DeriveStatus maps a progress percentage onto a status. Cancelled is never
// derived.
func DeriveStatus(progress int) models.Status {
	switch {
	case progress >= 100:
		return models.StatusCompleted
	case progress <= 0:
		return models.StatusPending
	default:
		return models.StatusInProgress
	}
}

// roundDiv divides non-negative integers rounding half up.
func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}

// TaskSource lists tasks by parent.
type TaskSource interface {
	GetByParent(parent store.Parent, id string) ([]models.Task, error)
}

// StageSource lists stages by parent.
type StageSource interface {
	GetByParent(parent store.Parent, id string) ([]models.Stage, error)
}

// Calculator reads persisted tasks and stages and computes progress from
// them. It never writes.
type Calculator struct {
	Tasks  TaskSource
	Stages StageSource
}

// Stage returns the current progress of a stage. The only error is a failed
// read.
func (c *Calculator) Stage(stageID string) (int, error) {
	tasks, err := c.Tasks.GetByParent(store.ByStage, stageID)
	if err != nil {
		return 0, err
	}
	return StageProgress(tasks), nil
}

// Project returns the current progress of a project, recomputing each stage
// from its tasks rather than trusting the stored stage progress.
func (c *Calculator) Project(projectID string) (int, error) {
	stages, err := c.Stages.GetByParent(store.ByProject, projectID)
	if err != nil {
		return 0, err
	}
	values := make([]int, 0, len(stages))
	for _, s := range stages {
		p, err := c.Stage(s.ID)
		if err != nil {
			return 0, err
		}
		values = append(values, p)
	}
	return ProjectProgress(values), nil
}
