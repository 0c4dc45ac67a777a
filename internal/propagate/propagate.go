// Package propagate rolls task completion up into the owning stage and
// project and persists the recomputed aggregates.
package propagate

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/progress"
	"github.com/stageboard/stageboard/internal/store"
)

// Policy decides how recomputation treats cancelled projects.
type Policy struct {
	// TrackCancelledProgress keeps refreshing a cancelled project's progress.
	// Its status stays cancelled either way.
	TrackCancelledProgress bool
	// FreezeCancelledStages stops recomputing stages whose project is
	// cancelled.
	FreezeCancelledStages bool
}

// Change describes one recomputed aggregate.
type Change struct {
	ID          string
	Title       string
	OldStatus   models.Status
	NewStatus   models.Status
	OldProgress int
	NewProgress int
	// Skipped is set when the record was left untouched, by the policy or
	// because the recompute did not cover it.
	Skipped bool
}

// StatusChanged reports whether the recompute moved the record to another
// lifecycle status.
func (c Change) StatusChanged() bool {
	return !c.Skipped && c.OldStatus != c.NewStatus
}

// Result is what a recompute wrote. Stage is nil for project-only
// recomputes.
type Result struct {
	Stage         *models.Stage
	Project       *models.Project
	StageChange   *Change
	ProjectChange Change
}

// Listener observes successful recomputes. Implementations must not block
// for long; they run inline with the action that triggered them.
type Listener interface {
	ProgressChanged(r Result)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(r Result)

// ProgressChanged calls f(r).
func (f ListenerFunc) ProgressChanged(r Result) { f(r) }

// Opts holds the collaborators for a Coordinator.
type Opts struct {
	Tasks     store.Repository[models.Task]
	Stages    store.Repository[models.Stage]
	Projects  store.Repository[models.Project]
	Policy    Policy
	Logger    zerolog.Logger
	Listeners []Listener
}

// Coordinator recomputes and persists stage and project aggregates after a
// task changes.
type Coordinator struct {
	tasks     store.Repository[models.Task]
	stages    store.Repository[models.Stage]
	projects  store.Repository[models.Project]
	calc      *progress.Calculator
	policy    Policy
	log       zerolog.Logger
	listeners []Listener
}

// New creates a Coordinator.
func New(opts Opts) *Coordinator {
	return &Coordinator{
		tasks:     opts.Tasks,
		stages:    opts.Stages,
		projects:  opts.Projects,
		calc:      &progress.Calculator{Tasks: opts.Tasks, Stages: opts.Stages},
		policy:    opts.Policy,
		log:       opts.Logger,
		listeners: opts.Listeners,
	}
}

// AddListener registers l for future recomputes.
func (c *Coordinator) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// OnTaskChanged recomputes the stage and project that own taskID. It fails
// with store.ErrNotFound when the task is gone.
func (c *Coordinator) OnTaskChanged(taskID string) (Result, error) {
	task, err := c.tasks.GetByID(taskID)
	if err != nil {
		return Result{}, fmt.Errorf("propagate: load task: %w", err)
	}
	return c.Recompute(task.StageID, task.ProjectID)
}

// Recompute refreshes a stage and then its project. A failure on the stage
// aborts before the project is touched. A failure on the project leaves the
// stage write in place; there is no rollback.
func (c *Coordinator) Recompute(stageID, projectID string) (Result, error) {
	var res Result

	stage, err := c.stages.GetByID(stageID)
	if err != nil {
		return res, fmt.Errorf("propagate: load stage: %w", err)
	}
	frozen := false
	if c.policy.FreezeCancelledStages {
		owner, err := c.projects.GetByID(projectID)
		if err != nil {
			return res, fmt.Errorf("propagate: load project: %w", err)
		}
		frozen = owner.Cancelled()
	}
	stageChange, err := c.refreshStage(stage, frozen)
	if err != nil {
		return res, err
	}
	res.Stage = stage
	res.StageChange = &stageChange

	project, err := c.projects.GetByID(projectID)
	if err != nil {
		return res, fmt.Errorf("propagate: load project: %w", err)
	}
	projectChange, err := c.refreshProject(project)
	if err != nil {
		return res, err
	}
	res.Project = project
	res.ProjectChange = projectChange

	c.notify(res)
	return res, nil
}

// RecomputeProject refreshes only the project aggregate, for changes that
// add or remove whole stages.
func (c *Coordinator) RecomputeProject(projectID string) (Result, error) {
	var res Result
	project, err := c.projects.GetByID(projectID)
	if err != nil {
		return res, fmt.Errorf("propagate: load project: %w", err)
	}
	change, err := c.refreshProject(project)
	if err != nil {
		return res, err
	}
	res.Project = project
	res.ProjectChange = change
	c.notify(res)
	return res, nil
}

// RefreshStage recomputes one stage and leaves its project alone. The
// result carries the project as stored, marked Skipped. Callers refreshing
// several stages of a project follow up with one RecomputeProject.
func (c *Coordinator) RefreshStage(stageID string) (Result, error) {
	var res Result

	stage, err := c.stages.GetByID(stageID)
	if err != nil {
		return res, fmt.Errorf("propagate: load stage: %w", err)
	}
	project, err := c.projects.GetByID(stage.ProjectID)
	if err != nil {
		return res, fmt.Errorf("propagate: load project: %w", err)
	}
	frozen := c.policy.FreezeCancelledStages && project.Cancelled()
	stageChange, err := c.refreshStage(stage, frozen)
	if err != nil {
		return res, err
	}
	res.Stage = stage
	res.StageChange = &stageChange
	res.Project = project
	res.ProjectChange = Change{
		ID:          project.ID,
		Title:       project.Title,
		OldStatus:   project.Status,
		NewStatus:   project.Status,
		OldProgress: project.Progress,
		NewProgress: project.Progress,
		Skipped:     true,
	}

	c.notify(res)
	return res, nil
}

func (c *Coordinator) refreshStage(stage *models.Stage, frozen bool) (Change, error) {
	change := Change{
		ID:          stage.ID,
		Title:       stage.Title,
		OldStatus:   stage.Status,
		NewStatus:   stage.Status,
		OldProgress: stage.Progress,
		NewProgress: stage.Progress,
	}
	if frozen {
		change.Skipped = true
		c.log.Debug().Str("stage", stage.ID).Msg("stage of cancelled project left untouched")
		return change, nil
	}

	p, err := c.calc.Stage(stage.ID)
	if err != nil {
		return change, fmt.Errorf("propagate: stage %s progress: %w", stage.ID, err)
	}
	stage.Progress = p
	stage.Status = progress.DeriveStatus(p)
	if err := c.stages.Save(stage); err != nil {
		return change, fmt.Errorf("propagate: save stage: %w", err)
	}
	change.NewProgress = stage.Progress
	change.NewStatus = stage.Status

	c.log.Debug().
		Str("stage", stage.ID).
		Int("progress", stage.Progress).
		Str("status", string(stage.Status)).
		Msg("stage recomputed")
	return change, nil
}

func (c *Coordinator) refreshProject(project *models.Project) (Change, error) {
	change := Change{
		ID:          project.ID,
		Title:       project.Title,
		OldStatus:   project.Status,
		NewStatus:   project.Status,
		OldProgress: project.Progress,
		NewProgress: project.Progress,
	}
	if project.Cancelled() && !c.policy.TrackCancelledProgress {
		change.Skipped = true
		c.log.Debug().Str("project", project.ID).Msg("cancelled project left untouched")
		return change, nil
	}

	p, err := c.calc.Project(project.ID)
	if err != nil {
		return change, fmt.Errorf("propagate: project %s progress: %w", project.ID, err)
	}
	project.Progress = p
	if !project.Cancelled() {
		project.Status = progress.DeriveStatus(p)
	}
	if err := c.projects.Save(project); err != nil {
		return change, fmt.Errorf("propagate: save project: %w", err)
	}
	change.NewProgress = project.Progress
	change.NewStatus = project.Status

	c.log.Debug().
		Str("project", project.ID).
		Int("progress", project.Progress).
		Str("status", string(project.Status)).
		Msg("project recomputed")
	return change, nil
}

func (c *Coordinator) notify(res Result) {
	for _, l := range c.listeners {
		l.ProgressChanged(res)
	}
}
