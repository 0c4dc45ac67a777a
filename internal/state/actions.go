package state

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
	"github.com/stageboard/stageboard/internal/store"
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("state: "+format+": %w", append(args, store.ErrInvalid)...)
}

// placeOrder returns the order to store for a child. Zero means "append":
// one past the highest sibling. A non-zero order already used by another
// sibling is rejected.
func placeOrder(want int, siblings map[string]int, self string) (int, error) {
	if want < 0 {
		return 0, invalid("order %d must not be negative", want)
	}
	if want == 0 {
		highest := 0
		for _, o := range siblings {
			if o > highest {
				highest = o
			}
		}
		return highest + 1, nil
	}
	for id, o := range siblings {
		if id != self && o == want {
			return 0, invalid("order %d is already used by %s", want, id)
		}
	}
	return want, nil
}

func (s *Store) stageOrders(projectID string) (map[string]int, error) {
	stages, err := s.stgRepo.GetByParent(store.ByProject, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stages))
	for _, st := range stages {
		out[st.ID] = st.Order
	}
	return out, nil
}

func (s *Store) taskOrders(stageID string) (map[string]int, error) {
	tasks, err := s.taskRepo.GetByParent(store.ByStage, stageID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t.Order
	}
	return out, nil
}

// fillNames derives the manager and client display names from the user
// list. A cleared ID clears its name; an ID missing from the list keeps
// whatever name the caller gave.
func (s *Store) fillNames(p *models.Project) {
	p.ManagerName = s.nameFor(p.ManagerID, p.ManagerName)
	p.ClientName = s.nameFor(p.ClientID, p.ClientName)
}

func (s *Store) nameFor(id, given string) string {
	if id == "" {
		return ""
	}
	if u, ok := s.userMap[id]; ok {
		return u.Name
	}
	return given
}

func validateProject(p *models.Project) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return invalid("project title is required")
	}
	if p.Value < 0 {
		return invalid("project value %.2f must not be negative", p.Value)
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return invalid("project end date is before its start date")
	}
	return nil
}

// AddProject creates a project. It starts pending at 0%; a project with no
// manager is assigned to the current user when that user is a manager.
func (s *Store) AddProject(p models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProject(&p); err != nil {
		return nil, s.fail(err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ManagerID == "" && s.current != nil && s.current.IsManager() {
		p.ManagerID = s.current.ID
	}
	s.fillNames(&p)
	p.Status = models.StatusPending
	p.Progress = 0

	if err := s.projRepo.Save(&p); err != nil {
		return nil, s.fail(fmt.Errorf("state: add project: %w", err))
	}
	s.projects[p.ID] = p
	s.log.Info().Str("project", p.ID).Str("title", p.Title).Msg("project created")
	return &p, nil
}

// UpdateProject replaces a project's editable fields. Progress and status
// stay as recomputed, except that a project may be moved to cancelled, and
// a cancelled project stays cancelled.
func (s *Store) UpdateProject(p models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateProject(&p); err != nil {
		return nil, s.fail(err)
	}
	stored, err := s.projRepo.GetByID(p.ID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: update project: %w", err))
	}
	if p.Status != "" && !p.Status.Valid() {
		return nil, s.fail(invalid("project status %q", p.Status))
	}
	cancel := p.Status == models.StatusCancelled

	p.CreatedAt = stored.CreatedAt
	p.Progress = stored.Progress
	p.Status = stored.Status
	if cancel {
		p.Status = models.StatusCancelled
	}
	s.fillNames(&p)

	if err := s.projRepo.Save(&p); err != nil {
		return nil, s.fail(fmt.Errorf("state: update project: %w", err))
	}
	s.projects[p.ID] = p
	return &p, nil
}

// CancelProject moves a project to the cancelled sink state.
func (s *Store) CancelProject(id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.projRepo.GetByID(id)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: cancel project: %w", err))
	}
	if p.Cancelled() {
		s.projects[p.ID] = *p
		return p, nil
	}
	p.Status = models.StatusCancelled
	if err := s.projRepo.Save(p); err != nil {
		return nil, s.fail(fmt.Errorf("state: cancel project: %w", err))
	}
	s.projects[p.ID] = *p
	s.log.Info().Str("project", p.ID).Msg("project cancelled")
	return p, nil
}

// DeleteProject removes a project. Its stages and tasks are left in place.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.projRepo.Delete(id); err != nil {
		return s.fail(fmt.Errorf("state: delete project: %w", err))
	}
	delete(s.projects, id)
	return nil
}

// AddStage appends a stage to an existing project.
func (s *Store) AddStage(st models.Stage) (*models.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Title = strings.TrimSpace(st.Title)
	if st.Title == "" {
		return nil, s.fail(invalid("stage title is required"))
	}
	if st.ProjectID == "" {
		return nil, s.fail(invalid("stage project is required"))
	}
	if _, err := s.projRepo.GetByID(st.ProjectID); err != nil {
		return nil, s.fail(fmt.Errorf("state: add stage: %w", err))
	}
	siblings, err := s.stageOrders(st.ProjectID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: add stage: %w", err))
	}
	if st.Order, err = placeOrder(st.Order, siblings, ""); err != nil {
		return nil, s.fail(err)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.Status = models.StatusPending
	st.Progress = 0

	if err := s.stgRepo.Save(&st); err != nil {
		return nil, s.fail(fmt.Errorf("state: add stage: %w", err))
	}
	s.stages[st.ID] = st

	if s.auto {
		if _, err := s.recomputeProject(st.ProjectID); err != nil {
			return &st, s.fail(err)
		}
	}
	return &st, nil
}

// UpdateStage replaces a stage's title, description and order. A stage
// cannot move to another project.
func (s *Store) UpdateStage(st models.Stage) (*models.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Title = strings.TrimSpace(st.Title)
	if st.Title == "" {
		return nil, s.fail(invalid("stage title is required"))
	}
	stored, err := s.stgRepo.GetByID(st.ID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: update stage: %w", err))
	}
	if st.ProjectID != "" && st.ProjectID != stored.ProjectID {
		return nil, s.fail(invalid("stage %s cannot move to project %s", st.ID, st.ProjectID))
	}
	st.ProjectID = stored.ProjectID
	if st.Order == 0 {
		st.Order = stored.Order
	}
	siblings, err := s.stageOrders(st.ProjectID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: update stage: %w", err))
	}
	if st.Order, err = placeOrder(st.Order, siblings, st.ID); err != nil {
		return nil, s.fail(err)
	}
	st.CreatedAt = stored.CreatedAt
	st.Progress = stored.Progress
	st.Status = stored.Status

	if err := s.stgRepo.Save(&st); err != nil {
		return nil, s.fail(fmt.Errorf("state: update stage: %w", err))
	}
	s.stages[st.ID] = st
	return &st, nil
}

// DeleteStage removes a stage. Its tasks are left in place; the project
// aggregate is recomputed without the stage.
func (s *Store) DeleteStage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectID := ""
	if st, ok := s.stages[id]; ok {
		projectID = st.ProjectID
	} else if st, err := s.stgRepo.GetByID(id); err == nil {
		projectID = st.ProjectID
	}

	if err := s.stgRepo.Delete(id); err != nil {
		return s.fail(fmt.Errorf("state: delete stage: %w", err))
	}
	delete(s.stages, id)

	if s.auto && projectID != "" {
		if _, err := s.recomputeProject(projectID); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

// resolveTaskStage checks that the task's stage exists and belongs to the
// task's project, filling ProjectID from the stage when it is empty.
func (s *Store) resolveTaskStage(t *models.Task) error {
	if t.StageID == "" {
		return invalid("task stage is required")
	}
	st, err := s.stgRepo.GetByID(t.StageID)
	if err != nil {
		return fmt.Errorf("state: task stage: %w", err)
	}
	if t.ProjectID == "" {
		t.ProjectID = st.ProjectID
	}
	if t.ProjectID != st.ProjectID {
		return invalid("task project %s does not own stage %s", t.ProjectID, t.StageID)
	}
	return nil
}

// AddTask creates a task in an existing stage. The task is returned even
// when the follow-up recompute fails, since it was persisted.
func (s *Store) AddTask(t models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, s.fail(invalid("task title is required"))
	}
	if err := s.resolveTaskStage(&t); err != nil {
		return nil, s.fail(err)
	}
	siblings, err := s.taskOrders(t.StageID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: add task: %w", err))
	}
	if t.Order, err = placeOrder(t.Order, siblings, ""); err != nil {
		return nil, s.fail(err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if err := s.taskRepo.Save(&t); err != nil {
		return nil, s.fail(fmt.Errorf("state: add task: %w", err))
	}
	s.tasks[t.ID] = t

	if s.auto {
		if _, err := s.onTaskChanged(t.ID); err != nil {
			return &t, s.fail(err)
		}
	}
	return &t, nil
}

// UpdateTask replaces a task. Moving a task to another stage recomputes
// both the stage it left and the one it joined.
func (s *Store) UpdateTask(t models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, s.fail(invalid("task title is required"))
	}
	stored, err := s.taskRepo.GetByID(t.ID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: update task: %w", err))
	}
	if t.StageID == "" {
		t.StageID = stored.StageID
	}
	moved := t.StageID != stored.StageID
	if moved && t.ProjectID == stored.ProjectID {
		t.ProjectID = ""
	}
	if err := s.resolveTaskStage(&t); err != nil {
		return nil, s.fail(err)
	}
	if t.Order == 0 && !moved {
		t.Order = stored.Order
	}
	siblings, err := s.taskOrders(t.StageID)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: update task: %w", err))
	}
	if t.Order, err = placeOrder(t.Order, siblings, t.ID); err != nil {
		return nil, s.fail(err)
	}
	t.CreatedAt = stored.CreatedAt

	if err := s.taskRepo.Save(&t); err != nil {
		return nil, s.fail(fmt.Errorf("state: update task: %w", err))
	}
	s.tasks[t.ID] = t

	if s.auto {
		if moved {
			if _, err := s.recompute(stored.StageID, stored.ProjectID); err != nil {
				return &t, s.fail(err)
			}
		}
		if _, err := s.onTaskChanged(t.ID); err != nil {
			return &t, s.fail(err)
		}
	}
	return &t, nil
}

// ToggleTask flips a task's completion.
func (s *Store) ToggleTask(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.taskRepo.GetByID(id)
	if err != nil {
		return nil, s.fail(fmt.Errorf("state: toggle task: %w", err))
	}
	t.Completed = !t.Completed
	if err := s.taskRepo.Save(t); err != nil {
		return nil, s.fail(fmt.Errorf("state: toggle task: %w", err))
	}
	s.tasks[t.ID] = *t

	if s.auto {
		if _, err := s.onTaskChanged(t.ID); err != nil {
			return t, s.fail(err)
		}
	}
	return t, nil
}

// DeleteTask removes a task and recomputes the stage and project it
// belonged to.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stageID, projectID string
	if t, ok := s.tasks[id]; ok {
		stageID, projectID = t.StageID, t.ProjectID
	} else if t, err := s.taskRepo.GetByID(id); err == nil {
		stageID, projectID = t.StageID, t.ProjectID
	}

	if err := s.taskRepo.Delete(id); err != nil {
		return s.fail(fmt.Errorf("state: delete task: %w", err))
	}
	delete(s.tasks, id)

	if s.auto && stageID != "" {
		if _, err := s.recompute(stageID, projectID); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

func (s *Store) onTaskChanged(taskID string) (propagate.Result, error) {
	res, err := s.coord.OnTaskChanged(taskID)
	s.apply(res)
	if err != nil {
		return res, fmt.Errorf("state: propagate task %s: %w", taskID, err)
	}
	return res, nil
}

func (s *Store) recompute(stageID, projectID string) (propagate.Result, error) {
	res, err := s.coord.Recompute(stageID, projectID)
	s.apply(res)
	if err != nil {
		return res, fmt.Errorf("state: propagate stage %s: %w", stageID, err)
	}
	return res, nil
}

func (s *Store) recomputeProject(projectID string) (propagate.Result, error) {
	res, err := s.coord.RecomputeProject(projectID)
	s.apply(res)
	if err != nil {
		return res, fmt.Errorf("state: propagate project %s: %w", projectID, err)
	}
	return res, nil
}
