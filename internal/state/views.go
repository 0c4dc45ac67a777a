package state

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/progress"
	"github.com/stageboard/stageboard/internal/store"
)

// FilterAll matches projects of every status.
const FilterAll models.Status = "all"

// SortField names a project attribute FilteredProjects can sort by.
type SortField string

const (
	SortTitle     SortField = "title"
	SortStartDate SortField = "start_date"
	SortEndDate   SortField = "end_date"
	SortValue     SortField = "value"
	SortProgress  SortField = "progress"
	SortUpdatedAt SortField = "updated_at"
)

// Valid reports whether f is a known sort field. The empty field sorts by
// UpdatedAt.
func (f SortField) Valid() bool {
	switch f {
	case "", SortTitle, SortStartDate, SortEndDate, SortValue, SortProgress, SortUpdatedAt:
		return true
	}
	return false
}

// SortOptions orders a project list.
type SortOptions struct {
	Field SortField
	Desc  bool
}

// Query is a stateless project list request: the status filter, search
// term and sort that FilteredProjects reads from the Store.
type Query struct {
	Status models.Status
	Search string
	Sort   SortOptions
}

// Stats summarizes the projects visible to the current user.
type Stats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	InProgress      int     `json:"inProgress"`
	Completed       int     `json:"completed"`
	Cancelled       int     `json:"cancelled"`
	TotalValue      float64 `json:"totalValue"`
	AverageProgress int     `json:"averageProgress"`
}

// Users returns every user by name.
func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.userMap))
	for _, u := range s.userMap {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Projects returns every project in creation order.
func (s *Store) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allProjects()
}

func (s *Store) allProjects() []models.Project {
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Project returns one project from the snapshot.
func (s *Store) Project(id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("state: project %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

// Stage returns one stage from the snapshot.
func (s *Store) Stage(id string) (*models.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[id]
	if !ok {
		return nil, fmt.Errorf("state: stage %s: %w", id, store.ErrNotFound)
	}
	return &st, nil
}

// Task returns one task from the snapshot.
func (s *Store) Task(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("state: task %s: %w", id, store.ErrNotFound)
	}
	return &t, nil
}

// Stages returns a project's stages in display order.
func (s *Store) Stages(projectID string) []models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Stage
	for _, st := range s.stages {
		if st.ProjectID == projectID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return ordered(out[i].Order, out[j].Order, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

// Tasks returns a stage's tasks in display order.
func (s *Store) Tasks(stageID string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.StageID == stageID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return ordered(out[i].Order, out[j].Order, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func ordered(oi, oj int, ci, cj time.Time, idi, idj string) bool {
	if oi != oj {
		return oi < oj
	}
	if !ci.Equal(cj) {
		return ci.Before(cj)
	}
	return idi < idj
}

// VisibleProjects returns the projects the current user takes part in:
// managers see the projects they manage, clients the projects they
// commissioned. Nobody logged in sees nothing.
func (s *Store) VisibleProjects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible()
}

func (s *Store) visible() []models.Project {
	if s.current == nil {
		return []models.Project{}
	}
	out := []models.Project{}
	for _, p := range s.allProjects() {
		switch s.current.Role {
		case models.RoleManager:
			if p.ManagerID == s.current.ID {
				out = append(out, p)
			}
		case models.RoleClient:
			if p.ClientID == s.current.ID {
				out = append(out, p)
			}
		}
	}
	return out
}

// FilteredProjects applies the stored status filter and search term to the
// visible projects and sorts the result.
func (s *Store) FilteredProjects(opts SortOptions) []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterProjects(s.visible(), Query{Status: s.projectFilter, Search: s.searchTerm, Sort: opts})
}

// QueryProjects is FilteredProjects with the filter and search given
// explicitly, leaving the stored ones alone.
func (s *Store) QueryProjects(q Query) []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterProjects(s.visible(), q)
}

func filterProjects(projects []models.Project, q Query) []models.Project {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := []models.Project{}
	for _, p := range projects {
		if q.Status != "" && q.Status != FilterAll && p.Status != q.Status {
			continue
		}
		if term != "" && !matches(p, term) {
			continue
		}
		out = append(out, p)
	}

	less := projectLess(q.Sort.Field)
	sort.SliceStable(out, func(i, j int) bool {
		if q.Sort.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func matches(p models.Project, term string) bool {
	for _, field := range []string{p.Title, p.Description, p.ClientName, p.ManagerName} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func projectLess(field SortField) func(a, b models.Project) bool {
	switch field {
	case SortTitle:
		return func(a, b models.Project) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case SortStartDate:
		return func(a, b models.Project) bool { return timeOf(a.StartDate).Before(timeOf(b.StartDate)) }
	case SortEndDate:
		return func(a, b models.Project) bool { return timeOf(a.EndDate).Before(timeOf(b.EndDate)) }
	case SortValue:
		return func(a, b models.Project) bool { return a.Value < b.Value }
	case SortProgress:
		return func(a, b models.Project) bool { return a.Progress < b.Progress }
	default:
		return func(a, b models.Project) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
}

// Stats counts the visible projects by status and averages their progress.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects := s.visible()
	st := Stats{Total: len(projects)}
	progresses := make([]int, 0, len(projects))
	for _, p := range projects {
		switch p.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusInProgress:
			st.InProgress++
		case models.StatusCompleted:
			st.Completed++
		case models.StatusCancelled:
			st.Cancelled++
		}
		st.TotalValue += p.Value
		progresses = append(progresses, p.Progress)
	}
	st.AverageProgress = progress.ProjectProgress(progresses)
	return st
}

// RecentProjects returns up to n visible projects, most recently updated
// first.
func (s *Store) RecentProjects(n int) []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := filterProjects(s.visible(), Query{Sort: SortOptions{Field: SortUpdatedAt, Desc: true}})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
