// Package state holds the in-memory snapshot of users, projects, stages and
// tasks, and the actions that mutate it. Every action writes through to the
// repositories first and only then updates the snapshot, so a failed write
// leaves the snapshot as it was.
//
// Actions are serialized by a mutex: the dashboard calls into one Store from
// many goroutines and each action observes the one before it completed.
package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
	"github.com/stageboard/stageboard/internal/session"
	"github.com/stageboard/stageboard/internal/store"
)

var (
	// ErrLoad is recorded when the initial load fails.
	ErrLoad = errors.New("state: failed to load data")
	// ErrUnauthorized is returned by Login for unknown emails and, when
	// password verification is on, wrong passwords.
	ErrUnauthorized = errors.New("state: invalid credentials")
)

// UserRepository is the user collection plus the login lookup.
type UserRepository interface {
	store.Repository[models.User]
	GetByEmail(email string) (*models.User, error)
}

// Propagator recomputes stage and project aggregates.
type Propagator interface {
	OnTaskChanged(taskID string) (propagate.Result, error)
	Recompute(stageID, projectID string) (propagate.Result, error)
	RefreshStage(stageID string) (propagate.Result, error)
	RecomputeProject(projectID string) (propagate.Result, error)
}

// Opts holds the collaborators for a Store.
type Opts struct {
	Users       UserRepository
	Projects    store.Repository[models.Project]
	Stages      store.Repository[models.Stage]
	Tasks       store.Repository[models.Task]
	Session     session.Session
	Coordinator Propagator
	// Automatic makes task and stage mutations recompute aggregates
	// themselves. When false the caller must call OnTaskChanged.
	Automatic bool
	// VerifyPassword gates Login on a bcrypt comparison.
	VerifyPassword bool
	Logger         zerolog.Logger
}

// Store is the application state container.
type Store struct {
	mu sync.Mutex

	users    UserRepository
	projRepo store.Repository[models.Project]
	stgRepo  store.Repository[models.Stage]
	taskRepo store.Repository[models.Task]
	session  session.Session
	coord    Propagator
	auto     bool
	verify   bool
	log      zerolog.Logger

	current  *models.User
	userMap  map[string]models.User
	projects map[string]models.Project
	stages   map[string]models.Stage
	tasks    map[string]models.Task

	projectFilter models.Status
	searchTerm    string
	loading       atomic.Bool
	err           error
}

// New creates an empty Store. Call Load to populate it.
func New(opts Opts) *Store {
	s := &Store{
		users:    opts.Users,
		projRepo: opts.Projects,
		stgRepo:  opts.Stages,
		taskRepo: opts.Tasks,
		session:  opts.Session,
		coord:    opts.Coordinator,
		auto:     opts.Automatic,
		verify:   opts.VerifyPassword,
		log:      opts.Logger,
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.userMap = map[string]models.User{}
	s.projects = map[string]models.Project{}
	s.stages = map[string]models.Stage{}
	s.tasks = map[string]models.Task{}
}

// Load reads all four collections and restores the session user. The
// snapshot is replaced only once every collection has been read: on failure
// ErrLoad is recorded and the previous snapshot stays, which is empty when
// nothing was loaded before.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading.Store(true)
	defer s.loading.Store(false)

	users, err := s.users.GetAll()
	if err != nil {
		return s.failLoad(err)
	}
	projects, err := s.projRepo.GetAll()
	if err != nil {
		return s.failLoad(err)
	}
	stages, err := s.stgRepo.GetAll()
	if err != nil {
		return s.failLoad(err)
	}
	tasks, err := s.taskRepo.GetAll()
	if err != nil {
		return s.failLoad(err)
	}

	s.reset()
	for _, u := range users {
		s.userMap[u.ID] = u
	}
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	for _, st := range stages {
		s.stages[st.ID] = st
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.err = nil

	if err := s.restoreSession(); err != nil {
		s.log.Warn().Err(err).Msg("session not restored")
	}
	s.log.Debug().
		Int("users", len(users)).
		Int("projects", len(projects)).
		Int("stages", len(stages)).
		Int("tasks", len(tasks)).
		Msg("state loaded")
	return nil
}

func (s *Store) failLoad(err error) error {
	s.err = ErrLoad
	s.log.Error().Err(err).Msg("load failed")
	return fmt.Errorf("%w: %w", ErrLoad, err)
}

// restoreSession picks up the user remembered by the session backend. A
// remembered user who no longer exists is forgotten.
func (s *Store) restoreSession() error {
	s.current = nil
	u, err := s.session.Get()
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	known, ok := s.userMap[u.ID]
	if !ok {
		return s.session.Clear()
	}
	s.current = &known
	return nil
}

// Loading reports whether Load is in progress.
func (s *Store) Loading() bool { return s.loading.Load() }

// Error returns the error recorded by the last failed action, or nil.
func (s *Store) Error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearError forgets the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// SetProjectFilter sets the status filter used by FilteredProjects. The
// empty status and "all" match every project.
func (s *Store) SetProjectFilter(status models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectFilter = status
}

// ProjectFilter returns the current status filter.
func (s *Store) ProjectFilter() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectFilter
}

// SetSearchTerm sets the free-text search used by FilteredProjects.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTerm = term
}

// SearchTerm returns the current search term.
func (s *Store) SearchTerm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchTerm
}

// fail records err as the action error and returns it.
func (s *Store) fail(err error) error {
	s.err = err
	return err
}

// apply copies what a recompute wrote into the snapshot. Partial results
// are applied too: the stage may have been saved even when the project
// write failed.
func (s *Store) apply(res propagate.Result) {
	if res.Stage != nil {
		s.stages[res.Stage.ID] = *res.Stage
	}
	if res.Project != nil {
		s.projects[res.Project.ID] = *res.Project
	}
}

// OnTaskChanged recomputes the stage and project owning taskID and
// refreshes them in the snapshot. With automatic propagation off this is
// the caller's job after every task mutation.
func (s *Store) OnTaskChanged(taskID string) (propagate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.onTaskChanged(taskID)
	if err != nil {
		return res, s.fail(err)
	}
	return res, nil
}

// RecomputeProject refreshes one project's aggregate in storage and in the
// snapshot.
func (s *Store) RecomputeProject(projectID string) (propagate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.recomputeProject(projectID)
	if err != nil {
		return res, s.fail(err)
	}
	return res, nil
}

// RecomputeStage refreshes one stage and its project.
func (s *Store) RecomputeStage(stageID, projectID string) (propagate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.recompute(stageID, projectID)
	if err != nil {
		return res, s.fail(err)
	}
	return res, nil
}

// RefreshStage refreshes one stage without recomputing its project.
func (s *Store) RefreshStage(stageID string) (propagate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.coord.RefreshStage(stageID)
	s.apply(res)
	if err != nil {
		return res, s.fail(err)
	}
	return res, nil
}
