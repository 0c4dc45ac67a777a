package state

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/db"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
	"github.com/stageboard/stageboard/internal/session"
	"github.com/stageboard/stageboard/internal/store"
	"gorm.io/gorm"
)

type harness struct {
	db      *gorm.DB
	session *session.Memory
	store   *Store
	opts    Opts
}

func newHarness(t *testing.T, automatic bool) *harness {
	t.Helper()
	return newHarnessWith(t, func(o *Opts) { o.Automatic = automatic })
}

func newHarnessWith(t *testing.T, tweak func(*Opts)) *harness {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	projects := store.NewProjects(gdb)
	stages := store.NewStages(gdb)
	tasks := store.NewTasks(gdb)
	sess := session.NewMemory()
	opts := Opts{
		Users:    store.NewUsers(gdb),
		Projects: projects,
		Stages:   stages,
		Tasks:    tasks,
		Session:  sess,
		Coordinator: propagate.New(propagate.Opts{
			Tasks:    tasks,
			Stages:   stages,
			Projects: projects,
			Logger:   zerolog.Nop(),
		}),
		Automatic: true,
		Logger:    zerolog.Nop(),
	}
	if tweak != nil {
		tweak(&opts)
	}
	s := New(opts)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return &harness{db: gdb, session: sess, store: s, opts: opts}
}

func (h *harness) register(t *testing.T, name, email string, role models.Role) *models.User {
	t.Helper()
	u, err := h.store.Register(name, email, "pw-"+name, role)
	if err != nil {
		t.Fatalf("Register %s: %v", email, err)
	}
	return u
}

func (h *harness) project(t *testing.T, title string) *models.Project {
	t.Helper()
	p, err := h.store.AddProject(models.Project{Title: title})
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	return p
}

func (h *harness) stage(t *testing.T, projectID, title string) *models.Stage {
	t.Helper()
	st, err := h.store.AddStage(models.Stage{ProjectID: projectID, Title: title})
	if err != nil {
		t.Fatalf("AddStage: %v", err)
	}
	return st
}

func (h *harness) task(t *testing.T, stageID, title string, completed bool) *models.Task {
	t.Helper()
	task, err := h.store.AddTask(models.Task{StageID: stageID, Title: title, Completed: completed})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	return task
}

func (h *harness) assertStage(t *testing.T, id string, progress int, status models.Status) {
	t.Helper()
	st, err := h.store.Stage(id)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if st.Progress != progress || st.Status != status {
		t.Errorf("stage %s = %d/%s, want %d/%s", st.Title, st.Progress, st.Status, progress, status)
	}
}

func (h *harness) assertProject(t *testing.T, id string, progress int, status models.Status) {
	t.Helper()
	p, err := h.store.Project(id)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if p.Progress != progress || p.Status != status {
		t.Errorf("project %s = %d/%s, want %d/%s", p.Title, p.Progress, p.Status, progress, status)
	}
}

func TestLoad_ReadsAllCollectionsAndSession(t *testing.T) {
	h := newHarness(t, true)
	u := h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	if _, err := h.store.Login("joao@empresa.com", "anything"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	p := h.project(t, "Website")
	st := h.stage(t, p.ID, "Design")
	h.task(t, st.ID, "Wireframes", true)

	fresh := New(h.opts)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(fresh.Users()); got != 1 {
		t.Errorf("users = %d, want 1", got)
	}
	if got := len(fresh.Projects()); got != 1 {
		t.Errorf("projects = %d, want 1", got)
	}
	if got := len(fresh.Stages(p.ID)); got != 1 {
		t.Errorf("stages = %d, want 1", got)
	}
	if got := len(fresh.Tasks(st.ID)); got != 1 {
		t.Errorf("tasks = %d, want 1", got)
	}
	cur := fresh.CurrentUser()
	if cur == nil || cur.ID != u.ID {
		t.Errorf("CurrentUser = %+v, want restored %s", cur, u.ID)
	}
	if fresh.Loading() {
		t.Error("Loading() = true after Load returned")
	}
}

func TestLoad_ForgetsUnknownSessionUser(t *testing.T) {
	h := newHarness(t, true)
	if err := h.session.Set(&models.User{ID: "ghost", Email: "ghost@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cur := h.store.CurrentUser(); cur != nil {
		t.Errorf("CurrentUser = %+v, want nil", cur)
	}
	if u, _ := h.session.Get(); u != nil {
		t.Errorf("session still holds %+v", u)
	}
}

func TestLoad_FailureLeavesEmptyState(t *testing.T) {
	h := newHarness(t, true)
	p := h.project(t, "Website")
	h.stage(t, p.ID, "Design")

	if err := h.db.Migrator().DropTable(&models.Task{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	fresh := New(h.opts)
	err := fresh.Load()
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("error = %v, want ErrLoad", err)
	}
	if !errors.Is(err, store.ErrPersistence) {
		t.Errorf("error = %v, want to wrap ErrPersistence", err)
	}
	if got := fresh.Error(); got != ErrLoad {
		t.Errorf("Error() = %v, want ErrLoad", got)
	}
	if got := len(fresh.Projects()); got != 0 {
		t.Errorf("projects = %d, want 0 after failed load", got)
	}
	if got := len(fresh.Stages(p.ID)); got != 0 {
		t.Errorf("stages = %d, want 0 after failed load", got)
	}

	fresh.ClearError()
	if fresh.Error() != nil {
		t.Error("ClearError did not clear")
	}
}

func TestLoad_FailedReloadKeepsSnapshot(t *testing.T) {
	h := newHarness(t, true)
	u := h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	if _, err := h.store.Login(u.Email, ""); err != nil {
		t.Fatal(err)
	}
	p := h.project(t, "Website")
	st := h.stage(t, p.ID, "Design")
	h.task(t, st.ID, "Wireframes", true)

	if err := h.db.Migrator().DropTable(&models.Task{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if err := h.store.Load(); !errors.Is(err, ErrLoad) {
		t.Fatalf("error = %v, want ErrLoad", err)
	}
	if got := h.store.Error(); got != ErrLoad {
		t.Errorf("Error() = %v, want ErrLoad", got)
	}
	if got := len(h.store.Projects()); got != 1 {
		t.Errorf("projects = %d, want 1 kept", got)
	}
	if got := len(h.store.Stages(p.ID)); got != 1 {
		t.Errorf("stages = %d, want 1 kept", got)
	}
	if got := len(h.store.Tasks(st.ID)); got != 1 {
		t.Errorf("tasks = %d, want 1 kept", got)
	}
	if cur := h.store.CurrentUser(); cur == nil || cur.ID != u.ID {
		t.Errorf("CurrentUser = %+v, want %s kept", cur, u.ID)
	}
}

func TestLogin_AnyPasswordForKnownEmail(t *testing.T) {
	h := newHarness(t, true)
	h.register(t, "Maria", "maria@cliente.com", models.RoleClient)

	u, err := h.store.Login("maria@cliente.com", "definitely-wrong")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Role != models.RoleClient {
		t.Errorf("Role = %q, want client", u.Role)
	}
	stored, _ := h.session.Get()
	if stored == nil || stored.ID != u.ID {
		t.Errorf("session = %+v, want %s", stored, u.ID)
	}

	if _, err := h.store.Login("nobody@example.com", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown email error = %v, want ErrUnauthorized", err)
	}
	if _, err := h.store.Login("  ", "x"); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("blank email error = %v, want ErrInvalid", err)
	}
	if !errors.Is(h.store.Error(), store.ErrInvalid) {
		t.Errorf("Error() = %v, want the last failure recorded", h.store.Error())
	}
}

func TestLogin_VerifyPassword(t *testing.T) {
	h := newHarnessWith(t, func(o *Opts) { o.VerifyPassword = true })
	h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	if _, err := h.store.Register("Nopass", "nopass@empresa.com", "", models.RoleClient); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := h.store.Login("joao@empresa.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong password error = %v, want ErrUnauthorized", err)
	}
	if h.store.CurrentUser() != nil {
		t.Error("failed login should not set the current user")
	}
	if _, err := h.store.Login("joao@empresa.com", "pw-Joao"); err != nil {
		t.Errorf("right password: %v", err)
	}
	if _, err := h.store.Login("nopass@empresa.com", ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("user without hash error = %v, want ErrUnauthorized", err)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t, true)
	h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	if _, err := h.store.Login("joao@empresa.com", ""); err != nil {
		t.Fatal(err)
	}
	h.store.Logout()
	if h.store.CurrentUser() != nil {
		t.Error("CurrentUser should be nil after Logout")
	}
	if u, _ := h.session.Get(); u != nil {
		t.Errorf("session = %+v, want cleared", u)
	}
	h.store.Logout()
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t, true)
	h.register(t, "Joao", "joao@empresa.com", models.RoleManager)

	tests := []struct {
		name, uname, email string
		role               models.Role
	}{
		{"missing name", "", "a@b.com", models.RoleClient},
		{"malformed email", "Ana", "not-an-email", models.RoleClient},
		{"unknown role", "Ana", "ana@b.com", models.Role("admin")},
		{"duplicate email", "Other", "joao@empresa.com", models.RoleClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.store.Register(tt.uname, tt.email, "pw", tt.role)
			if !errors.Is(err, store.ErrInvalid) {
				t.Errorf("error = %v, want ErrInvalid", err)
			}
		})
	}
	if got := len(h.store.Users()); got != 1 {
		t.Errorf("users = %d, want 1", got)
	}
}

func TestAddProject_DefaultsAndManager(t *testing.T) {
	h := newHarness(t, true)
	mgr := h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	client := h.register(t, "Maria", "maria@cliente.com", models.RoleClient)
	if _, err := h.store.Login(mgr.Email, ""); err != nil {
		t.Fatal(err)
	}

	p, err := h.store.AddProject(models.Project{
		Title:    "  Website  ",
		ClientID: client.ID,
		Status:   models.StatusCompleted,
		Progress: 80,
	})
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if p.ID == "" {
		t.Error("ID should be generated")
	}
	if p.Title != "Website" {
		t.Errorf("Title = %q, want trimmed", p.Title)
	}
	if p.Status != models.StatusPending || p.Progress != 0 {
		t.Errorf("derived fields = %d/%s, want 0/pending", p.Progress, p.Status)
	}
	if p.ManagerID != mgr.ID || p.ManagerName != "Joao" {
		t.Errorf("manager = %s/%s, want current user", p.ManagerID, p.ManagerName)
	}
	if p.ClientName != "Maria" {
		t.Errorf("ClientName = %q, want Maria", p.ClientName)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}

	if _, err := h.store.AddProject(models.Project{Title: " "}); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("blank title error = %v, want ErrInvalid", err)
	}
	if _, err := h.store.AddProject(models.Project{Title: "x", Value: -1}); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("negative value error = %v, want ErrInvalid", err)
	}
}

func TestUpdateProject_KeepsDerivedFields(t *testing.T) {
	h := newHarness(t, true)
	p := h.project(t, "Website")
	st := h.stage(t, p.ID, "Design")
	h.task(t, st.ID, "Wireframes", true)
	h.task(t, st.ID, "Mockups", false)

	edit := *p
	edit.Title = "Website v2"
	edit.Progress = 100
	edit.Status = models.StatusCompleted
	got, err := h.store.UpdateProject(edit)
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.Title != "Website v2" {
		t.Errorf("Title = %q, want Website v2", got.Title)
	}
	if got.Progress != 50 || got.Status != models.StatusInProgress {
		t.Errorf("derived = %d/%s, want recomputed 50/in_progress", got.Progress, got.Status)
	}

	edit.Status = models.StatusCancelled
	got, err = h.store.UpdateProject(edit)
	if err != nil {
		t.Fatalf("UpdateProject cancel: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}

	edit.Status = models.StatusPending
	got, err = h.store.UpdateProject(edit)
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Errorf("Status = %q, want cancelled to stick", got.Status)
	}

	if _, err := h.store.UpdateProject(models.Project{ID: "missing", Title: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing project error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProject_ReassignRefreshesNames(t *testing.T) {
	h := newHarness(t, true)
	joao := h.register(t, "Joao", "joao@empresa.com", models.RoleManager)
	ana := h.register(t, "Ana", "ana@empresa.com", models.RoleManager)
	maria := h.register(t, "Maria", "maria@cliente.com", models.RoleClient)
	bruno := h.register(t, "Bruno", "bruno@cliente.com", models.RoleClient)

	p, err := h.store.AddProject(models.Project{Title: "Website", ManagerID: joao.ID, ClientID: maria.ID})
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	edit := *p
	edit.ManagerID = ana.ID
	edit.ClientID = bruno.ID
	got, err := h.store.UpdateProject(edit)
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.ManagerName != "Ana" || got.ClientName != "Bruno" {
		t.Errorf("names = %s/%s, want Ana/Bruno", got.ManagerName, got.ClientName)
	}
	if _, err := h.store.Login(ana.Email, ""); err != nil {
		t.Fatal(err)
	}
	if n := len(h.store.QueryProjects(Query{Search: "bruno"})); n != 1 {
		t.Errorf("search bruno = %d projects, want 1", n)
	}
	if n := len(h.store.QueryProjects(Query{Search: "maria"})); n != 0 {
		t.Errorf("search maria = %d projects, want 0", n)
	}

	edit = *got
	edit.ClientID = ""
	got, err = h.store.UpdateProject(edit)
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got.ClientName != "" {
		t.Errorf("ClientName = %q, want cleared with the client", got.ClientName)
	}
}

func TestCancelProject_IsSink(t *testing.T) {
	h := newHarness(t, true)
	p := h.project(t, "Website")
	st := h.stage(t, p.ID, "Design")
	task := h.task(t, st.ID, "Wireframes", false)

	if _, err := h.store.CancelProject(p.ID); err != nil {
		t.Fatalf("CancelProject: %v", err)
	}
	if _, err := h.store.ToggleTask(task.ID); err != nil {
		t.Fatalf("ToggleTask: %v", err)
	}
	h.assertStage(t, st.ID, 100, models.StatusCompleted)
	h.assertProject(t, p.ID, 0, models.StatusCancelled)

	again, err := h.store.CancelProject(p.ID)
	if err != nil {
		t.Fatalf("second CancelProject: %v", err)
	}
	if again.Status != models.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", again.Status)
	}
}

func TestDeleteProject_NoCascade(t *testing.T) {
	h := newHarness(t, true)
	p := h.project(t, "Website")
	st := h.stage(t, p.ID, "Design")

	if err := h.store.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := h.store.Project(p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Project error = %v, want ErrNotFound", err)
	}
	if _, err := h.store.Stage(st.ID); err != nil {
		t.Errorf("stage should survive project deletion: %v", err)
	}
}
