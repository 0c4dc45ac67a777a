package announce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
)

func stageCompleted() propagate.Result {
	return propagate.Result{
		Project: &models.Project{Title: "Website"},
		StageChange: &propagate.Change{
			Title:       "Design",
			OldStatus:   models.StatusInProgress,
			NewStatus:   models.StatusCompleted,
			OldProgress: 50,
			NewProgress: 100,
		},
		ProjectChange: propagate.Change{
			Title:       "Website",
			OldStatus:   models.StatusInProgress,
			NewStatus:   models.StatusInProgress,
			OldProgress: 25,
			NewProgress: 50,
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMessage_StageOnly(t *testing.T) {
	msg, ok := Message(stageCompleted())
	if !ok {
		t.Fatal("expected a message")
	}
	if len(msg.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(msg.Events))
	}
	if msg.Text != "Stage Design completed" {
		t.Errorf("Text = %q", msg.Text)
	}
}

func TestMessage_StageAndProject(t *testing.T) {
	r := stageCompleted()
	r.ProjectChange.NewStatus = models.StatusCompleted
	r.ProjectChange.NewProgress = 100

	msg, ok := Message(r)
	if !ok {
		t.Fatal("expected a message")
	}
	if len(msg.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(msg.Events))
	}
	if msg.Events[1].Title != "Project Website completed" {
		t.Errorf("project event = %q", msg.Events[1].Title)
	}
}

func TestMessage_ProgressOnly(t *testing.T) {
	r := stageCompleted()
	r.StageChange.NewStatus = models.StatusInProgress
	if _, ok := Message(r); ok {
		t.Error("progress-only change should not announce")
	}

	r.StageChange = nil
	if _, ok := Message(r); ok {
		t.Error("nil stage change should not announce")
	}
}

func TestAnnouncer_RunDelivers(t *testing.T) {
	mock := NewMockAdapter()
	a := New(Opts{Adapters: []Adapter{mock}, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.ProgressChanged(stageCompleted())
	waitFor(t, func() bool { return mock.SentCount() == 1 })

	last, ok := mock.LastSent()
	if !ok || last.Text != "Stage Design completed" {
		t.Errorf("LastSent() = %+v, %v", last, ok)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAnnouncer_SkipsUnchangedStatus(t *testing.T) {
	mock := NewMockAdapter()
	a := New(Opts{Adapters: []Adapter{mock}, Logger: zerolog.Nop(), QueueSize: 1})

	r := stageCompleted()
	r.StageChange = nil
	a.ProgressChanged(r)
	if len(a.queue) != 0 {
		t.Errorf("queue len = %d, want 0", len(a.queue))
	}
}

func TestAnnouncer_FullQueueDrops(t *testing.T) {
	a := New(Opts{Logger: zerolog.Nop(), QueueSize: 1})

	a.ProgressChanged(stageCompleted())
	a.ProgressChanged(stageCompleted()) // must not block
	if len(a.queue) != 1 {
		t.Errorf("queue len = %d, want 1", len(a.queue))
	}
}

func TestAnnouncer_DeliverJoinsErrors(t *testing.T) {
	ok := NewMockAdapter()
	bad := NewMockAdapter()
	bad.SetSendError(errors.New("boom"))
	a := New(Opts{Adapters: []Adapter{bad, ok}, Logger: zerolog.Nop()})

	msg, _ := Message(stageCompleted())
	err := a.Deliver(context.Background(), msg)
	if err == nil || err.Error() != "boom" {
		t.Errorf("Deliver() error = %v, want boom", err)
	}
	if ok.SentCount() != 1 {
		t.Errorf("healthy adapter sent %d, want 1", ok.SentCount())
	}
}

func TestAnnouncer_Close(t *testing.T) {
	m1, m2 := NewMockAdapter(), NewMockAdapter()
	a := New(Opts{Adapters: []Adapter{m1, m2}, Logger: zerolog.Nop()})
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !m1.Closed() || !m2.Closed() {
		t.Error("expected every adapter closed")
	}
	if err := m1.Send(context.Background(), OutboundMessage{}); err == nil {
		t.Error("send after close should fail")
	}
}

func TestNew_Defaults(t *testing.T) {
	a := New(Opts{Logger: zerolog.Nop()})
	if cap(a.queue) != defaultQueueSize {
		t.Errorf("queue cap = %d, want %d", cap(a.queue), defaultQueueSize)
	}
	if a.timeout != defaultSendTimeout {
		t.Errorf("timeout = %v, want %v", a.timeout, defaultSendTimeout)
	}
}

func TestAnnouncer_Flush(t *testing.T) {
	mock := NewMockAdapter()
	a := New(Opts{Adapters: []Adapter{mock}, Logger: zerolog.Nop()})

	a.ProgressChanged(stageCompleted())
	a.ProgressChanged(stageCompleted())
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if mock.SentCount() != 2 {
		t.Errorf("SentCount() = %d, want 2", mock.SentCount())
	}
	if len(a.queue) != 0 {
		t.Errorf("queue len = %d, want 0", len(a.queue))
	}

	mock.SetSendError(errors.New("down"))
	a.ProgressChanged(stageCompleted())
	if err := a.Flush(context.Background()); err == nil {
		t.Error("expected Flush to report the send failure")
	}
}
