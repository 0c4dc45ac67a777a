// Package events publishes recompute results to NATS so other services can
// follow project progress.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
)

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Close()
}

// Aggregate is the published view of one recomputed stage or project.
type Aggregate struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	OldStatus   models.Status `json:"oldStatus"`
	NewStatus   models.Status `json:"newStatus"`
	OldProgress int           `json:"oldProgress"`
	NewProgress int           `json:"newProgress"`
}

// ProgressEvent is the JSON payload of one published message.
type ProgressEvent struct {
	ProjectID string     `json:"projectId"`
	StageID   string     `json:"stageId,omitempty"`
	Stage     *Aggregate `json:"stage,omitempty"`
	Project   Aggregate  `json:"project"`
	At        time.Time  `json:"at"`
}

// Publisher implements propagate.Listener by publishing every recompute.
type Publisher struct {
	conn    conn
	subject string
	log     zerolog.Logger
	now     func() time.Time
}

// Connect dials the NATS server at url and returns a Publisher for subject.
func Connect(url, subject string, log zerolog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("stageboard"))
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	log.Info().Str("url", url).Str("subject", subject).Msg("events publisher connected")
	return NewPublisher(nc, subject, log), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(c conn, subject string, log zerolog.Logger) *Publisher {
	return &Publisher{conn: c, subject: subject, log: log, now: time.Now}
}

// Event builds the payload for a recompute result.
func Event(r propagate.Result, at time.Time) ProgressEvent {
	ev := ProgressEvent{
		ProjectID: r.ProjectChange.ID,
		Project:   aggregate(r.ProjectChange),
		At:        at.UTC(),
	}
	if r.StageChange != nil {
		a := aggregate(*r.StageChange)
		ev.Stage = &a
		ev.StageID = a.ID
	}
	return ev
}

func aggregate(c propagate.Change) Aggregate {
	return Aggregate{
		ID:          c.ID,
		Title:       c.Title,
		OldStatus:   c.OldStatus,
		NewStatus:   c.NewStatus,
		OldProgress: c.OldProgress,
		NewProgress: c.NewProgress,
	}
}

// Publish sends the event for r.
func (p *Publisher) Publish(r propagate.Result) error {
	data, err := json.Marshal(Event(r, p.now()))
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", p.subject, err)
	}
	return nil
}

// ProgressChanged implements propagate.Listener. Publish failures are
// logged, never returned to the action.
func (p *Publisher) ProgressChanged(r propagate.Result) {
	if err := p.Publish(r); err != nil {
		p.log.Warn().Err(err).Str("project", r.ProjectChange.ID).Msg("progress event not published")
	}
}

// Close closes the connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
