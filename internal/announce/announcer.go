package announce

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/propagate"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
)

// Announcer turns recompute results into chat messages. ProgressChanged
// only queues; Run delivers, so a slow chat API never holds up the action
// that triggered the recompute.
type Announcer struct {
	adapters []Adapter
	log      zerolog.Logger
	queue    chan OutboundMessage
	timeout  time.Duration
}

// Opts holds parameters for creating an Announcer.
type Opts struct {
	Adapters    []Adapter
	Logger      zerolog.Logger
	QueueSize   int           // default 64
	SendTimeout time.Duration // per adapter send, default 10s
}

// New creates an Announcer.
func New(opts Opts) *Announcer {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Announcer{
		adapters: opts.Adapters,
		log:      opts.Logger,
		queue:    make(chan OutboundMessage, size),
		timeout:  timeout,
	}
}

// Message builds the announcement for a recompute, or reports false when
// neither the stage nor the project changed status.
func Message(r propagate.Result) (OutboundMessage, bool) {
	var events []FormattedEvent
	if r.StageChange != nil && r.StageChange.StatusChanged() {
		projectTitle := ""
		if r.Project != nil {
			projectTitle = r.Project.Title
		}
		events = append(events, FormatStageTransition(*r.StageChange, projectTitle))
	}
	if r.ProjectChange.StatusChanged() {
		events = append(events, FormatProjectTransition(r.ProjectChange))
	}
	if len(events) == 0 {
		return OutboundMessage{}, false
	}
	return OutboundMessage{Text: events[0].Title, Events: events}, true
}

// ProgressChanged implements propagate.Listener. A full queue drops the
// message.
func (a *Announcer) ProgressChanged(r propagate.Result) {
	msg, ok := Message(r)
	if !ok {
		return
	}
	select {
	case a.queue <- msg:
	default:
		a.log.Warn().Str("text", msg.Text).Msg("announce queue full, dropping message")
	}
}

// Run delivers queued messages until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.queue:
			if err := a.Deliver(ctx, msg); err != nil {
				a.log.Error().Err(err).Str("text", msg.Text).Msg("announce failed")
			}
		}
	}
}

// Deliver sends msg to every adapter and joins their errors.
func (a *Announcer) Deliver(ctx context.Context, msg OutboundMessage) error {
	var errs []error
	for _, ad := range a.adapters {
		sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
		err := ad.Send(sendCtx, msg)
		cancel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.log.Debug().Str("platform", ad.Name()).Str("text", msg.Text).Msg("announced")
	}
	return errors.Join(errs...)
}

// Close closes every adapter.
func (a *Announcer) Close() error {
	var errs []error
	for _, ad := range a.adapters {
		if err := ad.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush delivers every queued message now. One-shot commands call it
// before exiting instead of running Run.
func (a *Announcer) Flush(ctx context.Context) error {
	var errs []error
	for {
		select {
		case msg := <-a.queue:
			if err := a.Deliver(ctx, msg); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
