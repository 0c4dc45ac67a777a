// Package reconcile sweeps every stage and project and recomputes their
// aggregates, repairing drift left by manual propagation or edits made
// outside the running process.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/propagate"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Target is the state the sweep reads and recomputes. *state.Store
// satisfies it.
type Target interface {
	Load() error
	Projects() []models.Project
	Stages(projectID string) []models.Stage
	RefreshStage(stageID string) (propagate.Result, error)
	RecomputeProject(projectID string) (propagate.Result, error)
}

// Summary reports one sweep.
type Summary struct {
	Projects int
	Stages   int
	Changed  int // aggregates whose status or progress moved
	Errors   []error
}

// Err joins the sweep errors.
func (s Summary) Err() error { return errors.Join(s.Errors...) }

func changed(c propagate.Change) bool {
	return !c.Skipped && (c.OldStatus != c.NewStatus || c.OldProgress != c.NewProgress)
}

// RunOnce reloads t, refreshes every stage of a project and then the
// project once. A failing record is reported and the sweep carries on.
func RunOnce(t Target) (Summary, error) {
	var sum Summary
	if err := t.Load(); err != nil {
		return sum, fmt.Errorf("reconcile: load: %w", err)
	}
	for _, p := range t.Projects() {
		sum.Projects++
		for _, st := range t.Stages(p.ID) {
			sum.Stages++
			res, err := t.RefreshStage(st.ID)
			if err != nil {
				sum.Errors = append(sum.Errors, fmt.Errorf("reconcile: stage %s: %w", st.ID, err))
				continue
			}
			if res.StageChange != nil && changed(*res.StageChange) {
				sum.Changed++
			}
		}
		res, err := t.RecomputeProject(p.ID)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("reconcile: project %s: %w", p.ID, err))
			continue
		}
		if changed(res.ProjectChange) {
			sum.Changed++
		}
	}
	return sum, nil
}

// ValidateSchedule reports whether expr is a usable 5-field cron
// expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("reconcile: schedule %q: %w", expr, err)
	}
	return nil
}

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time after now. Returns 0 on parse error.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Start runs RunOnce on schedule until ctx is cancelled. It returns an
// error right away if the schedule does not parse.
func Start(ctx context.Context, t Target, schedule string, log zerolog.Logger) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}
	log.Info().Str("schedule", schedule).Msg("reconcile scheduled")

	timer := time.NewTimer(nextCronDuration(schedule, time.Now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			sweep(t, log)
			timer.Reset(nextCronDuration(schedule, time.Now()))
		}
	}
}

func sweep(t Target, log zerolog.Logger) {
	start := time.Now()
	sum, err := RunOnce(t)
	if err != nil {
		log.Error().Err(err).Msg("reconcile failed")
		return
	}
	ev := log.Info()
	if len(sum.Errors) > 0 {
		ev = log.Warn().Err(sum.Err())
	}
	ev.Int("projects", sum.Projects).
		Int("stages", sum.Stages).
		Int("changed", sum.Changed).
		Dur("took", time.Since(start)).
		Msg("reconcile finished")
}
