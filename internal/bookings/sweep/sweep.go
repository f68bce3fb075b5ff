// Package sweep implements the periodic reminder and escalation pass
// over pending booking confirmations.
//
// The ladder: one reminder after 24 hours, a second after 48 hours,
// escalation to the helpdesk after 72 hours. A distributed lock keeps
// concurrent sweeps (multiple scheduler replicas, the HTTP trigger)
// from double-sending.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Reminder and escalation age thresholds, measured from row creation.
const (
	FirstReminderAfter  = 24 * time.Hour
	SecondReminderAfter = 48 * time.Hour
	EscalateAfter       = 72 * time.Hour
)

// Store provides the due-row queries. Filtering happens server-side;
// the sweep never scans the full table.
type Store interface {
	ListDueForReminder(ctx context.Context, reminderCount int, createdBefore time.Time) ([]domain.Confirmation, error)
	ListDueForEscalation(ctx context.Context, createdBefore time.Time) ([]domain.Confirmation, error)
}

// Notifier sends reminder mails and advances the reminder counter.
type Notifier interface {
	SendReminder(ctx context.Context, confirmation domain.Confirmation, level int) error
}

// Escalator opens a helpdesk ticket and marks the row escalated.
type Escalator interface {
	Escalate(ctx context.Context, confirmation domain.Confirmation) (int, error)
}

// Locker guards against overlapping sweep runs across processes.
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// RowError records one failed row of a sweep run.
type RowError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result summarizes one sweep run. It is the response body of the HTTP
// sweep trigger, so the field names are part of the API.
type Result struct {
	RunID         string     `json:"runId"`
	Skipped       bool       `json:"skipped"`
	Processed     int        `json:"processed"`
	Reminder1Sent int        `json:"reminder1Sent"`
	Reminder2Sent int        `json:"reminder2Sent"`
	Escalated     int        `json:"escalated"`
	Failed        int        `json:"failed"`
	Errors        []RowError `json:"errors,omitempty"`
}

// Sweeper runs the reminder and escalation pass.
type Sweeper struct {
	store     Store
	notifier  Notifier
	escalator Escalator
	locker    Locker
	log       *logger.Logger
	workers   int
	now       func() time.Time
}

// New creates a sweeper with the given worker limit.
func New(store Store, notifier Notifier, escalator Escalator, locker Locker, log *logger.Logger, workers int) *Sweeper {
	if workers < 1 {
		workers = 5
	}
	return &Sweeper{
		store:     store,
		notifier:  notifier,
		escalator: escalator,
		locker:    locker,
		log:       log,
		workers:   workers,
		now:       time.Now,
	}
}

// WithClock overrides the sweeper clock. Tests only.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

type job struct {
	confirmation domain.Confirmation
	// reminderLevel 1 or 2, or 0 for escalation.
	reminderLevel int
}

// Run executes one sweep. A busy lock yields a skipped result, not an
// error. Failures on individual rows are collected; they never abort
// the rest of the run.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	started := s.now()

	release, ok, err := s.locker.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep lock: %w", err)
	}
	if !ok {
		result.Skipped = true
		return result, nil
	}
	defer release()

	jobs, err := s.collectDue(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for _, j := range jobs {
		j := j
		group.Go(func() error {
			applied, err := s.process(groupCtx, j)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, RowError{ID: j.confirmation.ID.String(), Error: err.Error()})
			case !applied:
				// Row was answered or handled elsewhere after the bucket
				// load; nothing happened.
			case j.reminderLevel == 1:
				result.Reminder1Sent++
			case j.reminderLevel == 2:
				result.Reminder2Sent++
			default:
				result.Escalated++
			}
			// Row failures are isolated; never cancel the group.
			return nil
		})
	}
	_ = group.Wait()

	s.log.SweepCompleted(result.RunID, result.Processed,
		result.Reminder1Sent, result.Reminder2Sent,
		result.Escalated, result.Failed, float64(time.Since(started).Milliseconds()))
	return result, nil
}

// collectDue loads the three buckets. A failing bucket query aborts the
// sweep: without a consistent picture the run cannot proceed.
func (s *Sweeper) collectDue(ctx context.Context) ([]job, error) {
	now := s.now()

	firstReminders, err := s.store.ListDueForReminder(ctx, 0, now.Add(-FirstReminderAfter))
	if err != nil {
		return nil, fmt.Errorf("load first reminder bucket: %w", err)
	}
	secondReminders, err := s.store.ListDueForReminder(ctx, 1, now.Add(-SecondReminderAfter))
	if err != nil {
		return nil, fmt.Errorf("load second reminder bucket: %w", err)
	}
	escalations, err := s.store.ListDueForEscalation(ctx, now.Add(-EscalateAfter))
	if err != nil {
		return nil, fmt.Errorf("load escalation bucket: %w", err)
	}

	jobs := make([]job, 0, len(firstReminders)+len(secondReminders)+len(escalations))
	for _, c := range firstReminders {
		jobs = append(jobs, job{confirmation: c, reminderLevel: 1})
	}
	for _, c := range secondReminders {
		jobs = append(jobs, job{confirmation: c, reminderLevel: 2})
	}
	for _, c := range escalations {
		jobs = append(jobs, job{confirmation: c})
	}
	return jobs, nil
}

// process handles one job. The applied flag is false when the row was
// skipped without action, e.g. an escalation that found the row already
// answered.
func (s *Sweeper) process(ctx context.Context, j job) (bool, error) {
	if j.reminderLevel > 0 {
		if err := s.notifier.SendReminder(ctx, j.confirmation, j.reminderLevel); err != nil {
			return false, err
		}
		return true, nil
	}
	ticketID, err := s.escalator.Escalate(ctx, j.confirmation)
	if err != nil {
		return false, err
	}
	return ticketID > 0, nil
}
