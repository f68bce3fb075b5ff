package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	byCount     map[int][]domain.Confirmation
	escalations []domain.Confirmation
	listErr     error
}

func (f *fakeStore) ListDueForReminder(_ context.Context, reminderCount int, _ time.Time) ([]domain.Confirmation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byCount[reminderCount], nil
}

func (f *fakeStore) ListDueForEscalation(_ context.Context, _ time.Time) ([]domain.Confirmation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.escalations, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[uuid.UUID]int
	failFor map[uuid.UUID]bool
}

func (f *fakeNotifier) SendReminder(_ context.Context, c domain.Confirmation, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[c.ID] {
		return errors.New("smtp unavailable")
	}
	if f.sent == nil {
		f.sent = make(map[uuid.UUID]int)
	}
	f.sent[c.ID] = level
	return nil
}

type fakeEscalator struct {
	mu        sync.Mutex
	escalated []uuid.UUID
	refuse    bool
	err       error
}

func (f *fakeEscalator) Escalate(_ context.Context, c domain.Confirmation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.refuse {
		return 0, nil
	}
	f.escalated = append(f.escalated, c.ID)
	return 4711, nil
}

type fakeLocker struct {
	busy     bool
	released bool
}

func (f *fakeLocker) TryAcquire(context.Context) (func(), bool, error) {
	if f.busy {
		return nil, false, nil
	}
	return func() { f.released = true }, true, nil
}

func pendingConfirmation(reminders int) domain.Confirmation {
	return domain.Confirmation{
		ID:            uuid.New(),
		Status:        domain.StatusPending,
		ReminderCount: reminders,
	}
}

func newTestSweeper(store Store, notifier Notifier, escalator Escalator, locker Locker) *Sweeper {
	return New(store, notifier, escalator, locker, logger.New("development"), 5)
}

func TestRunSkipsWhenLockBusy(t *testing.T) {
	store := &fakeStore{}
	sweeper := newTestSweeper(store, &fakeNotifier{}, &fakeEscalator{}, &fakeLocker{busy: true})

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected skipped result when lock is held")
	}
	if result.Processed != 0 {
		t.Fatalf("processed = %d, want 0", result.Processed)
	}
}

func TestRunProcessesAllBuckets(t *testing.T) {
	first := pendingConfirmation(0)
	second := pendingConfirmation(1)
	overdue := pendingConfirmation(2)

	store := &fakeStore{
		byCount: map[int][]domain.Confirmation{
			0: {first},
			1: {second},
		},
		escalations: []domain.Confirmation{overdue},
	}
	notifier := &fakeNotifier{}
	escalator := &fakeEscalator{}
	locker := &fakeLocker{}

	result, err := newTestSweeper(store, notifier, escalator, locker).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Processed != 3 || result.Reminder1Sent != 1 || result.Reminder2Sent != 1 || result.Escalated != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if notifier.sent[first.ID] != 1 {
		t.Fatalf("first reminder level = %d, want 1", notifier.sent[first.ID])
	}
	if notifier.sent[second.ID] != 2 {
		t.Fatalf("second reminder level = %d, want 2", notifier.sent[second.ID])
	}
	if len(escalator.escalated) != 1 || escalator.escalated[0] != overdue.ID {
		t.Fatalf("escalated = %v, want [%s]", escalator.escalated, overdue.ID)
	}
	if !locker.released {
		t.Fatal("lock was not released")
	}
}

func TestRunIsolatesRowFailures(t *testing.T) {
	failing := pendingConfirmation(0)
	healthy := pendingConfirmation(0)

	store := &fakeStore{
		byCount: map[int][]domain.Confirmation{
			0: {failing, healthy},
		},
	}
	notifier := &fakeNotifier{failFor: map[uuid.UUID]bool{failing.ID: true}}

	result, err := newTestSweeper(store, notifier, &fakeEscalator{}, &fakeLocker{}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Failed != 1 {
		t.Fatalf("failed = %d, want 1", result.Failed)
	}
	if result.Reminder1Sent != 1 {
		t.Fatalf("reminder1Sent = %d, want 1", result.Reminder1Sent)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", result.Errors)
	}
	if result.Errors[0].ID != failing.ID.String() {
		t.Fatalf("error id = %s, want %s", result.Errors[0].ID, failing.ID)
	}
	if result.Errors[0].Error == "" {
		t.Fatal("error entry is missing its message")
	}
	if notifier.sent[healthy.ID] != 1 {
		t.Fatal("healthy row should still receive its reminder")
	}
}

func TestRunDoesNotCountRefusedEscalations(t *testing.T) {
	overdue := pendingConfirmation(2)
	store := &fakeStore{escalations: []domain.Confirmation{overdue}}
	escalator := &fakeEscalator{refuse: true}

	result, err := newTestSweeper(store, &fakeNotifier{}, escalator, &fakeLocker{}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Processed != 1 {
		t.Fatalf("processed = %d, want 1", result.Processed)
	}
	if result.Escalated != 0 {
		t.Fatalf("escalated = %d, want 0 when the row was refused", result.Escalated)
	}
	if result.Failed != 0 {
		t.Fatalf("failed = %d, want 0", result.Failed)
	}
}

func TestRunAbortsWhenBucketQueryFails(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}

	_, err := newTestSweeper(store, &fakeNotifier{}, &fakeEscalator{}, &fakeLocker{}).Run(context.Background())
	if err == nil {
		t.Fatal("expected error when bucket query fails")
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var rows []domain.Confirmation
	for i := 0; i < 20; i++ {
		rows = append(rows, pendingConfirmation(0))
	}
	store := &fakeStore{byCount: map[int][]domain.Confirmation{0: rows}}

	var mu sync.Mutex
	var current, peak int
	notifier := notifierFunc(func(context.Context, domain.Confirmation, int) error {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		return nil
	})

	sweeper := New(store, notifier, &fakeEscalator{}, &fakeLocker{}, logger.New("development"), 3)
	if _, err := sweeper.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if peak > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", peak)
	}
}

type notifierFunc func(ctx context.Context, c domain.Confirmation, level int) error

func (f notifierFunc) SendReminder(ctx context.Context, c domain.Confirmation, level int) error {
	return f(ctx, c, level)
}
