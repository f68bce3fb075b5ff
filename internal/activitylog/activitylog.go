// Package activitylog records booking lifecycle transitions for audit.
// It subscribes to the domain events and never sits on the request path:
// a failed write is logged, not propagated.
package activitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"booking_portal_backend/internal/events"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists booking activity entries.
type Recorder struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New creates an activity recorder.
func New(pool *pgxpool.Pool, log *logger.Logger) *Recorder {
	return &Recorder{pool: pool, log: log}
}

// Subscribe attaches the recorder to all booking lifecycle events.
func (r *Recorder) Subscribe(bus events.Bus) {
	bus.Subscribe(events.BookingConfirmed{}.EventName(), events.HandlerFunc(r.onConfirmed))
	bus.Subscribe(events.BookingDeclined{}.EventName(), events.HandlerFunc(r.onDeclined))
	bus.Subscribe(events.BookingEscalated{}.EventName(), events.HandlerFunc(r.onEscalated))
	bus.Subscribe(events.BookingReminderSent{}.EventName(), events.HandlerFunc(r.onReminderSent))
}

func (r *Recorder) onConfirmed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingConfirmed)
	if !ok {
		return nil
	}
	return r.record(ctx, e.ConfirmationID, e.EventName(), string(e.ConfirmedBy), e.OccurredAt(), map[string]interface{}{
		"orderId":        e.OrderID,
		"customerNumber": e.CustomerNumber,
	})
}

func (r *Recorder) onDeclined(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingDeclined)
	if !ok {
		return nil
	}
	return r.record(ctx, e.ConfirmationID, e.EventName(), string(e.DeclinedBy), e.OccurredAt(), map[string]interface{}{
		"orderId":        e.OrderID,
		"customerNumber": e.CustomerNumber,
		"reasonCode":     e.ReasonCode,
		"groupSize":      e.GroupSize,
	})
}

func (r *Recorder) onEscalated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingEscalated)
	if !ok {
		return nil
	}
	return r.record(ctx, e.ConfirmationID, e.EventName(), string(events.ActorSystem), e.OccurredAt(), map[string]interface{}{
		"ticketId":      e.TicketID,
		"reminderCount": e.ReminderCount,
	})
}

func (r *Recorder) onReminderSent(ctx context.Context, event events.Event) error {
	e, ok := event.(events.BookingReminderSent)
	if !ok {
		return nil
	}
	return r.record(ctx, e.ConfirmationID, e.EventName(), string(events.ActorSystem), e.OccurredAt(), map[string]interface{}{
		"reminderLevel": e.ReminderLevel,
	})
}

func (r *Recorder) record(ctx context.Context, confirmationID, event, actor string, occurredAt time.Time, detail map[string]interface{}) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal activity detail: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_activity_log (id, confirmation_id, event, actor, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), confirmationID, event, actor, payload, occurredAt)
	if err != nil {
		r.log.DatabaseError("insert_activity_log", err)
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}
