// Package repository provides persistence for booking confirmations.
package repository

import (
	"context"
	"time"

	"booking_portal_backend/internal/bookings/domain"

	"github.com/google/uuid"
)

// Stats are per-partner confirmation counts for the dashboard.
type Stats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Confirmed      int `json:"confirmed"`
	Declined       int `json:"declined"`
	NeedsAttention int `json:"needsAttention"`
}

// NewConfirmation carries the fields needed to create a confirmation row.
type NewConfirmation struct {
	OrderID        string
	OrderItemID    string
	CustomerNumber string
	Token          string
	TokenExpiresAt time.Time
}

// Repository is the storage port for booking confirmations.
//
// The single-row transition writes are status-gated: they only apply
// when the row is still pending, and report whether the write landed.
// Distinguishing "row missing" from "already answered" is the caller's
// job via FindByID.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error)
	FindByToken(ctx context.Context, tokenValue string) (*domain.Confirmation, error)
	FindByOrderItemIDs(ctx context.Context, orderItemIDs []string) ([]domain.Confirmation, error)

	// GetOrCreate returns the confirmation for an order item, creating it
	// if absent. The created flag is true only for a fresh insert.
	GetOrCreate(ctx context.Context, params NewConfirmation) (*domain.Confirmation, bool, error)

	// Confirm applies a pending->confirmed transition. Returns false when
	// the row was not pending (or does not exist).
	Confirm(ctx context.Context, id uuid.UUID, to domain.Confirmed) (bool, error)
	// Decline applies a pending->declined transition. Returns false when
	// the row was not pending (or does not exist).
	Decline(ctx context.Context, id uuid.UUID, to domain.Declined) (bool, error)

	// ConfirmGroup applies the same transition to every id in one
	// transaction. All rows must still be pending or the whole group
	// rolls back.
	ConfirmGroup(ctx context.Context, ids []uuid.UUID, to domain.Confirmed) error
	// DeclineGroup is ConfirmGroup's counterpart for declines.
	DeclineGroup(ctx context.Context, ids []uuid.UUID, to domain.Declined) error

	// FindPendingOwned filters ids down to rows that are still pending
	// AND belong to one of the given customer numbers.
	FindPendingOwned(ctx context.Context, ids []uuid.UUID, customerNumbers []string) ([]domain.Confirmation, error)

	// SetDeclineTicket records the helpdesk ticket created for a declined
	// group on every row of the group.
	SetDeclineTicket(ctx context.Context, ids []uuid.UUID, ticketID int) error

	// BumpReminder increments reminder_count and stamps last_reminder_at.
	// Only moves while the row is still pending; otherwise a no-op.
	BumpReminder(ctx context.Context, id uuid.UUID, at time.Time) error
	// SetEscalated records the helpdesk ticket on the row. Only applies
	// while the row is pending and escalated_at is still NULL.
	SetEscalated(ctx context.Context, id uuid.UUID, ticketID int, at time.Time) error

	// ListDueForReminder returns pending, unescalated rows with exactly
	// reminderCount reminders sent, created at or before the cutoff.
	ListDueForReminder(ctx context.Context, reminderCount int, createdBefore time.Time) ([]domain.Confirmation, error)
	// ListDueForEscalation returns pending rows with at least two
	// reminders, created at or before the cutoff, not yet escalated.
	ListDueForEscalation(ctx context.Context, createdBefore time.Time) ([]domain.Confirmation, error)

	// RegenerateToken replaces the token on a still-pending row.
	RegenerateToken(ctx context.Context, id uuid.UUID, tokenValue string, expiresAt time.Time) error

	Stats(ctx context.Context, customerNumbers []string, attentionBefore time.Time) (*Stats, error)
}
