package domain

import (
	"time"

	"github.com/google/uuid"
)

// Confirmation is the booking confirmation aggregate: one row per order
// item requiring partner acknowledgement.
type Confirmation struct {
	ID             uuid.UUID
	OrderID        string
	OrderItemID    string
	CustomerNumber string

	Token          string
	TokenExpiresAt time.Time

	Status            StatusKind
	ConfirmedAt       *time.Time
	ConfirmedBy       *string
	DeclinedAt        *time.Time
	DeclinedBy        *string
	DeclineReasonCode *string
	DeclineNotes      *string

	ReminderCount      int
	LastReminderAt     *time.Time
	EscalatedAt        *time.Time
	EscalationTicketID *int
	DeclineTicketID    *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPending reports whether the confirmation still awaits an answer.
func (c *Confirmation) IsPending() bool {
	return c.Status == StatusPending
}

// IsEscalated reports whether the confirmation was handed to the helpdesk.
func (c *Confirmation) IsEscalated() bool {
	return c.EscalatedAt != nil
}

// TokenExpired reports whether the confirmation token has passed its
// expiry at the given instant. Expiry only gates anonymous token access;
// the portal flows ignore it.
func (c *Confirmation) TokenExpired(now time.Time) bool {
	return now.After(c.TokenExpiresAt)
}

// Age returns how long the confirmation has been waiting since creation.
func (c *Confirmation) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}
