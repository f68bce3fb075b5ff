package service

import (
	"fmt"

	"booking_portal_backend/internal/bookings/domain"
)

// TokenStatus is the outcome of an anonymous token operation.
type TokenStatus string

const (
	// TokenConfirmed means the booking was confirmed by this call.
	TokenConfirmed TokenStatus = "confirmed"
	// TokenDeclinable means a decline link resolved to a live pending
	// row; the caller should navigate to the portal decline page.
	TokenDeclinable TokenStatus = "declinable"
	// TokenAlreadyProcessed means the row already left pending; the
	// outcome carries the terminal status as its Code.
	TokenAlreadyProcessed TokenStatus = "already_processed"
	TokenExpired          TokenStatus = "expired"
	// TokenInvalid means the raw token is not shaped like one this
	// system ever issued; no storage query was made.
	TokenInvalid TokenStatus = "invalid_token"
	// TokenNotFound means a well-formed token with no matching row.
	TokenNotFound TokenStatus = "not_found"
)

// TokenOutcome is the result of a token confirm or decline resolution.
// Invalid and unknown tokens carry no confirmation.
type TokenOutcome struct {
	Status TokenStatus
	// Code is the terminal status behind an already_processed outcome,
	// empty otherwise.
	Code         domain.StatusKind
	Confirmation *domain.Confirmation
}

// ResultURL builds the browser redirect target for this outcome. The
// result page always receives a status plus a detail code, with
// failures grouped under status=error.
func (o *TokenOutcome) ResultURL(baseURL string) string {
	switch o.Status {
	case TokenConfirmed:
		return fmt.Sprintf("%s/booking/result?status=success&code=%s", baseURL, TokenConfirmed)
	case TokenAlreadyProcessed:
		return fmt.Sprintf("%s/booking/result?status=%s&code=%s", baseURL, TokenAlreadyProcessed, o.Code)
	default:
		return fmt.Sprintf("%s/booking/result?status=error&code=%s", baseURL, o.Status)
	}
}

// DeclinePageURL builds the portal decline page for a resolved decline
// token. The reason must be chosen in the portal, so the token link only
// navigates there.
func (o *TokenOutcome) DeclinePageURL(baseURL string) string {
	return fmt.Sprintf("%s/portal/bookings/%s/decline?token=%s", baseURL, o.Confirmation.ID, o.Confirmation.Token)
}

// GroupResult is the outcome of a portal confirm or decline, possibly
// covering several related bookings. Exactly one of the three branches
// holds: Updated is non-empty, AlreadyProcessed is set, or
// InvalidReason is set.
type GroupResult struct {
	Updated          []domain.Confirmation
	AlreadyProcessed bool
	CurrentStatus    domain.StatusKind
	InvalidReason    string
	TicketID         *int
}

// Applied reports whether any rows were transitioned.
func (r *GroupResult) Applied() bool {
	return len(r.Updated) > 0
}
