// Package domain holds the booking confirmation aggregate and its
// status state machine.
package domain

import "time"

// StatusKind is the stored representation of a confirmation status.
type StatusKind string

const (
	StatusPending   StatusKind = "pending"
	StatusConfirmed StatusKind = "confirmed"
	StatusDeclined  StatusKind = "declined"
)

// IsTerminal reports whether the status admits no further transitions.
func (k StatusKind) IsTerminal() bool {
	return k == StatusConfirmed || k == StatusDeclined
}

// Valid reports whether k is one of the known status kinds.
func (k StatusKind) Valid() bool {
	switch k {
	case StatusPending, StatusConfirmed, StatusDeclined:
		return true
	}
	return false
}

// Status is the closed set of confirmation states. The concrete variants
// carry the fields that only exist in that state, so an impossible
// combination (a declined row without a reason, a pending row with a
// confirmation timestamp) cannot be constructed.
type Status interface {
	Kind() StatusKind
	status()
}

// Pending is the initial state. It is the only state with outgoing
// transitions; Confirm and Decline are defined on it alone, so illegal
// transitions do not type-check.
type Pending struct{}

func (Pending) Kind() StatusKind { return StatusPending }
func (Pending) status()          {}

// Confirmed is the terminal accepted state.
type Confirmed struct {
	At time.Time
	By string
}

func (Confirmed) Kind() StatusKind { return StatusConfirmed }
func (Confirmed) status()          {}

// Declined is the terminal rejected state. ReasonCode references the
// decline reason registry; Notes is free text required by some reasons.
type Declined struct {
	At         time.Time
	By         string
	ReasonCode string
	Notes      string
}

func (Declined) Kind() StatusKind { return StatusDeclined }
func (Declined) status()          {}

// Confirm transitions pending to confirmed.
func (Pending) Confirm(at time.Time, by string) Confirmed {
	return Confirmed{At: at, By: by}
}

// Decline transitions pending to declined.
func (Pending) Decline(at time.Time, by, reasonCode, notes string) Declined {
	return Declined{At: at, By: by, ReasonCode: reasonCode, Notes: notes}
}
