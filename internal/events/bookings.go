package events

// Actor describes who triggered a booking lifecycle transition.
// "email-link" for anonymous token flows, a user ID for portal flows,
// "system" for the automated sweep.
type Actor string

const (
	ActorEmailLink Actor = "email-link"
	ActorSystem    Actor = "system"
)

// BookingConfirmed is published after a confirmation reaches the
// confirmed state.
type BookingConfirmed struct {
	BaseEvent
	ConfirmationID string `json:"confirmationId"`
	OrderID        string `json:"orderId"`
	OrderItemID    string `json:"orderItemId"`
	CustomerNumber string `json:"customerNumber"`
	ConfirmedBy    Actor  `json:"confirmedBy"`
}

// EventName returns the event type identifier.
func (e BookingConfirmed) EventName() string { return "bookings.confirmation.confirmed" }

// BookingDeclined is published after a confirmation reaches the
// declined state.
type BookingDeclined struct {
	BaseEvent
	ConfirmationID string `json:"confirmationId"`
	OrderID        string `json:"orderId"`
	OrderItemID    string `json:"orderItemId"`
	CustomerNumber string `json:"customerNumber"`
	DeclinedBy     Actor  `json:"declinedBy"`
	ReasonCode     string `json:"reasonCode"`
	GroupSize      int    `json:"groupSize"`
}

// EventName returns the event type identifier.
func (e BookingDeclined) EventName() string { return "bookings.confirmation.declined" }

// BookingEscalated is published after the sweep escalates an unanswered
// confirmation to the helpdesk.
type BookingEscalated struct {
	BaseEvent
	ConfirmationID string `json:"confirmationId"`
	OrderID        string `json:"orderId"`
	CustomerNumber string `json:"customerNumber"`
	TicketID       int    `json:"ticketId"`
	ReminderCount  int    `json:"reminderCount"`
}

// EventName returns the event type identifier.
func (e BookingEscalated) EventName() string { return "bookings.confirmation.escalated" }

// BookingReminderSent is published after a reminder email goes out.
type BookingReminderSent struct {
	BaseEvent
	ConfirmationID string `json:"confirmationId"`
	OrderID        string `json:"orderId"`
	CustomerNumber string `json:"customerNumber"`
	ReminderLevel  int    `json:"reminderLevel"`
}

// EventName returns the event type identifier.
func (e BookingReminderSent) EventName() string { return "bookings.confirmation.reminder_sent" }
