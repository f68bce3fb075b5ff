// Package transport defines the request and response shapes of the
// bookings HTTP API.
package transport

import (
	"time"

	"booking_portal_backend/internal/bookings/reasons"
	"booking_portal_backend/internal/bookings/service"
)

// ConfirmBookingRequest is the body of a portal confirm. Related ids let
// the partner answer a multi-booking request in one action.
type ConfirmBookingRequest struct {
	RelatedConfirmationIDs []string `json:"relatedConfirmationIds" validate:"omitempty,dive,uuid"`
}

// DeclineBookingRequest is the body of a portal decline.
type DeclineBookingRequest struct {
	ReasonCode             string   `json:"reasonCode" validate:"required,max=64"`
	Notes                  string   `json:"notes" validate:"omitempty,max=2000"`
	RelatedConfirmationIDs []string `json:"relatedConfirmationIds" validate:"omitempty,dive,uuid"`
}

// ListBookingsQuery carries the listing filters.
type ListBookingsQuery struct {
	Status     string `form:"status" validate:"omitempty,oneof=pending confirmed declined"`
	FutureOnly bool   `form:"futureOnly"`
}

// BookingResponse is one row of the merged booking listing.
type BookingResponse struct {
	ID                string     `json:"id"`
	OrderID           string     `json:"orderId"`
	OrderItemID       string     `json:"orderItemId"`
	CustomerNumber    string     `json:"customerNumber"`
	CourseCode        string     `json:"courseCode"`
	CourseName        string     `json:"courseName"`
	Location          string     `json:"location"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           time.Time  `json:"endDate"`
	Participants      int        `json:"participants"`
	Status            string     `json:"status"`
	ConfirmedAt       *time.Time `json:"confirmedAt,omitempty"`
	DeclinedAt        *time.Time `json:"declinedAt,omitempty"`
	DeclineReasonCode *string    `json:"declineReasonCode,omitempty"`
	ReminderCount     int        `json:"reminderCount"`
	EscalatedAt       *time.Time `json:"escalatedAt,omitempty"`
	TokenExpiresAt    time.Time  `json:"tokenExpiresAt"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// NewBookingResponse maps a service view to its response shape.
func NewBookingResponse(view service.BookingView) BookingResponse {
	c := view.Confirmation
	return BookingResponse{
		ID:                c.ID.String(),
		OrderID:           c.OrderID,
		OrderItemID:       c.OrderItemID,
		CustomerNumber:    c.CustomerNumber,
		CourseCode:        view.Item.CourseCode,
		CourseName:        view.Item.CourseName,
		Location:          view.Item.Location,
		StartDate:         view.Item.StartDate,
		EndDate:           view.Item.EndDate,
		Participants:      view.Item.Participants,
		Status:            string(c.Status),
		ConfirmedAt:       c.ConfirmedAt,
		DeclinedAt:        c.DeclinedAt,
		DeclineReasonCode: c.DeclineReasonCode,
		ReminderCount:     c.ReminderCount,
		EscalatedAt:       c.EscalatedAt,
		TokenExpiresAt:    c.TokenExpiresAt,
		CreatedAt:         c.CreatedAt,
	}
}

// GroupActionResponse is the result of a portal confirm or decline.
type GroupActionResponse struct {
	Updated  []string `json:"updated"`
	TicketID *int     `json:"ticketId,omitempty"`
}

// NewGroupActionResponse maps an applied group result.
func NewGroupActionResponse(result *service.GroupResult) GroupActionResponse {
	updated := make([]string, len(result.Updated))
	for i, c := range result.Updated {
		updated[i] = c.ID.String()
	}
	return GroupActionResponse{Updated: updated, TicketID: result.TicketID}
}

// DeclineReasonResponse is one selectable decline reason.
type DeclineReasonResponse struct {
	Code          string `json:"code"`
	Label         string `json:"label"`
	RequiresNotes bool   `json:"requiresNotes"`
}

// NewDeclineReasonResponses maps registry reasons for the portal UI.
func NewDeclineReasonResponses(items []reasons.Reason) []DeclineReasonResponse {
	results := make([]DeclineReasonResponse, len(items))
	for i, reason := range items {
		results[i] = DeclineReasonResponse{
			Code:          reason.Code,
			Label:         reason.Label,
			RequiresNotes: reason.RequiresNotes,
		}
	}
	return results
}

// RegenerateTokenResponse returns the fresh token details.
type RegenerateTokenResponse struct {
	ID             string    `json:"id"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}
