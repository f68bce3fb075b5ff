// Package email delivers the booking confirmation mails: the initial
// confirmation request and the reminder escalation ladder.
package email

import (
	"context"

	"booking_portal_backend/platform/config"
)

// BookingMailData carries the booking facts rendered into the mails.
type BookingMailData struct {
	PartnerName  string
	CourseName   string
	CourseCode   string
	Location     string
	StartDate    string
	EndDate      string
	Participants int
	ConfirmURL   string
	DeclineURL   string
	HoursWaiting int
}

// Sender delivers booking lifecycle mails.
type Sender interface {
	// SendConfirmationRequest sends the initial please-confirm mail when
	// a confirmation row is created.
	SendConfirmationRequest(ctx context.Context, toEmail string, data BookingMailData) error
	// SendReminder sends reminder level 1 or 2 for a still-pending booking.
	SendReminder(ctx context.Context, toEmail string, level int, data BookingMailData) error
}

// NoopSender drops all mail. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendConfirmationRequest(ctx context.Context, toEmail string, data BookingMailData) error {
	return nil
}

func (NoopSender) SendReminder(ctx context.Context, toEmail string, level int, data BookingMailData) error {
	return nil
}

// NewSender picks the delivery backend from configuration: Brevo when an
// API key is set, plain SMTP when a host is set, otherwise a no-op.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	if cfg.GetBrevoAPIKey() != "" {
		return NewBrevoSender(cfg)
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg)
	}
	return NoopSender{}
}
