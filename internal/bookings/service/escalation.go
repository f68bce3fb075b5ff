package service

import (
	"context"
	"fmt"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/internal/email"
	"booking_portal_backend/internal/events"
	"booking_portal_backend/internal/ticketing"
)

// SendReminder delivers reminder level 1 or 2 for a pending booking and
// bumps the reminder counter. The counter only moves after the send
// succeeded, so a failed send is retried by the next sweep.
func (s *Service) SendReminder(ctx context.Context, confirmation domain.Confirmation, level int) error {
	mail, toEmail, err := s.buildMail(ctx, &confirmation)
	if err != nil {
		return err
	}

	if err := s.mailer.SendReminder(ctx, toEmail, level, mail); err != nil {
		return fmt.Errorf("send reminder %d for %s: %w", level, confirmation.ID, err)
	}

	if err := s.repo.BumpReminder(ctx, confirmation.ID, s.now()); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.BookingReminderSent{
		BaseEvent:      events.NewBaseEvent(),
		ConfirmationID: confirmation.ID.String(),
		OrderID:        confirmation.OrderID,
		CustomerNumber: confirmation.CustomerNumber,
		ReminderLevel:  level,
	})
	return nil
}

// Escalate hands an unanswered booking to the helpdesk. The escalation
// marker is written only after the ticket exists; a ticket failure
// leaves the row eligible for the next sweep. A row that was answered or
// escalated since it was loaded is skipped before any ticket is opened,
// and a zero ticket id reports the skip.
func (s *Service) Escalate(ctx context.Context, confirmation domain.Confirmation) (int, error) {
	fresh, err := s.repo.FindByID(ctx, confirmation.ID)
	if err != nil {
		return 0, err
	}
	if !fresh.IsPending() || fresh.IsEscalated() {
		return 0, nil
	}
	confirmation = *fresh

	item, err := s.orders.FindItem(ctx, confirmation.OrderItemID)
	if err != nil {
		return 0, err
	}
	partner, err := s.partners.GetByCustomerNumber(ctx, confirmation.CustomerNumber)
	if err != nil {
		return 0, err
	}

	hoursWaiting := int(confirmation.Age(s.now()).Hours())
	subject := fmt.Sprintf("Eskalation: Unbestätigte Buchung %s (Bestellung %s)",
		item.CourseName, confirmation.OrderID)
	description := fmt.Sprintf(
		"Die folgende Buchung wurde trotz %d Erinnerungen nicht bestätigt:\n\n"+
			"Partner: %s (Kundennummer %s)\n"+
			"Kurs: %s (%s)\n"+
			"Ort: %s\n"+
			"Zeitraum: %s bis %s\n"+
			"Wartezeit: %d Stunden\n"+
			"Buchungs-ID: %s\n\n"+
			"Bitte kontaktieren Sie den Partner direkt.",
		confirmation.ReminderCount,
		partner.CompanyName, partner.CustomerNumber,
		item.CourseName, item.CourseCode,
		item.Location,
		item.StartDate.Format("02.01.2006"), item.EndDate.Format("02.01.2006"),
		hoursWaiting,
		confirmation.ID)

	ticketID, err := s.tickets.CreateTicket(ctx, ticketing.Ticket{
		Subject:        subject,
		Description:    description,
		RequesterName:  s.cfg.GetEscalationRequesterName(),
		RequesterEmail: s.cfg.GetEscalationRequesterEmail(),
	})
	if err != nil {
		return 0, fmt.Errorf("escalate %s: %w", confirmation.ID, err)
	}

	if err := s.repo.SetEscalated(ctx, confirmation.ID, ticketID, s.now()); err != nil {
		return 0, err
	}

	s.bus.Publish(ctx, events.BookingEscalated{
		BaseEvent:      events.NewBaseEvent(),
		ConfirmationID: confirmation.ID.String(),
		OrderID:        confirmation.OrderID,
		CustomerNumber: confirmation.CustomerNumber,
		TicketID:       ticketID,
		ReminderCount:  confirmation.ReminderCount,
	})
	return ticketID, nil
}

// buildMail assembles the mail payload and recipient for a booking.
func (s *Service) buildMail(ctx context.Context, confirmation *domain.Confirmation) (email.BookingMailData, string, error) {
	item, err := s.orders.FindItem(ctx, confirmation.OrderItemID)
	if err != nil {
		return email.BookingMailData{}, "", err
	}
	partner, err := s.partners.GetByCustomerNumber(ctx, confirmation.CustomerNumber)
	if err != nil {
		return email.BookingMailData{}, "", err
	}
	if partner.ContactEmail == "" {
		return email.BookingMailData{}, "", errPartnerContactMissing
	}

	baseURL := s.cfg.GetAppBaseURL()
	data := email.BookingMailData{
		PartnerName:  partner.ContactName,
		CourseName:   item.CourseName,
		CourseCode:   item.CourseCode,
		Location:     item.Location,
		StartDate:    item.StartDate.Format("02.01.2006"),
		EndDate:      item.EndDate.Format("02.01.2006"),
		Participants: item.Participants,
		ConfirmURL:   fmt.Sprintf("%s/api/booking/confirm/%s", baseURL, confirmation.Token),
		DeclineURL:   fmt.Sprintf("%s/api/booking/decline/%s", baseURL, confirmation.Token),
		HoursWaiting: int(confirmation.Age(s.now()).Hours()),
	}
	return data, partner.ContactEmail, nil
}
