// Package service implements the booking confirmation lifecycle: the
// token flows, the portal flows, listing and stats, and the sweep-facing
// reminder and escalation operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/internal/bookings/reasons"
	"booking_portal_backend/internal/bookings/repository"
	"booking_portal_backend/internal/bookings/token"
	"booking_portal_backend/internal/email"
	"booking_portal_backend/internal/events"
	"booking_portal_backend/internal/orders"
	"booking_portal_backend/internal/partners"
	"booking_portal_backend/internal/ticketing"
	"booking_portal_backend/platform/apperr"
	"booking_portal_backend/platform/config"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Config is the configuration surface the service needs.
type Config interface {
	config.TokenConfig
	config.NotificationConfig
	config.TicketingConfig
}

// InitialRequestEnqueuer schedules the initial confirmation-request mail
// for a freshly created confirmation. Delivery is fire-and-forget from
// the caller's point of view.
type InitialRequestEnqueuer interface {
	EnqueueInitialRequest(ctx context.Context, confirmationID uuid.UUID) error
}

// Actor identifies the authenticated portal user performing an operation.
type Actor struct {
	UserID          uuid.UUID
	CustomerNumbers []string
}

func (a Actor) owns(customerNumber string) bool {
	for _, number := range a.CustomerNumbers {
		if number == customerNumber {
			return true
		}
	}
	return false
}

// ListFilter narrows the booking listing.
type ListFilter struct {
	Status     domain.StatusKind
	FutureOnly bool
}

// BookingView joins a confirmation with its order item for listing.
type BookingView struct {
	Confirmation domain.Confirmation
	Item         orders.Item
}

// Service orchestrates the confirmation lifecycle.
type Service struct {
	repo     repository.Repository
	registry reasons.Registry
	orders   orders.Repository
	partners partners.Repository
	tickets  ticketing.Client
	mailer   email.Sender
	enqueuer InitialRequestEnqueuer
	bus      events.Bus
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

// New creates the booking confirmation service.
func New(
	repo repository.Repository,
	registry reasons.Registry,
	orderRepo orders.Repository,
	partnerRepo partners.Repository,
	tickets ticketing.Client,
	mailer email.Sender,
	enqueuer InitialRequestEnqueuer,
	bus events.Bus,
	log *logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		orders:   orderRepo,
		partners: partnerRepo,
		tickets:  tickets,
		mailer:   mailer,
		enqueuer: enqueuer,
		bus:      bus,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// Token flows (anonymous)
// =============================================================================

// ConfirmByToken confirms a booking via the email link. Idempotent at
// the row level: losing the race to another writer yields the terminal
// outcome, never an error.
func (s *Service) ConfirmByToken(ctx context.Context, rawToken string) (*TokenOutcome, error) {
	confirmation, outcome, err := s.resolveToken(ctx, rawToken)
	if outcome != nil || err != nil {
		return outcome, err
	}

	applied, err := s.repo.Confirm(ctx, confirmation.ID,
		domain.Pending{}.Confirm(s.now(), string(events.ActorEmailLink)))
	if err != nil {
		return nil, fmt.Errorf("confirm by token: %w", err)
	}
	if !applied {
		// Lost the race; report whatever state won.
		fresh, err := s.repo.FindByID(ctx, confirmation.ID)
		if err != nil {
			return nil, err
		}
		return alreadyProcessedOutcome(fresh), nil
	}

	s.bus.Publish(ctx, events.BookingConfirmed{
		BaseEvent:      events.NewBaseEvent(),
		ConfirmationID: confirmation.ID.String(),
		OrderID:        confirmation.OrderID,
		OrderItemID:    confirmation.OrderItemID,
		CustomerNumber: confirmation.CustomerNumber,
		ConfirmedBy:    events.ActorEmailLink,
	})

	return &TokenOutcome{Status: TokenConfirmed, Confirmation: confirmation}, nil
}

// ResolveDeclineToken validates a decline link without mutating the row.
// The actual decline happens in the portal where a reason is chosen.
func (s *Service) ResolveDeclineToken(ctx context.Context, rawToken string) (*TokenOutcome, error) {
	confirmation, outcome, err := s.resolveToken(ctx, rawToken)
	if outcome != nil || err != nil {
		return outcome, err
	}
	return &TokenOutcome{Status: TokenDeclinable, Confirmation: confirmation}, nil
}

// resolveToken runs the shared token validation ladder. A nil outcome
// with nil error means the token resolved to a live pending row.
func (s *Service) resolveToken(ctx context.Context, rawToken string) (*domain.Confirmation, *TokenOutcome, error) {
	if !token.IsValidFormat(rawToken) {
		return nil, &TokenOutcome{Status: TokenInvalid}, nil
	}

	confirmation, err := s.repo.FindByToken(ctx, rawToken)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, &TokenOutcome{Status: TokenNotFound}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve token: %w", err)
	}

	if confirmation.Status.IsTerminal() {
		return nil, alreadyProcessedOutcome(confirmation), nil
	}
	if confirmation.TokenExpired(s.now()) {
		return nil, &TokenOutcome{Status: TokenExpired, Confirmation: confirmation}, nil
	}

	return confirmation, nil, nil
}

func alreadyProcessedOutcome(c *domain.Confirmation) *TokenOutcome {
	return &TokenOutcome{Status: TokenAlreadyProcessed, Code: c.Status, Confirmation: c}
}

// =============================================================================
// Portal flows (authenticated)
// =============================================================================

// ConfirmByPortal confirms a booking, optionally together with related
// bookings of the same request. Related ids the actor does not own or
// that already left pending are silently dropped from the group; the
// primary id must be owned.
func (s *Service) ConfirmByPortal(ctx context.Context, actor Actor, id uuid.UUID, relatedIDs []uuid.UUID) (*GroupResult, error) {
	primary, result, err := s.loadPrimary(ctx, actor, id)
	if result != nil || err != nil {
		return result, err
	}

	group, err := s.repo.FindPendingOwned(ctx, groupIDs(id, relatedIDs), actor.CustomerNumbers)
	if err != nil {
		return nil, err
	}

	to := domain.Pending{}.Confirm(s.now(), actor.UserID.String())
	if err := s.repo.ConfirmGroup(ctx, idsOf(group), to); err != nil {
		return s.mapGroupConflict(ctx, primary, err)
	}

	for _, c := range group {
		s.bus.Publish(ctx, events.BookingConfirmed{
			BaseEvent:      events.NewBaseEvent(),
			ConfirmationID: c.ID.String(),
			OrderID:        c.OrderID,
			OrderItemID:    c.OrderItemID,
			CustomerNumber: c.CustomerNumber,
			ConfirmedBy:    events.Actor(actor.UserID.String()),
		})
	}

	return &GroupResult{Updated: group}, nil
}

// DeclineByPortal declines a booking group. The reason is validated
// before any row is touched; an invalid choice leaves the group
// untouched. After the decline lands, one helpdesk ticket is created per
// group; ticket failure is logged but never fails the decline.
func (s *Service) DeclineByPortal(ctx context.Context, actor Actor, id uuid.UUID, relatedIDs []uuid.UUID, reasonCode, notes string) (*GroupResult, error) {
	reason, err := s.registry.FindByCode(ctx, reasonCode)
	if err != nil {
		return nil, err
	}
	if vErr := reasons.ValidateChoice(reason, notes); vErr != nil {
		return &GroupResult{InvalidReason: vErr.Error()}, nil
	}

	primary, result, err := s.loadPrimary(ctx, actor, id)
	if result != nil || err != nil {
		return result, err
	}

	group, err := s.repo.FindPendingOwned(ctx, groupIDs(id, relatedIDs), actor.CustomerNumbers)
	if err != nil {
		return nil, err
	}

	to := domain.Pending{}.Decline(s.now(), actor.UserID.String(), reason.Code, notes)
	if err := s.repo.DeclineGroup(ctx, idsOf(group), to); err != nil {
		return s.mapGroupConflict(ctx, primary, err)
	}

	groupResult := &GroupResult{Updated: group}
	if ticketID, ok := s.createDeclineTicket(ctx, actor, group, reason, notes); ok {
		groupResult.TicketID = &ticketID
	}

	for _, c := range group {
		s.bus.Publish(ctx, events.BookingDeclined{
			BaseEvent:      events.NewBaseEvent(),
			ConfirmationID: c.ID.String(),
			OrderID:        c.OrderID,
			OrderItemID:    c.OrderItemID,
			CustomerNumber: c.CustomerNumber,
			DeclinedBy:     events.Actor(actor.UserID.String()),
			ReasonCode:     reason.Code,
			GroupSize:      len(group),
		})
	}

	return groupResult, nil
}

// loadPrimary fetches and authorizes the primary booking of a portal
// operation. A non-nil GroupResult short-circuits with the
// already-processed branch.
func (s *Service) loadPrimary(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Confirmation, *GroupResult, error) {
	primary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.owns(primary.CustomerNumber) {
		return nil, nil, apperr.Forbidden("booking belongs to another partner")
	}
	if !primary.IsPending() {
		return nil, &GroupResult{AlreadyProcessed: true, CurrentStatus: primary.Status}, nil
	}
	return primary, nil, nil
}

// mapGroupConflict turns a lost group-write race into the
// already-processed outcome for the primary row.
func (s *Service) mapGroupConflict(ctx context.Context, primary *domain.Confirmation, err error) (*GroupResult, error) {
	if !apperr.Is(err, apperr.KindConflict) {
		return nil, err
	}
	fresh, findErr := s.repo.FindByID(ctx, primary.ID)
	if findErr != nil {
		return nil, findErr
	}
	return &GroupResult{AlreadyProcessed: true, CurrentStatus: fresh.Status}, nil
}

func (s *Service) createDeclineTicket(ctx context.Context, actor Actor, group []domain.Confirmation, reason *reasons.Reason, notes string) (int, bool) {
	if len(group) == 0 {
		return 0, false
	}

	partner, err := s.partners.GetByCustomerNumber(ctx, group[0].CustomerNumber)
	if err != nil {
		s.log.UpstreamError("partners", "decline_ticket_lookup", err)
		return 0, false
	}

	subject := fmt.Sprintf("Buchung abgelehnt: %s (%d Positionen)", partner.CompanyName, len(group))
	description := fmt.Sprintf(
		"Der Partner %s (Kundennummer %s) hat %d Buchung(en) abgelehnt.\n\nGrund: %s\n",
		partner.CompanyName, partner.CustomerNumber, len(group), reason.Label)
	if notes != "" {
		description += fmt.Sprintf("Anmerkungen: %s\n", notes)
	}
	for _, c := range group {
		description += fmt.Sprintf("\n- Bestellung %s, Position %s", c.OrderID, c.OrderItemID)
	}

	ticketID, err := s.tickets.CreateTicket(ctx, ticketing.Ticket{
		Subject:        subject,
		Description:    description,
		RequesterName:  partner.ContactName,
		RequesterEmail: partner.ContactEmail,
	})
	if err != nil {
		s.log.UpstreamError("odoo", "decline_ticket", err)
		return 0, false
	}

	if err := s.repo.SetDeclineTicket(ctx, idsOf(group), ticketID); err != nil {
		s.log.DatabaseError("set_decline_ticket", err)
	}
	return ticketID, true
}

// =============================================================================
// Listing, stats, reasons, token maintenance
// =============================================================================

// ListBookings merges order items with their confirmations. Items that
// have no confirmation yet get one created on the fly; for those the
// initial confirmation-request mail is enqueued fire-and-forget.
func (s *Service) ListBookings(ctx context.Context, actor Actor, filter ListFilter) ([]BookingView, error) {
	items, err := s.orders.ListItems(ctx, actor.CustomerNumbers, filter.FutureOnly, s.now())
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	itemIDs := make([]string, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}
	existing, err := s.repo.FindByOrderItemIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	byItem := make(map[string]domain.Confirmation, len(existing))
	for _, c := range existing {
		byItem[c.OrderItemID] = c
	}

	views := make([]BookingView, 0, len(items))
	for _, item := range items {
		confirmation, ok := byItem[item.ID]
		if !ok {
			created, err := s.ensureConfirmation(ctx, item)
			if err != nil {
				return nil, err
			}
			confirmation = *created
		}
		if filter.Status != "" && confirmation.Status != filter.Status {
			continue
		}
		views = append(views, BookingView{Confirmation: confirmation, Item: item})
	}
	return views, nil
}

func (s *Service) ensureConfirmation(ctx context.Context, item orders.Item) (*domain.Confirmation, error) {
	tokenValue, err := token.Generate()
	if err != nil {
		return nil, err
	}

	confirmation, created, err := s.repo.GetOrCreate(ctx, repository.NewConfirmation{
		OrderID:        item.OrderID,
		OrderItemID:    item.ID,
		CustomerNumber: item.CustomerNumber,
		Token:          tokenValue,
		TokenExpiresAt: token.ExpiryFrom(s.now(), s.cfg.GetTokenExpiryDays()),
	})
	if err != nil {
		return nil, err
	}

	if created && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueInitialRequest(ctx, confirmation.ID); err != nil {
			s.log.UpstreamError("scheduler", "enqueue_initial_request", err)
		}
	}
	return confirmation, nil
}

// Stats returns the partner's confirmation counts. "Needs attention"
// means pending for more than 24 hours.
func (s *Service) Stats(ctx context.Context, actor Actor) (*repository.Stats, error) {
	return s.repo.Stats(ctx, actor.CustomerNumbers, s.now().Add(-24*time.Hour))
}

// ListDeclineReasons returns the active decline reasons for the portal UI.
func (s *Service) ListDeclineReasons(ctx context.Context) ([]reasons.Reason, error) {
	return s.registry.ListActive(ctx)
}

// RegenerateToken issues a fresh token for a still-pending booking,
// e.g. when the original link expired before the partner acted.
func (s *Service) RegenerateToken(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Confirmation, error) {
	confirmation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(confirmation.CustomerNumber) {
		return nil, apperr.Forbidden("booking belongs to another partner")
	}
	if !confirmation.IsPending() {
		return nil, apperr.Conflict("booking already processed")
	}

	tokenValue, err := token.Generate()
	if err != nil {
		return nil, err
	}
	expiresAt := token.ExpiryFrom(s.now(), s.cfg.GetTokenExpiryDays())
	if err := s.repo.RegenerateToken(ctx, id, tokenValue, expiresAt); err != nil {
		return nil, err
	}

	confirmation.Token = tokenValue
	confirmation.TokenExpiresAt = expiresAt
	return confirmation, nil
}

// SendInitialRequest delivers the initial confirmation-request mail.
// Invoked from the scheduler worker, not the request path.
func (s *Service) SendInitialRequest(ctx context.Context, confirmationID uuid.UUID) error {
	confirmation, err := s.repo.FindByID(ctx, confirmationID)
	if err != nil {
		return err
	}
	if !confirmation.IsPending() {
		// Answered before the mail went out; nothing to request.
		return nil
	}

	mail, toEmail, err := s.buildMail(ctx, confirmation)
	if err != nil {
		return err
	}
	if err := s.mailer.SendConfirmationRequest(ctx, toEmail, mail); err != nil {
		return fmt.Errorf("send confirmation request: %w", err)
	}
	return nil
}

func groupIDs(primary uuid.UUID, related []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{primary: true}
	ids := []uuid.UUID{primary}
	for _, id := range related {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func idsOf(group []domain.Confirmation) []uuid.UUID {
	ids := make([]uuid.UUID, len(group))
	for i, c := range group {
		ids[i] = c.ID
	}
	return ids
}

var errPartnerContactMissing = errors.New("partner has no contact email")
