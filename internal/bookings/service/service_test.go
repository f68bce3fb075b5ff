package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/internal/bookings/reasons"
	"booking_portal_backend/internal/bookings/repository"
	"booking_portal_backend/internal/email"
	"booking_portal_backend/internal/events"
	"booking_portal_backend/internal/orders"
	"booking_portal_backend/internal/partners"
	"booking_portal_backend/internal/ticketing"
	"booking_portal_backend/platform/apperr"
	"booking_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRepo struct {
	rows map[uuid.UUID]*domain.Confirmation

	// confirmHook runs before a single-row Confirm applies, letting tests
	// simulate a concurrent writer winning the race.
	confirmHook func()
	// groupHook runs inside ConfirmGroup/DeclineGroup before groupErr is
	// returned.
	groupHook func()
	groupErr  error

	bumped     []uuid.UUID
	escalated  map[uuid.UUID]int
	ticketRows map[uuid.UUID]int
	created    int
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo(rows ...*domain.Confirmation) *fakeRepo {
	repo := &fakeRepo{
		rows:       make(map[uuid.UUID]*domain.Confirmation),
		escalated:  make(map[uuid.UUID]int),
		ticketRows: make(map[uuid.UUID]int),
	}
	for _, row := range rows {
		repo.rows[row.ID] = row
	}
	return repo
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, apperr.NotFound("booking not found")
	}
	copied := *row
	return &copied, nil
}

func (r *fakeRepo) FindByToken(_ context.Context, tokenValue string) (*domain.Confirmation, error) {
	for _, row := range r.rows {
		if row.Token == tokenValue {
			copied := *row
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("booking not found")
}

func (r *fakeRepo) FindByOrderItemIDs(_ context.Context, orderItemIDs []string) ([]domain.Confirmation, error) {
	var results []domain.Confirmation
	for _, itemID := range orderItemIDs {
		for _, row := range r.rows {
			if row.OrderItemID == itemID {
				results = append(results, *row)
			}
		}
	}
	return results, nil
}

func (r *fakeRepo) GetOrCreate(_ context.Context, params repository.NewConfirmation) (*domain.Confirmation, bool, error) {
	for _, row := range r.rows {
		if row.OrderItemID == params.OrderItemID {
			copied := *row
			return &copied, false, nil
		}
	}
	row := &domain.Confirmation{
		ID:             uuid.New(),
		OrderID:        params.OrderID,
		OrderItemID:    params.OrderItemID,
		CustomerNumber: params.CustomerNumber,
		Token:          params.Token,
		TokenExpiresAt: params.TokenExpiresAt,
		Status:         domain.StatusPending,
		CreatedAt:      time.Now(),
	}
	r.rows[row.ID] = row
	r.created++
	copied := *row
	return &copied, true, nil
}

func (r *fakeRepo) Confirm(_ context.Context, id uuid.UUID, to domain.Confirmed) (bool, error) {
	if r.confirmHook != nil {
		r.confirmHook()
	}
	row, ok := r.rows[id]
	if !ok || row.Status != domain.StatusPending {
		return false, nil
	}
	row.Status = domain.StatusConfirmed
	row.ConfirmedAt = &to.At
	row.ConfirmedBy = &to.By
	return true, nil
}

func (r *fakeRepo) Decline(_ context.Context, id uuid.UUID, to domain.Declined) (bool, error) {
	row, ok := r.rows[id]
	if !ok || row.Status != domain.StatusPending {
		return false, nil
	}
	r.applyDecline(row, to)
	return true, nil
}

func (r *fakeRepo) applyDecline(row *domain.Confirmation, to domain.Declined) {
	row.Status = domain.StatusDeclined
	row.DeclinedAt = &to.At
	row.DeclinedBy = &to.By
	row.DeclineReasonCode = &to.ReasonCode
	if to.Notes != "" {
		row.DeclineNotes = &to.Notes
	}
}

func (r *fakeRepo) ConfirmGroup(_ context.Context, ids []uuid.UUID, to domain.Confirmed) error {
	if r.groupHook != nil {
		r.groupHook()
	}
	if r.groupErr != nil {
		return r.groupErr
	}
	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.Status != domain.StatusPending {
			return apperr.Conflict("booking already processed")
		}
	}
	for _, id := range ids {
		row := r.rows[id]
		row.Status = domain.StatusConfirmed
		row.ConfirmedAt = &to.At
		row.ConfirmedBy = &to.By
	}
	return nil
}

func (r *fakeRepo) DeclineGroup(_ context.Context, ids []uuid.UUID, to domain.Declined) error {
	if r.groupHook != nil {
		r.groupHook()
	}
	if r.groupErr != nil {
		return r.groupErr
	}
	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.Status != domain.StatusPending {
			return apperr.Conflict("booking already processed")
		}
	}
	for _, id := range ids {
		r.applyDecline(r.rows[id], to)
	}
	return nil
}

func (r *fakeRepo) FindPendingOwned(_ context.Context, ids []uuid.UUID, customerNumbers []string) ([]domain.Confirmation, error) {
	owned := make(map[string]bool, len(customerNumbers))
	for _, number := range customerNumbers {
		owned[number] = true
	}
	var results []domain.Confirmation
	for _, id := range ids {
		row, ok := r.rows[id]
		if ok && row.Status == domain.StatusPending && owned[row.CustomerNumber] {
			results = append(results, *row)
		}
	}
	return results, nil
}

func (r *fakeRepo) SetDeclineTicket(_ context.Context, ids []uuid.UUID, ticketID int) error {
	for _, id := range ids {
		r.ticketRows[id] = ticketID
		if row, ok := r.rows[id]; ok {
			row.DeclineTicketID = &ticketID
		}
	}
	return nil
}

func (r *fakeRepo) BumpReminder(_ context.Context, id uuid.UUID, at time.Time) error {
	row, ok := r.rows[id]
	if !ok || row.Status != domain.StatusPending {
		return nil
	}
	r.bumped = append(r.bumped, id)
	row.ReminderCount++
	row.LastReminderAt = &at
	return nil
}

func (r *fakeRepo) SetEscalated(_ context.Context, id uuid.UUID, ticketID int, at time.Time) error {
	row, ok := r.rows[id]
	if !ok || row.Status != domain.StatusPending || row.EscalatedAt != nil {
		return apperr.Conflict("booking already escalated or answered")
	}
	r.escalated[id] = ticketID
	row.EscalatedAt = &at
	row.EscalationTicketID = &ticketID
	return nil
}

func (r *fakeRepo) ListDueForReminder(context.Context, int, time.Time) ([]domain.Confirmation, error) {
	return nil, nil
}

func (r *fakeRepo) ListDueForEscalation(context.Context, time.Time) ([]domain.Confirmation, error) {
	return nil, nil
}

func (r *fakeRepo) RegenerateToken(_ context.Context, id uuid.UUID, tokenValue string, expiresAt time.Time) error {
	row, ok := r.rows[id]
	if !ok {
		return apperr.NotFound("booking not found")
	}
	row.Token = tokenValue
	row.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeRepo) Stats(context.Context, []string, time.Time) (*repository.Stats, error) {
	return &repository.Stats{Total: len(r.rows)}, nil
}

type fakeRegistry struct {
	reasons map[string]*reasons.Reason
}

func (f *fakeRegistry) ListActive(context.Context) ([]reasons.Reason, error) {
	var results []reasons.Reason
	for _, reason := range f.reasons {
		if reason.Active {
			results = append(results, *reason)
		}
	}
	return results, nil
}

func (f *fakeRegistry) FindByCode(_ context.Context, code string) (*reasons.Reason, error) {
	return f.reasons[code], nil
}

type fakeOrders struct {
	items map[string]orders.Item
}

func (f *fakeOrders) FindItem(_ context.Context, itemID string) (*orders.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return nil, apperr.NotFound("order item not found")
	}
	return &item, nil
}

func (f *fakeOrders) ListItems(_ context.Context, customerNumbers []string, futureOnly bool, now time.Time) ([]orders.Item, error) {
	owned := make(map[string]bool, len(customerNumbers))
	for _, number := range customerNumbers {
		owned[number] = true
	}
	var results []orders.Item
	for _, item := range f.items {
		if !owned[item.CustomerNumber] {
			continue
		}
		if futureOnly && item.StartDate.Before(now) {
			continue
		}
		results = append(results, item)
	}
	return results, nil
}

type fakePartners struct {
	partners map[string]*partners.Partner
}

func (f *fakePartners) GetByCustomerNumber(_ context.Context, customerNumber string) (*partners.Partner, error) {
	partner, ok := f.partners[customerNumber]
	if !ok {
		return nil, apperr.NotFound("partner not found")
	}
	return partner, nil
}

type fakeTickets struct {
	nextID  int
	err     error
	created []ticketing.Ticket
}

func (f *fakeTickets) CreateTicket(_ context.Context, ticket ticketing.Ticket) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, ticket)
	f.nextID++
	return f.nextID, nil
}

type fakeMailer struct {
	sendErr   error
	requests  []string
	reminders []int
}

func (f *fakeMailer) SendConfirmationRequest(_ context.Context, toEmail string, _ email.BookingMailData) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.requests = append(f.requests, toEmail)
	return nil
}

func (f *fakeMailer) SendReminder(_ context.Context, toEmail string, level int, _ email.BookingMailData) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reminders = append(f.reminders, level)
	return nil
}

type fakeEnqueuer struct {
	enqueued []uuid.UUID
	err      error
}

func (f *fakeEnqueuer) EnqueueInitialRequest(_ context.Context, confirmationID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, confirmationID)
	return nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) {
	f.published = append(f.published, event)
}

func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(string, events.Handler) {}

type testConfig struct{}

func (testConfig) GetTokenExpiryDays() int            { return 7 }
func (testConfig) GetAppBaseURL() string              { return "https://portal.example.com" }
func (testConfig) GetOdooURL() string                 { return "https://odoo.example.com" }
func (testConfig) GetOdooDatabase() string            { return "helpdesk" }
func (testConfig) GetOdooUserID() int                 { return 2 }
func (testConfig) GetOdooAPIKey() string              { return "key" }
func (testConfig) GetEscalationRequesterName() string { return "System" }
func (testConfig) GetEscalationRequesterEmail() string {
	return "system@example.com"
}
func (testConfig) IsTicketingEnabled() bool { return true }

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	repo     *fakeRepo
	registry *fakeRegistry
	orders   *fakeOrders
	partners *fakePartners
	tickets  *fakeTickets
	mailer   *fakeMailer
	enqueuer *fakeEnqueuer
	bus      *fakeBus
	now      time.Time
	svc      *Service
}

func newFixture(t *testing.T, rows ...*domain.Confirmation) *fixture {
	t.Helper()

	f := &fixture{
		repo: newFakeRepo(rows...),
		registry: &fakeRegistry{reasons: map[string]*reasons.Reason{
			"date_conflict": {Code: "date_conflict", Label: "Terminkonflikt", Active: true},
			"other":         {Code: "other", Label: "Sonstiger Grund", RequiresNotes: true, Active: true},
			"retired":       {Code: "retired", Label: "Alt", Active: false},
		}},
		orders:   &fakeOrders{items: map[string]orders.Item{}},
		partners: &fakePartners{partners: map[string]*partners.Partner{}},
		tickets:  &fakeTickets{},
		mailer:   &fakeMailer{},
		enqueuer: &fakeEnqueuer{},
		bus:      &fakeBus{},
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.repo, f.registry, f.orders, f.partners, f.tickets, f.mailer,
		f.enqueuer, f.bus, logger.New("test"), testConfig{}).
		WithClock(func() time.Time { return f.now })
	return f
}

const testToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaabbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func (f *fixture) pendingRow(customerNumber string) *domain.Confirmation {
	row := &domain.Confirmation{
		ID:             uuid.New(),
		OrderID:        "SO-1001",
		OrderItemID:    "SO-1001-1",
		CustomerNumber: customerNumber,
		Token:          testToken,
		TokenExpiresAt: f.now.Add(48 * time.Hour),
		Status:         domain.StatusPending,
		CreatedAt:      f.now.Add(-2 * time.Hour),
	}
	f.repo.rows[row.ID] = row
	return row
}

func (f *fixture) withItemAndPartner(row *domain.Confirmation) {
	f.orders.items[row.OrderItemID] = orders.Item{
		ID:             row.OrderItemID,
		OrderID:        row.OrderID,
		CustomerNumber: row.CustomerNumber,
		CourseCode:     "K-100",
		CourseName:     "Staplerschein",
		Location:       "Hamburg",
		StartDate:      f.now.Add(14 * 24 * time.Hour),
		EndDate:        f.now.Add(15 * 24 * time.Hour),
		Participants:   4,
	}
	f.partners.partners[row.CustomerNumber] = &partners.Partner{
		CustomerNumber: row.CustomerNumber,
		CompanyName:    "Musterfirma GmbH",
		ContactName:    "Erika Muster",
		ContactEmail:   "erika@example.com",
	}
}

// =============================================================================
// Token flows
// =============================================================================

func TestConfirmByTokenSuccess(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")

	outcome, err := f.svc.ConfirmByToken(context.Background(), testToken)
	if err != nil {
		t.Fatalf("confirm by token: %v", err)
	}
	if outcome.Status != TokenConfirmed {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenConfirmed)
	}
	if f.repo.rows[row.ID].Status != domain.StatusConfirmed {
		t.Fatal("row must be confirmed")
	}
	if got := *f.repo.rows[row.ID].ConfirmedBy; got != string(events.ActorEmailLink) {
		t.Fatalf("confirmed by = %s, want %s", got, events.ActorEmailLink)
	}
	if len(f.bus.published) != 1 {
		t.Fatalf("published = %d events, want 1", len(f.bus.published))
	}
	if _, ok := f.bus.published[0].(events.BookingConfirmed); !ok {
		t.Fatalf("published %T, want BookingConfirmed", f.bus.published[0])
	}
}

func TestConfirmByTokenMalformed(t *testing.T) {
	f := newFixture(t)
	f.pendingRow("K-001")

	for _, raw := range []string{"", "short", "'; DROP TABLE bookings;--", strings.Repeat("g", 64)} {
		outcome, err := f.svc.ConfirmByToken(context.Background(), raw)
		if err != nil {
			t.Fatalf("confirm %q: %v", raw, err)
		}
		if outcome.Status != TokenInvalid {
			t.Fatalf("status for %q = %s, want %s", raw, outcome.Status, TokenInvalid)
		}
		if outcome.Confirmation != nil {
			t.Fatal("invalid outcome must not leak the confirmation")
		}
	}
}

func TestConfirmByTokenUnknown(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.ConfirmByToken(context.Background(), strings.Repeat("cd", 32))
	if err != nil {
		t.Fatalf("confirm by token: %v", err)
	}
	if outcome.Status != TokenNotFound {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenNotFound)
	}
	if outcome.Confirmation != nil {
		t.Fatal("unknown token must not carry a confirmation")
	}
}

func TestConfirmByTokenAlreadyAnswered(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")
	row.Status = domain.StatusDeclined

	outcome, err := f.svc.ConfirmByToken(context.Background(), testToken)
	if err != nil {
		t.Fatalf("confirm by token: %v", err)
	}
	if outcome.Status != TokenAlreadyProcessed {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenAlreadyProcessed)
	}
	if outcome.Code != domain.StatusDeclined {
		t.Fatalf("code = %s, want %s", outcome.Code, domain.StatusDeclined)
	}
	if len(f.bus.published) != 0 {
		t.Fatal("terminal rows must not publish events")
	}
}

func TestConfirmByTokenExpired(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")
	row.TokenExpiresAt = f.now.Add(-time.Hour)

	outcome, err := f.svc.ConfirmByToken(context.Background(), testToken)
	if err != nil {
		t.Fatalf("confirm by token: %v", err)
	}
	if outcome.Status != TokenExpired {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenExpired)
	}
	if f.repo.rows[row.ID].Status != domain.StatusPending {
		t.Fatal("expired token must not mutate the row")
	}
}

func TestConfirmByTokenLostRace(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")

	// Another writer confirms between the read and the gated write.
	f.repo.confirmHook = func() {
		now := f.now
		by := "someone-else"
		row.Status = domain.StatusConfirmed
		row.ConfirmedAt = &now
		row.ConfirmedBy = &by
	}

	outcome, err := f.svc.ConfirmByToken(context.Background(), testToken)
	if err != nil {
		t.Fatalf("confirm by token: %v", err)
	}
	if outcome.Status != TokenAlreadyProcessed {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenAlreadyProcessed)
	}
	if outcome.Code != domain.StatusConfirmed {
		t.Fatalf("code = %s, want %s", outcome.Code, domain.StatusConfirmed)
	}
	if len(f.bus.published) != 0 {
		t.Fatal("lost race must not publish")
	}
}

func TestResolveDeclineTokenDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")

	outcome, err := f.svc.ResolveDeclineToken(context.Background(), testToken)
	if err != nil {
		t.Fatalf("resolve decline token: %v", err)
	}
	if outcome.Status != TokenDeclinable {
		t.Fatalf("status = %s, want %s", outcome.Status, TokenDeclinable)
	}
	if f.repo.rows[row.ID].Status != domain.StatusPending {
		t.Fatal("decline token resolution must not mutate the row")
	}
	if len(f.bus.published) != 0 {
		t.Fatal("decline token resolution must not publish")
	}
}

// =============================================================================
// Portal flows
// =============================================================================

func TestConfirmByPortalGroup(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")
	related := f.pendingRow("K-001")
	related.Token = strings.Repeat("ef", 32)

	result, err := f.svc.ConfirmByPortal(context.Background(), actor, primary.ID, []uuid.UUID{related.ID})
	if err != nil {
		t.Fatalf("confirm by portal: %v", err)
	}
	if len(result.Updated) != 2 {
		t.Fatalf("updated = %d rows, want 2", len(result.Updated))
	}
	for _, row := range []*domain.Confirmation{primary, related} {
		stored := f.repo.rows[row.ID]
		if stored.Status != domain.StatusConfirmed {
			t.Fatalf("row %s status = %s, want confirmed", row.ID, stored.Status)
		}
		if *stored.ConfirmedBy != actor.UserID.String() {
			t.Fatalf("confirmed by = %s, want actor id", *stored.ConfirmedBy)
		}
	}
	if len(f.bus.published) != 2 {
		t.Fatalf("published = %d events, want 2", len(f.bus.published))
	}
}

func TestConfirmByPortalForbidden(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-002"}}
	primary := f.pendingRow("K-001")

	_, err := f.svc.ConfirmByPortal(context.Background(), actor, primary.ID, nil)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if f.repo.rows[primary.ID].Status != domain.StatusPending {
		t.Fatal("foreign booking must stay untouched")
	}
}

func TestConfirmByPortalAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")
	primary.Status = domain.StatusDeclined

	result, err := f.svc.ConfirmByPortal(context.Background(), actor, primary.ID, nil)
	if err != nil {
		t.Fatalf("confirm by portal: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("expected already-processed result")
	}
	if result.CurrentStatus != domain.StatusDeclined {
		t.Fatalf("current status = %s, want declined", result.CurrentStatus)
	}
}

func TestConfirmByPortalDropsForeignRelated(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")
	foreign := f.pendingRow("K-999")
	foreign.Token = strings.Repeat("ef", 32)

	result, err := f.svc.ConfirmByPortal(context.Background(), actor, primary.ID, []uuid.UUID{foreign.ID})
	if err != nil {
		t.Fatalf("confirm by portal: %v", err)
	}
	if len(result.Updated) != 1 {
		t.Fatalf("updated = %d rows, want 1", len(result.Updated))
	}
	if f.repo.rows[foreign.ID].Status != domain.StatusPending {
		t.Fatal("foreign related row must stay pending")
	}
}

func TestConfirmByPortalGroupConflict(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")

	f.repo.groupErr = apperr.Conflict("booking already processed")
	f.repo.groupHook = func() {
		now := f.now
		primary.Status = domain.StatusConfirmed
		primary.ConfirmedAt = &now
	}

	result, err := f.svc.ConfirmByPortal(context.Background(), actor, primary.ID, nil)
	if err != nil {
		t.Fatalf("confirm by portal: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("group conflict must map to already-processed")
	}
	if result.CurrentStatus != domain.StatusConfirmed {
		t.Fatalf("current status = %s, want confirmed", result.CurrentStatus)
	}
}

func TestDeclineByPortalUnknownReason(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")

	result, err := f.svc.DeclineByPortal(context.Background(), actor, primary.ID, nil, "nope", "")
	if err != nil {
		t.Fatalf("decline by portal: %v", err)
	}
	if result.InvalidReason == "" {
		t.Fatal("expected invalid-reason result")
	}
	if f.repo.rows[primary.ID].Status != domain.StatusPending {
		t.Fatal("invalid reason must leave the group untouched")
	}
}

func TestDeclineByPortalNotesRequired(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")

	result, err := f.svc.DeclineByPortal(context.Background(), actor, primary.ID, nil, "other", "   ")
	if err != nil {
		t.Fatalf("decline by portal: %v", err)
	}
	if result.InvalidReason != reasons.ErrNotesRequired.Error() {
		t.Fatalf("invalid reason = %q, want %q", result.InvalidReason, reasons.ErrNotesRequired)
	}
	if f.repo.rows[primary.ID].Status != domain.StatusPending {
		t.Fatal("missing notes must leave the group untouched")
	}
}

func TestDeclineByPortalRetiredReason(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")

	result, err := f.svc.DeclineByPortal(context.Background(), actor, primary.ID, nil, "retired", "")
	if err != nil {
		t.Fatalf("decline by portal: %v", err)
	}
	if result.InvalidReason != reasons.ErrReasonRetired.Error() {
		t.Fatalf("invalid reason = %q, want %q", result.InvalidReason, reasons.ErrReasonRetired)
	}
}

func TestDeclineByPortalGroupCreatesOneTicket(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")
	related := f.pendingRow("K-001")
	related.Token = strings.Repeat("ef", 32)
	f.withItemAndPartner(primary)

	result, err := f.svc.DeclineByPortal(context.Background(), actor, primary.ID,
		[]uuid.UUID{related.ID}, "date_conflict", "Kurs kollidiert")
	if err != nil {
		t.Fatalf("decline by portal: %v", err)
	}
	if len(result.Updated) != 2 {
		t.Fatalf("updated = %d rows, want 2", len(result.Updated))
	}
	if len(f.tickets.created) != 1 {
		t.Fatalf("tickets = %d, want 1 per group", len(f.tickets.created))
	}
	if result.TicketID == nil {
		t.Fatal("expected ticket id on the result")
	}
	for _, id := range []uuid.UUID{primary.ID, related.ID} {
		if f.repo.ticketRows[id] != *result.TicketID {
			t.Fatalf("row %s missing decline ticket", id)
		}
	}
	declined, ok := f.bus.published[0].(events.BookingDeclined)
	if !ok {
		t.Fatalf("published %T, want BookingDeclined", f.bus.published[0])
	}
	if declined.GroupSize != 2 {
		t.Fatalf("group size = %d, want 2", declined.GroupSize)
	}
}

func TestDeclineByPortalTicketFailureStillDeclines(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	primary := f.pendingRow("K-001")
	f.withItemAndPartner(primary)
	f.tickets.err = errors.New("odoo down")

	result, err := f.svc.DeclineByPortal(context.Background(), actor, primary.ID, nil, "date_conflict", "")
	if err != nil {
		t.Fatalf("decline by portal: %v", err)
	}
	if !result.Applied() {
		t.Fatal("decline must land despite ticket failure")
	}
	if result.TicketID != nil {
		t.Fatal("no ticket id on failure")
	}
	if f.repo.rows[primary.ID].Status != domain.StatusDeclined {
		t.Fatal("row must be declined")
	}
}

// =============================================================================
// Listing, stats, token maintenance
// =============================================================================

func TestListBookingsCreatesMissingConfirmations(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	existing := f.pendingRow("K-001")
	f.withItemAndPartner(existing)
	f.orders.items["SO-1002-1"] = orders.Item{
		ID:             "SO-1002-1",
		OrderID:        "SO-1002",
		CustomerNumber: "K-001",
		CourseCode:     "K-200",
		CourseName:     "Kranschein",
		StartDate:      f.now.Add(30 * 24 * time.Hour),
		EndDate:        f.now.Add(31 * 24 * time.Hour),
	}

	views, err := f.svc.ListBookings(context.Background(), actor, ListFilter{})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("views = %d, want 2", len(views))
	}
	if f.repo.created != 1 {
		t.Fatalf("created = %d confirmations, want 1", f.repo.created)
	}
	if len(f.enqueuer.enqueued) != 1 {
		t.Fatalf("enqueued = %d initial requests, want 1", len(f.enqueuer.enqueued))
	}
}

func TestListBookingsEnqueueFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	f.orders.items["SO-1002-1"] = orders.Item{
		ID:             "SO-1002-1",
		OrderID:        "SO-1002",
		CustomerNumber: "K-001",
		StartDate:      f.now.Add(30 * 24 * time.Hour),
		EndDate:        f.now.Add(31 * 24 * time.Hour),
	}
	f.enqueuer.err = errors.New("redis down")

	views, err := f.svc.ListBookings(context.Background(), actor, ListFilter{})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
}

func TestListBookingsStatusFilter(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	confirmed := f.pendingRow("K-001")
	confirmed.Status = domain.StatusConfirmed
	f.withItemAndPartner(confirmed)

	views, err := f.svc.ListBookings(context.Background(), actor, ListFilter{Status: domain.StatusDeclined})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("views = %d, want 0", len(views))
	}
}

func TestRegenerateToken(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	row := f.pendingRow("K-001")
	row.TokenExpiresAt = f.now.Add(-time.Hour)

	fresh, err := f.svc.RegenerateToken(context.Background(), actor, row.ID)
	if err != nil {
		t.Fatalf("regenerate token: %v", err)
	}
	if fresh.Token == testToken {
		t.Fatal("token must change")
	}
	if want := f.now.AddDate(0, 0, 7); !fresh.TokenExpiresAt.Equal(want) {
		t.Fatalf("expiry = %s, want %s", fresh.TokenExpiresAt, want)
	}
}

func TestRegenerateTokenAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	actor := Actor{UserID: uuid.New(), CustomerNumbers: []string{"K-001"}}
	row := f.pendingRow("K-001")
	row.Status = domain.StatusConfirmed

	_, err := f.svc.RegenerateToken(context.Background(), actor, row.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestSendInitialRequestSkipsAnswered(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")
	row.Status = domain.StatusConfirmed
	f.withItemAndPartner(row)

	if err := f.svc.SendInitialRequest(context.Background(), row.ID); err != nil {
		t.Fatalf("send initial request: %v", err)
	}
	if len(f.mailer.requests) != 0 {
		t.Fatal("answered booking must not get a request mail")
	}
}

func TestSendInitialRequestMissingContact(t *testing.T) {
	f := newFixture(t)
	row := f.pendingRow("K-001")
	f.withItemAndPartner(row)
	f.partners.partners[row.CustomerNumber].ContactEmail = ""

	if err := f.svc.SendInitialRequest(context.Background(), row.ID); err == nil {
		t.Fatal("expected error for missing contact email")
	}
}
