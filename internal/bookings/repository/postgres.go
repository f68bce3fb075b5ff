package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking_portal_backend/internal/bookings/domain"
	"booking_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const confirmationColumns = `
	id, order_id, order_item_id, customer_number,
	confirmation_token, token_expires_at,
	status, confirmed_at, confirmed_by, declined_at, declined_by,
	decline_reason_code, decline_notes,
	reminder_count, last_reminder_at, escalated_at, escalation_ticket_id,
	decline_ticket_id, created_at, updated_at`

// Repo is the Postgres implementation of Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed confirmation repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanConfirmation(row pgx.Row) (*domain.Confirmation, error) {
	var c domain.Confirmation
	err := row.Scan(
		&c.ID, &c.OrderID, &c.OrderItemID, &c.CustomerNumber,
		&c.Token, &c.TokenExpiresAt,
		&c.Status, &c.ConfirmedAt, &c.ConfirmedBy, &c.DeclinedAt, &c.DeclinedBy,
		&c.DeclineReasonCode, &c.DeclineNotes,
		&c.ReminderCount, &c.LastReminderAt, &c.EscalatedAt, &c.EscalationTicketID,
		&c.DeclineTicketID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectConfirmations(rows pgx.Rows) ([]domain.Confirmation, error) {
	defer rows.Close()
	var results []domain.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		results = append(results, *c)
	}
	return results, rows.Err()
}

// FindByID returns the confirmation with the given id.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+confirmationColumns+` FROM booking_confirmations WHERE id = $1`, id)
	c, err := scanConfirmation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("booking confirmation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find confirmation by id: %w", err)
	}
	return c, nil
}

// FindByToken returns the confirmation carrying the given token.
func (r *Repo) FindByToken(ctx context.Context, tokenValue string) (*domain.Confirmation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+confirmationColumns+` FROM booking_confirmations WHERE confirmation_token = $1`, tokenValue)
	c, err := scanConfirmation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("booking confirmation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find confirmation by token: %w", err)
	}
	return c, nil
}

// FindByOrderItemIDs returns confirmations for the given order items.
func (r *Repo) FindByOrderItemIDs(ctx context.Context, orderItemIDs []string) ([]domain.Confirmation, error) {
	if len(orderItemIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+confirmationColumns+` FROM booking_confirmations WHERE order_item_id = ANY($1)`, orderItemIDs)
	if err != nil {
		return nil, fmt.Errorf("find confirmations by order items: %w", err)
	}
	return collectConfirmations(rows)
}

// GetOrCreate returns the confirmation for an order item, inserting a
// fresh pending row when none exists. The row lock closes the race
// between two listings creating the same confirmation.
func (r *Repo) GetOrCreate(ctx context.Context, params NewConfirmation) (*domain.Confirmation, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin get-or-create: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+confirmationColumns+` FROM booking_confirmations WHERE order_item_id = $1 FOR UPDATE`,
		params.OrderItemID)
	existing, err := scanConfirmation(row)
	if err == nil {
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, false, fmt.Errorf("commit get-or-create: %w", commitErr)
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("lookup confirmation: %w", err)
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO booking_confirmations
			(id, order_id, order_item_id, customer_number, confirmation_token, token_expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+confirmationColumns,
		uuid.New(), params.OrderID, params.OrderItemID, params.CustomerNumber,
		params.Token, params.TokenExpiresAt, domain.StatusPending)
	created, err := scanConfirmation(row)
	if err != nil {
		return nil, false, fmt.Errorf("insert confirmation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit get-or-create: %w", err)
	}
	return created, true, nil
}

// Confirm applies a pending->confirmed transition.
func (r *Repo) Confirm(ctx context.Context, id uuid.UUID, to domain.Confirmed) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET status = $1, confirmed_at = $2, confirmed_by = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		domain.StatusConfirmed, to.At, to.By, id, domain.StatusPending)
	if err != nil {
		return false, fmt.Errorf("confirm booking %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Decline applies a pending->declined transition.
func (r *Repo) Decline(ctx context.Context, id uuid.UUID, to domain.Declined) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET status = $1, declined_at = $2, declined_by = $3,
			decline_reason_code = $4, decline_notes = NULLIF($5, ''), updated_at = now()
		WHERE id = $6 AND status = $7`,
		domain.StatusDeclined, to.At, to.By, to.ReasonCode, to.Notes, id, domain.StatusPending)
	if err != nil {
		return false, fmt.Errorf("decline booking %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmGroup applies the transition to every id in one transaction.
func (r *Repo) ConfirmGroup(ctx context.Context, ids []uuid.UUID, to domain.Confirmed) error {
	return r.groupTransition(ctx, ids, func(tx pgx.Tx, id uuid.UUID) (int64, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE booking_confirmations
			SET status = $1, confirmed_at = $2, confirmed_by = $3, updated_at = now()
			WHERE id = $4 AND status = $5`,
			domain.StatusConfirmed, to.At, to.By, id, domain.StatusPending)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

// DeclineGroup applies the transition to every id in one transaction.
func (r *Repo) DeclineGroup(ctx context.Context, ids []uuid.UUID, to domain.Declined) error {
	return r.groupTransition(ctx, ids, func(tx pgx.Tx, id uuid.UUID) (int64, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE booking_confirmations
			SET status = $1, declined_at = $2, declined_by = $3,
				decline_reason_code = $4, decline_notes = NULLIF($5, ''), updated_at = now()
			WHERE id = $6 AND status = $7`,
			domain.StatusDeclined, to.At, to.By, to.ReasonCode, to.Notes, id, domain.StatusPending)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

// groupTransition runs the per-row write for every id inside one
// transaction. Any row that is no longer pending aborts the whole group.
func (r *Repo) groupTransition(ctx context.Context, ids []uuid.UUID, write func(tx pgx.Tx, id uuid.UUID) (int64, error)) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin group transition: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		affected, err := write(tx, id)
		if err != nil {
			return fmt.Errorf("group transition %s: %w", id, err)
		}
		if affected == 0 {
			return apperr.Conflict("booking already processed").WithDetails(map[string]string{"id": id.String()})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit group transition: %w", err)
	}
	return nil
}

// FindPendingOwned filters ids to still-pending rows owned by one of the
// given customer numbers.
func (r *Repo) FindPendingOwned(ctx context.Context, ids []uuid.UUID, customerNumbers []string) ([]domain.Confirmation, error) {
	if len(ids) == 0 || len(customerNumbers) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+confirmationColumns+`
		FROM booking_confirmations
		WHERE id = ANY($1) AND customer_number = ANY($2) AND status = $3`,
		ids, customerNumbers, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("find pending owned: %w", err)
	}
	return collectConfirmations(rows)
}

// SetDeclineTicket records the group's helpdesk ticket on every row.
func (r *Repo) SetDeclineTicket(ctx context.Context, ids []uuid.UUID, ticketID int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET decline_ticket_id = $1, updated_at = now()
		WHERE id = ANY($2)`, ticketID, ids)
	if err != nil {
		return fmt.Errorf("set decline ticket: %w", err)
	}
	return nil
}

// BumpReminder increments the reminder counter after a successful send.
// The counter only moves while the row is still pending; a row answered
// between the bucket load and this write is left untouched.
func (r *Repo) BumpReminder(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET reminder_count = reminder_count + 1, last_reminder_at = $1, updated_at = now()
		WHERE id = $2 AND status = $3`, at, id, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("bump reminder %s: %w", id, err)
	}
	return nil
}

// SetEscalated records the helpdesk ticket after escalation succeeded.
// Gated on pending like the reminder bump: a row that was answered or
// escalated concurrently stays as the winner left it.
func (r *Repo) SetEscalated(ctx context.Context, id uuid.UUID, ticketID int, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET escalated_at = $1, escalation_ticket_id = $2, updated_at = now()
		WHERE id = $3 AND escalated_at IS NULL AND status = $4`, at, ticketID, id, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("set escalated %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("booking already escalated or answered")
	}
	return nil
}

// ListDueForReminder returns the reminder bucket for a reminder count.
func (r *Repo) ListDueForReminder(ctx context.Context, reminderCount int, createdBefore time.Time) ([]domain.Confirmation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+confirmationColumns+`
		FROM booking_confirmations
		WHERE status = $1 AND reminder_count = $2 AND created_at <= $3 AND escalated_at IS NULL
		ORDER BY created_at`,
		domain.StatusPending, reminderCount, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list due for reminder: %w", err)
	}
	return collectConfirmations(rows)
}

// ListDueForEscalation returns pending rows that exhausted reminders.
func (r *Repo) ListDueForEscalation(ctx context.Context, createdBefore time.Time) ([]domain.Confirmation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+confirmationColumns+`
		FROM booking_confirmations
		WHERE status = $1 AND reminder_count >= 2 AND created_at <= $2 AND escalated_at IS NULL
		ORDER BY created_at`,
		domain.StatusPending, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list due for escalation: %w", err)
	}
	return collectConfirmations(rows)
}

// RegenerateToken issues a fresh token on a still-pending row.
func (r *Repo) RegenerateToken(ctx context.Context, id uuid.UUID, tokenValue string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE booking_confirmations
		SET confirmation_token = $1, token_expires_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		tokenValue, expiresAt, id, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("regenerate token %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("booking already processed")
	}
	return nil
}

// Stats aggregates per-partner confirmation counts in a single query.
func (r *Repo) Stats(ctx context.Context, customerNumbers []string, attentionBefore time.Time) (*Stats, error) {
	if len(customerNumbers) == 0 {
		return &Stats{}, nil
	}
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = $2),
			count(*) FILTER (WHERE status = $3),
			count(*) FILTER (WHERE status = $4),
			count(*) FILTER (WHERE status = $2 AND created_at <= $5)
		FROM booking_confirmations
		WHERE customer_number = ANY($1)`,
		customerNumbers,
		domain.StatusPending, domain.StatusConfirmed, domain.StatusDeclined,
		attentionBefore).
		Scan(&stats.Total, &stats.Pending, &stats.Confirmed, &stats.Declined, &stats.NeedsAttention)
	if err != nil {
		return nil, fmt.Errorf("confirmation stats: %w", err)
	}
	return &stats, nil
}
