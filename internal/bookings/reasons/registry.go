package reasons

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry looks up decline reasons.
type Registry interface {
	// ListActive returns all active reasons ordered for display.
	ListActive(ctx context.Context) ([]Reason, error)
	// FindByCode returns the reason for a code, active or not.
	// Returns (nil, nil) when the code is not registered.
	FindByCode(ctx context.Context, code string) (*Reason, error)
}

// PgRegistry is the Postgres-backed Registry.
type PgRegistry struct {
	pool *pgxpool.Pool
}

// NewRegistry creates a Postgres-backed decline reason registry.
func NewRegistry(pool *pgxpool.Pool) *PgRegistry {
	return &PgRegistry{pool: pool}
}

var _ Registry = (*PgRegistry)(nil)

// ListActive returns all active reasons ordered by sort_order.
func (r *PgRegistry) ListActive(ctx context.Context) ([]Reason, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, label, requires_notes, active, sort_order
		FROM decline_reasons
		WHERE active = true
		ORDER BY sort_order, code`)
	if err != nil {
		return nil, fmt.Errorf("list decline reasons: %w", err)
	}
	defer rows.Close()

	var results []Reason
	for rows.Next() {
		var reason Reason
		if err := rows.Scan(&reason.Code, &reason.Label, &reason.RequiresNotes, &reason.Active, &reason.SortOrder); err != nil {
			return nil, fmt.Errorf("scan decline reason: %w", err)
		}
		results = append(results, reason)
	}
	return results, rows.Err()
}

// FindByCode returns the reason for a code regardless of active state.
func (r *PgRegistry) FindByCode(ctx context.Context, code string) (*Reason, error) {
	var reason Reason
	err := r.pool.QueryRow(ctx, `
		SELECT code, label, requires_notes, active, sort_order
		FROM decline_reasons
		WHERE code = $1`, code).
		Scan(&reason.Code, &reason.Label, &reason.RequiresNotes, &reason.Active, &reason.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find decline reason %s: %w", code, err)
	}
	return &reason, nil
}
