// Package partners exposes partner master data keyed by customer number.
package partners

import (
	"context"
	"errors"
	"fmt"

	"booking_portal_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Partner is the master data record for a partner company.
type Partner struct {
	CustomerNumber string
	CompanyName    string
	ContactName    string
	ContactEmail   string
}

// Repository looks up partners.
type Repository interface {
	GetByCustomerNumber(ctx context.Context, customerNumber string) (*Partner, error)
}

// Repo is the Postgres implementation of Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed partner repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// GetByCustomerNumber returns the partner owning a customer number.
func (r *Repo) GetByCustomerNumber(ctx context.Context, customerNumber string) (*Partner, error) {
	var partner Partner
	err := r.pool.QueryRow(ctx, `
		SELECT customer_number, company_name, contact_name, contact_email
		FROM partners
		WHERE customer_number = $1`, customerNumber).
		Scan(&partner.CustomerNumber, &partner.CompanyName, &partner.ContactName, &partner.ContactEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("partner not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find partner %s: %w", customerNumber, err)
	}
	return &partner, nil
}
