// Package orders exposes the order data the booking confirmation flow
// needs: course booking line items and their ownership.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booking_portal_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Item is a single booked course date on an order.
type Item struct {
	ID             string
	OrderID        string
	CustomerNumber string
	CourseCode     string
	CourseName     string
	Location       string
	StartDate      time.Time
	EndDate        time.Time
	Participants   int
}

// Repository looks up order items.
type Repository interface {
	// FindItem returns a single order item by id.
	FindItem(ctx context.Context, itemID string) (*Item, error)
	// ListItems returns the order items belonging to the given customer
	// numbers, optionally restricted to future start dates.
	ListItems(ctx context.Context, customerNumbers []string, futureOnly bool, now time.Time) ([]Item, error)
}

// Repo is the Postgres implementation of Repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed order item repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const itemColumns = `
	id, order_id, customer_number, course_code, course_name,
	location, start_date, end_date, participants`

// FindItem returns a single order item by id.
func (r *Repo) FindItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, itemID).
		Scan(&item.ID, &item.OrderID, &item.CustomerNumber, &item.CourseCode, &item.CourseName,
			&item.Location, &item.StartDate, &item.EndDate, &item.Participants)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find order item: %w", err)
	}
	return &item, nil
}

// ListItems returns order items owned by the given customer numbers.
func (r *Repo) ListItems(ctx context.Context, customerNumbers []string, futureOnly bool, now time.Time) ([]Item, error) {
	if len(customerNumbers) == 0 {
		return nil, nil
	}

	query := `SELECT ` + itemColumns + ` FROM order_items WHERE customer_number = ANY($1)`
	args := []interface{}{customerNumbers}
	if futureOnly {
		query += ` AND start_date >= $2`
		args = append(args, now)
	}
	query += ` ORDER BY start_date`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var results []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.CustomerNumber, &item.CourseCode, &item.CourseName,
			&item.Location, &item.StartDate, &item.EndDate, &item.Participants); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		results = append(results, item)
	}
	return results, rows.Err()
}
