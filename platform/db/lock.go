package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLock coordinates mutually exclusive background jobs across
// processes using Postgres session-level advisory locks. The lock is
// tied to the connection that acquired it, so the connection is pinned
// until Release is called.
type AdvisoryLock struct {
	pool *pgxpool.Pool
	key  int64
}

// NewAdvisoryLock creates an advisory lock helper for the given key.
func NewAdvisoryLock(pool *pgxpool.Pool, key int64) *AdvisoryLock {
	return &AdvisoryLock{pool: pool, key: key}
}

// TryAcquire attempts to take the lock without blocking. On success it
// returns a release function that must be called to free the lock and
// return the pinned connection to the pool. When the lock is held
// elsewhere it returns ok=false and a nil release function.
func (l *AdvisoryLock) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}

	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		// Unlock on the same session that locked. Background context so
		// the lock is freed even when the job context is already done.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key)
		conn.Release()
	}
	return release, true, nil
}
