package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/types"
)

const (
	pqLockNotAvailable = "55P03"
	pqUniqueViolation  = "23505"
)

// LockKey takes a transaction scoped advisory lock on req.Key, waiting up to
// the request timeout. A non-positive timeout fails fast. Must run inside
// WithTx; the lock is released on commit or rollback.
func (c *Client) LockKey(ctx context.Context, req types.LockRequest) error {
	tx := c.TxFromContext(ctx)
	if tx == nil {
		return ierr.NewError("LockKey must be called inside a transaction").
			Mark(ierr.ErrInternal)
	}

	timeout := req.GetTimeout()
	if timeout <= 0 {
		ok, err := c.TryLockKey(ctx, req.Key)
		if err != nil {
			return err
		}
		if !ok {
			return lockHeld(req.Key)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set lock timeout").
			Mark(ierr.ErrDatabase)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.Key); err != nil {
		if isLockTimeoutError(err) {
			return lockHeld(req.Key)
		}
		return ierr.WithError(err).
			WithHint("Failed to acquire lock").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// TryLockKey reports ok=false when another transaction holds the key
func (c *Client) TryLockKey(ctx context.Context, key string) (bool, error) {
	tx := c.TxFromContext(ctx)
	if tx == nil {
		return false, ierr.NewError("TryLockKey must be called inside a transaction").
			Mark(ierr.ErrInternal)
	}

	var ok bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to try lock").
			Mark(ierr.ErrDatabase)
	}
	return ok, nil
}

func lockHeld(key string) error {
	return ierr.NewErrorf("lock %s is held", key).
		WithHint("Another process is working on this resource").
		WithReportableDetails(map[string]interface{}{"lock_key": key}).
		Mark(ierr.ErrTimeout)
}

func isLockTimeoutError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
