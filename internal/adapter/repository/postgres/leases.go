package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/simaogato/settleflow/internal/domain"
)

// LeaseForUpdate reads a worker lease under FOR UPDATE. A concurrent cycle
// for the same worker id blocks here until the holder commits; lease hold
// time is one settlement cycle, so blocking is preferred over failing.
func (u *unitOfWork) LeaseForUpdate(ctx context.Context, workerID string) (*domain.WorkerLease, error) {
	const query = `
		SELECT id, from_event_id, created_at, updated_at
		FROM workers
		WHERE id = $1
		FOR UPDATE
	`

	var lease domain.WorkerLease
	err := u.tx.QueryRowContext(ctx, query, workerID).Scan(
		&lease.WorkerID,
		&lease.FromEventID,
		&lease.CreatedAt,
		&lease.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLeaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query worker lease: %w", err)
	}

	return &lease, nil
}

// CreateLease inserts a new worker lease row.
func (u *unitOfWork) CreateLease(ctx context.Context, lease *domain.WorkerLease) error {
	const query = `
		INSERT INTO workers (id, from_event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := u.tx.ExecContext(ctx, query,
		lease.WorkerID,
		lease.FromEventID,
		lease.CreatedAt,
		lease.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert worker lease: %w", err)
	}

	return nil
}

// AdvanceLease moves the worker's cursor forward. The from_event_id guard
// keeps the cursor monotonically non-decreasing.
func (u *unitOfWork) AdvanceLease(ctx context.Context, workerID string, fromEventID int64) error {
	const query = `
		UPDATE workers
		SET from_event_id = $1, updated_at = $2
		WHERE id = $3 AND from_event_id <= $1
	`

	_, err := u.tx.ExecContext(ctx, query, fromEventID, time.Now(), workerID)
	if err != nil {
		return fmt.Errorf("failed to advance worker lease: %w", err)
	}

	return nil
}
