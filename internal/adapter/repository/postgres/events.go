package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/simaogato/settleflow/internal/domain"
)

// AppendEvent inserts a new event and returns its generated id.
func (u *unitOfWork) AppendEvent(ctx context.Context, event *domain.Event) (int64, error) {
	const query = `
		INSERT INTO events (task_id, account_id, operation, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := u.tx.QueryRowContext(ctx, query,
		event.TaskID,
		event.AccountID,
		string(event.Operation),
		string(event.Status),
		event.Amount.String(),
		event.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	return id, nil
}

// PendingEvents returns the pending events in [fromID, toID] ordered by
// (account_id, id). The ordering keeps each account's events contiguous so
// settlement applies them sequentially and deterministically.
func (u *unitOfWork) PendingEvents(ctx context.Context, fromID, toID int64) ([]*domain.Event, error) {
	const query = `
		SELECT id, task_id, account_id, operation, status, amount, created_at
		FROM events
		WHERE id BETWEEN $1 AND $2 AND status = $3
		ORDER BY account_id ASC, id ASC
	`

	rows, err := u.tx.QueryContext(ctx, query, fromID, toID, string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		if err := rows.Scan(
			&event.ID,
			&event.TaskID,
			&event.AccountID,
			&event.Operation,
			&event.Status,
			&event.Amount,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// PendingEventAccounts returns the distinct account ids referenced by
// pending events in [fromID, toID].
func (u *unitOfWork) PendingEventAccounts(ctx context.Context, fromID, toID int64) ([]string, error) {
	const query = `
		SELECT DISTINCT account_id
		FROM events
		WHERE id BETWEEN $1 AND $2 AND status = $3
	`

	rows, err := u.tx.QueryContext(ctx, query, fromID, toID, string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending event accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account ids: %w", err)
	}

	return ids, nil
}

// FinalizeEvents sets the status of the given event ids. The status filter
// makes this a compare-and-swap: rows that already left pending are not
// touched, so a replayed window clobbers nothing.
func (u *unitOfWork) FinalizeEvents(ctx context.Context, ids []int64, status domain.EventStatus) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `
		UPDATE events
		SET status = $1
		WHERE id = ANY($2) AND status = $3
	`

	_, err := u.tx.ExecContext(ctx, query, string(status), pq.Array(ids), string(domain.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to finalize events: %w", err)
	}

	return nil
}

// MaxEventID returns the highest event id in existence; ok is false when the
// events relation is empty.
func (u *unitOfWork) MaxEventID(ctx context.Context) (int64, bool, error) {
	const query = `
		SELECT id
		FROM events
		ORDER BY id DESC
		LIMIT 1
	`

	var id int64
	err := u.tx.QueryRowContext(ctx, query).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query max event id: %w", err)
	}

	return id, true, nil
}
