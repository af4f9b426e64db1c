package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/simaogato/settleflow/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// conflict.
const uniqueViolation = "23505"

// AccountByID retrieves an account by its id.
func (u *unitOfWork) AccountByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `
		SELECT id, balance
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	err := u.tx.QueryRowContext(ctx, query, id).Scan(&account.ID, &account.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &account, nil
}

// CreateAccount inserts a new account, translating a unique conflict into
// domain.ErrAccountExists so intake can absorb the race inside a savepoint.
func (u *unitOfWork) CreateAccount(ctx context.Context, account *domain.Account) error {
	const query = `
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
	`

	_, err := u.tx.ExecContext(ctx, query, account.ID, account.Balance.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// AccountsByIDs retrieves the accounts for the given id set.
func (u *unitOfWork) AccountsByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id, balance
		FROM accounts
		WHERE id = ANY($1)
	`

	rows, err := u.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(&account.ID, &account.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// WriteBackBalances writes the cached balance projection, one parameterized
// update per account id.
func (u *unitOfWork) WriteBackBalances(ctx context.Context, balances map[string]decimal.Decimal) error {
	const query = `
		UPDATE accounts
		SET balance = $1
		WHERE id = $2
	`

	for id, balance := range balances {
		if _, err := u.tx.ExecContext(ctx, query, balance.String(), id); err != nil {
			return fmt.Errorf("failed to update balance for account %s: %w", id, err)
		}
	}

	return nil
}
