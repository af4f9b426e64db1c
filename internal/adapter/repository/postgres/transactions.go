package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/simaogato/settleflow/internal/domain"
)

// AppendTransactions inserts the given ledger transactions.
func (u *unitOfWork) AppendTransactions(ctx context.Context, transactions []*domain.Transaction) error {
	const query = `
		INSERT INTO transactions (event_id, account_id, operation, label, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, transaction := range transactions {
		_, err := u.tx.ExecContext(ctx, query,
			transaction.EventID,
			transaction.AccountID,
			string(transaction.Operation),
			string(transaction.Label),
			transaction.Amount.String(),
			transaction.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	return nil
}

// SumTransactionsByAccount returns the exact sum of signed transaction
// amounts per account, restricted to the given account id set. This is the
// authoritative balance computation.
func (u *unitOfWork) SumTransactionsByAccount(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	const query = `
		SELECT account_id, SUM(amount)
		FROM transactions
		WHERE account_id = ANY($1)
		GROUP BY account_id
	`

	rows, err := u.tx.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var accountID string
		var balance decimal.Decimal
		if err := rows.Scan(&accountID, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[accountID] = balance
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	return balances, nil
}
