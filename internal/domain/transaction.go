package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionLabel classifies why a transaction was written.
type TransactionLabel string

const (
	LabelInitialDeposit  TransactionLabel = "id"
	LabelEventSettlement TransactionLabel = "et"
)

// Transaction represents an immutable, realized balance movement; the sole
// source of truth for an account's balance. Amounts are signed: withdrawals
// are negative, deposits positive, so that the balance of an account is the
// plain sum of its transactions.
type Transaction struct {
	ID        int64
	EventID   *int64 // nil only for the initial seed deposit
	AccountID string
	Operation Operation
	Label     TransactionLabel
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Validate ensures the transaction adheres to domain rules.
// Returns an error if validation fails.
func (t *Transaction) Validate() error {
	if t.AccountID == "" {
		return errors.New("transaction account id cannot be empty")
	}

	if t.Label != LabelInitialDeposit && t.Label != LabelEventSettlement {
		return errors.New("transaction label must be initial-deposit or event-settlement")
	}

	// The signed-amount convention is what lets the balance be recomputed as
	// a simple sum, so it is enforced here rather than trusted.
	switch t.Operation {
	case OperationWithdraw:
		if t.Amount.GreaterThanOrEqual(decimal.Zero) {
			return errors.New("withdrawal transaction amount must be negative")
		}
	case OperationDeposit:
		if t.Amount.LessThanOrEqual(decimal.Zero) {
			return errors.New("deposit transaction amount must be positive")
		}
	default:
		return errors.New("transaction operation must be withdraw or deposit")
	}

	if t.Label == LabelInitialDeposit && t.EventID != nil {
		return errors.New("initial deposit transaction cannot reference an event")
	}

	if t.Label == LabelEventSettlement && t.EventID == nil {
		return errors.New("settlement transaction must reference an event")
	}

	return nil
}
