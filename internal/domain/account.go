package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Account represents an account entity in the domain layer.
// Balance is a cached projection: the authoritative balance is always the
// sum of the account's transactions, recomputed and written back by the
// settlement engine.
type Account struct {
	ID      string
	Balance decimal.Decimal
}

// Validate ensures the account adheres to domain rules.
// Returns an error if validation fails.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("account id cannot be empty")
	}

	return nil
}
