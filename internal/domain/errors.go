package domain

import "errors"

var (
	// ErrAccountNotFound is returned by point lookups when no account exists
	// for the given id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned by account creation when another unit of
	// work already created the same id. Callers treat it as benign: the
	// account exists either way.
	ErrAccountExists = errors.New("account already exists")

	// ErrLeaseNotFound is returned when no lease row exists for a worker id.
	ErrLeaseNotFound = errors.New("worker lease not found")

	// ErrInvalidAmount is returned at intake when an amount is not a
	// positive decimal.
	ErrInvalidAmount = errors.New("amount must be a positive decimal")

	// ErrInvalidOperation is returned when an operation kind is neither
	// withdraw nor deposit.
	ErrInvalidOperation = errors.New("operation must be withdraw or deposit")
)
