package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Operation represents the kind of transfer an event describes.
// Stored as single-character codes.
type Operation string

const (
	OperationWithdraw Operation = "w"
	OperationDeposit  Operation = "d"
)

// ParseOperation maps the API-facing operation names to their stored codes.
// The short codes themselves are also accepted.
func ParseOperation(raw string) (Operation, error) {
	switch raw {
	case "withdraw", string(OperationWithdraw):
		return OperationWithdraw, nil
	case "deposit", string(OperationDeposit):
		return OperationDeposit, nil
	default:
		return "", ErrInvalidOperation
	}
}

// EventStatus represents the settlement state of an event.
type EventStatus string

const (
	StatusPending EventStatus = "p"
	// StatusLocked is reserved for preliminary checks that short-circuit an
	// event before settlement. No current flow emits it.
	StatusLocked  EventStatus = "l"
	StatusSuccess EventStatus = "s"
	StatusFailed  EventStatus = "f"
)

// Event represents a transfer intent, pending until the settlement engine
// finalizes it. Events are immutable once non-pending: only the status field
// transitions, and only away from StatusPending.
type Event struct {
	ID        int64
	TaskID    string // idempotency token, unique per logical request
	AccountID string
	Operation Operation
	Status    EventStatus
	Amount    decimal.Decimal // positive magnitude; sign is applied at settlement
	CreatedAt time.Time
}

// Validate ensures the event adheres to domain rules.
// Returns an error if validation fails.
func (e *Event) Validate() error {
	if e.TaskID == "" {
		return errors.New("event task id cannot be empty")
	}

	if e.AccountID == "" {
		return errors.New("event account id cannot be empty")
	}

	if e.Operation != OperationWithdraw && e.Operation != OperationDeposit {
		return errors.New("event operation must be withdraw or deposit")
	}

	switch e.Status {
	case StatusPending, StatusLocked, StatusSuccess, StatusFailed:
	default:
		return errors.New("event status must be pending, locked, success or failed")
	}

	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("event amount must be positive")
	}

	return nil
}
