package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/settleflow/internal/domain"
	"github.com/simaogato/settleflow/internal/metrics"
	"github.com/simaogato/settleflow/internal/money"
)

// savepointName scopes the lazy account provisioning so a creation race can
// be rolled back without aborting the enclosing unit of work.
const savepointName = "before_create_account"

// SubmitInput represents the input for submitting a transfer
type SubmitInput struct {
	AccountID string
	Operation domain.Operation
	Amount    decimal.Decimal
}

// Result is what intake durably guarantees: the pending event is recorded.
// Whether the transfer ultimately succeeds is decided later by settlement.
type Result struct {
	EventID int64
	TaskID  string
}

// Service handles transfer intake: it records transfer intents and lazily
// provisions accounts. It never checks balances and never blocks on row
// locks held by settlement.
type Service struct {
	store          domain.LedgerStore
	logger         *slog.Logger
	seedBalanceCap float64
}

// NewService creates a new intake Service instance
func NewService(store domain.LedgerStore, logger *slog.Logger, seedBalanceCap float64) *Service {
	return &Service{
		store:          store,
		logger:         logger,
		seedBalanceCap: seedBalanceCap,
	}
}

// Submit records a transfer intent as one unit of work:
//  1. Generate a fresh idempotency token
//  2. Look up the account
//  3. If absent, provision it with a seeded balance inside a savepoint,
//     absorbing a creation race as a benign conflict
//  4. Append a pending event
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Result, error) {
	if input.Operation != domain.OperationWithdraw && input.Operation != domain.OperationDeposit {
		return nil, domain.ErrInvalidOperation
	}

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	result := &Result{TaskID: uuid.NewString()}

	err := s.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.AccountByID(ctx, input.AccountID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			if err := s.provisionAccount(ctx, uow, input.AccountID); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		event := &domain.Event{
			TaskID:    result.TaskID,
			AccountID: input.AccountID,
			Operation: input.Operation,
			Status:    domain.StatusPending,
			Amount:    input.Amount,
			CreatedAt: time.Now(),
		}
		if err := event.Validate(); err != nil {
			return err
		}

		eventID, err := uow.AppendEvent(ctx, event)
		if err != nil {
			return err
		}
		result.EventID = eventID

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}

	metrics.TransfersAccepted.WithLabelValues(string(input.Operation)).Inc()

	return result, nil
}

// provisionAccount creates the account with a seeded nonzero balance and
// records the seed as an initial-deposit transaction. Losing the creation
// race to a concurrent intake rolls back only the savepoint: the account
// exists either way.
func (s *Service) provisionAccount(ctx context.Context, uow domain.UnitOfWork, accountID string) error {
	seed := money.SeedBalance(s.seedBalanceCap)

	err := uow.WithSavepoint(ctx, savepointName, func() error {
		account := &domain.Account{ID: accountID, Balance: seed}
		if err := account.Validate(); err != nil {
			return err
		}

		if err := uow.CreateAccount(ctx, account); err != nil {
			return err
		}

		return uow.AppendTransactions(ctx, []*domain.Transaction{{
			AccountID: accountID,
			Operation: domain.OperationDeposit,
			Label:     domain.LabelInitialDeposit,
			Amount:    seed,
			CreatedAt: time.Now(),
		}})
	})
	if errors.Is(err, domain.ErrAccountExists) {
		s.logger.Debug("lost account creation race, account already provisioned", "account_id", accountID)
		return nil
	}

	return err
}
