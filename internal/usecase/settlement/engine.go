package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/settleflow/internal/domain"
	"github.com/simaogato/settleflow/internal/metrics"
)

// Notification describes one finalized event, published after settlement
// commits so downstream consumers can react to transfer outcomes.
type Notification struct {
	EventID   int64     `json:"event_id"`
	TaskID    string    `json:"task_id"`
	AccountID string    `json:"account_id"`
	Operation string    `json:"operation"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	SettledAt time.Time `json:"settled_at"`
}

// Notifier publishes settlement outcomes. Publishing is best-effort:
// a failure is logged and never blocks or aborts settlement.
type Notifier interface {
	PublishSettled(ctx context.Context, notifications []Notification) error
}

// Engine turns pending events into ledger transactions and final statuses.
// Settling a window is a pure read-then-decide-then-write cycle: Phase A
// reads pending events and cached balances in one unit of work, the decision
// runs in memory, and Phase B writes statuses, transactions and recomputed
// balances in a second unit of work. Replaying a window whose events already
// left pending is a no-op, which is what makes crash recovery a plain retry.
type Engine struct {
	store    domain.LedgerStore
	logger   *slog.Logger
	notifier Notifier // optional
}

// NewEngine creates a new settlement Engine instance.
// notifier may be nil to disable outcome publication.
func NewEngine(store domain.LedgerStore, logger *slog.Logger, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		logger:   logger,
		notifier: notifier,
	}
}

// Settle processes the pending events with ids in
// [fromEventID, fromEventID + batchSize - 1] and returns how many events it
// finalized.
func (e *Engine) Settle(ctx context.Context, fromEventID int64, batchSize int) (int, error) {
	toEventID := fromEventID + int64(batchSize) - 1
	started := time.Now()

	e.logger.Debug("settlement batch started",
		"range_start", fromEventID,
		"range_end", toEventID,
		"batch_size", batchSize,
	)

	// Phase A: read pending events, referenced accounts and their cached
	// balances in one unit of work.
	var (
		events     []*domain.Event
		accountIDs []string
		accounts   []*domain.Account
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		if events, err = uow.PendingEvents(ctx, fromEventID, toEventID); err != nil {
			return err
		}
		if accountIDs, err = uow.PendingEventAccounts(ctx, fromEventID, toEventID); err != nil {
			return err
		}
		if accounts, err = uow.AccountsByIDs(ctx, accountIDs); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read settlement batch: %w", err)
	}

	if len(events) == 0 {
		e.logger.Debug("no pending events in range", "range_start", fromEventID, "range_end", toEventID)
		return 0, nil
	}

	// Decision: no I/O, exact decimal arithmetic only.
	outcome := e.decide(events, accounts)

	// Phase B: finalize statuses, append transactions, recompute and write
	// back the affected balances in one unit of work. Finalization only
	// touches rows still pending, so replay and overlap are harmless.
	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.FinalizeEvents(ctx, outcome.failed, domain.StatusFailed); err != nil {
			return err
		}
		if err := uow.FinalizeEvents(ctx, outcome.succeeded, domain.StatusSuccess); err != nil {
			return err
		}
		if len(outcome.transactions) > 0 {
			if err := uow.AppendTransactions(ctx, outcome.transactions); err != nil {
				return err
			}
		}

		// Recompute from full transaction history, not just this batch.
		balances, err := uow.SumTransactionsByAccount(ctx, accountIDs)
		if err != nil {
			return err
		}
		return uow.WriteBackBalances(ctx, balances)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write settlement batch: %w", err)
	}

	metrics.EventsSettled.WithLabelValues("success").Add(float64(len(outcome.succeeded)))
	metrics.EventsSettled.WithLabelValues("failed").Add(float64(len(outcome.failed)))
	metrics.SettleBatchDuration.Observe(time.Since(started).Seconds())

	e.publish(events)

	e.logger.Info("settlement batch complete",
		"range_start", fromEventID,
		"range_end", toEventID,
		"processed", len(events),
		"succeeded", len(outcome.succeeded),
		"failed", len(outcome.failed),
		"took", time.Since(started),
	)

	return len(events), nil
}

// batchOutcome is the in-memory result of deciding one batch.
type batchOutcome struct {
	succeeded    []int64
	failed       []int64
	transactions []*domain.Transaction
}

// decide walks the events in (account id, event id) order against a running
// per-account balance, so multiple pending events for one account settle
// against each other's effect rather than the stale snapshot.
//
// Events mutate to their final status in place so callers can publish the
// decided batch without re-reading it.
func (e *Engine) decide(events []*domain.Event, accounts []*domain.Account) batchOutcome {
	running := make(map[string]decimal.Decimal, len(accounts))
	for _, account := range accounts {
		running[account.ID] = account.Balance
	}

	var outcome batchOutcome
	now := time.Now()

	for _, event := range events {
		// An account missing from the snapshot settles from zero.
		balance := running[event.AccountID]

		switch event.Operation {
		case domain.OperationWithdraw:
			if balance.LessThan(event.Amount) {
				event.Status = domain.StatusFailed
				outcome.failed = append(outcome.failed, event.ID)
				continue
			}
			event.Status = domain.StatusSuccess
			outcome.succeeded = append(outcome.succeeded, event.ID)
			outcome.transactions = append(outcome.transactions, &domain.Transaction{
				EventID:   &event.ID,
				AccountID: event.AccountID,
				Operation: event.Operation,
				Label:     domain.LabelEventSettlement,
				Amount:    event.Amount.Abs().Neg(),
				CreatedAt: now,
			})
			running[event.AccountID] = balance.Sub(event.Amount)

		case domain.OperationDeposit:
			event.Status = domain.StatusSuccess
			outcome.succeeded = append(outcome.succeeded, event.ID)
			outcome.transactions = append(outcome.transactions, &domain.Transaction{
				EventID:   &event.ID,
				AccountID: event.AccountID,
				Operation: event.Operation,
				Label:     domain.LabelEventSettlement,
				Amount:    event.Amount.Abs(),
				CreatedAt: now,
			})
			running[event.AccountID] = balance.Add(event.Amount)

		default:
			// Unreachable given intake validation; recorded rather than
			// dropped so the anomaly stays durable and queryable.
			e.logger.Error("invalid operation on pending event",
				"event_id", event.ID,
				"operation", string(event.Operation),
			)
			event.Status = domain.StatusFailed
			outcome.failed = append(outcome.failed, event.ID)
		}
	}

	return outcome
}

// publish reports the finalized events to the notifier, fire-and-forget.
func (e *Engine) publish(events []*domain.Event) {
	if e.notifier == nil {
		return
	}

	notifications := make([]Notification, 0, len(events))
	settledAt := time.Now()
	for _, event := range events {
		notifications = append(notifications, Notification{
			EventID:   event.ID,
			TaskID:    event.TaskID,
			AccountID: event.AccountID,
			Operation: string(event.Operation),
			Status:    string(event.Status),
			Amount:    event.Amount.String(),
			SettledAt: settledAt,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.notifier.PublishSettled(ctx, notifications); err != nil {
			e.logger.Warn("failed to publish settlement notifications", "count", len(notifications), "error", err)
		}
	}()
}
