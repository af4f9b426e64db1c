package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// UnitOfWork is one transactional scope over the ledger relations: every
// operation inside it is applied atomically or not at all. Implementations
// back it with a database transaction; tests back it with mocks.
type UnitOfWork interface {
	// AccountByID retrieves an account by its id.
	// Returns ErrAccountNotFound if the account does not exist.
	AccountByID(ctx context.Context, id string) (*Account, error)

	// CreateAccount inserts a new account.
	// Returns ErrAccountExists if the id is already taken; callers absorb
	// the conflict inside a savepoint rather than aborting the whole scope.
	CreateAccount(ctx context.Context, account *Account) error

	// AccountsByIDs retrieves the accounts for the given id set.
	AccountsByIDs(ctx context.Context, ids []string) ([]*Account, error)

	// WithSavepoint runs fn inside a nested scope. If fn returns an error,
	// only the nested scope is rolled back and the error is returned; the
	// enclosing unit of work stays usable.
	WithSavepoint(ctx context.Context, name string, fn func() error) error

	// AppendEvent inserts a new event and returns its generated id.
	AppendEvent(ctx context.Context, event *Event) (int64, error)

	// PendingEvents returns the pending events with ids in [fromID, toID],
	// ordered by (account id, event id) ascending so that events for one
	// account are contiguous and deterministic.
	PendingEvents(ctx context.Context, fromID, toID int64) ([]*Event, error)

	// PendingEventAccounts returns the distinct account ids referenced by
	// pending events with ids in [fromID, toID].
	PendingEventAccounts(ctx context.Context, fromID, toID int64) ([]string, error)

	// FinalizeEvents sets the status of the given events, touching only rows
	// still pending so a concurrently finalized row is never clobbered.
	FinalizeEvents(ctx context.Context, ids []int64, status EventStatus) error

	// MaxEventID returns the highest event id in existence.
	// ok is false when no events exist.
	MaxEventID(ctx context.Context) (id int64, ok bool, err error)

	// AppendTransactions inserts the given transactions.
	AppendTransactions(ctx context.Context, transactions []*Transaction) error

	// SumTransactionsByAccount returns, for each given account id that has
	// transactions, the exact sum of its signed transaction amounts.
	SumTransactionsByAccount(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error)

	// WriteBackBalances writes the cached account balances, one
	// parameterized update per account id.
	WriteBackBalances(ctx context.Context, balances map[string]decimal.Decimal) error

	// LeaseForUpdate reads a worker lease under an exclusive row lock,
	// blocking until a concurrent holder releases it.
	// Returns ErrLeaseNotFound if no lease row exists for the worker id.
	LeaseForUpdate(ctx context.Context, workerID string) (*WorkerLease, error)

	// CreateLease inserts a new worker lease.
	CreateLease(ctx context.Context, lease *WorkerLease) error

	// AdvanceLease moves the worker's cursor forward. The cursor never
	// decreases; an attempt to move it backwards is a no-op.
	AdvanceLease(ctx context.Context, workerID string, fromEventID int64) error
}

// LedgerStore exclusively owns durable ledger state. All components access
// it through transactional units of work; nothing outside the store issues
// ad hoc queries.
type LedgerStore interface {
	// WithinTx runs fn inside one unit of work, committing if fn returns nil
	// and rolling everything back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
