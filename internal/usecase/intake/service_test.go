package intake

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/simaogato/settleflow/internal/domain"
)

// MockUnitOfWork is a mock implementation of domain.UnitOfWork for testing
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) AccountByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockUnitOfWork) CreateAccount(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountsByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Account), args.Error(1)
}

// WithSavepoint runs fn like the real store would, rolling back nothing in
// the mock but surfacing fn's error to the caller.
func (m *MockUnitOfWork) WithSavepoint(ctx context.Context, name string, fn func() error) error {
	args := m.Called(ctx, name)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn()
}

func (m *MockUnitOfWork) AppendEvent(ctx context.Context, event *domain.Event) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUnitOfWork) PendingEvents(ctx context.Context, fromID, toID int64) ([]*domain.Event, error) {
	args := m.Called(ctx, fromID, toID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

func (m *MockUnitOfWork) PendingEventAccounts(ctx context.Context, fromID, toID int64) ([]string, error) {
	args := m.Called(ctx, fromID, toID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUnitOfWork) FinalizeEvents(ctx context.Context, ids []int64, status domain.EventStatus) error {
	args := m.Called(ctx, ids, status)
	return args.Error(0)
}

func (m *MockUnitOfWork) MaxEventID(ctx context.Context) (int64, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockUnitOfWork) AppendTransactions(ctx context.Context, transactions []*domain.Transaction) error {
	args := m.Called(ctx, transactions)
	return args.Error(0)
}

func (m *MockUnitOfWork) SumTransactionsByAccount(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockUnitOfWork) WriteBackBalances(ctx context.Context, balances map[string]decimal.Decimal) error {
	args := m.Called(ctx, balances)
	return args.Error(0)
}

func (m *MockUnitOfWork) LeaseForUpdate(ctx context.Context, workerID string) (*domain.WorkerLease, error) {
	args := m.Called(ctx, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkerLease), args.Error(1)
}

func (m *MockUnitOfWork) CreateLease(ctx context.Context, lease *domain.WorkerLease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

func (m *MockUnitOfWork) AdvanceLease(ctx context.Context, workerID string, fromEventID int64) error {
	args := m.Called(ctx, workerID, fromEventID)
	return args.Error(0)
}

// stubStore runs every unit of work against the same mock.
type stubStore struct {
	uow domain.UnitOfWork
}

func (s *stubStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return fn(ctx, s.uow)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSubmit_ExistingAccount(t *testing.T) {
	ctx := context.Background()
	uow := new(MockUnitOfWork)

	account := &domain.Account{ID: "42", Balance: decimal.NewFromInt(100)}
	uow.On("AccountByID", ctx, "42").Return(account, nil)

	var appended *domain.Event
	uow.On("AppendEvent", ctx, mock.Anything).Run(func(args mock.Arguments) {
		appended = args.Get(1).(*domain.Event)
	}).Return(int64(17), nil)

	service := NewService(&stubStore{uow: uow}, testLogger(), 1000)

	result, err := service.Submit(ctx, SubmitInput{
		AccountID: "42",
		Operation: domain.OperationWithdraw,
		Amount:    decimal.NewFromInt(60),
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(17), result.EventID)

	// The task id must be a fresh idempotency token.
	_, parseErr := uuid.Parse(result.TaskID)
	assert.NoError(t, parseErr)

	assert.Equal(t, domain.StatusPending, appended.Status)
	assert.Equal(t, domain.OperationWithdraw, appended.Operation)
	assert.Equal(t, result.TaskID, appended.TaskID)
	assert.True(t, appended.Amount.Equal(decimal.NewFromInt(60)))

	// An existing account must never be re-provisioned.
	uow.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "WithSavepoint", mock.Anything, mock.Anything)
}

func TestSubmit_ProvisionsMissingAccount(t *testing.T) {
	ctx := context.Background()
	uow := new(MockUnitOfWork)

	uow.On("AccountByID", ctx, "new-account").Return(nil, domain.ErrAccountNotFound)
	uow.On("WithSavepoint", ctx, "before_create_account").Return(nil)

	var created *domain.Account
	uow.On("CreateAccount", ctx, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.Account)
	}).Return(nil)

	var seeded []*domain.Transaction
	uow.On("AppendTransactions", ctx, mock.Anything).Run(func(args mock.Arguments) {
		seeded = args.Get(1).([]*domain.Transaction)
	}).Return(nil)

	uow.On("AppendEvent", ctx, mock.Anything).Return(int64(1), nil)

	service := NewService(&stubStore{uow: uow}, testLogger(), 1000)

	result, err := service.Submit(ctx, SubmitInput{
		AccountID: "new-account",
		Operation: domain.OperationDeposit,
		Amount:    decimal.NewFromInt(25),
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.EventID)

	assert.Equal(t, "new-account", created.ID)
	assert.True(t, created.Balance.GreaterThan(decimal.Zero), "seed balance must be nonzero")

	// The seed is recorded as an initial-deposit transaction matching the
	// created balance, so the sum-of-transactions invariant holds from birth.
	assert.Len(t, seeded, 1)
	assert.Equal(t, domain.LabelInitialDeposit, seeded[0].Label)
	assert.Nil(t, seeded[0].EventID)
	assert.True(t, seeded[0].Amount.Equal(created.Balance))
}

func TestSubmit_AbsorbsAccountCreationRace(t *testing.T) {
	ctx := context.Background()
	uow := new(MockUnitOfWork)

	uow.On("AccountByID", ctx, "contended").Return(nil, domain.ErrAccountNotFound)
	uow.On("WithSavepoint", ctx, "before_create_account").Return(nil)
	uow.On("CreateAccount", ctx, mock.Anything).Return(domain.ErrAccountExists)
	uow.On("AppendEvent", ctx, mock.Anything).Return(int64(3), nil)

	service := NewService(&stubStore{uow: uow}, testLogger(), 1000)

	result, err := service.Submit(ctx, SubmitInput{
		AccountID: "contended",
		Operation: domain.OperationWithdraw,
		Amount:    decimal.NewFromInt(10),
	})

	// Losing the creation race is invisible to the caller.
	assert.NoError(t, err)
	assert.Equal(t, int64(3), result.EventID)

	// The seed transaction belongs to whichever intake won the race.
	uow.AssertNotCalled(t, "AppendTransactions", mock.Anything, mock.Anything)
}

func TestSubmit_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		input   SubmitInput
		wantErr error
	}{
		{
			name: "Zero amount",
			input: SubmitInput{
				AccountID: "42",
				Operation: domain.OperationDeposit,
				Amount:    decimal.Zero,
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "Negative amount",
			input: SubmitInput{
				AccountID: "42",
				Operation: domain.OperationWithdraw,
				Amount:    decimal.NewFromInt(-5),
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "Unknown operation",
			input: SubmitInput{
				AccountID: "42",
				Operation: "x",
				Amount:    decimal.NewFromInt(5),
			},
			wantErr: domain.ErrInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uow := new(MockUnitOfWork)
			service := NewService(&stubStore{uow: uow}, testLogger(), 1000)

			result, err := service.Submit(context.Background(), tt.input)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)

			// Validation failures must not touch the store.
			uow.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_StoreFailureSurfacesAsError(t *testing.T) {
	ctx := context.Background()
	uow := new(MockUnitOfWork)

	uow.On("AccountByID", ctx, "42").Return(nil, errors.New("connection refused"))

	service := NewService(&stubStore{uow: uow}, testLogger(), 1000)

	result, err := service.Submit(ctx, SubmitInput{
		AccountID: "42",
		Operation: domain.OperationDeposit,
		Amount:    decimal.NewFromInt(5),
	})

	assert.Error(t, err)
	assert.Nil(t, result)
}
