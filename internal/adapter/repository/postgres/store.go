package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/simaogato/settleflow/internal/domain"
)

// Store implements domain.LedgerStore over PostgreSQL.
type Store struct {
	db *DB
}

// NewStore creates a new ledger store.
func NewStore(db *DB) domain.LedgerStore {
	return &Store{db: db}
}

// WithinTx runs fn inside one database transaction. The transaction is
// committed iff fn returns nil; any error rolls the whole unit of work back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(ctx, &unitOfWork{tx: dbTx}); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// unitOfWork implements domain.UnitOfWork over a single *sql.Tx. Per-relation
// operations live in accounts.go, events.go, transactions.go and leases.go.
type unitOfWork struct {
	tx *sql.Tx
}

// WithSavepoint runs fn inside a savepoint. If fn returns an error, only the
// savepoint scope is rolled back and the error is returned; the enclosing
// transaction stays usable.
func (u *unitOfWork) WithSavepoint(ctx context.Context, name string, fn func() error) error {
	ident := pq.QuoteIdentifier(name)

	if _, err := u.tx.ExecContext(ctx, "SAVEPOINT "+ident); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := u.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+ident); rbErr != nil {
			return fmt.Errorf("failed to roll back to savepoint %s: %w", name, rbErr)
		}
		return err
	}

	if _, err := u.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+ident); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}

	return nil
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)
