package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=settleflow sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// LogLatency probes round-trip latency with a handful of trivial queries and
// logs each timing. Called at worker startup so deployments can spot a slow
// link to the database before it shows up as settlement lag.
func (db *DB) LogLatency(ctx context.Context, logger *slog.Logger) {
	for i := 0; i < 5; i++ {
		started := time.Now()
		var one int
		if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
			logger.Warn("database latency probe failed", "iteration", i, "error", err)
			return
		}
		logger.Info("database latency probe", "iteration", i, "took", time.Since(started))
	}
}
