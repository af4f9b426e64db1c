package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/simaogato/settleflow/internal/domain"
)

// DefaultWorkerID is the single-worker deployment default. When more than
// one worker id is active, operators must assign disjoint event-id ranges
// out of band: the lease serializes cycles per worker id but the system does
// not partition the event stream between ids.
const DefaultWorkerID = "worker-1"

// Settler settles one event-id window. Implemented by settlement.Engine.
type Settler interface {
	Settle(ctx context.Context, fromEventID int64, batchSize int) (int, error)
}

// Config holds the coordinator parameters for one named worker.
type Config struct {
	WorkerID     string
	BatchSize    int
	StartEventID int64 // cursor for a freshly created lease
}

// Coordinator owns one named worker's progress cursor. Each cycle runs as a
// unit of work holding the lease row lock, so cycles for one worker id are
// strictly serialized; a crashed cycle leaves the cursor untouched and the
// next poll retries the same window against the idempotent settler.
type Coordinator struct {
	store   domain.LedgerStore
	settler Settler
	logger  *slog.Logger
	config  Config

	// idle tracks the last-known activity state of this instance so the
	// idle/active transitions are logged on the edge, not on every poll.
	idle bool
}

// NewCoordinator creates a new Coordinator instance.
func NewCoordinator(store domain.LedgerStore, settler Settler, logger *slog.Logger, config Config) *Coordinator {
	if config.WorkerID == "" {
		config.WorkerID = DefaultWorkerID
	}
	if config.StartEventID < 1 {
		config.StartEventID = 1
	}

	if config.WorkerID != DefaultWorkerID {
		logger.Warn("running under a non-default worker id: event-id ranges must not overlap across worker ids",
			"worker_id", config.WorkerID,
		)
	}

	return &Coordinator{
		store:   store,
		settler: settler,
		logger:  logger,
		config:  config,
	}
}

// RunCycle performs one settlement cycle under the worker's lease lock:
//  1. Lock-read the lease row, creating it with the starting cursor if absent
//  2. Read the highest event id in existence
//  3. If nothing at or past the cursor exists, go idle without settling
//  4. Otherwise settle one batch starting at the cursor
//  5. Advance the cursor to min(cursor + batch size, last event id + 1)
func (c *Coordinator) RunCycle(ctx context.Context) error {
	return c.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		lease, err := uow.LeaseForUpdate(ctx, c.config.WorkerID)
		if errors.Is(err, domain.ErrLeaseNotFound) {
			now := time.Now()
			lease = &domain.WorkerLease{
				WorkerID:    c.config.WorkerID,
				FromEventID: c.config.StartEventID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := uow.CreateLease(ctx, lease); err != nil {
				return fmt.Errorf("failed to create worker lease: %w", err)
			}
		} else if err != nil {
			return err
		}

		lastEventID, ok, err := uow.MaxEventID(ctx)
		if err != nil {
			return err
		}

		if !ok || lastEventID < lease.FromEventID {
			if !c.idle {
				c.idle = true
				c.logger.Info("worker idle",
					"worker_id", c.config.WorkerID,
					"from_event_id", lease.FromEventID,
				)
			}
			return nil
		}

		if c.idle {
			c.idle = false
			c.logger.Info("worker resumed",
				"worker_id", c.config.WorkerID,
				"from_event_id", lease.FromEventID,
			)
		}

		started := time.Now()
		processed, err := c.settler.Settle(ctx, lease.FromEventID, c.config.BatchSize)
		if err != nil {
			return err
		}

		// Never advance past the highest observed event id plus one, so a
		// burst arriving mid-cycle is not skipped; never advance more than
		// one batch, bounding per-cycle work.
		next := lease.FromEventID + int64(c.config.BatchSize)
		if ceiling := lastEventID + 1; ceiling < next {
			next = ceiling
		}
		if err := uow.AdvanceLease(ctx, c.config.WorkerID, next); err != nil {
			return err
		}

		c.logger.Info("worker cycle complete",
			"worker_id", c.config.WorkerID,
			"from_event_id", lease.FromEventID,
			"next_event_id", next,
			"processed", processed,
			"took", time.Since(started),
		)
		return nil
	})
}

// Run polls forever: one cycle, then a cooldown pause. A failed cycle is
// logged and retried on the next poll; the cursor only advances on commit,
// so no event is lost and supervision-level restart remains a valid
// recovery strategy.
func (c *Coordinator) Run(ctx context.Context, cooldown time.Duration) {
	c.logger.Info("worker started",
		"worker_id", c.config.WorkerID,
		"batch_size", c.config.BatchSize,
		"cooldown", cooldown,
	)

	for {
		if err := c.RunCycle(ctx); err != nil {
			c.logger.Error("settlement cycle failed", "worker_id", c.config.WorkerID, "error", err)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("worker stopped", "worker_id", c.config.WorkerID)
			return
		case <-time.After(cooldown):
		}
	}
}
