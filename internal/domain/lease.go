package domain

import (
	"errors"
	"time"
)

// WorkerLease represents one named worker's exclusive claim and progress
// cursor over the event stream. The row is exclusive-locked for the duration
// of a settlement cycle; FromEventID never decreases.
//
// Two distinct worker ids may run concurrently, but the system does not
// partition the event-id space between them: operators must assign disjoint
// ranges out of band.
type WorkerLease struct {
	WorkerID    string
	FromEventID int64 // next event id this worker will consider
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate ensures the lease adheres to domain rules.
func (l *WorkerLease) Validate() error {
	if l.WorkerID == "" {
		return errors.New("worker lease id cannot be empty")
	}

	if l.FromEventID < 1 {
		return errors.New("worker lease cursor must be at least 1")
	}

	return nil
}
