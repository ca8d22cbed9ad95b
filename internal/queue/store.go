package queue

import (
	"context"
	"time"
)

// Store is the shared persistent store every Queue, Job, and Worker
// coordinates through. Claim is the only synchronization point in the system:
// implementations must select and mark a record in one atomic operation so
// concurrent callers never receive the same record.
type Store interface {
	// Insert persists a new pending record and returns its id. When rec.ID is
	// empty the store generates one.
	Insert(ctx context.Context, rec *Record) (string, error)
	// DoneIDs is a plain, non-atomic read of every record id with done=true.
	DoneIDs(ctx context.Context) ([]string, error)
	// Claim atomically selects the highest-priority, oldest claimable record
	// matching filter and marks it in progress. It returns nil, nil when
	// nothing matches.
	Claim(ctx context.Context, filter ClaimFilter) (*Record, error)

	Complete(ctx context.Context, id string, result any, at time.Time) error
	// Fail increments attempts (never past max_attempts) and clears in_progress.
	Fail(ctx context.Context, id, message string, at time.Time) error
	Progress(ctx context.Context, id string, percent int, message string, at time.Time) error
	// Release returns a record to the pending pool with attempts reset.
	Release(ctx context.Context, id string, at time.Time) error

	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)
	Close() error
}

// Opener resolves a Store, typically by dialing a database.
type Opener func(ctx context.Context) (Store, error)
