package queue

import "errors"

var (
	// ErrConnectionNotReady is returned when the store handle failed to resolve.
	ErrConnectionNotReady = errors.New("queue connection not ready")
	// ErrInvalidArgument rejects malformed enqueue requests before any write.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnbound is returned by Job mutations when the job has no store.
	ErrUnbound = errors.New("job is not bound to a store")
	// ErrNotFound is returned by stores for unknown record ids.
	ErrNotFound = errors.New("job not found")
	// ErrAlreadyExists is returned by Insert when the caller-supplied id is taken.
	ErrAlreadyExists = errors.New("job already exists")
)
