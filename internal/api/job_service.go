package api

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"mqas/internal/queue"
)

// JobQueue is the slice of queue.Queue the service needs.
type JobQueue interface {
	Enqueue(ctx context.Context, functionName string, opts queue.EnqueueOptions) (string, error)
	Store(ctx context.Context) (queue.Store, error)
	Config() queue.Config
}

// JobService exposes operator-facing job operations scoped to one consumer
// partition.
type JobService struct {
	queue JobQueue
}

// NewJobService constructs a JobService around q.
func NewJobService(q JobQueue) *JobService {
	if q == nil {
		return nil
	}
	return &JobService{queue: q}
}

// ConsumerID returns the partition the service is scoped to.
func (s *JobService) ConsumerID() string {
	return s.queue.Config().ConsumerID
}

// Enqueue queues a job from a loosely typed body. function_name is required;
// the remaining keys are enqueue options, and unknown keys become kwargs.
func (s *JobService) Enqueue(ctx context.Context, body map[string]any) (string, error) {
	bag := maps.Clone(body)
	name, _ := bag["function_name"].(string)
	delete(bag, "function_name")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: function_name is required", queue.ErrInvalidArgument)
	}
	opts, err := queue.ParseOptions(bag)
	if err != nil {
		return "", err
	}
	return s.queue.Enqueue(ctx, name, opts)
}

// ListQuery narrows List results.
type ListQuery struct {
	Channel  string
	Statuses []queue.Status
	Limit    int
}

// List returns jobs in claim order.
func (s *JobService) List(ctx context.Context, query ListQuery) ([]Job, error) {
	store, err := s.queue.Store(ctx)
	if err != nil {
		return nil, err
	}
	records, err := store.List(ctx, queue.ListFilter{
		ConsumerID: s.ConsumerID(),
		Channel:    query.Channel,
		Statuses:   query.Statuses,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Describe fetches a single job. Unknown ids return queue.ErrNotFound.
func (s *JobService) Describe(ctx context.Context, id string) (*Job, error) {
	store, err := s.queue.Store(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromRecord(rec)
	return &dto, nil
}

// Release returns a job to the pending pool and reports its new state.
func (s *JobService) Release(ctx context.Context, id string) (*Job, error) {
	store, err := s.queue.Store(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Release(ctx, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.Describe(ctx, id)
}

// Stats summarizes the partition, optionally restricted to one channel.
func (s *JobService) Stats(ctx context.Context, channel string) (StatsResponse, error) {
	store, err := s.queue.Store(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	records, err := store.List(ctx, queue.ListFilter{ConsumerID: s.ConsumerID(), Channel: channel})
	if err != nil {
		return StatsResponse{}, err
	}
	return FromStats(s.ConsumerID(), queue.Summarize(records)), nil
}
