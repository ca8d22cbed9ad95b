package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"mqas/internal/logging"
	"mqas/internal/registry"
)

const readyPollInterval = 10 * time.Millisecond

// Queue is a producer/consumer handle bound to one partition
// (consumer_id, channel, lang) of the shared store.
type Queue struct {
	cfg      Config
	registry *registry.Registry
	logger   *slog.Logger

	// store and connErr are written once, before ready is set.
	store   Store
	connErr error
	ready   atomic.Bool
}

// Option configures optional Queue collaborators.
type Option func(*Queue)

// WithRegistry sets the registry used to name callback functions and to
// resolve callbacks on jobs this Queue claims.
func WithRegistry(reg *registry.Registry) Option {
	return func(q *Queue) { q.registry = reg }
}

// WithLogger sets the structured logger for the Queue and its jobs.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// New builds a Queue over an already-open store. It is immediately ready.
func New(store Store, cfg Config, opts ...Option) *Queue {
	q := newQueue(cfg, opts...)
	q.resolve(store, nil)
	return q
}

// Connect builds a Queue whose store is resolved in the background. Enqueue
// and Dequeue wait for resolution; if it failed they return
// ErrConnectionNotReady.
func Connect(ctx context.Context, open Opener, cfg Config, opts ...Option) *Queue {
	q := newQueue(cfg, opts...)
	go func() {
		store, err := open(ctx)
		if err == nil && store == nil {
			err = errors.New("opener returned no store")
		}
		if err != nil {
			logging.ErrorWithContext(q.logger, "queue store connection failed", "store_connect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check store connection settings"),
			)
		}
		q.resolve(store, err)
	}()
	return q
}

func newQueue(cfg Config, opts ...Option) *Queue {
	q := &Queue{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.NewComponentLogger(q.logger, "queue").With(logging.String(logging.FieldChannel, q.cfg.Channel))
	return q
}

func (q *Queue) resolve(store Store, err error) {
	q.store = store
	q.connErr = err
	q.ready.Store(true)
}

// Ready reports whether store resolution has finished, successfully or not.
func (q *Queue) Ready() bool { return q.ready.Load() }

// Config returns the effective partition configuration.
func (q *Queue) Config() Config { return q.cfg }

// Registry returns the registry jobs from this Queue resolve callbacks with.
func (q *Queue) Registry() *registry.Registry { return q.registry }

// Store waits for resolution and returns the underlying store.
func (q *Queue) Store(ctx context.Context) (Store, error) {
	return q.waitReady(ctx)
}

// Close releases the store if resolution succeeded.
func (q *Queue) Close() error {
	if !q.ready.Load() || q.store == nil {
		return nil
	}
	return q.store.Close()
}

func (q *Queue) waitReady(ctx context.Context) (Store, error) {
	if !q.ready.Load() {
		ticker := time.NewTicker(readyPollInterval)
		defer ticker.Stop()
		for !q.ready.Load() {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}
	}
	if q.connErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionNotReady, q.connErr)
	}
	if q.store == nil {
		return nil, ErrConnectionNotReady
	}
	return q.store, nil
}

// Enqueue persists a new pending job for functionName and returns its id.
// Option precedence is call options, then the Queue's Config, then the
// hard-coded defaults.
func (q *Queue) Enqueue(ctx context.Context, functionName string, opts EnqueueOptions) (string, error) {
	name := strings.TrimSpace(functionName)
	if name == "" {
		return "", fmt.Errorf("%w: function name is required", ErrInvalidArgument)
	}
	rec, err := q.buildRecord(name, opts, time.Now().UTC())
	if err != nil {
		return "", err
	}

	store, err := q.waitReady(ctx)
	if err != nil {
		return "", err
	}
	id, err := store.Insert(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}

	logging.WithContext(logging.WithJobID(ctx, id), q.logger).Debug("job enqueued",
		logging.String(logging.FieldEventType, "job_enqueued"),
		logging.String(logging.FieldFunction, name),
		logging.Int("priority", rec.Priority),
	)
	return id, nil
}

func (q *Queue) buildRecord(name string, opts EnqueueOptions, now time.Time) (*Record, error) {
	onSuccess, err := q.callbackName("on_success", opts.OnSuccess, opts.OnSuccessFunc)
	if err != nil {
		return nil, err
	}
	onFailure, err := q.callbackName("on_failure", opts.OnFailure, opts.OnFailureFunc)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:           strings.TrimSpace(opts.JobID),
		ItemType:     ItemType,
		Channel:      firstNonEmpty(opts.Channel, q.cfg.Channel),
		Lang:         firstNonEmpty(opts.Lang, q.cfg.Lang),
		ConsumerID:   q.cfg.ConsumerID,
		FunctionName: name,
		Args:         opts.Args,
		Kwargs:       mergeKwargs(opts.Kwargs, opts.Extra),
		Description:  opts.Description,
		OnSuccess:    onSuccess,
		OnFailure:    onFailure,
		Priority:     pick(opts.Priority, q.cfg.Priority),
		DependsOn:    normalizeIDs(opts.DependsOn),
		MaxAttempts:  pick(opts.MaxAttempts, q.cfg.MaxAttempts),
		JobTimeout:   pick(opts.JobTimeout, q.cfg.JobTimeout),
		ResultTTL:    pick(opts.ResultTTL, q.cfg.ResultTTL),
		TTL:          pick(opts.TTL, q.cfg.TTL),
		FailureTTL:   pick(opts.FailureTTL, q.cfg.FailureTTL),
		CreatedAt:    now,
	}
	if rec.Args == nil {
		rec.Args = []any{}
	}
	if rec.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max_attempts must be at least 1, got %d", ErrInvalidArgument, rec.MaxAttempts)
	}
	for key, d := range map[string]time.Duration{
		"job_timeout": rec.JobTimeout, "result_ttl": rec.ResultTTL, "ttl": rec.TTL, "failure_ttl": rec.FailureTTL,
	} {
		if err := checkDuration(key, d); err != nil {
			return nil, err
		}
	}
	if rec.ID != "" && slices.Contains(rec.DependsOn, rec.ID) {
		return nil, fmt.Errorf("%w: job %s cannot depend on itself", ErrInvalidArgument, rec.ID)
	}
	return rec, nil
}

func (q *Queue) callbackName(key, name string, fn registry.Func) (string, error) {
	if name = strings.TrimSpace(name); name != "" {
		return name, nil
	}
	if fn == nil {
		return "", nil
	}
	resolved, ok := q.registry.NameOf(fn)
	if !ok {
		return "", fmt.Errorf("%w: %s function is not registered under a single name; pass its identifier instead", ErrInvalidArgument, key)
	}
	return resolved, nil
}

// Dequeue claims at most one eligible job from the Queue's partition. It
// returns nil, nil when nothing is claimable.
//
// Dependency gating reads the done-id snapshot before the atomic claim, so a
// dependency finishing between the two steps is only observed on the next
// Dequeue.
func (q *Queue) Dequeue(ctx context.Context, opts DequeueOptions) (*Job, error) {
	store, err := q.waitReady(ctx)
	if err != nil {
		return nil, err
	}

	doneIDs, err := store.DoneIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot done jobs: %w", err)
	}

	rec, err := store.Claim(ctx, ClaimFilter{
		Lang:       firstNonEmpty(opts.Lang, q.cfg.Lang),
		ConsumerID: q.cfg.ConsumerID,
		Channel:    firstNonEmpty(opts.Channel, q.cfg.Channel),
		JobID:      strings.TrimSpace(opts.JobID),
		DoneIDs:    doneIDs,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	logging.WithContext(logging.WithJobID(ctx, rec.ID), q.logger).Debug("job claimed",
		logging.String(logging.FieldEventType, "job_claimed"),
		logging.String(logging.FieldFunction, rec.FunctionName),
		logging.Int("attempts", rec.Attempts),
	)
	return newJob(rec, store, q.registry, q.logger), nil
}

func pick[T any](call *T, fallback T) T {
	if call != nil {
		return *call
	}
	return fallback
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
