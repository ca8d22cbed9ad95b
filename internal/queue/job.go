package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mqas/internal/logging"
	"mqas/internal/registry"
)

// Log event kinds, matched against a job's verbosity string.
const (
	LogKindCompleted = "completed"
	LogKindError     = "error"
	LogKindProgress  = "progress"
)

// LogEvent is handed to a LogFunc after each state transition.
type LogEvent struct {
	Kind    string
	JobID   string
	Args    []any
	Kwargs  map[string]any
	Payload map[string]any
	Result  any
	Message string
	Percent int
}

// LogFunc receives job lifecycle events selected by verbosity.
type LogFunc func(ctx context.Context, event LogEvent)

// Job is the lifecycle handle for one claimed record.
type Job struct {
	rec       *Record
	store     Store
	registry  *registry.Registry
	logger    *slog.Logger
	logFunc   LogFunc
	verbosity string
	sampler   *logging.ProgressSampler
	now       func() time.Time
}

func newJob(rec *Record, store Store, reg *registry.Registry, logger *slog.Logger) *Job {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Job{
		rec:       rec,
		store:     store,
		registry:  reg,
		logger:    logger,
		verbosity: LogKindError,
		sampler:   logging.NewProgressSampler(10),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewUnboundJob wraps a record without a store. Every mutation returns
// ErrUnbound and writes nothing.
func NewUnboundJob(rec *Record) *Job {
	if rec == nil {
		rec = &Record{}
	}
	return newJob(rec, nil, nil, nil)
}

// ID returns the record id.
func (j *Job) ID() string { return j.rec.ID }

// Record returns the job's in-memory record. Mutations keep it in step with
// what was written.
func (j *Job) Record() *Record { return j.rec }

// FunctionName returns the dotted function identifier to invoke.
func (j *Job) FunctionName() string { return j.rec.FunctionName }

// Args returns the positional arguments.
func (j *Job) Args() []any { return j.rec.Args }

// Kwargs returns the keyword arguments.
func (j *Job) Kwargs() map[string]any { return j.rec.Kwargs }

// Bound reports whether mutations reach a store.
func (j *Job) Bound() bool { return j.store != nil }

// SetLogFunc installs the lifecycle event callback.
func (j *Job) SetLogFunc(fn LogFunc) { j.logFunc = fn }

// SetVerbosity selects which event kinds reach the LogFunc. The match is a
// substring test, so "error,completed" enables both.
func (j *Job) SetVerbosity(verbosity string) { j.verbosity = strings.ToLower(verbosity) }

// SetRegistry overrides the registry used to resolve callbacks.
func (j *Job) SetRegistry(reg *registry.Registry) { j.registry = reg }

// SetLogger overrides the structured logger.
func (j *Job) SetLogger(logger *slog.Logger) {
	if logger != nil {
		j.logger = logger
	}
}

func (j *Job) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(logging.WithJobID(ctx, j.rec.ID), j.logger)
}

// Complete marks the job done with result and then runs its on_success callback.
func (j *Job) Complete(ctx context.Context, result any) error {
	if j.store == nil {
		return ErrUnbound
	}
	at := j.now()
	if err := j.store.Complete(ctx, j.rec.ID, result, at); err != nil {
		return fmt.Errorf("complete job %s: %w", j.rec.ID, err)
	}
	j.rec.Progress = 100
	j.rec.InProgress = true
	j.rec.Done = true
	j.rec.Result = result
	j.rec.CompletedAt = &at

	j.log(ctx).Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String(logging.FieldFunction, j.rec.FunctionName),
	)
	j.emit(ctx, LogEvent{Kind: LogKindCompleted, Result: result})
	j.runCallback(ctx, "on_success", j.rec.OnSuccess)
	return nil
}

// Error records a failed attempt with message and then runs its on_failure
// callback. The record becomes claimable again until attempts reach
// max_attempts.
func (j *Job) Error(ctx context.Context, message string) error {
	if j.store == nil {
		return ErrUnbound
	}
	at := j.now()
	if err := j.store.Fail(ctx, j.rec.ID, message, at); err != nil {
		return fmt.Errorf("fail job %s: %w", j.rec.ID, err)
	}
	if j.rec.Attempts < j.rec.MaxAttempts {
		j.rec.Attempts++
	}
	j.rec.InProgress = false
	j.rec.Error = true
	j.rec.ErrorMessage = message
	j.rec.LastErrorAt = &at

	j.log(ctx).Warn("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldFunction, j.rec.FunctionName),
		logging.String("error_message", message),
		logging.Int("attempts", j.rec.Attempts),
		logging.Int("max_attempts", j.rec.MaxAttempts),
		logging.String(logging.FieldErrorHint, "inspect the job with mqas jobs show"),
	)
	j.emit(ctx, LogEvent{Kind: LogKindError, Message: message})
	j.runCallback(ctx, "on_failure", j.rec.OnFailure)
	return nil
}

// Progress records a percentage (clamped to 0-100) and a message.
func (j *Job) Progress(ctx context.Context, percent int, message string) error {
	if j.store == nil {
		return ErrUnbound
	}
	percent = max(0, min(100, percent))
	at := j.now()
	if err := j.store.Progress(ctx, j.rec.ID, percent, message, at); err != nil {
		return fmt.Errorf("progress job %s: %w", j.rec.ID, err)
	}
	j.rec.Progress = percent
	j.rec.ProgressMessage = message
	j.rec.LastProgressAt = &at

	level := slog.LevelDebug
	if j.sampler.ShouldLog(percent, message) {
		level = slog.LevelInfo
	}
	j.log(ctx).Log(ctx, level, "job progress",
		logging.String(logging.FieldEventType, "job_progress"),
		logging.Int("percent", percent),
		logging.String("message", message),
	)
	j.emit(ctx, LogEvent{Kind: LogKindProgress, Message: message, Percent: percent})
	return nil
}

// Release returns the job to the pending pool with a fresh attempt budget.
func (j *Job) Release(ctx context.Context) error {
	if j.store == nil {
		return ErrUnbound
	}
	at := j.now()
	if err := j.store.Release(ctx, j.rec.ID, at); err != nil {
		return fmt.Errorf("release job %s: %w", j.rec.ID, err)
	}
	j.rec.InProgress = false
	j.rec.Error = false
	j.rec.Done = false
	j.rec.Attempts = 0
	j.rec.ReleasedAt = &at

	j.log(ctx).Info("job released", logging.String(logging.FieldEventType, "job_released"))
	return nil
}

// emit forwards an event to the LogFunc when its kind is enabled. Failures
// in the LogFunc are logged and never reach the caller.
func (j *Job) emit(ctx context.Context, event LogEvent) {
	if j.logFunc == nil || !strings.Contains(j.verbosity, event.Kind) {
		return
	}
	event.JobID = j.rec.ID
	event.Args = j.rec.Args
	event.Kwargs = j.rec.Kwargs
	event.Payload = j.rec.Payload()
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(j.log(ctx), "job logger panicked", "job_logger_failed",
				logging.Any("panic", r),
			)
		}
	}()
	j.logFunc(ctx, event)
}

func (j *Job) runCallback(ctx context.Context, key, name string) {
	if name == "" {
		return
	}
	logger := j.log(ctx).With(logging.String("callback", name), logging.String("hook", key))
	fn, err := j.registry.Resolve(name)
	if err != nil {
		logging.WarnWithContext(logger, "job callback could not be resolved", "callback_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "register the callback function with the worker"),
		)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "job callback panicked", "callback_failed", logging.Any("panic", r))
		}
	}()
	if _, err := fn(ctx, CallArgs(j.rec)...); err != nil {
		logging.WarnWithContext(logger, "job callback failed", "callback_failed", logging.Error(err))
	}
}

// CallArgs builds the argument list a record's function receives: the
// positional args followed by the kwargs map when it is non-empty.
func CallArgs(rec *Record) []any {
	args := make([]any, 0, len(rec.Args)+1)
	args = append(args, rec.Args...)
	if len(rec.Kwargs) > 0 {
		args = append(args, rec.Kwargs)
	}
	return args
}
