package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mqas/internal/logging"
	"mqas/internal/queue"
	"mqas/internal/registry"
)

// DefaultHeartbeat is the sleep between poll cycles.
const DefaultHeartbeat = time.Second

// Worker polls its Queues and dispatches claimed jobs one at a time.
type Worker struct {
	id        string
	queues    []*queue.Queue
	registry  *registry.Registry
	channels  []string
	heartbeat time.Duration
	logger    *slog.Logger
	verbose   bool
	verbosity string
	logFunc   queue.LogFunc
	out       io.Writer

	running atomic.Bool
	working atomic.Bool

	processed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	lastErr   error
	lastJobID string
}

// Option configures a Worker.
type Option func(*Worker)

// WithChannels restricts polling to the given channels, tried in order on
// every Queue. Without channels each Queue is polled on its own channel.
func WithChannels(channels ...string) Option {
	return func(w *Worker) { w.channels = append([]string(nil), channels...) }
}

// WithHeartbeat sets the sleep between poll cycles.
func WithHeartbeat(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.heartbeat = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithVerbose prints dispatch failures to the worker's output.
func WithVerbose(verbose bool) Option {
	return func(w *Worker) { w.verbose = verbose }
}

// WithOutput sets where verbose messages are printed (stdout by default).
func WithOutput(out io.Writer) Option {
	return func(w *Worker) { w.out = out }
}

// WithVerbosity selects which job events reach the LogFunc.
func WithVerbosity(verbosity string) Option {
	return func(w *Worker) { w.verbosity = verbosity }
}

// WithLogFunc installs a job lifecycle event callback on every dispatched job.
func WithLogFunc(fn queue.LogFunc) Option {
	return func(w *Worker) { w.logFunc = fn }
}

// WithID overrides the generated worker id used in logs.
func WithID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// New builds a Worker over queues. Job functions resolve through reg.
func New(queues []*queue.Queue, reg *registry.Registry, opts ...Option) *Worker {
	w := &Worker{
		id:        uuid.NewString()[:8],
		queues:    queues,
		registry:  reg,
		heartbeat: DefaultHeartbeat,
		verbosity: queue.LogKindError,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = registry.New()
	}
	w.logger = logging.NewComponentLogger(w.logger, "worker").With(logging.String(logging.FieldWorkerID, w.id))
	return w
}

// ID returns the worker id.
func (w *Worker) ID() string { return w.id }

// Running reports whether the loop is active.
func (w *Worker) Running() bool { return w.running.Load() }

// Working reports whether a poll cycle or dispatch is in flight.
func (w *Worker) Working() bool { return w.working.Load() }

// Start runs the loop until Stop is called or ctx is done. A job that is
// already dispatched always runs to completion first.
func (w *Worker) Start(ctx context.Context) error {
	if len(w.queues) == 0 {
		return errors.New("worker has no queues")
	}
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("worker already running")
	}
	w.logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_started"),
		logging.Int("queues", len(w.queues)),
		logging.Any("channels", w.channels),
		logging.Duration("heartbeat", w.heartbeat),
	)
	defer w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stopped"))

	for w.running.Load() {
		if !w.working.Load() {
			_, _ = w.RunOnce(ctx)
		}
		select {
		case <-ctx.Done():
			w.running.Store(false)
		case <-time.After(w.heartbeat):
		}
	}
	return nil
}

// Stop clears the run flag. The loop observes it after the current cycle.
func (w *Worker) Stop() {
	w.running.Store(false)
}

// RunOnce performs a single poll cycle and reports whether a job was
// dispatched. Store errors end the cycle and are returned; job failures are
// recorded on the job and are not.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	w.working.Store(true)
	defer w.working.Store(false)

	job, err := w.poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		w.setLastError(err)
		logging.ErrorWithContext(w.logger, "failed to fetch next job", "queue_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store connection settings"),
		)
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.dispatch(ctx, job)
	return true, nil
}

func (w *Worker) poll(ctx context.Context) (*queue.Job, error) {
	for _, q := range w.queues {
		if len(w.channels) == 0 {
			job, err := q.Dequeue(ctx, queue.DequeueOptions{})
			if err != nil || job != nil {
				return job, err
			}
			continue
		}
		for _, channel := range w.channels {
			job, err := q.Dequeue(ctx, queue.DequeueOptions{Channel: channel})
			if err != nil || job != nil {
				return job, err
			}
		}
	}
	return nil, nil
}

// dispatch invokes the job's function and finalizes the job exactly once.
// It runs detached from ctx cancellation so shutdown never interrupts it.
func (w *Worker) dispatch(ctx context.Context, job *queue.Job) {
	ctx = logging.WithJobID(logging.WithWorkerID(context.WithoutCancel(ctx), w.id), job.ID())
	ctx = queue.WithJob(ctx, job)
	logger := logging.WithContext(ctx, w.logger).With(logging.String(logging.FieldFunction, job.FunctionName()))

	job.SetVerbosity(w.verbosity)
	job.SetLogFunc(w.logFunc)
	job.SetLogger(w.logger)
	job.SetRegistry(w.registry)
	w.setLastJob(job.ID())

	fn, err := w.registry.Resolve(job.FunctionName())
	if err != nil {
		msg := fmt.Sprintf("Unable to find function %s", job.FunctionName())
		w.fail(ctx, logger, job, msg)
		return
	}

	logger.Debug("job dispatched", logging.String(logging.FieldEventType, "job_dispatched"))
	start := time.Now()
	result, err := invoke(ctx, fn, queue.CallArgs(job.Record()))
	if err != nil {
		w.fail(ctx, logger, job, err.Error())
		return
	}
	if err := job.Complete(ctx, result); err != nil {
		w.setLastError(err)
		logging.ErrorWithContext(logger, "failed to record job completion", "job_finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job may be claimed again after release"),
		)
		return
	}
	w.processed.Add(1)
	logger.Debug("job finished", logging.Duration("elapsed", time.Since(start)))
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, msg string) {
	w.failed.Add(1)
	if w.verbose {
		fmt.Fprintln(w.out, msg)
	}
	if err := job.Error(ctx, msg); err != nil {
		w.setLastError(err)
		logging.ErrorWithContext(logger, "failed to record job failure", "job_finalize_failed",
			logging.Error(err),
			logging.String("job_error", msg),
		)
	}
}

// PanicError wraps a value recovered from a panicking job function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func invoke(ctx context.Context, fn registry.Func, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, args...)
}

// Status is a point-in-time view of a Worker.
type Status struct {
	ID        string `json:"id"`
	Running   bool   `json:"running"`
	Working   bool   `json:"working"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	LastJobID string `json:"last_job_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Status returns the worker's counters and last observed error.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{
		ID:        w.id,
		Running:   w.running.Load(),
		Working:   w.working.Load(),
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		LastJobID: w.lastJobID,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

func (w *Worker) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

func (w *Worker) setLastJob(id string) {
	w.mu.Lock()
	w.lastJobID = id
	w.mu.Unlock()
}
