package worker_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mqas/internal/logging"
	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/testsupport"
	"mqas/internal/worker"
)

func mathRegistry(calls *atomic.Int64) *registry.Registry {
	return registry.New(registry.Source{
		Name: "math",
		Funcs: map[string]registry.Func{
			"add": func(_ context.Context, args ...any) (any, error) {
				if calls != nil {
					calls.Add(1)
				}
				var sum float64
				for _, arg := range args {
					if n, ok := arg.(float64); ok {
						sum += n
					}
				}
				return sum, nil
			},
			"fail": func(context.Context, ...any) (any, error) {
				return nil, errors.New("division by zero")
			},
			"explode": func(context.Context, ...any) (any, error) {
				panic("boom")
			},
		},
	})
}

func newQueue(t *testing.T, reg *registry.Registry, opts ...testsupport.ConfigOption) (*queue.Queue, queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return testsupport.MustNewQueue(t, cfg, store, reg), store
}

func getRecord(t *testing.T, store queue.Store, id string) *queue.Record {
	t.Helper()
	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return rec
}

func TestRunOnceCompletesJob(t *testing.T) {
	reg := mathRegistry(nil)
	q, store := newQueue(t, reg)
	id := testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Args: []any{2, 3}})

	w := worker.New([]*queue.Queue{q}, reg)
	ran, err := w.RunOnce(context.Background())
	if err != nil || !ran {
		t.Fatalf("RunOnce = %v, %v", ran, err)
	}

	rec := getRecord(t, store, id)
	if !rec.Done || rec.Progress != 100 {
		t.Fatalf("expected done record, got %#v", rec)
	}
	if rec.Result != float64(5) {
		t.Fatalf("unexpected result %#v", rec.Result)
	}
	if status := w.Status(); status.Processed != 1 || status.LastJobID != id {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestJobFunctionReportsProgress(t *testing.T) {
	var (
		store               queue.Store
		mid                 *queue.Record
		jobID, workerID     string
		sawJobID, sawWorker bool
	)
	reg := registry.New(registry.Source{Name: "reports", Funcs: map[string]registry.Func{
		"build": func(ctx context.Context, _ ...any) (any, error) {
			job := queue.JobFromContext(ctx)
			if job == nil {
				return nil, errors.New("no job in context")
			}
			if err := job.Progress(ctx, 50, "half"); err != nil {
				return nil, err
			}
			rec, err := store.Get(ctx, job.ID())
			if err != nil {
				return nil, err
			}
			mid = rec
			jobID, sawJobID = logging.JobIDFromContext(ctx)
			workerID, sawWorker = logging.WorkerIDFromContext(ctx)
			return "built", nil
		},
	}})
	q, s := newQueue(t, reg)
	store = s
	id := testsupport.MustEnqueue(t, q, "reports.build", queue.EnqueueOptions{})

	w := worker.New([]*queue.Queue{q}, reg, worker.WithID("w-progress"))
	if ran, err := w.RunOnce(context.Background()); err != nil || !ran {
		t.Fatalf("RunOnce = %v, %v", ran, err)
	}

	if mid == nil || mid.Progress != 50 || mid.ProgressMessage != "half" {
		t.Fatalf("expected stored progress 50 while running, got %#v", mid)
	}
	if !sawJobID || jobID != id {
		t.Fatalf("JobIDFromContext = %q (%v), want %q", jobID, sawJobID, id)
	}
	if !sawWorker || workerID != "w-progress" {
		t.Fatalf("WorkerIDFromContext = %q (%v)", workerID, sawWorker)
	}
	rec := getRecord(t, store, id)
	if !rec.Done || rec.Result != "built" || rec.LastProgressAt == nil {
		t.Fatalf("unexpected final record %#v", rec)
	}
	if queue.JobFromContext(context.Background()) != nil {
		t.Fatal("expected no job outside dispatch")
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	reg := mathRegistry(nil)
	q, _ := newQueue(t, reg)
	w := worker.New([]*queue.Queue{q}, reg)

	ran, err := w.RunOnce(context.Background())
	if err != nil || ran {
		t.Fatalf("RunOnce on empty queue = %v, %v", ran, err)
	}
	if w.Working() {
		t.Fatal("worker should not be working after the cycle")
	}
}

func TestRunOnceRecordsFailures(t *testing.T) {
	cases := map[string]struct {
		function string
		message  string
	}{
		"returned error":   {function: "math.fail", message: "division by zero"},
		"panic":            {function: "math.explode", message: "panic: boom"},
		"unknown function": {function: "missing.fn", message: "Unable to find function missing.fn"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			reg := mathRegistry(nil)
			q, store := newQueue(t, reg)
			id := testsupport.MustEnqueue(t, q, tc.function, queue.EnqueueOptions{})

			var out bytes.Buffer
			w := worker.New([]*queue.Queue{q}, reg, worker.WithVerbose(true), worker.WithOutput(&out))
			if _, err := w.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce: %v", err)
			}

			rec := getRecord(t, store, id)
			if !rec.Error || rec.Done || rec.InProgress {
				t.Fatalf("expected failed record, got %#v", rec)
			}
			if rec.ErrorMessage != tc.message {
				t.Fatalf("error message = %q, want %q", rec.ErrorMessage, tc.message)
			}
			if !strings.Contains(out.String(), tc.message) {
				t.Fatalf("verbose output %q missing %q", out.String(), tc.message)
			}
			if w.Status().Failed != 1 {
				t.Fatalf("expected one failure, got %#v", w.Status())
			}
		})
	}
}

func TestQuietWorkerPrintsNothing(t *testing.T) {
	reg := mathRegistry(nil)
	q, _ := newQueue(t, reg)
	testsupport.MustEnqueue(t, q, "missing.fn", queue.EnqueueOptions{})

	var out bytes.Buffer
	w := worker.New([]*queue.Queue{q}, reg, worker.WithOutput(&out))
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestChannelsPolledInOrder(t *testing.T) {
	reg := mathRegistry(nil)
	q, store := newQueue(t, reg)
	low := testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Channel: "low"})
	high := testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Channel: "high"})
	testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Channel: "ignored"})

	w := worker.New([]*queue.Queue{q}, reg, worker.WithChannels("high", "low"))
	ctx := context.Background()
	for range 3 {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if w.Status().LastJobID != low {
		t.Fatalf("expected low job last, got %s", w.Status().LastJobID)
	}
	if !getRecord(t, store, high).Done || !getRecord(t, store, low).Done {
		t.Fatal("expected both channel jobs done")
	}
	pending, err := store.List(ctx, queue.ListFilter{Channel: "ignored", Statuses: []queue.Status{queue.StatusPending}})
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected ignored channel untouched, got %d (%v)", len(pending), err)
	}
}

func TestQueuesPolledInOrder(t *testing.T) {
	reg := mathRegistry(nil)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := queue.New(store, queue.Config{Channel: "first"}, queue.WithRegistry(reg))
	second := queue.New(store, queue.Config{Channel: "second"}, queue.WithRegistry(reg))
	secondID := testsupport.MustEnqueue(t, second, "math.add", queue.EnqueueOptions{})
	firstID := testsupport.MustEnqueue(t, first, "math.add", queue.EnqueueOptions{})

	w := worker.New([]*queue.Queue{first, second}, reg)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if w.Status().LastJobID != firstID {
		t.Fatalf("expected first queue's job, got %s", w.Status().LastJobID)
	}
	if getRecord(t, store, secondID).InProgress {
		t.Fatal("second queue should not be touched in the same cycle")
	}
}

func TestStartProcessesUntilStopped(t *testing.T) {
	var calls atomic.Int64
	reg := mathRegistry(&calls)
	q, _ := newQueue(t, reg)
	for range 3 {
		testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Args: []any{1}})
	}

	w := worker.New([]*queue.Queue{q}, reg, worker.WithHeartbeat(5*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	waitFor(t, func() bool { return calls.Load() == 3 })
	if !w.Running() {
		t.Fatal("expected worker running")
	}
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if w.Running() {
		t.Fatal("expected worker stopped")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	reg := mathRegistry(nil)
	q, _ := newQueue(t, reg)
	w := worker.New([]*queue.Queue{q}, reg, worker.WithHeartbeat(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	waitFor(t, w.Running)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored context cancellation")
	}
}

func TestStartRejectsMisuse(t *testing.T) {
	if err := worker.New(nil, nil).Start(context.Background()); err == nil {
		t.Fatal("expected error for worker without queues")
	}

	reg := mathRegistry(nil)
	q, _ := newQueue(t, reg)
	w := worker.New([]*queue.Queue{q}, reg, worker.WithHeartbeat(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	waitFor(t, w.Running)
	if err := w.Start(ctx); err == nil {
		t.Fatal("expected error starting a running worker")
	}
}

func TestLogFuncReceivesSelectedEvents(t *testing.T) {
	reg := mathRegistry(nil)
	q, _ := newQueue(t, reg)
	testsupport.MustEnqueue(t, q, "math.add", queue.EnqueueOptions{Args: []any{4}})
	testsupport.MustEnqueue(t, q, "math.fail", queue.EnqueueOptions{})

	var (
		mu    sync.Mutex
		kinds []string
	)
	logFunc := func(_ context.Context, event queue.LogEvent) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, event.Kind)
	}
	w := worker.New([]*queue.Queue{q}, reg,
		worker.WithLogFunc(logFunc),
		worker.WithVerbosity("completed"),
	)
	ctx := context.Background()
	for range 2 {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 1 || kinds[0] != queue.LogKindCompleted {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestRegistryLogFunc(t *testing.T) {
	var got []any
	fn := worker.RegistryLogFunc(func(_ context.Context, args ...any) (any, error) {
		got = args
		return nil, nil
	})
	fn(context.Background(), queue.LogEvent{
		Kind:    queue.LogKindError,
		JobID:   "job-1",
		Args:    []any{"a"},
		Message: "bad input",
	})
	if len(got) != 3 || got[0] != queue.LogKindError {
		t.Fatalf("unexpected call args %#v", got)
	}
	detail, ok := got[2].(map[string]any)
	if !ok || detail["job_id"] != "job-1" || detail["message"] != "bad input" {
		t.Fatalf("unexpected detail %#v", got[2])
	}
	if worker.RegistryLogFunc(nil) != nil {
		t.Fatal("expected nil LogFunc for nil function")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
