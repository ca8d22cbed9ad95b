package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/testsupport"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]any
}

func (r *recorder) fn(_ context.Context, args ...any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	return nil, nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestCompleteRunsOnSuccessCallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hooks := &recorder{}
	reg := registry.New(registry.Source{Name: "hooks", Funcs: map[string]registry.Func{
		"done":   hooks.fn,
		"failed": func(context.Context, ...any) (any, error) { return nil, errors.New("hook exploded") },
	}})
	q := testsupport.MustNewQueue(t, cfg, store, reg)
	ctx := context.Background()

	testsupport.MustEnqueue(t, q, "pkg.fn", queue.EnqueueOptions{
		Args:      []any{"a"},
		Kwargs:    map[string]any{"k": "v"},
		OnSuccess: "hooks.done",
		OnFailure: "hooks.failed",
	})
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})

	// a failing callback is logged, never returned
	if err := job.Error(ctx, "first try"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := job.Complete(ctx, "result"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if hooks.count() != 1 {
		t.Fatalf("expected on_success once, got %d", hooks.count())
	}
	args := hooks.calls[0]
	if len(args) != 2 || args[0] != "a" {
		t.Fatalf("unexpected callback args: %#v", args)
	}
	if kw, ok := args[1].(map[string]any); !ok || kw["k"] != "v" {
		t.Fatalf("expected trailing kwargs, got %#v", args[1])
	}

	rec := job.Record()
	if !rec.Done || rec.Progress != 100 || rec.Result != "result" {
		t.Fatalf("in-memory record not updated: %#v", rec)
	}
}

func TestOnSuccessFuncResolvesToName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hooks := &recorder{}
	notify := registry.Func(hooks.fn)
	reg := registry.New(registry.Source{Name: "hooks", Funcs: map[string]registry.Func{"notify": notify}})
	q := testsupport.MustNewQueue(t, cfg, store, reg)

	id := testsupport.MustEnqueue(t, q, "pkg.fn", queue.EnqueueOptions{OnSuccessFunc: notify})
	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.OnSuccess != "hooks.notify" {
		t.Fatalf("on_success = %q, want hooks.notify", rec.OnSuccess)
	}
}

func TestLogFuncRespectsVerbosity(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	testsupport.MustEnqueue(t, q, "pkg.fn", queue.EnqueueOptions{Args: []any{1}})
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})

	var events []queue.LogEvent
	job.SetLogFunc(func(_ context.Context, event queue.LogEvent) {
		events = append(events, event)
	})

	if err := job.Progress(ctx, 50, "half"); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("default verbosity should only report errors, got %v", events)
	}

	job.SetVerbosity("progress,completed")
	if err := job.Progress(ctx, 250, "over"); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if err := job.Complete(ctx, map[string]any{"ok": true}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != queue.LogKindProgress || events[0].Percent != 100 {
		t.Fatalf("expected clamped progress event, got %#v", events[0])
	}
	if events[1].Kind != queue.LogKindCompleted || events[1].JobID != job.ID() {
		t.Fatalf("unexpected completion event: %#v", events[1])
	}
	if events[1].Payload["function_name"] != "pkg.fn" {
		t.Fatalf("payload missing function name: %#v", events[1].Payload)
	}
}

func TestLogFuncPanicIsContained(t *testing.T) {
	q, _ := newTestQueue(t)
	testsupport.MustEnqueue(t, q, "pkg.fn", queue.EnqueueOptions{})
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})
	job.SetLogFunc(func(context.Context, queue.LogEvent) { panic("logger broke") })

	if err := job.Error(context.Background(), "boom"); err != nil {
		t.Fatalf("Error should survive a panicking logger: %v", err)
	}
}

func TestUnboundJobWritesNothing(t *testing.T) {
	job := queue.NewUnboundJob(&queue.Record{ID: "x", FunctionName: "pkg.fn"})
	ctx := context.Background()
	if job.Bound() {
		t.Fatal("expected unbound job")
	}
	checks := map[string]error{
		"complete": job.Complete(ctx, 1),
		"error":    job.Error(ctx, "x"),
		"progress": job.Progress(ctx, 10, ""),
		"release":  job.Release(ctx),
	}
	for op, err := range checks {
		if !errors.Is(err, queue.ErrUnbound) {
			t.Fatalf("%s: expected ErrUnbound, got %v", op, err)
		}
	}
	if job.Record().Done || job.Record().Progress != 0 {
		t.Fatal("unbound job record should not change")
	}
}

func TestCallArgs(t *testing.T) {
	if got := queue.CallArgs(&queue.Record{Args: []any{1, 2}}); len(got) != 2 {
		t.Fatalf("expected no trailing kwargs, got %#v", got)
	}
	got := queue.CallArgs(&queue.Record{Kwargs: map[string]any{"a": 1}})
	if len(got) != 1 {
		t.Fatalf("expected kwargs only, got %#v", got)
	}
}
