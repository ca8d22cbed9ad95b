package api_test

import (
	"context"
	"errors"
	"testing"

	"mqas/internal/api"
	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/testsupport"
)

func newService(t *testing.T) (*api.JobService, *queue.Queue) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithConsumerID("tenant-a"))
	store := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustNewQueue(t, cfg, store, registry.New())
	return api.NewJobService(q), q
}

func TestJobServiceEnqueue(t *testing.T) {
	svc, q := newService(t)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, map[string]any{
		"function_name": "reports.build",
		"args":          []any{"2026-01"},
		"priority":      float64(5),
		"format":        "pdf",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{})
	if job.ID() != id || job.Record().Priority != 5 {
		t.Fatalf("unexpected job %#v", job.Record())
	}
	if job.Kwargs()["format"] != "pdf" {
		t.Fatalf("unknown key should land in kwargs, got %#v", job.Kwargs())
	}
}

func TestJobServiceEnqueueValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for name, body := range map[string]map[string]any{
		"missing name": {"args": []any{1}},
		"bad priority": {"function_name": "x.y", "priority": "high"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Enqueue(ctx, body); !errors.Is(err, queue.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestJobServiceInspectAndRelease(t *testing.T) {
	svc, q := newService(t)
	ctx := context.Background()
	first := testsupport.MustEnqueue(t, q, "a.run", queue.EnqueueOptions{Channel: "alpha"})
	testsupport.MustEnqueue(t, q, "b.run", queue.EnqueueOptions{Channel: "beta"})

	job := testsupport.MustDequeue(t, q, queue.DequeueOptions{Channel: "alpha"})
	if err := job.Error(ctx, "boom"); err != nil {
		t.Fatalf("Error: %v", err)
	}

	failed, err := svc.List(ctx, api.ListQuery{Statuses: []queue.Status{queue.StatusExhausted}})
	if err != nil || len(failed) != 1 || failed[0].ID != first {
		t.Fatalf("List exhausted = %#v, %v", failed, err)
	}

	desc, err := svc.Describe(ctx, first)
	if err != nil || desc.ErrorMessage != "boom" {
		t.Fatalf("Describe = %#v, %v", desc, err)
	}

	released, err := svc.Release(ctx, first)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != string(queue.StatusPending) || released.Attempts != 0 || released.ReleasedAt == "" {
		t.Fatalf("unexpected released job %#v", released)
	}

	stats, err := svc.Stats(ctx, "")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Counts[string(queue.StatusPending)] != 2 || stats.ConsumerID != "tenant-a" {
		t.Fatalf("unexpected stats %#v", stats)
	}
	beta, err := svc.Stats(ctx, "beta")
	if err != nil || beta.Total != 1 {
		t.Fatalf("Stats(beta) = %#v, %v", beta, err)
	}
}

func TestJobServiceUnknownID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Describe(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("Describe: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Release(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("Release: expected ErrNotFound, got %v", err)
	}
}

func TestNewJobServiceNil(t *testing.T) {
	if api.NewJobService(nil) != nil {
		t.Fatal("expected nil service for nil queue")
	}
}
