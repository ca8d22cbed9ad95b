package testsupport

import (
	"context"
	"testing"

	"mqas/internal/config"
	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/store/sqlite"
)

// MustOpenStore opens the SQLite store named by cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), cfg.Store.SQLitePath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustNewQueue builds a ready Queue over store using cfg's [queue] section.
func MustNewQueue(t testing.TB, cfg *config.Config, store queue.Store, reg *registry.Registry) *queue.Queue {
	t.Helper()

	return queue.New(store, queue.ConfigFrom(cfg), queue.WithRegistry(reg))
}

// MustEnqueue enqueues functionName and fails the test on error.
func MustEnqueue(t testing.TB, q *queue.Queue, functionName string, opts queue.EnqueueOptions) string {
	t.Helper()

	id, err := q.Enqueue(context.Background(), functionName, opts)
	if err != nil {
		t.Fatalf("Enqueue(%s): %v", functionName, err)
	}
	return id
}

// MustDequeue claims a job and fails the test if none is available.
func MustDequeue(t testing.TB, q *queue.Queue, opts queue.DequeueOptions) *queue.Job {
	t.Helper()

	job, err := q.Dequeue(context.Background(), opts)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("Dequeue returned no job")
	}
	return job
}
