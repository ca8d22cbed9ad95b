package postgres_test

import (
	"context"
	"os"
	"testing"

	"mqas/internal/queue"
	"mqas/internal/queue/queuetest"
	"mqas/internal/store/postgres"
)

// These tests need a disposable database; every subtest truncates mqas_jobs.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MQAS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MQAS_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func TestStoreContract(t *testing.T) {
	dsn := testDSN(t)
	queuetest.Run(t, func(t *testing.T) queue.Store {
		ctx := context.Background()
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		if _, err := store.Pool().Exec(ctx, "TRUNCATE mqas_jobs"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
