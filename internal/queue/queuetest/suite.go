// Package queuetest holds the behavioural contract every queue.Store backend
// must satisfy. Backend packages call Run from their own tests.
package queuetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mqas/internal/queue"
)

// Factory returns an empty store for one subtest. The factory owns cleanup.
type Factory func(t *testing.T) queue.Store

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, store queue.Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicateID", testInsertDuplicateID},
		{"ClaimOrder", testClaimOrder},
		{"ClaimPartition", testClaimPartition},
		{"ClaimByJobID", testClaimByJobID},
		{"DependencyGating", testDependencyGating},
		{"DependencyGatingAllParents", testDependencyGatingAllParents},
		{"FailRetriesUntilExhausted", testFailRetriesUntilExhausted},
		{"CompleteAndProgress", testCompleteAndProgress},
		{"Release", testRelease},
		{"UnknownID", testUnknownID},
		{"List", testList},
		{"ConcurrentClaimSingleHolder", testConcurrentClaim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newRecord(name string, offset time.Duration) *queue.Record {
	return &queue.Record{
		ItemType:     queue.ItemType,
		ConsumerID:   "consumer",
		Channel:      "default",
		Lang:         "go",
		FunctionName: name,
		Args:         []any{},
		MaxAttempts:  1,
		CreatedAt:    base.Add(offset),
	}
}

func filter(doneIDs ...string) queue.ClaimFilter {
	return queue.ClaimFilter{
		Lang:       "go",
		ConsumerID: "consumer",
		Channel:    "default",
		DoneIDs:    doneIDs,
		Now:        base.Add(time.Hour),
	}
}

func mustInsert(t *testing.T, store queue.Store, rec *queue.Record) string {
	t.Helper()
	id, err := store.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("Insert(%s): %v", rec.FunctionName, err)
	}
	if id == "" {
		t.Fatal("Insert returned empty id")
	}
	return id
}

func mustClaim(t *testing.T, store queue.Store, f queue.ClaimFilter) *queue.Record {
	t.Helper()
	rec, err := store.Claim(context.Background(), f)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	return rec
}

func mustGet(t *testing.T, store queue.Store, id string) *queue.Record {
	t.Helper()
	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return rec
}

func testInsertAndGet(t *testing.T, store queue.Store) {
	rec := newRecord("pkg.sum", 0)
	rec.Args = []any{1, "two"}
	rec.Kwargs = map[string]any{"flag": true}
	rec.Description = "adds things"
	rec.OnSuccess = "pkg.notify"
	rec.Priority = 3
	rec.DependsOn = []string{"a", "b"}
	rec.MaxAttempts = 4
	rec.JobTimeout = time.Hour
	rec.ResultTTL = 500 * time.Second

	id := mustInsert(t, store, rec)
	got := mustGet(t, store, id)

	if got.ID != id || got.FunctionName != "pkg.sum" || got.ItemType != queue.ItemType {
		t.Fatalf("unexpected record identity: %#v", got)
	}
	if len(got.Args) != 2 || got.Args[0] != float64(1) || got.Args[1] != "two" {
		t.Fatalf("unexpected args: %#v", got.Args)
	}
	if got.Kwargs["flag"] != true {
		t.Fatalf("unexpected kwargs: %#v", got.Kwargs)
	}
	if got.Description != "adds things" || got.OnSuccess != "pkg.notify" || got.OnFailure != "" {
		t.Fatalf("unexpected metadata: %#v", got)
	}
	if got.Priority != 3 || got.MaxAttempts != 4 || got.Attempts != 0 {
		t.Fatalf("unexpected counters: priority=%d max=%d attempts=%d", got.Priority, got.MaxAttempts, got.Attempts)
	}
	if len(got.DependsOn) != 2 || got.DependsOn[0] != "a" {
		t.Fatalf("unexpected depends_on: %#v", got.DependsOn)
	}
	if got.JobTimeout != time.Hour || got.ResultTTL != 500*time.Second || got.TTL != 0 {
		t.Fatalf("unexpected durations: %v %v %v", got.JobTimeout, got.ResultTTL, got.TTL)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
	}
	if got.Status() != queue.StatusPending || got.StartedAt != nil {
		t.Fatalf("expected pending record, got %s", got.Status())
	}
}

func testInsertDuplicateID(t *testing.T, store queue.Store) {
	rec := newRecord("pkg.one", 0)
	rec.ID = "fixed-id"
	if id := mustInsert(t, store, rec); id != "fixed-id" {
		t.Fatalf("Insert id = %q, want fixed-id", id)
	}
	_, err := store.Insert(context.Background(), rec)
	if !errors.Is(err, queue.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func testClaimOrder(t *testing.T, store queue.Store) {
	oldLow := newRecord("old-low", 0)
	newHigh := newRecord("new-high", 2*time.Second)
	newHigh.Priority = 5
	oldHigh := newRecord("old-high", time.Second)
	oldHigh.Priority = 5
	for _, rec := range []*queue.Record{oldLow, newHigh, oldHigh} {
		mustInsert(t, store, rec)
	}

	var order []string
	for range 3 {
		rec := mustClaim(t, store, filter())
		if rec == nil {
			t.Fatal("expected a claimable record")
		}
		if !rec.InProgress || rec.StartedAt == nil {
			t.Fatalf("claimed record not marked in progress: %#v", rec)
		}
		order = append(order, rec.FunctionName)
	}
	want := []string{"old-high", "new-high", "old-low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("claim order = %v, want %v", order, want)
		}
	}
	if rec := mustClaim(t, store, filter()); rec != nil {
		t.Fatalf("expected empty queue, claimed %s", rec.FunctionName)
	}
}

func testClaimPartition(t *testing.T, store queue.Store) {
	other := newRecord("other-channel", 0)
	other.Channel = "reports"
	otherLang := newRecord("other-lang", 0)
	otherLang.Lang = "python"
	otherConsumer := newRecord("other-consumer", 0)
	otherConsumer.ConsumerID = "someone-else"
	for _, rec := range []*queue.Record{other, otherLang, otherConsumer} {
		mustInsert(t, store, rec)
	}

	if rec := mustClaim(t, store, filter()); rec != nil {
		t.Fatalf("claimed record outside partition: %#v", rec)
	}
	f := filter()
	f.Channel = "reports"
	if rec := mustClaim(t, store, f); rec == nil || rec.FunctionName != "other-channel" {
		t.Fatalf("expected reports channel record, got %#v", rec)
	}
}

func testClaimByJobID(t *testing.T, store queue.Store) {
	mustInsert(t, store, newRecord("first", 0))
	target := mustInsert(t, store, newRecord("second", time.Second))

	f := filter()
	f.JobID = target
	rec := mustClaim(t, store, f)
	if rec == nil || rec.ID != target {
		t.Fatalf("expected claim of %s, got %#v", target, rec)
	}
	if rec := mustClaim(t, store, f); rec != nil {
		t.Fatalf("expected no second claim for %s", target)
	}
	f.JobID = "missing"
	if rec := mustClaim(t, store, f); rec != nil {
		t.Fatalf("expected no claim for unknown id, got %s", rec.ID)
	}
}

func testDependencyGating(t *testing.T, store queue.Store) {
	ctx := context.Background()
	parent := mustInsert(t, store, newRecord("parent", time.Second))
	child := newRecord("child", 0)
	child.Priority = 10
	child.DependsOn = []string{parent}
	childID := mustInsert(t, store, child)

	// child outranks parent but is gated
	rec := mustClaim(t, store, filter())
	if rec == nil || rec.ID != parent {
		t.Fatalf("expected parent first, got %#v", rec)
	}
	if rec := mustClaim(t, store, filter()); rec != nil {
		t.Fatalf("gated child claimed before parent finished: %s", rec.FunctionName)
	}
	if err := store.Complete(ctx, parent, "ok", base); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// stale snapshot still gates
	if rec := mustClaim(t, store, filter()); rec != nil {
		t.Fatalf("child claimed with stale done snapshot")
	}
	done, err := store.DoneIDs(ctx)
	if err != nil {
		t.Fatalf("DoneIDs: %v", err)
	}
	if len(done) != 1 || done[0] != parent {
		t.Fatalf("DoneIDs = %v, want [%s]", done, parent)
	}
	rec = mustClaim(t, store, filter(done...))
	if rec == nil || rec.ID != childID {
		t.Fatalf("expected child after parent done, got %#v", rec)
	}
}

func testDependencyGatingAllParents(t *testing.T, store queue.Store) {
	ctx := context.Background()
	a := mustInsert(t, store, newRecord("a", 0))
	b := mustInsert(t, store, newRecord("b", time.Second))
	child := newRecord("child", 2*time.Second)
	child.Priority = 9
	child.DependsOn = []string{a, b}
	childID := mustInsert(t, store, child)

	if rec := mustClaim(t, store, queue.ClaimFilter{
		Lang: "go", ConsumerID: "consumer", Channel: "default",
		JobID: a, Now: base.Add(time.Hour),
	}); rec == nil || rec.ID != a {
		t.Fatalf("expected claim of a, got %#v", rec)
	}
	if err := store.Complete(ctx, a, nil, base); err != nil {
		t.Fatalf("Complete(a): %v", err)
	}

	// only one of two parents done
	f := filter(a)
	f.JobID = childID
	if rec := mustClaim(t, store, f); rec != nil {
		t.Fatalf("child claimed with b still pending")
	}
	rec := mustClaim(t, store, filter(a))
	if rec == nil || rec.ID != b {
		t.Fatalf("expected b ahead of gated child, got %#v", rec)
	}
	if err := store.Complete(ctx, b, nil, base); err != nil {
		t.Fatalf("Complete(b): %v", err)
	}

	rec = mustClaim(t, store, filter(a, b))
	if rec == nil || rec.ID != childID {
		t.Fatalf("expected child once a and b are done, got %#v", rec)
	}
}

func testFailRetriesUntilExhausted(t *testing.T, store queue.Store) {
	ctx := context.Background()
	rec := newRecord("flaky", 0)
	rec.MaxAttempts = 2
	id := mustInsert(t, store, rec)

	for attempt := 1; attempt <= 2; attempt++ {
		claimed := mustClaim(t, store, filter())
		if claimed == nil || claimed.ID != id {
			t.Fatalf("attempt %d: expected claim of %s, got %#v", attempt, id, claimed)
		}
		if err := store.Fail(ctx, id, fmt.Sprintf("boom %d", attempt), base); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		got := mustGet(t, store, id)
		if got.Attempts != attempt || got.InProgress || !got.Error || got.ErrorMessage != fmt.Sprintf("boom %d", attempt) {
			t.Fatalf("attempt %d: unexpected state %#v", attempt, got)
		}
		if got.LastErrorAt == nil {
			t.Fatal("expected last_error_at to be set")
		}
	}

	if claimed := mustClaim(t, store, filter()); claimed != nil {
		t.Fatalf("exhausted record claimed again")
	}
	if err := store.Fail(ctx, id, "late", base); err != nil {
		t.Fatalf("Fail on exhausted record: %v", err)
	}
	got := mustGet(t, store, id)
	if got.Attempts != 2 || got.Status() != queue.StatusExhausted {
		t.Fatalf("expected attempts capped at 2 and exhausted, got %d %s", got.Attempts, got.Status())
	}
}

func testCompleteAndProgress(t *testing.T, store queue.Store) {
	ctx := context.Background()
	id := mustInsert(t, store, newRecord("work", 0))
	mustClaim(t, store, filter())

	if err := store.Progress(ctx, id, 40, "loading", base); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	got := mustGet(t, store, id)
	if got.Progress != 40 || got.ProgressMessage != "loading" || got.LastProgressAt == nil {
		t.Fatalf("unexpected progress state: %#v", got)
	}

	if err := store.Complete(ctx, id, map[string]any{"rows": 3}, base); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got = mustGet(t, store, id)
	if !got.Done || !got.InProgress || got.Progress != 100 || got.CompletedAt == nil {
		t.Fatalf("unexpected completed state: %#v", got)
	}
	result, ok := got.Result.(map[string]any)
	if !ok || result["rows"] != float64(3) {
		t.Fatalf("unexpected result: %#v", got.Result)
	}
	if got.Status() != queue.StatusDone {
		t.Fatalf("status = %s, want done", got.Status())
	}
}

func testRelease(t *testing.T, store queue.Store) {
	ctx := context.Background()
	id := mustInsert(t, store, newRecord("retry-me", 0))
	mustClaim(t, store, filter())
	if err := store.Fail(ctx, id, "boom", base); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if rec := mustClaim(t, store, filter()); rec != nil {
		t.Fatal("expected exhausted record to be unclaimable")
	}

	if err := store.Release(ctx, id, base); err != nil {
		t.Fatalf("Release: %v", err)
	}
	got := mustGet(t, store, id)
	if got.Attempts != 0 || got.Error || got.InProgress || got.Done || got.ReleasedAt == nil {
		t.Fatalf("unexpected released state: %#v", got)
	}
	if rec := mustClaim(t, store, filter()); rec == nil || rec.ID != id {
		t.Fatalf("expected released record to be claimable, got %#v", rec)
	}
}

func testUnknownID(t *testing.T, store queue.Store) {
	ctx := context.Background()
	checks := map[string]error{
		"complete": store.Complete(ctx, "missing", nil, base),
		"fail":     store.Fail(ctx, "missing", "x", base),
		"progress": store.Progress(ctx, "missing", 1, "", base),
		"release":  store.Release(ctx, "missing", base),
	}
	_, err := store.Get(ctx, "missing")
	checks["get"] = err
	for op, err := range checks {
		if !errors.Is(err, queue.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", op, err)
		}
	}
}

func testList(t *testing.T, store queue.Store) {
	ctx := context.Background()
	pending := mustInsert(t, store, newRecord("pending", 3*time.Second))
	running := mustInsert(t, store, newRecord("running", 0))
	reports := newRecord("reports", 4*time.Second)
	reports.Channel = "reports"
	mustInsert(t, store, reports)

	f := filter()
	f.JobID = running
	mustClaim(t, store, f)

	all, err := store.List(ctx, queue.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != running {
		t.Fatalf("unexpected listing order: %d records, first %#v", len(all), all[0])
	}

	got, err := store.List(ctx, queue.ListFilter{Channel: "default", Statuses: []queue.Status{queue.StatusPending}})
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(got) != 1 || got[0].ID != pending {
		t.Fatalf("expected only %s pending in default, got %d records", pending, len(got))
	}

	got, err = store.List(ctx, queue.ListFilter{Statuses: []queue.Status{queue.StatusInProgress, queue.StatusPending}, Limit: 2})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	for _, rec := range got {
		if !(queue.ListFilter{Statuses: []queue.Status{queue.StatusInProgress, queue.StatusPending}}).Matches(rec) {
			t.Fatalf("record %s with status %s leaked through filter", rec.ID, rec.Status())
		}
	}
}

func testConcurrentClaim(t *testing.T, store queue.Store) {
	const jobs = 5
	const claimers = 8
	for i := range jobs {
		mustInsert(t, store, newRecord(fmt.Sprintf("job-%d", i), time.Duration(i)*time.Second))
	}

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
		errs    = make(chan error, claimers)
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec, err := store.Claim(context.Background(), filter())
				if err != nil {
					errs <- err
					return
				}
				if rec == nil {
					return
				}
				mu.Lock()
				claimed[rec.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Claim: %v", err)
	}
	if len(claimed) != jobs {
		t.Fatalf("expected %d distinct claims, got %d", jobs, len(claimed))
	}
	for id, n := range claimed {
		if n != 1 {
			t.Fatalf("record %s claimed %d times", id, n)
		}
	}
}
