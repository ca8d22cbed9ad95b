package main

import (
	"strings"
	"testing"
	"time"

	"mqas/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	for in, want := range map[string]string{
		"in_progress": "In Progress",
		"pending":     "Pending",
		"":            "",
	} {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHumanTime(t *testing.T) {
	if got := humanTime(""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := humanTime("not a time"); got != "not a time" {
		t.Fatalf("unparseable values should pass through, got %q", got)
	}
	past := time.Now().Add(-3 * time.Hour).UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if got := humanTime(past); got != "3 hours ago" {
		t.Fatalf("humanTime = %q", got)
	}
}

func TestBuildJobRowsAndDetail(t *testing.T) {
	job := api.Job{
		ID:           "job-1",
		FunctionName: "builtin.echo",
		Channel:      "default",
		Status:       "in_progress",
		Priority:     2,
		Attempts:     1,
		MaxAttempts:  3,
		Args:         []any{"x"},
		Progress:     api.JobProgress{Percent: 50, Message: "halfway"},
	}
	rows := buildJobRows([]api.Job{job})
	if len(rows) != 1 || rows[0][3] != "In Progress" || rows[0][5] != "1/3" {
		t.Fatalf("unexpected rows %#v", rows)
	}

	var out strings.Builder
	printJobDetail(&out, &job)
	for _, want := range []string{"job-1", "builtin.echo", `["x"]`, "50% halfway", "1/3"} {
		requireContains(t, out.String(), want)
	}
}
