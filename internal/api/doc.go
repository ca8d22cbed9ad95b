// Package api defines wire-format types and the job inspection service shared
// by the HTTP API and the jobs CLI. It translates queue records into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Job: transport representation of a record with its derived status,
// progress, and formatted timestamps.
//
// JobService: enqueue, list, describe, release, and stats over one Queue's
// consumer partition.
//
// # Design Notes
//
// DTOs use snake_case JSON tags, matching the option keys accepted on enqueue.
// Timestamps use RFC3339 with milliseconds; unset timestamps are omitted.
// Durations are exposed as whole seconds.
package api
