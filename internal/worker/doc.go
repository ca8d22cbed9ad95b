// Package worker runs the poll-and-dispatch loop that drains queues.
//
// A Worker owns one job at a time: each poll cycle walks its Queues (and
// channel filters) in order, claims at most one job, resolves the job's
// function through the registry, invokes it, and finalizes the job with
// Complete or Error before sleeping for the heartbeat interval. Parallelism
// comes from running several Workers, usually through a Group; Workers never
// share mutable state and coordinate only through the store's atomic claim.
package worker
