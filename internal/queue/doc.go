// Package queue implements at-least-once job execution coordinated through a
// shared persistent store.
//
// A Queue enqueues records into one partition (consumer_id, channel, lang)
// and claims them back with a two-step protocol: a plain snapshot of done
// record ids, then a single atomic find-and-mark on the highest-priority,
// oldest eligible record whose dependencies all appear in the snapshot. The
// claimed record is wrapped in a Job, the lifecycle handle workers use to
// complete, fail, report progress on, or release it.
//
// Store is the persistence contract; sqlite, postgres, and mongo
// implementations live under internal/store. The store's atomic claim is the
// only synchronization point, so any number of processes may share one store.
//
// job_timeout is persisted but advisory: nothing in this package aborts a
// running job.
package queue
