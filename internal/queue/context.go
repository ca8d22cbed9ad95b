package queue

import "context"

type jobContextKey struct{}

// WithJob returns a context carrying the job being executed, so a running
// function can report progress on its own record.
func WithJob(ctx context.Context, job *Job) context.Context {
	if job == nil {
		return ctx
	}
	return context.WithValue(ctx, jobContextKey{}, job)
}

// JobFromContext returns the job a worker is executing, or nil outside a
// dispatch.
func JobFromContext(ctx context.Context) *Job {
	if ctx == nil {
		return nil
	}
	job, _ := ctx.Value(jobContextKey{}).(*Job)
	return job
}
