package worker

import (
	"context"

	"mqas/internal/queue"
	"mqas/internal/registry"
)

// RegistryLogFunc adapts a registered function into a job LogFunc. The
// function receives the event kind, the job's original args, and a trailing
// map describing the event.
func RegistryLogFunc(fn registry.Func) queue.LogFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, event queue.LogEvent) {
		detail := map[string]any{
			"job_id":  event.JobID,
			"kwargs":  event.Kwargs,
			"payload": event.Payload,
		}
		switch event.Kind {
		case queue.LogKindCompleted:
			detail["result"] = event.Result
		case queue.LogKindError:
			detail["message"] = event.Message
		case queue.LogKindProgress:
			detail["percent"] = event.Percent
			detail["message"] = event.Message
		}
		_, _ = fn(ctx, event.Kind, event.Args, detail)
	}
}
