package api

import (
	"time"

	"mqas/internal/queue"
)

// FromRecord converts a queue record to its API representation.
func FromRecord(rec *queue.Record) Job {
	if rec == nil {
		return Job{}
	}
	args := rec.Args
	if args == nil {
		args = []any{}
	}
	return Job{
		ID:           rec.ID,
		FunctionName: rec.FunctionName,
		Status:       string(rec.Status()),
		Channel:      rec.Channel,
		Lang:         rec.Lang,
		ConsumerID:   rec.ConsumerID,
		Args:         args,
		Kwargs:       rec.Kwargs,
		Description:  rec.Description,
		OnSuccess:    rec.OnSuccess,
		OnFailure:    rec.OnFailure,
		Priority:     rec.Priority,
		DependsOn:    rec.DependsOn,
		Attempts:     rec.Attempts,
		MaxAttempts:  rec.MaxAttempts,
		Progress: JobProgress{
			Percent: rec.Progress,
			Message: rec.ProgressMessage,
		},
		Result:         rec.Result,
		ErrorMessage:   rec.ErrorMessage,
		JobTimeout:     int64(rec.JobTimeout / time.Second),
		ResultTTL:      int64(rec.ResultTTL / time.Second),
		TTL:            int64(rec.TTL / time.Second),
		FailureTTL:     int64(rec.FailureTTL / time.Second),
		CreatedAt:      formatTime(&rec.CreatedAt),
		StartedAt:      formatTime(rec.StartedAt),
		CompletedAt:    formatTime(rec.CompletedAt),
		LastErrorAt:    formatTime(rec.LastErrorAt),
		LastProgressAt: formatTime(rec.LastProgressAt),
		ReleasedAt:     formatTime(rec.ReleasedAt),
	}
}

// FromRecords converts records into API DTOs.
func FromRecords(records []*queue.Record) []Job {
	out := make([]Job, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromStats converts queue stats for a partition.
func FromStats(consumerID string, stats queue.Stats) StatsResponse {
	counts := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		counts[string(status)] = n
	}
	return StatsResponse{
		ConsumerID: consumerID,
		Total:      stats.Total,
		Counts:     counts,
		Channels:   stats.ByChannel,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
