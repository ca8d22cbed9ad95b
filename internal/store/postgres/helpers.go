package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"

	"mqas/internal/queue"
)

func scanRecord(row pgx.Row) (*queue.Record, error) {
	var (
		rec             queue.Record
		argsRaw         string
		kwargsRaw       *string
		description     *string
		onSuccess       *string
		onFailure       *string
		progressMessage *string
		resultRaw       *string
		errorMessage    *string
		jobTimeout      *int64
		resultTTL       *int64
		ttl             *int64
		failureTTL      *int64
	)
	if err := row.Scan(
		&rec.ID, &rec.ItemType, &rec.ConsumerID, &rec.Channel, &rec.Lang, &rec.FunctionName,
		&argsRaw, &kwargsRaw,
		&description, &onSuccess, &onFailure, &rec.Priority, &rec.DependsOn,
		&rec.InProgress, &rec.Done, &rec.Error,
		&rec.Attempts, &rec.MaxAttempts, &rec.Progress, &progressMessage, &resultRaw, &errorMessage,
		&jobTimeout, &resultTTL, &ttl, &failureTTL,
		&rec.CreatedAt, &rec.StartedAt, &rec.CompletedAt, &rec.LastErrorAt, &rec.LastProgressAt, &rec.ReleasedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.Args, err = queue.DecodeArgs(argsRaw); err != nil {
		return nil, err
	}
	if rec.Kwargs, err = queue.DecodeKwargs(deref(kwargsRaw)); err != nil {
		return nil, err
	}
	if rec.Result, err = queue.DecodeResult(deref(resultRaw)); err != nil {
		return nil, err
	}
	if len(rec.DependsOn) == 0 {
		rec.DependsOn = nil
	}
	rec.Description = deref(description)
	rec.OnSuccess = deref(onSuccess)
	rec.OnFailure = deref(onFailure)
	rec.ProgressMessage = deref(progressMessage)
	rec.ErrorMessage = deref(errorMessage)
	rec.JobTimeout = seconds(jobTimeout)
	rec.ResultTTL = seconds(resultTTL)
	rec.TTL = seconds(ttl)
	rec.FailureTTL = seconds(failureTTL)

	rec.CreatedAt = rec.CreatedAt.UTC()
	for _, ts := range []*time.Time{rec.StartedAt, rec.CompletedAt, rec.LastErrorAt, rec.LastProgressAt, rec.ReleasedAt} {
		if ts != nil {
			*ts = ts.UTC()
		}
	}
	return &rec, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableSeconds(value time.Duration) *int64 {
	if value <= 0 {
		return nil
	}
	secs := int64(value / time.Second)
	return &secs
}

func seconds(value *int64) time.Duration {
	if value == nil {
		return 0
	}
	return time.Duration(*value) * time.Second
}
