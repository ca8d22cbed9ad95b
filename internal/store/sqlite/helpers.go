package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"mqas/internal/queue"
)

const recordColumns = "id, item_type, consumer_id, channel, lang, function_name, args_json, kwargs_json, description, on_success, on_failure, priority, depends_on, in_progress, done, error, attempts, max_attempts, progress, progress_message, result_json, error_message, job_timeout, result_ttl, ttl, failure_ttl, created_at, started_at, completed_at, last_error_at, last_progress_at, released_at"

// timeLayout is fixed-width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*queue.Record, error) {
	var (
		rec             queue.Record
		kwargsRaw       sql.NullString
		argsRaw         string
		description     sql.NullString
		onSuccess       sql.NullString
		onFailure       sql.NullString
		dependsRaw      sql.NullString
		inProgress      int64
		done            int64
		errFlag         int64
		progressMessage sql.NullString
		resultRaw       sql.NullString
		errorMessage    sql.NullString
		jobTimeout      sql.NullInt64
		resultTTL       sql.NullInt64
		ttl             sql.NullInt64
		failureTTL      sql.NullInt64
		createdRaw      string
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		lastErrorRaw    sql.NullString
		lastProgressRaw sql.NullString
		releasedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&rec.ID,
		&rec.ItemType,
		&rec.ConsumerID,
		&rec.Channel,
		&rec.Lang,
		&rec.FunctionName,
		&argsRaw,
		&kwargsRaw,
		&description,
		&onSuccess,
		&onFailure,
		&rec.Priority,
		&dependsRaw,
		&inProgress,
		&done,
		&errFlag,
		&rec.Attempts,
		&rec.MaxAttempts,
		&rec.Progress,
		&progressMessage,
		&resultRaw,
		&errorMessage,
		&jobTimeout,
		&resultTTL,
		&ttl,
		&failureTTL,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&lastErrorRaw,
		&lastProgressRaw,
		&releasedRaw,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.Args, err = queue.DecodeArgs(argsRaw); err != nil {
		return nil, err
	}
	if rec.Kwargs, err = queue.DecodeKwargs(kwargsRaw.String); err != nil {
		return nil, err
	}
	if rec.DependsOn, err = queue.DecodeIDs(dependsRaw.String); err != nil {
		return nil, err
	}
	if rec.Result, err = queue.DecodeResult(resultRaw.String); err != nil {
		return nil, err
	}

	rec.Description = description.String
	rec.OnSuccess = onSuccess.String
	rec.OnFailure = onFailure.String
	rec.InProgress = inProgress != 0
	rec.Done = done != 0
	rec.Error = errFlag != 0
	rec.ProgressMessage = progressMessage.String
	rec.ErrorMessage = errorMessage.String
	rec.JobTimeout = seconds(jobTimeout)
	rec.ResultTTL = seconds(resultTTL)
	rec.TTL = seconds(ttl)
	rec.FailureTTL = seconds(failureTTL)

	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	rec.StartedAt = parseNullTime(startedRaw)
	rec.CompletedAt = parseNullTime(completedRaw)
	rec.LastErrorAt = parseNullTime(lastErrorRaw)
	rec.LastProgressAt = parseNullTime(lastProgressRaw)
	rec.ReleasedAt = parseNullTime(releasedRaw)
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableSeconds(value time.Duration) any {
	if value <= 0 {
		return nil
	}
	return int64(value / time.Second)
}

func seconds(value sql.NullInt64) time.Duration {
	if !value.Valid {
		return 0
	}
	return time.Duration(value.Int64) * time.Second
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}
