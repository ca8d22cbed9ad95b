package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mqas/internal/queue"
)

const recordColumns = `id, item_type, consumer_id, channel, lang, function_name, args_json, kwargs_json,
	description, on_success, on_failure, priority, depends_on, in_progress, done, error,
	attempts, max_attempts, progress, progress_message, result_json, error_message,
	job_timeout, result_ttl, ttl, failure_ttl,
	created_at, started_at, completed_at, last_error_at, last_progress_at, released_at`

// Insert persists a new pending record.
func (s *Store) Insert(ctx context.Context, rec *queue.Record) (string, error) {
	if rec == nil {
		return "", errors.New("postgres: record is nil")
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	argsJSON, err := queue.EncodeValue(rec.Args)
	if err != nil {
		return "", err
	}
	var kwargsJSON *string
	if len(rec.Kwargs) > 0 {
		encoded, err := queue.EncodeValue(rec.Kwargs)
		if err != nil {
			return "", err
		}
		kwargsJSON = &encoded
	}
	var dependsOn []string
	if len(rec.DependsOn) > 0 {
		dependsOn = rec.DependsOn
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO mqas_jobs (
			id, item_type, consumer_id, channel, lang, function_name, args_json, kwargs_json,
			description, on_success, on_failure, priority, depends_on, max_attempts,
			job_timeout, result_ttl, ttl, failure_ttl, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)`,
		id, queue.ItemType, rec.ConsumerID, rec.Channel, rec.Lang, rec.FunctionName, argsJSON, kwargsJSON,
		nullableString(rec.Description), nullableString(rec.OnSuccess), nullableString(rec.OnFailure),
		rec.Priority, dependsOn, rec.MaxAttempts,
		nullableSeconds(rec.JobTimeout), nullableSeconds(rec.ResultTTL),
		nullableSeconds(rec.TTL), nullableSeconds(rec.FailureTTL), created,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return "", fmt.Errorf("%w: %s", queue.ErrAlreadyExists, id)
		}
		return "", fmt.Errorf("postgres: insert job: %w", err)
	}
	return id, nil
}

// DoneIDs returns the ids of every completed record.
func (s *Store) DoneIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM mqas_jobs WHERE done`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query done ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect done ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Claim atomically selects and marks one record. Rows locked by a concurrent
// claim are skipped rather than waited on.
func (s *Store) Claim(ctx context.Context, filter queue.ClaimFilter) (*queue.Record, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	doneIDs := filter.DoneIDs
	if doneIDs == nil {
		doneIDs = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE mqas_jobs
		SET in_progress = TRUE, started_at = $1
		WHERE id = (
			SELECT id FROM mqas_jobs
			WHERE item_type = $2
			  AND consumer_id = $3
			  AND lang = $4
			  AND channel = $5
			  AND NOT in_progress
			  AND NOT done
			  AND attempts < max_attempts
			  AND ($6::text = '' OR id = $6::text)
			  AND (depends_on IS NULL OR depends_on <@ $7::text[])
			ORDER BY priority DESC, created_at ASC, seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND NOT in_progress
		RETURNING `+recordColumns,
		now, queue.ItemType, filter.ConsumerID, filter.Lang, filter.Channel, filter.JobID, doneIDs,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: claim job: %w", err)
	}
	return rec, nil
}

// Complete marks a record done with its result.
func (s *Store) Complete(ctx context.Context, id string, result any, at time.Time) error {
	resultJSON, err := queue.EncodeValue(result)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, id, `
		UPDATE mqas_jobs
		SET progress = 100, in_progress = TRUE, done = TRUE, result_json = $2::jsonb, completed_at = $3
		WHERE id = $1`,
		id, resultJSON, at,
	)
}

// Fail records a failed attempt; attempts never exceed max_attempts.
func (s *Store) Fail(ctx context.Context, id, message string, at time.Time) error {
	return s.updateOne(ctx, id, `
		UPDATE mqas_jobs
		SET attempts = LEAST(attempts + 1, max_attempts), in_progress = FALSE, error = TRUE,
		    last_error_at = $2, error_message = $3
		WHERE id = $1`,
		id, at, message,
	)
}

// Progress records a progress report.
func (s *Store) Progress(ctx context.Context, id string, percent int, message string, at time.Time) error {
	return s.updateOne(ctx, id, `
		UPDATE mqas_jobs
		SET progress = $2, progress_message = $3, last_progress_at = $4
		WHERE id = $1`,
		id, percent, nullableString(message), at,
	)
}

// Release returns a record to the pending pool.
func (s *Store) Release(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, `
		UPDATE mqas_jobs
		SET in_progress = FALSE, error = FALSE, done = FALSE, attempts = 0, released_at = $2
		WHERE id = $1`,
		id, at,
	)
}

func (s *Store) updateOne(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return nil
}

// Get fetches a record by id.
func (s *Store) Get(ctx context.Context, id string) (*queue.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM mqas_jobs WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job: %w", err)
	}
	return rec, nil
}

var statusClauses = map[queue.Status]string{
	queue.StatusDone:       "done",
	queue.StatusInProgress: "NOT done AND in_progress",
	queue.StatusExhausted:  "NOT done AND NOT in_progress AND attempts >= max_attempts",
	queue.StatusFailed:     "NOT done AND NOT in_progress AND attempts < max_attempts AND error",
	queue.StatusPending:    "NOT done AND NOT in_progress AND attempts < max_attempts AND NOT error",
}

// List returns records matching filter in claim order.
func (s *Store) List(ctx context.Context, filter queue.ListFilter) ([]*queue.Record, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ConsumerID != "" {
		where = append(where, "consumer_id = "+arg(filter.ConsumerID))
	}
	if filter.Channel != "" {
		where = append(where, "channel = "+arg(filter.Channel))
	}
	var clauses []string
	for _, status := range filter.Statuses {
		if clause, ok := statusClauses[status]; ok {
			clauses = append(clauses, "("+clause+")")
		}
	}
	if len(clauses) > 0 {
		where = append(where, "("+strings.Join(clauses, " OR ")+")")
	}

	query := `SELECT ` + recordColumns + ` FROM mqas_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC, seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var records []*queue.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
