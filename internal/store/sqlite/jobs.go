package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mqas/internal/queue"
)

// Insert persists a new pending record.
func (s *Store) Insert(ctx context.Context, rec *queue.Record) (string, error) {
	if rec == nil {
		return "", errors.New("record is nil")
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	argsJSON, err := queue.EncodeValue(rec.Args)
	if err != nil {
		return "", err
	}
	var kwargsJSON, dependsJSON any
	if len(rec.Kwargs) > 0 {
		if kwargsJSON, err = queue.EncodeValue(rec.Kwargs); err != nil {
			return "", err
		}
	}
	if len(rec.DependsOn) > 0 {
		if dependsJSON, err = queue.EncodeValue(rec.DependsOn); err != nil {
			return "", err
		}
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO mqas_jobs (
            id, item_type, consumer_id, channel, lang, function_name, args_json, kwargs_json,
            description, on_success, on_failure, priority, depends_on, max_attempts,
            job_timeout, result_ttl, ttl, failure_ttl, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		queue.ItemType,
		rec.ConsumerID,
		rec.Channel,
		rec.Lang,
		rec.FunctionName,
		argsJSON,
		kwargsJSON,
		nullableString(rec.Description),
		nullableString(rec.OnSuccess),
		nullableString(rec.OnFailure),
		rec.Priority,
		dependsJSON,
		rec.MaxAttempts,
		nullableSeconds(rec.JobTimeout),
		nullableSeconds(rec.ResultTTL),
		nullableSeconds(rec.TTL),
		nullableSeconds(rec.FailureTTL),
		formatTime(created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", queue.ErrAlreadyExists, id)
		}
		return "", fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// DoneIDs returns the ids of every completed record.
func (s *Store) DoneIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM mqas_jobs WHERE done = 1`)
	if err != nil {
		return nil, fmt.Errorf("query done ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan done id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim selects and marks one record inside a single UPDATE ... RETURNING,
// run in an IMMEDIATE transaction so no other writer can interleave.
func (s *Store) Claim(ctx context.Context, filter queue.ClaimFilter) (*queue.Record, error) {
	doneJSON, err := json.Marshal(nonNil(filter.DoneIDs))
	if err != nil {
		return nil, fmt.Errorf("encode done ids: %w", err)
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	var claimed *queue.Record
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			`UPDATE mqas_jobs
             SET in_progress = 1, started_at = ?
             WHERE id = (
                 SELECT t.id FROM mqas_jobs t
                 WHERE t.item_type = ?
                   AND t.consumer_id = ?
                   AND t.lang = ?
                   AND t.channel = ?
                   AND t.in_progress = 0
                   AND t.done = 0
                   AND t.attempts < t.max_attempts
                   AND (? = '' OR t.id = ?)
                   AND (t.depends_on IS NULL OR NOT EXISTS (
                       SELECT 1 FROM json_each(t.depends_on) d
                       WHERE d.value NOT IN (SELECT value FROM json_each(?))
                   ))
                 ORDER BY t.priority DESC, t.created_at ASC, t.rowid ASC
                 LIMIT 1
             )
             AND in_progress = 0
             RETURNING `+recordColumns,
			formatTime(now),
			queue.ItemType,
			filter.ConsumerID,
			filter.Lang,
			filter.Channel,
			filter.JobID,
			filter.JobID,
			string(doneJSON),
		)
		rec, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		claimed = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

// Complete marks a record done with its result.
func (s *Store) Complete(ctx context.Context, id string, result any, at time.Time) error {
	resultJSON, err := queue.EncodeValue(result)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, id,
		`UPDATE mqas_jobs
         SET progress = 100, in_progress = 1, done = 1, result_json = ?, completed_at = ?
         WHERE id = ?`,
		resultJSON, formatTime(at), id,
	)
}

// Fail records a failed attempt.
func (s *Store) Fail(ctx context.Context, id, message string, at time.Time) error {
	return s.updateOne(ctx, id,
		`UPDATE mqas_jobs
         SET attempts = MIN(attempts + 1, max_attempts), in_progress = 0, error = 1,
             last_error_at = ?, error_message = ?
         WHERE id = ?`,
		formatTime(at), message, id,
	)
}

// Progress records a progress report.
func (s *Store) Progress(ctx context.Context, id string, percent int, message string, at time.Time) error {
	return s.updateOne(ctx, id,
		`UPDATE mqas_jobs
         SET progress = ?, progress_message = ?, last_progress_at = ?
         WHERE id = ?`,
		percent, nullableString(message), formatTime(at), id,
	)
}

// Release returns a record to the pending pool.
func (s *Store) Release(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id,
		`UPDATE mqas_jobs
         SET in_progress = 0, error = 0, done = 0, attempts = 0, released_at = ?
         WHERE id = ?`,
		formatTime(at), id,
	)
}

func (s *Store) updateOne(ctx context.Context, id, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return nil
}

// Get fetches a record by id.
func (s *Store) Get(ctx context.Context, id string) (*queue.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM mqas_jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

// List returns records matching filter in claim order.
func (s *Store) List(ctx context.Context, filter queue.ListFilter) ([]*queue.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.ConsumerID != "" {
		where = append(where, "consumer_id = ?")
		args = append(args, filter.ConsumerID)
	}
	if filter.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, filter.Channel)
	}
	if len(filter.Statuses) > 0 {
		clauses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			if clause, ok := statusClauses[status]; ok {
				clauses = append(clauses, "("+clause+")")
			}
		}
		if len(clauses) > 0 {
			where = append(where, "("+strings.Join(clauses, " OR ")+")")
		}
	}

	query := `SELECT ` + recordColumns + ` FROM mqas_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*queue.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// statusClauses mirror queue.Record.Status.
var statusClauses = map[queue.Status]string{
	queue.StatusDone:       "done = 1",
	queue.StatusInProgress: "done = 0 AND in_progress = 1",
	queue.StatusExhausted:  "done = 0 AND in_progress = 0 AND attempts >= max_attempts",
	queue.StatusFailed:     "done = 0 AND in_progress = 0 AND attempts < max_attempts AND error = 1",
	queue.StatusPending:    "done = 0 AND in_progress = 0 AND attempts < max_attempts AND error = 0",
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
