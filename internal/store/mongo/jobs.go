package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mqas/internal/queue"
)

// Insert persists a new pending record. Generated ids are ObjectID hex strings.
func (s *Store) Insert(ctx context.Context, rec *queue.Record) (string, error) {
	if rec == nil {
		return "", errors.New("mongo: record is nil")
	}
	id := rec.ID
	if id == "" {
		id = bson.NewObjectID().Hex()
	}
	doc := toJobModel(rec, toID(id))
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s", queue.ErrAlreadyExists, id)
		}
		return "", fmt.Errorf("mongo: insert job: %w", err)
	}
	return id, nil
}

// DoneIDs returns the ids of every completed record.
func (s *Store) DoneIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.col.Find(ctx, bson.M{"done": true}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongo: query done ids: %w", err)
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			ID any `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode done id: %w", err)
		}
		ids = append(ids, idString(doc.ID))
	}
	return ids, cursor.Err()
}

// Claim atomically selects and marks one record with FindOneAndUpdate.
func (s *Store) Claim(ctx context.Context, filter queue.ClaimFilter) (*queue.Record, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	query := bson.M{
		"lang":        filter.Lang,
		"consumer_id": filter.ConsumerID,
		"channel":     filter.Channel,
		"item_type":   queue.ItemType,
		"inProgress":  false,
		"done":        false,
		"$expr":       bson.M{"$lt": bson.A{"$attempts", "$max_attempts"}},
		"$or": bson.A{
			bson.M{"depends_on": nil},
			bson.M{"depends_on": bson.M{"$not": bson.M{"$elemMatch": bson.M{"$nin": toIDs(filter.DoneIDs)}}}},
		},
	}
	if filter.JobID != "" {
		query["_id"] = toID(filter.JobID)
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{
			{Key: "priority", Value: -1},
			{Key: "createdAt", Value: 1},
			{Key: "_id", Value: 1},
		})

	var m jobModel
	err := s.col.FindOneAndUpdate(ctx, query,
		bson.M{"$set": bson.M{"inProgress": true, "startedAt": now}},
		opts,
	).Decode(&m)
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: claim job: %w", err)
	}
	return fromJobModel(&m), nil
}

// Complete marks a record done with its result.
func (s *Store) Complete(ctx context.Context, id string, result any, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"progress":    100,
		"inProgress":  true,
		"done":        true,
		"result":      result,
		"completedAt": at,
	}})
}

// Fail records a failed attempt. The pipeline update caps attempts at
// max_attempts.
func (s *Store) Fail(ctx context.Context, id, message string, at time.Time) error {
	return s.updateOne(ctx, id, mongod.Pipeline{
		{{Key: "$set", Value: bson.M{
			"attempts":     bson.M{"$min": bson.A{bson.M{"$add": bson.A{"$attempts", 1}}, "$max_attempts"}},
			"inProgress":   false,
			"error":        true,
			"lastErrorAt":  at,
			"errorMessage": bson.M{"$literal": message},
		}}},
	})
}

// Progress records a progress report.
func (s *Store) Progress(ctx context.Context, id string, percent int, message string, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"progress":        percent,
		"progressMessage": message,
		"lastProgressAt":  at,
	}})
}

// Release returns a record to the pending pool.
func (s *Store) Release(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"inProgress": false,
		"error":      false,
		"done":       false,
		"releasedAt": at,
		"attempts":   0,
	}})
}

func (s *Store) updateOne(ctx context.Context, id string, update any) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": toID(id)}, update)
	if err != nil {
		return fmt.Errorf("mongo: update job %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	return nil
}

// Get fetches a record by id.
func (s *Store) Get(ctx context.Context, id string) (*queue.Record, error) {
	var m jobModel
	err := s.col.FindOne(ctx, bson.M{"_id": toID(id)}).Decode(&m)
	if isNoDocuments(err) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get job: %w", err)
	}
	return fromJobModel(&m), nil
}

var (
	attemptsLeft      = bson.M{"$lt": bson.A{"$attempts", "$max_attempts"}}
	attemptsExhausted = bson.M{"$gte": bson.A{"$attempts", "$max_attempts"}}
)

var statusFilters = map[queue.Status]bson.M{
	queue.StatusDone:       {"done": true},
	queue.StatusInProgress: {"done": false, "inProgress": true},
	queue.StatusExhausted:  {"done": false, "inProgress": false, "$expr": attemptsExhausted},
	queue.StatusFailed:     {"done": false, "inProgress": false, "error": true, "$expr": attemptsLeft},
	queue.StatusPending:    {"done": false, "inProgress": false, "error": bson.M{"$ne": true}, "$expr": attemptsLeft},
}

// List returns records matching filter in claim order.
func (s *Store) List(ctx context.Context, filter queue.ListFilter) ([]*queue.Record, error) {
	query := bson.M{}
	if filter.ConsumerID != "" {
		query["consumer_id"] = filter.ConsumerID
	}
	if filter.Channel != "" {
		query["channel"] = filter.Channel
	}
	var or bson.A
	for _, status := range filter.Statuses {
		if f, ok := statusFilters[status]; ok {
			or = append(or, f)
		}
	}
	if len(or) > 0 {
		query["$or"] = or
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})
	if filter.Limit > 0 {
		findOpts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.col.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mongo: list jobs decode: %w", err)
	}
	records := make([]*queue.Record, 0, len(models))
	for i := range models {
		records = append(records, fromJobModel(&models[i]))
	}
	return records, nil
}
