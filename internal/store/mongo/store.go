// Package mongo implements queue.Store on a MongoDB collection. Documents
// keep the collection layout used by existing producers and workers in other
// languages (function data nested under "data", camelCase lifecycle fields),
// so a Go worker can drain a queue they fill and vice versa.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mqas/internal/logging"
	"mqas/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// Store is a queue.Store over one collection.
type Store struct {
	client *mongod.Client
	col    *mongod.Collection
	logger *slog.Logger
	owned  bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to uri and binds database.collection. The returned Store
// owns the client and disconnects it on Close.
func Open(ctx context.Context, uri, database, collection string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	s := NewFromCollection(client.Database(database).Collection(collection), opts...)
	s.client = client
	s.owned = true
	if err := s.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewFromCollection wraps an existing collection handle. The caller keeps
// ownership of its client.
func NewFromCollection(col *mongod.Collection, opts ...Option) *Store {
	s := &Store{col: col}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "store.mongo")
	return s
}

// Migrate creates the indexes used by claims and done-id snapshots.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongod.IndexModel{
		{Keys: bson.D{
			{Key: "consumer_id", Value: 1},
			{Key: "lang", Value: 1},
			{Key: "channel", Value: 1},
			{Key: "done", Value: 1},
			{Key: "inProgress", Value: 1},
			{Key: "priority", Value: -1},
			{Key: "createdAt", Value: 1},
		}},
		{Keys: bson.D{{Key: "done", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create indexes: %w", err)
	}
	return nil
}

// Collection exposes the bound collection for tests and maintenance.
func (s *Store) Collection() *mongod.Collection { return s.col }

// Close disconnects the client when the Store opened it.
func (s *Store) Close() error {
	if !s.owned || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// toID stores hex object ids as ObjectIDs so ids written by other clients
// compare equal; anything else is kept as a string.
func toID(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func toIDs(ids []string) bson.A {
	out := make(bson.A, 0, len(ids))
	for _, id := range ids {
		out = append(out, toID(id))
	}
	return out
}

func idString(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(v)
	}
}
