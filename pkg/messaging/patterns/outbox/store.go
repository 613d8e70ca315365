package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

// Store persists outbox records.
type Store interface {
	// Append inserts r. It must run inside a transaction, otherwise it
	// returns persistence.ErrNoTransaction.
	Append(ctx context.Context, r Record) error

	// FetchUnpublished returns up to limit pending records, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]Record, error)

	// MarkPublished stamps publishedAt, counts the attempt and clears lastError.
	MarkPublished(ctx context.Context, id string) error

	// MarkError counts the attempt and stores msg as lastError.
	MarkError(ctx context.Context, id string, msg string) error

	// DeletePublishedOlderThan removes records published strictly before cutoff.
	DeletePublishedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type store struct {
	coll mongo.Collection
	now  func() time.Time
}

func newStore(m mongo.Mongo) Store {
	return &store{
		coll: m.GetCollection(collectionName),
		now:  time.Now,
	}
}

func (s *store) Append(ctx context.Context, r Record) error {
	if !mongo.InTransaction(ctx) {
		return fmt.Errorf("append outbox record %s: %w", r.ID, persistence.ErrNoTransaction)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to insert outbox record %s: %w", r.ID, err)
	}
	return nil
}

func (s *store) FetchUnpublished(ctx context.Context, limit int) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, bson.M{"publishedAt": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox records: %w", err)
	}
	records := make([]Record, 0, limit)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode pending outbox records: %w", err)
	}
	return records, nil
}

// A record already published by another instance is left as is.
func (s *store) MarkPublished(ctx context.Context, id string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "publishedAt": nil},
		bson.M{
			"$set": bson.M{
				"publishedAt": s.now().UTC(),
				"lastError":   nil,
			},
			"$inc": bson.M{"attemptCount": 1},
		})
	if err != nil {
		return fmt.Errorf("failed to mark outbox record %s published: %w", id, err)
	}
	return nil
}

func (s *store) MarkError(ctx context.Context, id string, msg string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "publishedAt": nil},
		bson.M{
			"$set": bson.M{"lastError": msg},
			"$inc": bson.M{"attemptCount": 1},
		})
	if err != nil {
		return fmt.Errorf("failed to record error on outbox record %s: %w", id, err)
	}
	return nil
}

func (s *store) DeletePublishedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"publishedAt": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge published outbox records: %w", err)
	}
	return res.DeletedCount, nil
}
