// Package idempotency records which integration events were already applied,
// so a redelivered event has no second effect.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

const collectionName = "processed_events"

// ErrAlreadyProcessed is returned by Insert when the marker already exists.
var ErrAlreadyProcessed = errors.New("event already processed")

// ProcessedEvent marks one (EventID, EventType) pair as applied.
type ProcessedEvent struct {
	EventID       string    `bson:"eventId"`
	EventType     string    `bson:"eventType"`
	ProcessedAt   time.Time `bson:"processedAt"`
	SourceService string    `bson:"sourceService"`
}

type Store interface {
	Exists(ctx context.Context, eventID, eventType string) (bool, error)
	// Insert fails with ErrAlreadyProcessed on a duplicate pair.
	Insert(ctx context.Context, e ProcessedEvent) error
	// DeleteOlderThan removes markers processed strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type store struct {
	coll mongo.Collection
}

func newStore(m mongo.Mongo) Store {
	return &store{coll: m.GetCollection(collectionName)}
}

func (s *store) Exists(ctx context.Context, eventID, eventType string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"eventId": eventID, "eventType": eventType},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up processed event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (s *store) Insert(ctx context.Context, e ProcessedEvent) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, e)
	if mongodriver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s %s: %w", ErrAlreadyProcessed, e.EventType, e.EventID, persistence.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert processed event %s: %w", e.EventID, err)
	}
	return nil
}

func (s *store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"processedAt": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return res.DeletedCount, nil
}
