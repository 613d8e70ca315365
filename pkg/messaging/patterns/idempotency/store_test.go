package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/testutil/container"
)

func startStore(t *testing.T) (Store, persistence.TxManager, *mongodriver.Collection) {
	t.Helper()
	m := container.StartMongo(t)
	var (
		s  Store
		tx persistence.TxManager
	)
	db := m.StartApp(t,
		fx.Provide(newStore),
		fx.Invoke(runMigrations),
		fx.Populate(&s, &tx),
	)
	return s, tx, m.Database(db).Collection(collectionName)
}

func TestStore_InsertRejectsDuplicatePair(t *testing.T) {
	s, _, _ := startStore(t)
	ctx := context.Background()
	marker := ProcessedEvent{EventID: "evt-1", EventType: "UserCreatedIntegrationEvent", SourceService: "users-service"}

	require.NoError(t, s.Insert(ctx, marker))
	err := s.Insert(ctx, marker)

	require.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.ErrorIs(t, err, persistence.ErrDuplicateKey)

	marker.EventType = "UserDeletedIntegrationEvent"
	assert.NoError(t, s.Insert(ctx, marker), "same id with another type is a new pair")
}

func TestStore_Exists(t *testing.T) {
	s, _, _ := startStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, ProcessedEvent{EventID: "evt-1", EventType: "T"}))

	seen, err := s.Exists(ctx, "evt-1", "T")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Exists(ctx, "evt-1", "Other")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuard_DuplicateDeliveriesInTransactions(t *testing.T) {
	s, tx, coll := startStore(t)
	g := newGuard(s, tx)
	e := userCreated("evt-42")
	applied := 0
	apply := func(context.Context) error {
		applied++
		return nil
	}

	for i := 0; i < 3; i++ {
		_, err := g.Process(context.Background(), e, "users-service", apply)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, applied)
	n, err := coll.CountDocuments(context.Background(), bson.M{"eventId": "evt-42"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	s, _, coll := startStore(t)
	ctx := context.Background()
	cutoff := now
	for id, at := range map[string]time.Time{
		"older":     cutoff.Add(-time.Millisecond),
		"at-cutoff": cutoff,
		"newer":     cutoff.Add(time.Hour),
	} {
		require.NoError(t, s.Insert(ctx, ProcessedEvent{EventID: id, EventType: "T", ProcessedAt: at}))
	}

	deleted, err := s.DeleteOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	n, err := coll.CountDocuments(ctx, bson.M{"eventId": "older"})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
