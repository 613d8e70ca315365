package mongo

import (
	"context"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is the subset of *mongo.Collection used by repositories.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongodriver.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongodriver.Cursor, error)
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter any, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongodriver.SingleResult
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongodriver.DeleteResult, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	Name() string
}

var _ Collection = (*mongodriver.Collection)(nil)

// timeoutCollection bounds each single-shot call with a query timeout.
// Find is passed through: the returned cursor outlives the call and is
// bounded by the caller's context.
type timeoutCollection struct {
	coll    Collection
	timeout time.Duration
}

func newTimeoutCollection(coll Collection, timeout time.Duration) *timeoutCollection {
	if coll == nil {
		panic("mongo: collection must not be nil")
	}
	return &timeoutCollection{coll: coll, timeout: timeout}
}

func (c *timeoutCollection) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *timeoutCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongodriver.SingleResult {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c *timeoutCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongodriver.Cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c *timeoutCollection) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.InsertOne(ctx, document, opts...)
}

func (c *timeoutCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c *timeoutCollection) FindOneAndUpdate(ctx context.Context, filter any, update any, opts ...options.Lister[options.FindOneAndUpdateOptions]) *mongodriver.SingleResult {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.FindOneAndUpdate(ctx, filter, update, opts...)
}

func (c *timeoutCollection) DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongodriver.DeleteResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.DeleteMany(ctx, filter, opts...)
}

func (c *timeoutCollection) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.coll.CountDocuments(ctx, filter, opts...)
}

func (c *timeoutCollection) Name() string {
	return c.coll.Name()
}
