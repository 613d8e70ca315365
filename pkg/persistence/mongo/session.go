package mongo

import (
	"context"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Session is the part of *mongo.Session the transaction manager needs.
type Session interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error), opts ...options.Lister[options.TransactionOptions]) (any, error)
	EndSession(ctx context.Context)
}

var _ Session = (*mongodriver.Session)(nil)

// InTransaction reports whether ctx carries a session. Sessions are only
// started by the transaction manager, so a session implies a transaction.
func InTransaction(ctx context.Context) bool {
	return mongodriver.SessionFromContext(ctx) != nil
}
