// Package container starts throwaway infrastructure for integration tests.
package container

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core/health"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

const (
	defaultImage      = "mongo:7"
	defaultReplicaSet = "rs0"
)

// MongoDBContainer is a running single-node replica set with a connected client.
type MongoDBContainer struct {
	Container        *mongodb.MongoDBContainer
	Client           *mongodriver.Client
	ConnectionString string
}

type MongoDBContainerOption func(*mongoDBContainerOptions)

type mongoDBContainerOptions struct {
	image      string
	replicaSet string
}

func WithImage(image string) MongoDBContainerOption {
	return func(o *mongoDBContainerOptions) {
		o.image = image
	}
}

// WithReplicaSet overrides the replica set name. Transactions need one, so
// there is always a replica set.
func WithReplicaSet(name string) MongoDBContainerOption {
	return func(o *mongoDBContainerOptions) {
		o.replicaSet = name
	}
}

// StartMongoDBContainer starts MongoDB and pings it.
func StartMongoDBContainer(ctx context.Context, opts ...MongoDBContainerOption) (*MongoDBContainer, error) {
	o := &mongoDBContainerOptions{image: defaultImage, replicaSet: defaultReplicaSet}
	for _, opt := range opts {
		opt(o)
	}

	c, err := mongodb.Run(ctx, o.image, mongodb.WithReplicaSet(o.replicaSet))
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := c.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(c)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	if uri, err = directURI(uri); err != nil {
		_ = testcontainers.TerminateContainer(c)
		return nil, err
	}

	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		_ = testcontainers.TerminateContainer(c)
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		_ = testcontainers.TerminateContainer(c)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBContainer{Container: c, Client: client, ConnectionString: uri}, nil
}

// directURI pins the client to the single member, whose advertised host is
// only resolvable inside the container network.
func directURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid mongodb uri %q: %w", uri, err)
	}
	q := u.Query()
	q.Del("connect")
	q.Set("directConnection", "true")
	u.RawQuery = q.Encode()
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// StartMongo starts a container for t and terminates it on cleanup. It skips
// under -short and when no container runtime is reachable.
func StartMongo(t *testing.T) *MongoDBContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	m, err := StartMongoDBContainer(ctx)
	if err != nil {
		t.Fatalf("start mongodb: %v", err)
	}
	t.Cleanup(func() {
		if err := m.Terminate(context.Background()); err != nil {
			t.Logf("terminate mongodb: %v", err)
		}
	})
	return m
}

// MongoConfig returns a config pointing at database on this container, with migrations on.
func (m *MongoDBContainer) MongoConfig(database string) mongo.Config {
	return mongo.Config{
		ConnectionString: m.ConnectionString,
		Database:         database,
		QueryTimeout:     10 * time.Second,
		Migrations:       mongo.MigrationsConfig{Enabled: true, LockTimeout: 15 * time.Second},
	}
}

// Database returns a handle on name for assertions that bypass repositories.
func (m *MongoDBContainer) Database(name string) *mongodriver.Database {
	return m.Client.Database(name)
}

// StartApp runs the mongo module on a fresh database together with opts, and
// stops it on cleanup. The database name is returned for direct inspection.
func (m *MongoDBContainer) StartApp(t *testing.T, opts ...fx.Option) string {
	t.Helper()
	database := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(zap.NewNop()),
		health.NewReadinessModule(),
		mongo.NewMongoModule(mongo.WithMongoConfig(m.MongoConfig(database))),
		fx.Options(opts...),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return database
}

func (m *MongoDBContainer) Terminate(ctx context.Context) error {
	var err error
	if m.Client != nil {
		if dErr := m.Client.Disconnect(ctx); dErr != nil {
			err = multierr.Append(err, fmt.Errorf("disconnect: %w", dErr))
		}
	}
	if m.Container != nil {
		if tErr := testcontainers.TerminateContainer(m.Container); tErr != nil {
			err = multierr.Append(err, fmt.Errorf("terminate: %w", tErr))
		}
	}
	return err
}
