package catalog

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

func startRepository(t *testing.T) (Repository, persistence.TxManager, *mongodriver.Database) {
	t.Helper()
	m := container.StartMongo(t)
	var (
		repo Repository
		tx   persistence.TxManager
	)
	db := m.StartApp(t,
		NewCatalogModule(),
		fx.Populate(&repo, &tx),
	)
	return repo, tx, m.Database(db)
}

func TestRepository_Users(t *testing.T) {
	repo, _, _ := startRepository(t)
	ctx := context.Background()

	_, err := repo.GetUser(ctx, "u-1")
	require.ErrorIs(t, err, persistence.ErrEntityNotFound)

	u := &User{ID: "u-1", Name: "Ana", LastNames: "Ruiz", Address: "Calle 1", Email: "ana@example.com", IsActive: true}
	require.NoError(t, repo.InsertUser(ctx, u))
	assert.ErrorIs(t, repo.InsertUser(ctx, u), persistence.ErrDuplicateKey)

	require.NoError(t, repo.UpsertUser(ctx, &User{ID: "u-1", Name: "Ana María", Email: "am@example.com"}))
	got, err := repo.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", got.Name)
	assert.Equal(t, "am@example.com", got.Email)
	assert.True(t, got.IsActive, "upsert must not reactivate or deactivate an existing user")

	require.NoError(t, repo.DeactivateUser(ctx, "u-1"))
	got, err = repo.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, repo.DeactivateUser(ctx, "missing"), persistence.ErrEntityNotFound)
}

func TestRepository_UpsertCreatesActiveEntity(t *testing.T) {
	repo, _, _ := startRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertProduct(ctx, &Product{ID: "p-1", Name: "Mouse", Price: 500, Stock: 10}))

	got, err := repo.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, &Product{ID: "p-1", Name: "Mouse", Price: 500, Stock: 10, IsActive: true}, got)
}

func TestRepository_RestoreStock(t *testing.T) {
	repo, _, _ := startRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, &Product{ID: "p-1", Name: "Mouse", Price: 500, Stock: 3, IsActive: true}))

	require.NoError(t, repo.RestoreStock(ctx, "p-1", 2))

	got, err := repo.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.ErrorIs(t, repo.RestoreStock(ctx, "missing", 2), persistence.ErrEntityNotFound)
}

func TestRepository_ReserveStock(t *testing.T) {
	repo, _, _ := startRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, &Product{ID: "p-1", Name: "Mouse", Price: 500, Stock: 3, IsActive: true}))

	require.NoError(t, repo.ReserveStock(ctx, "p-1", 3))
	assert.ErrorIs(t, repo.ReserveStock(ctx, "p-1", 1), ErrInsufficientStock)
	assert.ErrorIs(t, repo.ReserveStock(ctx, "missing", 1), persistence.ErrEntityNotFound)

	got, err := repo.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
}

func TestRepository_Orders(t *testing.T) {
	repo, _, _ := startRepository(t)
	ctx := context.Background()
	o := &Order{
		ID:          "o-1",
		OrderNumber: 7,
		Status:      StatusPending,
		TotalCharge: 1500,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		CustomerID:  "u-1",
		Items:       []OrderItem{{ProductID: "p-1", Quantity: 3, Price: 1500}},
	}
	require.NoError(t, repo.InsertOrder(ctx, o))

	got, err := repo.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, o, got)

	require.NoError(t, repo.UpdateOrderStatus(ctx, "o-1", StatusCancelled))
	got, err = repo.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, got.Cancelled())

	dup := *o
	dup.ID = "o-2"
	assert.ErrorIs(t, repo.InsertOrder(ctx, &dup), persistence.ErrDuplicateKey, "order numbers are unique")
}

func TestRepository_NextOrderNumber(t *testing.T) {
	repo, tx, db := startRepository(t)
	ctx := context.Background()

	first, err := repo.NextOrderNumber(ctx)
	require.NoError(t, err)
	second, err := repo.NextOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	_, err = tx.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		if _, err := repo.NextOrderNumber(txCtx); err != nil {
			return nil, err
		}
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var counter counterEntity
	require.NoError(t, db.Collection(countersCollection).FindOne(ctx, bson.M{"_id": orderNumberCounter}).Decode(&counter))
	assert.Equal(t, 2, counter.Seq, "a rolled back allocation is not consumed")
}

func TestMigrations_CreateOrderIndexes(t *testing.T) {
	_, _, db := startRepository(t)

	specs, err := db.Collection(ordersCollection).Indexes().ListSpecifications(context.Background())
	require.NoError(t, err)

	unique := map[string]bool{}
	for _, s := range specs {
		unique[s.Name] = s.Unique != nil && *s.Unique
	}
	assert.Contains(t, unique, "orders_customerId_createdAt")
	assert.True(t, unique["orders_orderNumber"])
}
