package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence/mongo"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
	countersCollection = "counters"

	orderNumberCounter = "orderNumber"
)

// ErrInsufficientStock is returned when a reservation exceeds the available stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository reads and writes the local projections. Lookups of absent
// entities return persistence.ErrEntityNotFound and unique index violations
// return persistence.ErrDuplicateKey.
type Repository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	InsertUser(ctx context.Context, u *User) error
	// UpsertUser overwrites the profile fields of u, creating an active user
	// when none exists.
	UpsertUser(ctx context.Context, u *User) error
	DeactivateUser(ctx context.Context, id string) error

	GetProduct(ctx context.Context, id string) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	// UpsertProduct overwrites name, price and stock, creating an active
	// product when none exists.
	UpsertProduct(ctx context.Context, p *Product) error
	DeactivateProduct(ctx context.Context, id string) error
	// ReserveStock takes quantity out of the product's stock, failing with
	// ErrInsufficientStock rather than going below zero.
	ReserveStock(ctx context.Context, productID string, quantity int) error
	// RestoreStock adds quantity back to the product's stock.
	RestoreStock(ctx context.Context, productID string, quantity int) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrderStatus(ctx context.Context, id, status string) error
	// NextOrderNumber returns the next value of the order number sequence, starting at 1.
	NextOrderNumber(ctx context.Context) (int, error)
}

type repository struct {
	users    mongo.Collection
	products mongo.Collection
	orders   mongo.Collection
	counters mongo.Collection
}

func newRepository(m mongo.Mongo) Repository {
	return &repository{
		users:    m.GetCollection(usersCollection),
		products: m.GetCollection(productsCollection),
		orders:   m.GetCollection(ordersCollection),
		counters: m.GetCollection(countersCollection),
	}
}

func findByID[E any](ctx context.Context, coll mongo.Collection, id string) (*E, error) {
	var entity E
	err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&entity)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, persistence.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", coll.Name(), id, err)
	}
	return &entity, nil
}

func insert(ctx context.Context, coll mongo.Collection, id string, entity any) error {
	_, err := coll.InsertOne(ctx, entity)
	if mongodriver.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", coll.Name(), id, persistence.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", coll.Name(), id, err)
	}
	return nil
}

func updateExisting(ctx context.Context, coll mongo.Collection, id string, update bson.D) error {
	res, err := coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", coll.Name(), id, err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrEntityNotFound
	}
	return nil
}

func upsert(ctx context.Context, coll mongo.Collection, id string, set bson.D) error {
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "isActive", Value: true}}},
	}
	_, err := coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", coll.Name(), id, err)
	}
	return nil
}

func deactivate(ctx context.Context, coll mongo.Collection, id string) error {
	return updateExisting(ctx, coll, id, bson.D{{Key: "$set", Value: bson.D{{Key: "isActive", Value: false}}}})
}

func (r *repository) GetUser(ctx context.Context, id string) (*User, error) {
	e, err := findByID[userEntity](ctx, r.users, id)
	if err != nil {
		return nil, err
	}
	return e.toDomain(), nil
}

func (r *repository) InsertUser(ctx context.Context, u *User) error {
	return insert(ctx, r.users, u.ID, toUserEntity(u))
}

func (r *repository) UpsertUser(ctx context.Context, u *User) error {
	return upsert(ctx, r.users, u.ID, bson.D{
		{Key: "name", Value: u.Name},
		{Key: "lastNames", Value: u.LastNames},
		{Key: "address", Value: u.Address},
		{Key: "email", Value: u.Email},
	})
}

func (r *repository) DeactivateUser(ctx context.Context, id string) error {
	return deactivate(ctx, r.users, id)
}

func (r *repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	e, err := findByID[productEntity](ctx, r.products, id)
	if err != nil {
		return nil, err
	}
	return e.toDomain(), nil
}

func (r *repository) InsertProduct(ctx context.Context, p *Product) error {
	return insert(ctx, r.products, p.ID, toProductEntity(p))
}

func (r *repository) UpsertProduct(ctx context.Context, p *Product) error {
	return upsert(ctx, r.products, p.ID, bson.D{
		{Key: "name", Value: p.Name},
		{Key: "price", Value: p.Price},
		{Key: "stock", Value: p.Stock},
	})
}

func (r *repository) DeactivateProduct(ctx context.Context, id string) error {
	return deactivate(ctx, r.products, id)
}

func (r *repository) ReserveStock(ctx context.Context, productID string, quantity int) error {
	res, err := r.products.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: productID}, {Key: "stock", Value: bson.D{{Key: "$gte", Value: quantity}}}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: -quantity}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to reserve stock of %s: %w", productID, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := r.GetProduct(ctx, productID); err != nil {
		return err
	}
	return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
}

func (r *repository) RestoreStock(ctx context.Context, productID string, quantity int) error {
	return updateExisting(ctx, r.products, productID, bson.D{{Key: "$inc", Value: bson.D{{Key: "stock", Value: quantity}}}})
}

func (r *repository) GetOrder(ctx context.Context, id string) (*Order, error) {
	e, err := findByID[orderEntity](ctx, r.orders, id)
	if err != nil {
		return nil, err
	}
	return e.toDomain(), nil
}

func (r *repository) InsertOrder(ctx context.Context, o *Order) error {
	return insert(ctx, r.orders, o.ID, toOrderEntity(o))
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id, status string) error {
	return updateExisting(ctx, r.orders, id, bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: status}}}})
}

func (r *repository) NextOrderNumber(ctx context.Context) (int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterEntity
	err := r.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: orderNumberCounter}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: 1}}}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}
	return counter.Seq, nil
}
