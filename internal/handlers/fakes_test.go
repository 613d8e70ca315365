package handlers

import (
	"context"
	"sync"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/catalog"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/idempotency"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/persistence"
)

type marker struct {
	eventID, eventType, source string
}

// memGuard dedupes by (id, type) and records a marker only when apply succeeds.
type memGuard struct {
	mu      sync.Mutex
	markers []marker
	err     error
}

func (g *memGuard) Process(ctx context.Context, e events.Event, source string, apply func(context.Context) error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := e.GetMetadata().EventID
	if id == "" {
		return false, idempotency.ErrMissingEventID
	}
	if g.err != nil {
		return false, g.err
	}
	for _, m := range g.markers {
		if m.eventID == id && m.eventType == e.EventType() {
			return false, nil
		}
	}
	if err := apply(ctx); err != nil {
		return false, err
	}
	g.markers = append(g.markers, marker{eventID: id, eventType: e.EventType(), source: source})
	return true, nil
}

func (g *memGuard) Markers() []marker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]marker(nil), g.markers...)
}

type memRepo struct {
	mu       sync.Mutex
	users    map[string]catalog.User
	products map[string]catalog.Product
	orders   map[string]catalog.Order
	seq      int
	err      error
}

var _ catalog.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		users:    map[string]catalog.User{},
		products: map[string]catalog.Product{},
		orders:   map[string]catalog.Order{},
	}
}

func (r *memRepo) GetUser(_ context.Context, id string) (*catalog.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, persistence.ErrEntityNotFound
	}
	return &u, nil
}

func (r *memRepo) InsertUser(_ context.Context, u *catalog.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return persistence.ErrDuplicateKey
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) UpsertUser(_ context.Context, u *catalog.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	active := true
	if existing, ok := r.users[u.ID]; ok {
		active = existing.IsActive
	}
	updated := *u
	updated.IsActive = active
	r.users[u.ID] = updated
	return nil
}

func (r *memRepo) DeactivateUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return persistence.ErrEntityNotFound
	}
	u.IsActive = false
	r.users[id] = u
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.products[id]
	if !ok {
		return nil, persistence.ErrEntityNotFound
	}
	return &p, nil
}

func (r *memRepo) InsertProduct(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return persistence.ErrDuplicateKey
	}
	r.products[p.ID] = *p
	return nil
}

func (r *memRepo) UpsertProduct(_ context.Context, p *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := true
	if existing, ok := r.products[p.ID]; ok {
		active = existing.IsActive
	}
	updated := *p
	updated.IsActive = active
	r.products[p.ID] = updated
	return nil
}

func (r *memRepo) DeactivateProduct(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return persistence.ErrEntityNotFound
	}
	p.IsActive = false
	r.products[id] = p
	return nil
}

func (r *memRepo) ReserveStock(_ context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return persistence.ErrEntityNotFound
	}
	if p.Stock < quantity {
		return catalog.ErrInsufficientStock
	}
	p.Stock -= quantity
	r.products[productID] = p
	return nil
}

func (r *memRepo) RestoreStock(_ context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return persistence.ErrEntityNotFound
	}
	p.Stock += quantity
	r.products[productID] = p
	return nil
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*catalog.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, persistence.ErrEntityNotFound
	}
	return &o, nil
}

func (r *memRepo) InsertOrder(_ context.Context, o *catalog.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return persistence.ErrEntityNotFound
	}
	o.Status = status
	r.orders[id] = o
	return nil
}

func (r *memRepo) NextOrderNumber(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}
