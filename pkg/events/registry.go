package events

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
)

// Registry maps an event type name to a constructor of its concrete type.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]func() Event
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]func() Event)}
}

// NewDefaultRegistry returns a registry with every event this service consumes or publishes.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeUserCreated, func() Event { return &UserCreated{} })
	r.Register(TypeUserUpdated, func() Event { return &UserUpdated{} })
	r.Register(TypeUserDeleted, func() Event { return &UserDeleted{} })
	r.Register(TypeProductCreated, func() Event { return &ProductCreated{} })
	r.Register(TypeProductUpdated, func() Event { return &ProductUpdated{} })
	r.Register(TypeProductDeleted, func() Event { return &ProductDeleted{} })
	r.Register(TypeOrderCancelledByInsufficientStock, func() Event { return &OrderCancelledByInsufficientStock{} })
	r.Register(TypeOrderIssuedForStockValidation, func() Event { return &OrderIssuedForStockValidation{} })
	return r
}

// Register adds or replaces the constructor for eventType.
func (r *Registry) Register(eventType string, ctor func() Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[eventType] = ctor
}

// New returns an empty event of the registered type.
func (r *Registry) New(eventType string) (Event, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", messaging.ErrUnknownEventType, eventType)
	}
	return ctor(), nil
}

// Decode unmarshals payload into a new event of eventType.
func (r *Registry) Decode(eventType string, payload []byte) (Event, error) {
	e, err := r.New(eventType)
	if err != nil {
		return nil, err
	}
	if err := Unmarshal(payload, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := lo.Keys(r.ctors)
	slices.Sort(types)
	return types
}
