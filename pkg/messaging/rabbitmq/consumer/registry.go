package consumer

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
)

// HandlerFunc handles one decoded event.
type HandlerFunc[E events.Event] func(ctx context.Context, e E) Result

type dispatchFunc func(ctx context.Context, body []byte) Result

// Registry routes deliveries by their AMQP type property.
type Registry struct {
	events   *events.Registry
	handlers map[string]dispatchFunc
}

func NewRegistry(ev *events.Registry) *Registry {
	return &Registry{
		events:   ev,
		handlers: make(map[string]dispatchFunc),
	}
}

// Handle registers fn for eventType. A body that does not decode into E is Fatal.
func Handle[E events.Event](r *Registry, eventType string, fn HandlerFunc[E]) {
	r.handlers[eventType] = func(ctx context.Context, body []byte) Result {
		decoded, err := r.events.Decode(eventType, body)
		if err != nil {
			return Fatal(err)
		}
		e, ok := decoded.(E)
		if !ok {
			return Fatal(fmt.Errorf("%w: %s decodes to %T", messaging.ErrSerialization, eventType, decoded))
		}
		return fn(ctx, e)
	}
}

func (r *Registry) lookup(eventType string) (dispatchFunc, bool) {
	fn, ok := r.handlers[eventType]
	return fn, ok
}

// Types returns the handled event types in sorted order.
func (r *Registry) Types() []string {
	types := lo.Keys(r.handlers)
	slices.Sort(types)
	return types
}
