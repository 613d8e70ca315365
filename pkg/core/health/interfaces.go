package health

import (
	"context"
	"slices"
	"time"
)

// ComponentStatus is the startup state of one dependency, such as the mongo
// client or the rabbitmq connection.
type ComponentStatus struct {
	Name      string
	Ready     bool
	StartedAt time.Time
	ReadyAt   time.Time
}

// StartupTime is how long the component took to become ready, or zero while
// it is still starting.
func (c ComponentStatus) StartupTime() time.Duration {
	if !c.Ready {
		return 0
	}
	return c.ReadyAt.Sub(c.StartedAt)
}

// ReadinessStatus lists every registered component, sorted by name.
type ReadinessStatus struct {
	Ready      bool
	Components []ComponentStatus
	ReadyAt    time.Time
}

// Pending names the components that are not ready yet.
func (s ReadinessStatus) Pending() []string {
	var names []string
	for _, c := range s.Components {
		if !c.Ready {
			names = append(names, c.Name)
		}
	}
	slices.Sort(names)
	return names
}

// ComponentManager registers a dependency that must be ready before
// background workers start.
type ComponentManager interface {
	// AddComponent registers name and returns the function that marks it ready.
	AddComponent(name string) func()
}

// ReadinessWaiter gates the outbox processor and the consumer until every
// registered component is ready.
type ReadinessWaiter interface {
	// WaitReady returns nil once ready. On ctx end the error names the
	// components still pending.
	WaitReady(ctx context.Context) error
}
