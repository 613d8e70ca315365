// Package messaging holds the error taxonomy shared by the broker, outbox and
// consumer packages.
package messaging

import "errors"

var (
	// ErrBrokerUnavailable is returned when the broker cannot be reached to connect or publish.
	ErrBrokerUnavailable = errors.New("message broker unavailable")

	// ErrSerialization is returned when an event cannot be encoded or decoded.
	ErrSerialization = errors.New("event serialization failed")

	// ErrUnknownEventType is returned when no decoder or handler is registered for an event type.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrHandlerFailure marks a domain-side failure during consumption.
	ErrHandlerFailure = errors.New("event handler failed")

	// ErrPersistence marks a store or commit failure.
	ErrPersistence = errors.New("persistence failure")
)
