// Package events defines the integration events exchanged with the users,
// products and inventory services, together with their JSON codec.
package events

import "time"

// Metadata is the envelope shared by every integration event. It is flattened
// into the event's JSON object.
type Metadata struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (m *Metadata) GetMetadata() *Metadata {
	return m
}

// Event is implemented by every integration event.
type Event interface {
	GetMetadata() *Metadata
	EventType() string
}

// NewMetadata returns metadata stamped with the given id and time for eventType.
func NewMetadata(eventType, id string, occurredAt time.Time) Metadata {
	return Metadata{
		EventID:    id,
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
	}
}
