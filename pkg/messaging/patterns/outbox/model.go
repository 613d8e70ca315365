package outbox

import (
	"time"
)

const collectionName = "outbox"

// Record is one locally produced event waiting for, or past, publication.
// A record is pending while PublishedAt is nil.
type Record struct {
	ID        string `bson:"_id"`
	EventType string `bson:"eventType"`
	// Payload is the event encoded as JSON.
	Payload string `bson:"payload"`
	// TraceHeaders carry the producing span so publication joins its trace.
	TraceHeaders map[string]string `bson:"traceHeaders,omitempty"`
	OccurredAt   time.Time         `bson:"occurredAt"`
	CreatedAt    time.Time         `bson:"createdAt"`
	PublishedAt  *time.Time        `bson:"publishedAt"`
	AttemptCount int               `bson:"attemptCount"`
	LastError    *string           `bson:"lastError"`
}

func (r Record) Pending() bool {
	return r.PublishedAt == nil
}
