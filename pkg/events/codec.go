package events

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes e as a flat camelCase JSON object. An empty eventType in the
// metadata is filled from e.EventType().
func Marshal(e Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", messaging.ErrSerialization)
	}
	if md := e.GetMetadata(); md.EventType == "" {
		md.EventType = e.EventType()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", messaging.ErrSerialization, e.EventType(), err)
	}
	return data, nil
}

// Unmarshal decodes data into e.
func Unmarshal(data []byte, e Event) error {
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("%w: decode %s: %v", messaging.ErrSerialization, e.EventType(), err)
	}
	return nil
}
