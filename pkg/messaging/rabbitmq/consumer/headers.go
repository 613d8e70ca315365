package consumer

import (
	"math"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const headerRetryCount = "x-retry-count"

// retryCount reads x-retry-count. Missing or unparsable values count as 0.
func retryCount(headers amqp.Table) int {
	v, ok := headers[headerRetryCount]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	case []byte:
		if i, err := strconv.Atoi(string(n)); err == nil {
			return i
		}
	}
	return 0
}

// withRetryCount copies headers and sets x-retry-count.
func withRetryCount(headers amqp.Table, count int) amqp.Table {
	out := make(amqp.Table, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[headerRetryCount] = int32(count)
	return out
}

// retryDelay is 2^(retryCount+1) seconds: 2s, 4s, 8s, ...
func retryDelay(retryCount int) time.Duration {
	return time.Duration(math.Pow(2, float64(retryCount+1))) * time.Second
}
