package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LogThrottler keeps a repeating failure, such as a broker outage seen on
// every outbox cycle, to one WARN per key per interval. Repeats in between go
// to DEBUG and are counted on the next WARN.
type LogThrottler struct {
	log      *zap.Logger
	keys     sync.Map // map[string]*throttledKey
	interval time.Duration
}

type throttledKey struct {
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewLogThrottler creates a LogThrottler. A zero interval means 5 minutes.
func NewLogThrottler(log *zap.Logger, interval time.Duration) *LogThrottler {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &LogThrottler{
		log:      log,
		interval: interval,
	}
}

// Warn logs msg as WARN unless key already warned within the interval.
func (t *LogThrottler) Warn(key string, msg string, fields ...zap.Field) {
	k := t.key(key)
	if !k.limiter.Allow() {
		k.suppressed.Add(1)
		t.log.Debug(msg, fields...)
		return
	}
	if n := k.suppressed.Swap(0); n > 0 {
		fields = append(fields[:len(fields):len(fields)], zap.Int64("suppressed", n))
	}
	t.log.Warn(msg, fields...)
}

func (t *LogThrottler) key(key string) *throttledKey {
	if k, ok := t.keys.Load(key); ok {
		return k.(*throttledKey)
	}
	k, _ := t.keys.LoadOrStore(key, &throttledKey{limiter: rate.NewLimiter(rate.Every(t.interval), 1)})
	return k.(*throttledKey)
}
