package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleaner_DeletesPastRetention(t *testing.T) {
	store := &memStore{processed: []ProcessedEvent{
		{EventID: "old", EventType: "T", ProcessedAt: now.Add(-31 * 24 * time.Hour)},
		{EventID: "fresh", EventType: "T", ProcessedAt: now.Add(-time.Hour)},
	}}
	c := newCleaner(store, Config{Retention: 30 * 24 * time.Hour, CleanupInterval: time.Hour}, zap.NewNop())
	c.now = func() time.Time { return now }

	c.clean(context.Background())

	assert.Equal(t, []time.Time{now.Add(-30 * 24 * time.Hour)}, store.Cutoffs())
	require.Len(t, store.processed, 1)
	assert.Equal(t, "fresh", store.processed[0].EventID)
}

func TestCleaner_RunsUntilCancelled(t *testing.T) {
	store := &memStore{}
	c := newCleaner(store, Config{Retention: time.Hour, CleanupInterval: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(store.Cutoffs()) >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)

	assert.Error(t, Config{Retention: -time.Second, CleanupInterval: time.Hour}.Validate())
}
