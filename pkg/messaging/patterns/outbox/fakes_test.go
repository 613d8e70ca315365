package outbox

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time

	fetchErr error
	cutoffs  []time.Time
}

func newMemStore(records ...Record) *memStore {
	return &memStore{records: records, now: time.Now}
}

func (s *memStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) FetchUnpublished(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var pending []Record
	for _, r := range s.records {
		if r.Pending() {
			pending = append(pending, r)
		}
	}
	slices.SortStableFunc(pending, func(a, b Record) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memStore) update(id string, fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			if s.records[i].Pending() {
				fn(&s.records[i])
			}
			return nil
		}
	}
	return errors.New("no such record " + id)
}

func (s *memStore) MarkPublished(_ context.Context, id string) error {
	return s.update(id, func(r *Record) {
		now := s.now()
		r.PublishedAt = &now
		r.AttemptCount++
		r.LastError = nil
	})
}

func (s *memStore) MarkError(_ context.Context, id string, msg string) error {
	return s.update(id, func(r *Record) {
		r.AttemptCount++
		r.LastError = &msg
	})
}

func (s *memStore) DeletePublishedOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r Record) bool {
		return r.PublishedAt != nil && r.PublishedAt.Before(cutoff)
	})
	return int64(before - len(s.records)), nil
}

func (s *memStore) get(id string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return Record{}
}

// fakeTx runs fn directly. failures makes the next WithTransaction calls fail
// without running fn, as a rolled back commit would.
type fakeTx struct {
	mu       sync.Mutex
	calls    int
	failures []error
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(txCtx context.Context) (any, error)) (any, error) {
	t.mu.Lock()
	t.calls++
	if len(t.failures) > 0 {
		err := t.failures[0]
		t.failures = t.failures[1:]
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()
	return fn(ctx)
}

// fakePublisher fails the events whose id is in failing.
type fakePublisher struct {
	mu        sync.Mutex
	failing   map[string]error
	published []events.Event
	attempted []string
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := e.GetMetadata().EventID
	p.attempted = append(p.attempted, id)
	if err := p.failing[id]; err != nil {
		return err
	}
	p.published = append(p.published, e)
	return nil
}

func (p *fakePublisher) PublishAsync(ctx context.Context, e events.Event, routingKey string) <-chan error {
	ch := make(chan error, 1)
	ch <- p.Publish(ctx, e, routingKey)
	close(ch)
	return ch
}

func (p *fakePublisher) restore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = nil
}

func (p *fakePublisher) Attempted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.attempted...)
}
