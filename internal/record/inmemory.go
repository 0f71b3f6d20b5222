package record

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu   sync.RWMutex
	recs []CallRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.recs = append(s.recs, rec)
	return nil
}

// Recent returns up to limit records, newest first.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recs) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(s.recs) {
		limit = len(s.recs)
	}
	out := make([]CallRecord, 0, limit)
	for i := len(s.recs) - 1; i >= len(s.recs)-limit; i-- {
		out = append(out, s.recs[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
