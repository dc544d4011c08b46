package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
	}
}

func (s *MemoryStore) Enqueue(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if cp.Payload != nil {
		payload := make(map[string]any, len(cp.Payload))
		for k, v := range cp.Payload {
			payload[k] = v
		}
		cp.Payload = payload
	}
	s.records[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Record
	for _, rec := range s.records {
		if rec.Status != StatusQueued {
			continue
		}
		if rec.ScheduledFor != nil && rec.ScheduledFor.After(now) {
			continue
		}
		due = append(due, *rec)
	}

	sort.SliceStable(due, func(i, j int) bool {
		ti, tj := due[i].ScheduledFor, due[j].ScheduledFor
		switch {
		case ti == nil && tj == nil:
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		case ti == nil:
			return true
		case tj == nil:
			return false
		default:
			return ti.Before(*tj)
		}
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = StatusSent
	rec.Attempts = attempts
	rec.LastError = ""
	rec.ScheduledFor = nil
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = StatusFailed
	rec.Attempts = attempts
	rec.LastError = lastError
	rec.ScheduledFor = nil
	return nil
}

func (s *MemoryStore) Reschedule(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = StatusQueued
	rec.Attempts = attempts
	rec.LastError = lastError
	next := nextAt
	rec.ScheduledFor = &next
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.records {
		if filter.OwnerID != "" && rec.OwnerID != filter.OwnerID {
			continue
		}
		if filter.BrandID != "" && rec.BrandID != filter.BrandID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, *rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountQueued(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, rec := range s.records {
		if rec.Status == StatusQueued {
			n++
		}
	}
	return n, nil
}

// Get returns a copy of one record; test helper.
func (s *MemoryStore) Get(id uuid.UUID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}
