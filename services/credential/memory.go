package credential

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[Key]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[Key]string)}
}

func (s *MemoryStore) Put(_ context.Context, key Key, code string, issuedAt time.Time) error {
	s.PutPayload(key, EncodePayload(code, issuedAt))
	return nil
}

// PutPayload stores a raw payload as-is.
func (s *MemoryStore) PutPayload(key Key, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[key] = payload
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	s.mu.RLock()
	payload, ok := s.payloads[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return DecodePayload(payload)
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, key)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, payload := range s.payloads {
		record, err := DecodePayload(payload)
		if err != nil || record.IssuedAt.Before(cutoff) {
			delete(s.payloads, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}
