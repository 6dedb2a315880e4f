package assessment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a record or setting does not exist.
var ErrNotFound = errors.New("not found")

// RecordStore persists assessment records and UI settings. Save is an upsert;
// GetAll returns records newest-first.
type RecordStore interface {
	GetAll(ctx context.Context) ([]*AssessmentRecord, error)
	Get(ctx context.Context, id string) (*AssessmentRecord, error)
	Save(ctx context.Context, record *AssessmentRecord) error
	Delete(ctx context.Context, id string) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// MemoryStore is an in-memory RecordStore for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*AssessmentRecord
	settings map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*AssessmentRecord),
		settings: make(map[string]string),
	}
}

func (s *MemoryStore) GetAll(ctx context.Context) ([]*AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*AssessmentRecord, 0, len(s.records))
	for _, r := range s.records {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, record *AssessmentRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	cp.LastModified = time.Now()
	s.records[record.ID] = &cp
	record.LastModified = cp.LastModified
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("setting key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}
