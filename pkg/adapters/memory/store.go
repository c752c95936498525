package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/chainlens/pkg/domain"
)

// Store implements ports.RecordStore and ports.AppCatalog in memory.
// Safe for concurrent use.
type Store struct {
	records map[string][]byte
	apps    map[string][]byte
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string][]byte),
		apps:    make(map[string][]byte),
	}
}

// Save persists the record in memory. Records are kept encoded, so callers
// never share state with the store.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RecordID] = data
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	s.mu.RLock()
	data, ok := s.records[recordID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return decode(data)
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordID)
	return nil
}

// List returns the record IDs of appID ordered by record time.
func (s *Store) List(ctx context.Context, appID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*domain.Record, 0, len(s.records))
	for _, data := range s.records {
		rec, err := decode(data)
		if err != nil {
			return nil, err
		}
		if appID == "" || rec.AppID == appID {
			recs = append(recs, rec)
		}
	}
	return SortedIDs(recs), nil
}

// SaveApp stores the description of an app.
func (s *Store) SaveApp(ctx context.Context, appID string, desc map[string]any) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[appID] = data
	return nil
}

// LoadApp retrieves the description of an app.
func (s *Store) LoadApp(ctx context.Context, appID string) (map[string]any, error) {
	s.mu.RLock()
	data, ok := s.apps[appID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAppNotFound
	}
	var desc map[string]any
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app: %w", err)
	}
	return desc, nil
}

func decode(data []byte) (*domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// SortedIDs returns the IDs of recs ordered by record time, then ID.
func SortedIDs(recs []*domain.Record) []string {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].TS.Equal(recs[j].TS) {
			return recs[i].TS.Before(recs[j].TS)
		}
		return recs[i].RecordID < recs[j].RecordID
	})
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.RecordID
	}
	return ids
}
