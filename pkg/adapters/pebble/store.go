package pebble

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key layout:
//
//	r/<record id>                        record JSON
//	t/<ts><record id>                    global time index
//	x/<app id>\x00<ts><record id>        per-app time index
//	a/<app id>                           app description JSON
//
// <ts> is the record time as 8 big-endian bytes with the sign bit flipped,
// so byte order matches time order.
const (
	recordPrefix = "r/"
	timePrefix   = "t/"
	appIdxPrefix = "x/"
	appPrefix    = "a/"
)

// Store implements ports.RecordStore and ports.AppCatalog on a Pebble
// key-value store.
type Store struct {
	db *pebble.DB
}

type Option func(*pebble.Options)

// WithInMemory keeps the database in memory. Used by tests.
func WithInMemory() Option {
	return func(o *pebble.Options) {
		o.FS = vfs.NewMem()
	}
}

// New opens (creating if needed) the database in dir.
func New(dir string, opts ...Option) (*Store, error) {
	o := &pebble.Options{}
	for _, opt := range opts {
		opt(o)
	}

	db, err := pebble.Open(dir, o)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes the record and its index entries in one batch.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	// A previous version may sit under another time or app.
	if prev, err := s.Load(ctx, rec.RecordID); err == nil {
		if err := deleteIndex(b, prev); err != nil {
			return err
		}
	} else if !errors.Is(err, domain.ErrRecordNotFound) {
		return err
	}

	if err := b.Set(recordKey(rec.RecordID), data, nil); err != nil {
		return fmt.Errorf("failed to stage record: %w", err)
	}
	if err := b.Set(timeKey(rec.TS, rec.RecordID), nil, nil); err != nil {
		return fmt.Errorf("failed to stage index: %w", err)
	}
	if err := b.Set(appIdxKey(rec.AppID, rec.TS, rec.RecordID), nil, nil); err != nil {
		return fmt.Errorf("failed to stage app index: %w", err)
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves the record.
func (s *Store) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	var rec domain.Record
	if err := s.get(recordKey(recordID), &rec); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record and its index entries.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	rec, err := s.Load(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Delete(recordKey(recordID), nil); err != nil {
		return fmt.Errorf("failed to stage delete: %w", err)
	}
	if err := deleteIndex(b, rec); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns the record IDs of appID ordered by record time.
func (s *Store) List(ctx context.Context, appID string) ([]string, error) {
	prefix := []byte(timePrefix)
	if appID != "" {
		prefix = append([]byte(appIdxPrefix+appID), 0)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	ids := []string{}
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		ids = append(ids, string(key[len(prefix)+8:]))
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return ids, nil
}

// SaveApp stores the description of an app.
func (s *Store) SaveApp(ctx context.Context, appID string, desc map[string]any) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}
	if err := s.db.Set([]byte(appPrefix+appID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save app: %w", err)
	}
	return nil
}

// LoadApp retrieves the description of an app.
func (s *Store) LoadApp(ctx context.Context, appID string) (map[string]any, error) {
	var desc map[string]any
	if err := s.get([]byte(appPrefix+appID), &desc); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, domain.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to load app: %w", err)
	}
	return desc, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte, out any) error {
	val, closer, err := s.db.Get(key)
	if err != nil {
		return err
	}
	defer closer.Close()
	// val is only valid until closer is closed.
	return json.Unmarshal(val, out)
}

func deleteIndex(b *pebble.Batch, rec *domain.Record) error {
	if err := b.Delete(timeKey(rec.TS, rec.RecordID), nil); err != nil {
		return fmt.Errorf("failed to stage index delete: %w", err)
	}
	if err := b.Delete(appIdxKey(rec.AppID, rec.TS, rec.RecordID), nil); err != nil {
		return fmt.Errorf("failed to stage app index delete: %w", err)
	}
	return nil
}

func recordKey(recordID string) []byte {
	return []byte(recordPrefix + recordID)
}

func timeKey(ts time.Time, recordID string) []byte {
	return appendEntry([]byte(timePrefix), ts, recordID)
}

func appIdxKey(appID string, ts time.Time, recordID string) []byte {
	key := append([]byte(appIdxPrefix+appID), 0)
	return appendEntry(key, ts, recordID)
}

func appendEntry(key []byte, ts time.Time, recordID string) []byte {
	key = binary.BigEndian.AppendUint64(key, uint64(ts.UnixNano())^(1<<63))
	return append(key, recordID...)
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
