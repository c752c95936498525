package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/chainlens/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "chainlens:record:"

// Store implements ports.RecordStore and ports.AppCatalog using Redis.
//
// Records live under prefix+recordID. Two sorted sets scored by record time
// index them: one for every record and one per app. Expired records leave
// stale index members behind, which List prunes lazily.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(recordID string) string {
	return s.prefix + recordID
}

func (s *Store) indexKey(appID string) string {
	if appID == "" {
		return s.prefix + "index"
	}
	return s.prefix + "index:" + appID
}

func (s *Store) appKey(appID string) string {
	return s.prefix + "app:" + appID
}

// Save persists the record and indexes it by record time.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	member := backend.Z{
		Score:  float64(rec.TS.UnixMilli()),
		Member: rec.RecordID,
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(rec.RecordID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(""), member)
	pipe.ZAdd(ctx, s.indexKey(rec.AppID), member)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the record from Redis.
func (s *Store) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	val, err := s.client.Get(ctx, s.key(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record and its index entries.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	rec, err := s.Load(ctx, recordID)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(recordID))
	pipe.ZRem(ctx, s.indexKey(""), recordID)
	if rec != nil {
		pipe.ZRem(ctx, s.indexKey(rec.AppID), recordID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the record IDs of appID ordered by record time. Index members
// whose record has expired are removed on the way.
func (s *Store) List(ctx context.Context, appID string) ([]string, error) {
	index := s.indexKey(appID)
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(ids) == 0 || s.ttl == 0 {
		return ids, nil
	}

	pipe := s.client.Pipeline()
	exists := make([]*backend.IntCmd, len(ids))
	for i, id := range ids {
		exists[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check records: %w", err)
	}

	live := make([]string, 0, len(ids))
	var expired []any
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
		} else {
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, index, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired records: %w", err)
		}
	}
	return live, nil
}

// SaveApp stores the description of an app. App descriptions never expire.
func (s *Store) SaveApp(ctx context.Context, appID string, desc map[string]any) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}
	if err := s.client.Set(ctx, s.appKey(appID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save app to redis: %w", err)
	}
	return nil
}

// LoadApp retrieves the description of an app.
func (s *Store) LoadApp(ctx context.Context, appID string) (map[string]any, error) {
	val, err := s.client.Get(ctx, s.appKey(appID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to get app from redis: %w", err)
	}

	var desc map[string]any
	if err := json.Unmarshal(val, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app: %w", err)
	}
	return desc, nil
}

// Ping checks connectivity to the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
