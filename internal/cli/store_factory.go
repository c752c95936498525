package cli

import (
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/aretw0/chainlens/internal/config"
	"github.com/aretw0/chainlens/pkg/adapters/file"
	"github.com/aretw0/chainlens/pkg/adapters/memory"
	"github.com/aretw0/chainlens/pkg/adapters/pebble"
	"github.com/aretw0/chainlens/pkg/adapters/redis"
	"github.com/aretw0/chainlens/pkg/adapters/sqlite"
	"github.com/aretw0/chainlens/pkg/persistence/middleware"
	"github.com/aretw0/chainlens/pkg/ports"
)

// OpenStore builds the record store cfg describes, wrapped in the redaction
// middleware it asks for. The returned func releases the store.
func OpenStore(cfg *config.Config) (ports.RecordStore, func() error, error) {
	noop := func() error { return nil }

	var (
		store   ports.RecordStore
		closeFn = noop
	)
	sc := cfg.Store
	switch sc.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverFile:
		store = file.New(sc.Path)
	case config.DriverRedis:
		opts := []redis.Option{redis.WithTTL(sc.TTL)}
		if sc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(sc.Prefix))
		}
		s := redis.New(sc.Addr, sc.Password, sc.DB, opts...)
		store, closeFn = s, s.Close
	case config.DriverSQLite:
		s, err := sqlite.New(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case config.DriverPebble:
		s, err := pebble.New(filepath.Clean(sc.Path))
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}

	mws, err := redaction(cfg.Redact)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return middleware.Wrap(store, mws...), closeFn, nil
}

// redaction masks before it encrypts, so ciphertexts never hold raw PII.
func redaction(rc config.RedactConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(rc.Patterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(rc.Patterns))
	}
	if rc.Key == "" {
		return mws, nil
	}

	active, err := decodeKey(rc.Key)
	if err != nil {
		return nil, err
	}
	var fallbacks [][]byte
	for _, k := range rc.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, key)
	}
	mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    active,
		FallbackKeys: fallbacks,
	}))
	return mws, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
