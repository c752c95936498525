package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/chainlens/pkg/adapters/memory"
	"github.com/aretw0/chainlens/pkg/domain"
)

// Store implements ports.RecordStore and ports.AppCatalog using the local
// filesystem. Records are JSON files under BasePath/records and app
// descriptions JSON files under BasePath/apps.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".chainlens".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".chainlens"
	}
	return &Store{BasePath: basePath}
}

func (s *Store) recordsDir() string { return filepath.Join(s.BasePath, "records") }
func (s *Store) appsDir() string    { return filepath.Join(s.BasePath, "apps") }

// Save persists the record to a JSON file atomically.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	if err := checkID(rec.RecordID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return writeAtomic(s.recordsDir(), rec.RecordID, data)
}

// Load retrieves the record from its JSON file.
func (s *Store) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	if err := checkID(recordID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.recordsDir(), recordID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record file.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	if err := checkID(recordID); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.recordsDir(), recordID+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record file: %w", err)
	}
	return nil
}

// List returns the record IDs of appID ordered by record time. Every record
// file is decoded, so listing cost grows with the directory.
func (s *Store) List(ctx context.Context, appID string) ([]string, error) {
	entries, err := os.ReadDir(s.recordsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	var recs []*domain.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		rec, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if appID == "" || rec.AppID == appID {
			recs = append(recs, rec)
		}
	}
	return memory.SortedIDs(recs), nil
}

// SaveApp stores the description of an app.
func (s *Store) SaveApp(ctx context.Context, appID string, desc map[string]any) error {
	if err := checkID(appID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}
	return writeAtomic(s.appsDir(), appID, data)
}

// LoadApp retrieves the description of an app.
func (s *Store) LoadApp(ctx context.Context, appID string) (map[string]any, error) {
	if err := checkID(appID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.appsDir(), appID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to read app file: %w", err)
	}

	var desc map[string]any
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app: %w", err)
	}
	return desc, nil
}

func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// writeAtomic writes to a temporary file in dir, syncs it and renames it over
// dir/name.json.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}
	destPath := filepath.Join(dir, name+".json")

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+name+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
