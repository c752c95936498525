package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/chainlens/pkg/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS apps (
	app_id   TEXT PRIMARY KEY,
	app_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	record_id   TEXT PRIMARY KEY,
	app_id      TEXT NOT NULL,
	input       TEXT,
	output      TEXT,
	error       TEXT,
	tags        TEXT,
	ts          INTEGER NOT NULL,
	perf_json   TEXT,
	record_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_app_ts ON records(app_id, ts, record_id);
CREATE INDEX IF NOT EXISTS idx_records_ts ON records(ts, record_id);
`

// Store implements ports.RecordStore and ports.AppCatalog on an embedded
// SQLite database. The full record is kept as JSON next to a few columns
// that make the table useful to query by hand.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Save inserts or replaces the record.
func (s *Store) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	input, err := jsonColumn(rec.MainInput)
	if err != nil {
		return err
	}
	output, err := jsonColumn(rec.MainOutput)
	if err != nil {
		return err
	}
	tags, err := jsonColumn(rec.Tags)
	if err != nil {
		return err
	}
	perf, err := jsonColumn(rec.Perf)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records
			(record_id, app_id, input, output, error, tags, ts, perf_json, record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.AppID, input, output, rec.MainError, tags, rec.TS.UnixNano(), perf, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves the record.
func (s *Store) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json FROM records WHERE record_id = ?`, recordID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns the record IDs of appID ordered by record time.
func (s *Store) List(ctx context.Context, appID string) ([]string, error) {
	query := `SELECT record_id FROM records ORDER BY ts, record_id`
	args := []any{}
	if appID != "" {
		query = `SELECT record_id FROM records WHERE app_id = ? ORDER BY ts, record_id`
		args = append(args, appID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveApp stores the description of an app.
func (s *Store) SaveApp(ctx context.Context, appID string, desc map[string]any) error {
	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to marshal app: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO apps (app_id, app_json) VALUES (?, ?)`, appID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save app: %w", err)
	}
	return nil
}

// LoadApp retrieves the description of an app.
func (s *Store) LoadApp(ctx context.Context, appID string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT app_json FROM apps WHERE app_id = ?`, appID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to load app: %w", err)
	}

	var desc map[string]any
	if err := json.Unmarshal([]byte(data), &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app: %w", err)
	}
	return desc, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func jsonColumn(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(data), nil
}
