package ports

import (
	"context"

	"github.com/aretw0/chainlens/pkg/domain"
)

// RecordStore defines the interface for persisting completed records.
type RecordStore interface {
	// Save persists a record under its RecordID, replacing any previous one.
	Save(ctx context.Context, rec *domain.Record) error

	// Load retrieves a record by ID.
	// Returns domain.ErrRecordNotFound if the record does not exist.
	Load(ctx context.Context, recordID string) (*domain.Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, recordID string) error

	// List returns the IDs of the records of appID, oldest first.
	// An empty appID lists the records of every app.
	List(ctx context.Context, appID string) ([]string, error)
}

// AppCatalog is implemented by stores that also keep the description of
// each instrumented app.
type AppCatalog interface {
	// SaveApp stores the description of appID, replacing any previous one.
	SaveApp(ctx context.Context, appID string, desc map[string]any) error

	// LoadApp retrieves the description of appID.
	// Returns domain.ErrAppNotFound if the app was never saved.
	LoadApp(ctx context.Context, appID string) (map[string]any, error)
}
