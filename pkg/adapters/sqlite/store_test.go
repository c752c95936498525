package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/adapters/sqlite"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "chainlens.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunRecordStoreContract(t, store)
}

func TestSQLiteStore_AppCatalog(t *testing.T) {
	store, _ := newStore(t)
	ports.RunAppCatalogContract(t, store)
}

func TestSQLiteStore_Columns(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()
	rec := ports.ContractRecord("r1", "app", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	rec.MainError = "boom"
	require.NoError(t, store.Save(ctx, rec))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var appID, input, errText, tags string
	var ts int64
	err = db.QueryRow(`SELECT app_id, input, error, tags, ts FROM records WHERE record_id = ?`, "r1").
		Scan(&appID, &input, &errText, &tags, &ts)
	require.NoError(t, err)

	assert.Equal(t, "app", appID)
	assert.JSONEq(t, `{"question":"why?"}`, input)
	assert.Equal(t, "boom", errText)
	assert.JSONEq(t, `["contract"]`, tags)
	assert.Equal(t, rec.TS.UnixNano(), ts)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	store, path := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, ports.ContractRecord("r1", "app", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestSQLiteStore_ReplaceKeepsOneRow(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	rec := ports.ContractRecord("r1", "app", time.Now())
	require.NoError(t, store.Save(ctx, rec))

	rec.Tags = []string{"updated"}
	require.NoError(t, store.Save(ctx, rec))

	ids, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"updated"}, loaded.Tags)
}
