package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/adapters/file"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunRecordStoreContract(t, store)
}

func TestFileStore_AppCatalog(t *testing.T) {
	ports.RunAppCatalogContract(t, file.New(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ports.ContractRecord("r1", "app", time.Now())))
	require.NoError(t, store.SaveApp(ctx, "app", map[string]any{"app_id": "app"}))

	assert.FileExists(t, filepath.Join(dir, "records", "r1.json"))
	assert.FileExists(t, filepath.Join(dir, "apps", "app.json"))

	entries, err := os.ReadDir(filepath.Join(dir, "records"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStore_ListIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ports.ContractRecord("r1", "app", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "records", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "records", "sub.json"), 0755))

	ids, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestFileStore_EmptyDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))

	ids, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_InvalidIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.Load(ctx, id)
		assert.Error(t, err, id)
		assert.Error(t, store.Delete(ctx, id), id)
	}
}
