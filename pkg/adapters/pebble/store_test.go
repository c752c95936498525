package pebble_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/adapters/pebble"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *pebble.Store {
	t.Helper()
	store, err := pebble.New("", pebble.WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPebbleStore_Contract(t *testing.T) {
	ports.RunRecordStoreContract(t, newStore(t))
}

func TestPebbleStore_AppCatalog(t *testing.T) {
	ports.RunAppCatalogContract(t, newStore(t))
}

func TestPebbleStore_ResaveMovesIndex(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Save(ctx, ports.ContractRecord("a", "app", base)))
	require.NoError(t, store.Save(ctx, ports.ContractRecord("b", "app", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, ports.ContractRecord("a", "other", base.Add(2*time.Minute))))

	ids, err := store.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, all)
}

func TestPebbleStore_PrefixAppIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ports.ContractRecord("r1", "app", time.Now())))
	require.NoError(t, store.Save(ctx, ports.ContractRecord("r2", "app-2", time.Now())))

	ids, err := store.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestPebbleStore_PreEpochTimes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ports.ContractRecord("later", "app", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Save(ctx, ports.ContractRecord("early", "app", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC))))

	ids, err := store.List(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "later"}, ids)
}
