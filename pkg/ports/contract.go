package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractRecord builds a small, fully populated record for store tests.
func ContractRecord(recordID, appID string, ts time.Time) *domain.Record {
	path := domain.RootPath().Field("Steps").Index(0)
	root := domain.Frame{Path: domain.RootPath(), Method: domain.Method{Class: "example.Chain", Name: "Invoke"}}
	step := domain.Frame{Path: path, Method: domain.Method{Class: "example.Step", Name: "Invoke"}}
	perf := domain.Perf{StartTime: ts, EndTime: ts.Add(time.Second)}

	return &domain.Record{
		RecordID:   recordID,
		AppID:      appID,
		MainInput:  map[string]any{"question": "why?"},
		MainOutput: map[string]any{"answer": "because"},
		Calls: []domain.CallRecord{
			{Args: map[string]any{"inputs": "why?"}, Rets: "because", Perf: perf, PID: 1, TID: 7, Stack: []domain.Frame{root, step}},
			{Args: map[string]any{"inputs": "why?"}, Rets: "because", Perf: perf, PID: 1, TID: 7, Stack: []domain.Frame{root}},
		},
		Perf: perf,
		Tags: []string{"contract"},
		TS:   ts,
	}
}

// RunRecordStoreContract runs a suite of tests to verify that a RecordStore
// implementation adheres to the defined interface contract.
func RunRecordStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	appID := "contract-app-" + suffix
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		rec := ContractRecord("contract-record-"+suffix, appID, base)

		require.NoError(t, store.Save(ctx, rec), "Save should not return error")

		loaded, err := store.Load(ctx, rec.RecordID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, rec.RecordID, loaded.RecordID)
		assert.Equal(t, rec.AppID, loaded.AppID)
		assert.True(t, rec.TS.Equal(loaded.TS), "timestamps survive persistence")
		assert.Equal(t, rec.Tags, loaded.Tags)
		require.Len(t, loaded.Calls, 2)
		assert.Equal(t, rec.Calls[0].Stack, loaded.Calls[0].Stack)
		assert.Equal(t, "why?", loaded.Calls[0].Args["inputs"])
		assert.Equal(t, "because", loaded.Calls[1].Rets)
		assert.Equal(t, time.Second, loaded.Perf.Duration())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := "contract-delete-" + suffix
		require.NoError(t, store.Save(ctx, ContractRecord(id, appID, base)))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, "Load after Delete should return ErrRecordNotFound")
		assert.NoError(t, store.Delete(ctx, id), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		listApp := appID + "-list"
		otherApp := appID + "-other"
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = fmt.Sprintf("contract-list-%s-%d", suffix, i)
		}
		// Saved out of order: listing follows record time, not insertion.
		require.NoError(t, store.Save(ctx, ContractRecord(ids[2], listApp, base.Add(2*time.Minute))))
		require.NoError(t, store.Save(ctx, ContractRecord(ids[0], listApp, base)))
		require.NoError(t, store.Save(ctx, ContractRecord(ids[1], listApp, base.Add(time.Minute))))
		other := "contract-other-" + suffix
		require.NoError(t, store.Save(ctx, ContractRecord(other, otherApp, base)))

		defer func() {
			for _, id := range append(ids, other) {
				_ = store.Delete(ctx, id)
			}
		}()

		listed, err := store.List(ctx, listApp)
		require.NoError(t, err)
		assert.Equal(t, ids, listed)

		all, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Subset(t, all, append(ids, other))
	})
}

// RunAppCatalogContract verifies an AppCatalog implementation.
func RunAppCatalogContract(t *testing.T, catalog AppCatalog) {
	ctx := context.Background()
	appID := "contract-catalog-" + time.Now().Format("20060102150405.000000000")

	_, err := catalog.LoadApp(ctx, appID)
	assert.ErrorIs(t, err, domain.ErrAppNotFound)

	desc := map[string]any{"app_id": appID, "root": map[string]any{"Name": "chain"}}
	require.NoError(t, catalog.SaveApp(ctx, appID, desc))

	loaded, err := catalog.LoadApp(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, desc, loaded)
}
