package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/adapters/memory"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Save(ctx, ports.ContractRecord("r1", "app", base)))
	require.NoError(t, store.Save(ctx, ports.ContractRecord("r2", "other", base.Add(time.Second))))
	require.NoError(t, store.SaveApp(ctx, "app", map[string]any{"app_id": "app"}))
	return NewServer(store, "test", nil)
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	content, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return content.Text
}

func TestListRecords(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListRecords(ctx, request(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"records":["r1","r2"]}`, text(t, res))

	res, err = s.handleListRecords(ctx, request(map[string]any{"app_id": "other"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"records":["r2"]}`, text(t, res))
}

func TestGetRecord(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetRecord(ctx, request(map[string]any{"record_id": "r1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rec))
	assert.Equal(t, "r1", rec["record_id"])

	res, err = s.handleGetRecord(ctx, request(map[string]any{"record_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetRecord(ctx, request(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError, "record_id is required")
}

func TestGetCalls(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetCalls(ctx, request(map[string]any{"record_id": "r1", "method": "Invoke"}))
	require.NoError(t, err)

	var body struct {
		Calls []json.RawMessage `json:"calls"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Len(t, body.Calls, 2)

	res, err = s.handleGetCalls(ctx, request(map[string]any{"record_id": "r1", "method": "Generate"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"calls":[]}`, text(t, res))
}

func TestGetApp(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetApp(ctx, request(map[string]any{"app_id": "app"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"app_id":"app"}`, text(t, res))

	res, err = s.handleGetApp(ctx, request(map[string]any{"app_id": "none"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
