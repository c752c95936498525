package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/chainlens/internal/logging"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RecordsURI is the resource listing every stored record ID.
const RecordsURI = "chainlens://records"

// Server exposes a record store as an MCP server, so agents can inspect
// what their chains did.
type Server struct {
	store     ports.RecordStore
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(store ports.RecordStore, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		store:     store,
		mcpServer: server.NewMCPServer("chainlens-mcp", version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on addr using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List stored record IDs, oldest first."),
		mcp.WithString("app_id", mcp.Description("Only list records of this app (optional)")),
	), s.handleListRecords)

	s.mcpServer.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Get a record with its main input, output and every recorded call."),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("The record ID")),
	), s.handleGetRecord)

	s.mcpServer.AddTool(mcp.NewTool("get_calls",
		mcp.WithDescription("Get the calls of a record, optionally only those of one method."),
		mcp.WithString("record_id", mcp.Required(), mcp.Description("The record ID")),
		mcp.WithString("method", mcp.Description("Method name to keep, e.g. Invoke (optional)")),
	), s.handleGetCalls)

	s.mcpServer.AddTool(mcp.NewTool("get_app",
		mcp.WithDescription("Get the description of an instrumented app and its component graph."),
		mcp.WithString("app_id", mcp.Required(), mcp.Description("The app ID")),
	), s.handleGetApp)
}

func (s *Server) handleListRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.store.List(ctx, request.GetString("app_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"records": ids})
}

func (s *Server) handleGetRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, errResult := s.load(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(rec)
}

func (s *Server) handleGetCalls(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, errResult := s.load(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	method := request.GetString("method", "")
	calls := make([]domain.CallRecord, 0, len(rec.Calls))
	for _, c := range rec.Calls {
		if method == "" || c.Top().Method.Name == method {
			calls = append(calls, c)
		}
	}
	return jsonResult(map[string]any{"calls": calls})
}

func (s *Server) handleGetApp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, ok := s.store.(ports.AppCatalog)
	if !ok {
		return mcp.NewToolResultError("app catalog not supported by store"), nil
	}
	appID, err := request.RequireString("app_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := catalog.LoadApp(ctx, appID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load app failed: %v", err)), nil
	}
	return jsonResult(desc)
}

func (s *Server) load(ctx context.Context, request mcp.CallToolRequest) (*domain.Record, *mcp.CallToolResult) {
	id, err := request.RequireString("record_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			s.logger.Error("MCP: Load failed", "record_id", id, "error", err)
		}
		return nil, mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err))
	}
	return rec, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RecordsURI, "Stored Records",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.store.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		jsonBytes, err := json.Marshal(ids)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RecordsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
