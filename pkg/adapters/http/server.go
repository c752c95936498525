package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/chainlens/internal/logging"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a record store over HTTP and streams records as apps
// complete them.
type Server struct {
	Store   ports.RecordStore
	Streams *StreamManager

	metrics http.Handler
	version string
	logger  *slog.Logger
}

type Option func(*Server)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server backed by store.
func NewServer(store ports.RecordStore, opts ...Option) *Server {
	s := &Server{
		Store:   store,
		version: "unknown",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the store.
func NewHandler(store ports.RecordStore, opts ...Option) http.Handler {
	return NewServer(store, opts...).Handler()
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/records", func(r chi.Router) {
		r.Get("/", s.ListRecords)
		r.Get("/{id}", s.GetRecord)
		r.Get("/{id}/calls", s.GetCalls)
		r.Delete("/{id}", s.DeleteRecord)
	})
	r.Get("/apps/{id}", s.GetApp)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return enableCORS(r)
}

// Hooks returns the hooks that publish completed records to /events
// subscribers.
func (s *Server) Hooks() domain.Hooks {
	return domain.Hooks{
		OnRecord: func(ctx context.Context, rec *domain.Record) {
			data, err := json.Marshal(rec)
			if err != nil {
				s.logger.Error("Record encode failed", "record_id", rec.RecordID, "error", err)
				return
			}
			s.Streams.Broadcast(rec.AppID, string(data))
		},
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListRecords handles GET /records.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")
	ids, err := s.Store.List(r.Context(), appID)
	if err != nil {
		s.fail(w, "List failed", err)
		return
	}
	s.writeJSON(w, map[string]any{"records": ids})
}

// GetRecord handles GET /records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.load(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, rec)
}

// GetCalls handles GET /records/{id}/calls. The optional method query
// parameter keeps the calls whose own frame ran that method name.
func (s *Server) GetCalls(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.load(w, r)
	if !ok {
		return
	}

	method := r.URL.Query().Get("method")
	calls := make([]domain.CallRecord, 0, len(rec.Calls))
	for _, c := range rec.Calls {
		if method == "" || c.Top().Method.Name == method {
			calls = append(calls, c)
		}
	}
	s.writeJSON(w, map[string]any{"calls": calls})
}

// DeleteRecord handles DELETE /records/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "Delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetApp handles GET /apps/{id}.
func (s *Server) GetApp(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.Store.(ports.AppCatalog)
	if !ok {
		http.Error(w, "App catalog not supported by store", http.StatusNotImplemented)
		return
	}

	desc, err := catalog.LoadApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.fail(w, "Load app failed", err)
		return
	}
	s.writeJSON(w, desc)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("Health check failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"app":     "chainlens-http",
		"version": s.version,
	})
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*domain.Record, bool) {
	rec, err := s.Store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return nil, false
		}
		s.fail(w, "Load failed", err)
		return nil, false
	}
	return rec, true
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusInternalServerError)
	s.logger.Error(msg, "error", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // AppID ("" for all) -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a manager logging to logger (discarded when nil).
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for records of appID, or of every app when
// appID is empty. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(appID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[appID]; !ok {
		sm.subscribers[appID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[appID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[appID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, appID)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of appID and to those of every app.
// Slow subscribers miss messages rather than block the caller.
func (sm *StreamManager) Broadcast(appID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []string{""}
	if appID != "" {
		keys = append(keys, appID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: Client buffer full, dropping message", "app_id", appID)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	appID := r.URL.Query().Get("app_id")
	s.logger.Info("SSE: Subscribing to records", "app_id", appID)

	ch, cancel := s.Streams.Subscribe(appID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: record\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
