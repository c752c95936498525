package chainlens

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/aretw0/chainlens/internal/logging"
	"github.com/aretw0/chainlens/pkg/chain"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/instrument"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/aretw0/chainlens/pkg/record"
	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/aretw0/chainlens/pkg/walker"
	"github.com/google/uuid"
)

// DefaultRecordLimit is the number of recent records an App keeps in memory.
const DefaultRecordLimit = 100

// App is an instrumented component graph. It is the entry point of the
// library: it wraps the graph, owns the root contexts opened by its root
// methods and turns each completed root into a Record.
type App struct {
	id          string
	root        any
	proxy       any
	iface       reflect.Type
	rootMethods []string
	policy      walker.Policy
	proxies     *registry.Registry
	store       ports.RecordStore
	hooks       domain.Hooks
	tags        []string
	limit       int
	logger      *slog.Logger

	mu     sync.RWMutex
	paths  map[domain.Target]map[domain.Method]domain.Path
	recent []*domain.Record
}

// Option defines a functional option for configuring the App.
type Option func(*App)

// WithAppID sets the ID records are filed under. Defaults to a random UUID.
func WithAppID(id string) Option {
	return func(a *App) {
		a.id = id
	}
}

// WithRootInterface sets the interface the root is exposed through.
// Defaults to chain.Runnable.
func WithRootInterface(t reflect.Type) Option {
	return func(a *App) {
		a.iface = t
	}
}

// WithRootMethods sets the methods of the root interface that open a new
// record when called. Defaults to "Invoke".
func WithRootMethods(methods ...string) Option {
	return func(a *App) {
		a.rootMethods = methods
	}
}

// WithPolicy adds p to the default policy, which selects the components of
// package chain.
func WithPolicy(p walker.Policy) Option {
	return func(a *App) {
		a.policy = a.policy.Merge(p)
	}
}

// WithRegistry sets the proxy registry. Defaults to registry.Default.
func WithRegistry(r *registry.Registry) Option {
	return func(a *App) {
		a.proxies = r
	}
}

// WithStore persists every completed record.
func WithStore(s ports.RecordStore) Option {
	return func(a *App) {
		a.store = s
	}
}

// WithHooks registers observability hooks. It can be given several times.
func WithHooks(h domain.Hooks) Option {
	return func(a *App) {
		a.hooks = domain.MergeHooks(a.hooks, h)
	}
}

// WithTags sets the tags attached to every record.
func WithTags(tags ...string) Option {
	return func(a *App) {
		a.tags = tags
	}
}

// WithRecordLimit sets how many recent records Records returns.
func WithRecordLimit(n int) Option {
	return func(a *App) {
		a.limit = n
	}
}

// WithLogger sets a custom structured logger for the app.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New instruments the graph under root and returns the App observing it.
// Call the graph through Root (or Proxy) to record it.
func New(root any, opts ...Option) (*App, error) {
	a := &App{
		root:        root,
		iface:       reflect.TypeFor[chain.Runnable](),
		rootMethods: []string{"Invoke"},
		policy:      chain.Policy(),
		proxies:     registry.Default,
		limit:       DefaultRecordLimit,
		logger:      logging.NewNop(),
		paths:       make(map[domain.Target]map[domain.Method]domain.Path),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	a.logger = a.logger.With("app_id", a.id)

	in := instrument.New(a.policy, a,
		instrument.WithLogger(a.logger),
		instrument.WithRegistry(a.proxies),
	)
	proxy, err := in.InstrumentRoot(root, a.iface, a.rootMethods...)
	if err != nil {
		return nil, fmt.Errorf("new app %s: %w", a.id, err)
	}
	a.proxy = proxy

	if catalog, ok := a.store.(ports.AppCatalog); ok {
		if err := catalog.SaveApp(context.Background(), a.id, a.Describe()); err != nil {
			a.logger.Error("failed to save app description", "err", err)
		}
	}
	return a, nil
}

// Root returns the instrumented root of a as T.
func Root[T any](a *App) (T, error) {
	t, ok := a.proxy.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("root of app %s is not a %v: %w", a.id, reflect.TypeFor[T](), domain.ErrNotInstrumentable)
	}
	return t, nil
}

// ID returns the app ID.
func (a *App) ID() string {
	return a.id
}

// Proxy returns the instrumented root. It implements the root interface.
func (a *App) Proxy() any {
	return a.proxy
}

// Instrumented lists the wrapped methods of the graph and where they live.
func (a *App) Instrumented() []domain.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.Frame
	for _, methods := range a.paths {
		for m, p := range methods {
			out = append(out, domain.Frame{Path: p, Method: m})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if pi, pj := out[i].Path.String(), out[j].Path.String(); pi != pj {
			return pi < pj
		}
		return out[i].Method.String() < out[j].Method.String()
	})
	return out
}

// Describe returns a JSON-safe description of the app and its graph.
func (a *App) Describe() map[string]any {
	methods := a.Instrumented()
	names := make([]any, len(methods))
	for i, f := range methods {
		names[i] = f.Path.String() + "::" + f.Method.String()
	}
	return map[string]any{
		"app_id":       a.id,
		"root_class":   domain.TypeName(reflect.TypeOf(a.root)),
		"root":         record.Snapshot(a.root),
		"instrumented": names,
	}
}

// Records returns the most recent records, oldest first.
func (a *App) Records() []*domain.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*domain.Record(nil), a.recent...)
}

func (a *App) remember(rec *domain.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recent = append(a.recent, rec)
	if over := len(a.recent) - a.limit; a.limit > 0 && over > 0 {
		a.recent = append([]*domain.Record(nil), a.recent[over:]...)
	}
}
