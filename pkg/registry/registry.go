package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Dispatcher resolves the implementation a proxy forwards each method to.
// The function returned by Method has the same type as the method value of
// the wrapped object, so a proxy can type-assert it back.
type Dispatcher interface {
	// Unwrap returns the object behind the proxy.
	Unwrap() any

	// Method returns the function bound to the named method.
	Method(name string) reflect.Value
}

// Handle is embedded by proxies. It exposes the dispatcher to the
// instrumentation layer and the wrapped object to walkers.
type Handle struct {
	d Dispatcher
}

// NewHandle binds a handle to d.
func NewHandle(d Dispatcher) Handle {
	return Handle{d: d}
}

// Unwrap returns the object behind the proxy.
func (h Handle) Unwrap() any {
	return h.d.Unwrap()
}

// Dispatcher returns the dispatcher the proxy forwards to.
func (h Handle) Dispatcher() Dispatcher {
	return h.d
}

// MarshalJSON encodes the object behind the proxy, so proxies are
// transparent to encoding/json.
func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.d.Unwrap())
}

// Fn returns the function bound to method name as type F. It panics if the
// dispatcher holds a function of another type, which means the proxy and
// the interface it implements disagree.
func Fn[F any](h Handle, name string) F {
	return h.d.Method(name).Interface().(F)
}

// Proxied is implemented by every proxy built from a Handle.
type Proxied interface {
	Dispatcher() Dispatcher
}

// Proxy describes how to stand in for values stored in slots of one
// interface type.
type Proxy struct {
	// Interface is the slot type the proxy implements.
	Interface reflect.Type

	// New builds a proxy forwarding to d. The result must implement
	// Interface and embed a Handle.
	New func(d Dispatcher) any

	// Params names the parameters of each method, excluding the leading
	// context. Missing names are recorded positionally.
	Params map[string][]string
}

// Registry holds the proxies known to the instrumentation layer.
type Registry struct {
	mu      sync.RWMutex
	proxies map[reflect.Type]Proxy
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		proxies: make(map[reflect.Type]Proxy),
	}
}

// Default is the registry used when none is configured. Component packages
// register their proxies here from init.
var Default = NewRegistry()

// Register adds a proxy to the registry.
// If a proxy for the same interface exists, it is overwritten.
func (r *Registry) Register(p Proxy) error {
	if p.Interface == nil || p.Interface.Kind() != reflect.Interface {
		return fmt.Errorf("register proxy: %v is not an interface type", p.Interface)
	}
	if p.New == nil {
		return fmt.Errorf("register proxy for %v: missing constructor", p.Interface)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[p.Interface] = p
	return nil
}

// Register adds a proxy for interface I built by newProxy. It panics on an
// invalid registration, so it is meant to be called from init.
func Register[I any](r *Registry, newProxy func(Handle) I, params map[string][]string) {
	err := r.Register(Proxy{
		Interface: reflect.TypeFor[I](),
		New:       func(d Dispatcher) any { return newProxy(NewHandle(d)) },
		Params:    params,
	})
	if err != nil {
		panic(err)
	}
}

// Lookup returns the proxy registered for the interface type t.
func (r *Registry) Lookup(t reflect.Type) (Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proxies[t]
	return p, ok
}

// Interfaces lists the registered interface types by name.
func (r *Registry) Interfaces() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.proxies))
	for t := range r.proxies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
