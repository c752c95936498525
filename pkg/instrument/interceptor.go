package instrument

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/aretw0/chainlens/internal/logging"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/aretw0/chainlens/pkg/walker"
)

// Interceptor installs wrappers on the methods a policy selects and reports
// them to one observer.
type Interceptor struct {
	policy   walker.Policy
	observer ports.Observer
	proxies  *registry.Registry
	walker   *walker.Walker
	logger   *slog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger used for skipped slots and stale paths.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interceptor) {
		in.logger = logger
	}
}

// WithRegistry sets the proxy registry. Defaults to registry.Default.
func WithRegistry(r *registry.Registry) Option {
	return func(in *Interceptor) {
		in.proxies = r
	}
}

// New creates an Interceptor that reports to observer.
func New(policy walker.Policy, observer ports.Observer, opts ...Option) *Interceptor {
	in := &Interceptor{
		policy:   policy,
		observer: observer,
		proxies:  registry.Default,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.walker = walker.New(policy, walker.WithLogger(in.logger))
	return in
}

// InstrumentObject walks obj, which lives at path, and wraps every method
// the policy selects on the objects it reaches.
func (in *Interceptor) InstrumentObject(obj any, path domain.Path) error {
	if err := in.walker.WalkAt(obj, path, in.visit); err != nil {
		return fmt.Errorf("instrument %s: %w", path, err)
	}
	return nil
}

// InstrumentMethod wraps the func field name of obj, which lives at path.
// When obj is a proxy that already wraps name, the observer is told about
// it instead.
func (in *Interceptor) InstrumentMethod(name string, obj any, path domain.Path) error {
	v := reflect.ValueOf(obj)
	if site, ok := proxySite(v); ok {
		for _, m := range site.wrapped {
			if m.Name == name {
				in.observer.OnMethodInstrumented(site, m, path)
				return nil
			}
		}
		return fmt.Errorf("instrument %s.%s: not wrapped by proxy: %w", path, name, domain.ErrNotInstrumentable)
	}

	owner := walker.Unwrap(v)
	if !owner.IsValid() || owner.Kind() != reflect.Pointer || owner.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("instrument %s.%s: %T is not a pointer to struct: %w", path, name, obj, domain.ErrNotInstrumentable)
	}
	f, ok := owner.Elem().Type().FieldByName(name)
	if !ok || !f.IsExported() || f.Type.Kind() != reflect.Func {
		return fmt.Errorf("instrument %s.%s: no exported func field: %w", path, name, domain.ErrNotInstrumentable)
	}
	if !in.wrapField(owner, f, path) {
		return fmt.Errorf("instrument %s.%s: %w", path, name, domain.ErrNotInstrumentable)
	}
	return nil
}

// InstrumentRoot instruments the graph under root and returns a proxy for
// root implementing iface. Calling one of rootMethods on the proxy opens a
// root context for the observer unless the call already runs inside one.
func (in *Interceptor) InstrumentRoot(root any, iface reflect.Type, rootMethods ...string) (any, error) {
	proxy, ok := in.proxies.Lookup(iface)
	if !ok {
		return nil, fmt.Errorf("instrument root %v: %w", iface, domain.ErrNoProxy)
	}
	rv := reflect.ValueOf(root)
	if !rv.IsValid() || !rv.Type().Implements(iface) {
		return nil, fmt.Errorf("instrument root: %T does not implement %v: %w", root, iface, domain.ErrNotInstrumentable)
	}

	isRoot := make(map[string]bool, len(rootMethods))
	for _, name := range rootMethods {
		if _, ok := iface.MethodByName(name); !ok {
			return nil, fmt.Errorf("instrument root: %v has no method %s: %w", iface, name, domain.ErrNotInstrumentable)
		}
		isRoot[name] = true
	}

	if err := in.InstrumentObject(root, domain.RootPath()); err != nil {
		return nil, err
	}

	obj := walker.Unwrap(rv)
	site := newSite(obj.Interface(), rv)
	in.bind(site, obj.Type(), iface, proxy.Params, isRoot)
	for _, m := range site.wrapped {
		in.observer.OnMethodInstrumented(site, m, domain.RootPath())
	}
	return proxy.New(site), nil
}

func (in *Interceptor) visit(n walker.Node) error {
	in.wrapSlot(n)
	in.wrapFields(n)
	return nil
}

// wrapSlot installs a proxy in an interface-typed slot, or reports the proxy
// already there.
func (in *Interceptor) wrapSlot(n walker.Node) {
	if n.SlotType == nil || n.SlotType.Kind() != reflect.Interface {
		return
	}
	if site, ok := proxySite(n.Slot); ok {
		for _, m := range site.wrapped {
			in.observer.OnMethodInstrumented(site, m, n.Path)
		}
		return
	}

	proxy, ok := in.proxies.Lookup(n.SlotType)
	if !ok {
		in.logger.Debug("instrument: no proxy for slot type", "path", n.Path.String(), "type", n.SlotType.String())
		return
	}
	if n.Set == nil {
		in.logger.Debug("instrument: slot is not settable", "path", n.Path.String())
		return
	}

	raw := n.Slot
	for raw.Kind() == reflect.Interface {
		raw = raw.Elem()
	}
	site := newSite(n.Object(), raw)
	in.bind(site, n.Value.Type(), n.SlotType, proxy.Params, nil)
	if len(site.wrapped) == 0 {
		return
	}
	if !n.Set(reflect.ValueOf(proxy.New(site))) {
		in.logger.Warn("instrument: proxy does not fit slot", "path", n.Path.String(), "type", n.SlotType.String())
		return
	}
	for _, m := range site.wrapped {
		in.observer.OnMethodInstrumented(site, m, n.Path)
	}
}

// bind wraps the methods of iface that qualify on a value of type t.
func (in *Interceptor) bind(site *Site, t, iface reflect.Type, params map[string][]string, isRoot map[string]bool) {
	for i := 0; i < iface.NumMethod(); i++ {
		name := iface.Method(i).Name
		orig := site.recv.MethodByName(name)
		if !orig.IsValid() {
			continue
		}
		decl := declaringType(t, name)
		if !isRoot[name] && !in.qualifies(decl, name, site.object) {
			continue
		}
		if !takesContext(orig.Type()) {
			in.logger.Debug("instrument: method has no context parameter", "method", name, "type", t.String())
			continue
		}
		m := domain.MethodOf(decl, name)
		site.add(m, in.wrap(site, m, orig, params[name], isRoot[name]))
	}
}

// qualifies applies the policy's method rule and the rule that a method
// promoted from an excluded embedded type stays plain.
func (in *Interceptor) qualifies(decl reflect.Type, name string, obj any) bool {
	if !in.policy.MethodAllowed(name, obj) {
		return false
	}
	return in.policy.MatchType(decl)
}
