package instrument

import (
	"reflect"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/aretw0/chainlens/pkg/walker"
)

// Site is one wrapped location: a slot holding a proxy, a func field, or an
// app root. It is the Target observers book-keep paths against, so an
// object reachable through two slots has two sites.
type Site struct {
	object  any
	recv    reflect.Value
	field   string
	methods map[string]reflect.Value
	wrapped []domain.Method
}

var (
	_ domain.Target       = (*Site)(nil)
	_ registry.Dispatcher = (*Site)(nil)
)

func newSite(object any, recv reflect.Value) *Site {
	return &Site{
		object:  object,
		recv:    recv,
		methods: make(map[string]reflect.Value),
	}
}

// Object returns the object whose methods the site wraps.
func (s *Site) Object() any {
	return s.object
}

// Unwrap returns the object behind the site.
func (s *Site) Unwrap() any {
	return s.object
}

// Method returns the function bound to name: the recording wrapper when the
// method is instrumented, the plain method value otherwise.
func (s *Site) Method(name string) reflect.Value {
	if fn, ok := s.methods[name]; ok {
		return fn
	}
	return s.recv.MethodByName(name)
}

// Wrapped lists the methods the site records.
func (s *Site) Wrapped() []domain.Method {
	out := make([]domain.Method, len(s.wrapped))
	copy(out, s.wrapped)
	return out
}

func (s *Site) add(m domain.Method, fn reflect.Value) {
	s.methods[m.Name] = fn
	s.wrapped = append(s.wrapped, m)
}

// Located reports whether path, followed from root through the live graph,
// still leads to target. A proxy site must still sit in the slot at path; a
// func field site must still be owned by the object at path.
func Located(root any, target domain.Target, path domain.Path) bool {
	site, ok := target.(*Site)
	if !ok {
		return false
	}
	slot, err := walker.Resolve(root, path)
	if err != nil {
		return false
	}

	if site.field != "" {
		obj := walker.Unwrap(slot)
		return obj.IsValid() && obj.Kind() == reflect.Pointer && obj.Pointer() == site.recv.Pointer()
	}

	for slot.IsValid() && slot.Kind() == reflect.Interface && !slot.IsNil() {
		slot = slot.Elem()
	}
	if !slot.IsValid() || !slot.CanInterface() {
		return false
	}
	p, ok := slot.Interface().(registry.Proxied)
	return ok && p.Dispatcher() == registry.Dispatcher(site)
}

// proxySite returns the site behind v if v holds a proxy built by this
// package.
func proxySite(v reflect.Value) (*Site, bool) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	p, ok := v.Interface().(registry.Proxied)
	if !ok {
		return nil, false
	}
	site, ok := p.Dispatcher().(*Site)
	return site, ok
}
