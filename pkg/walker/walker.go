package walker

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/aretw0/chainlens/internal/logging"
	"github.com/aretw0/chainlens/pkg/domain"
)

// Unwrapper is implemented by wrappers (such as instrumentation proxies)
// that stand in for another object. The walker matches and descends into
// the unwrapped object.
type Unwrapper interface {
	Unwrap() any
}

// Node is one object reachable from the walk root.
type Node struct {
	// Path locates the object from the root.
	Path domain.Path

	// Value is the object itself, with interfaces and wrappers removed.
	Value reflect.Value

	// Slot is the value stored at Path, which may be a wrapper.
	Slot reflect.Value

	// SlotType is the static type of the location holding the object
	// (e.g. an interface type for a field declared as one). It is nil for
	// the root.
	SlotType reflect.Type

	// Set replaces the value stored at Path. It is nil when the location
	// cannot be written (root, unaddressable struct, unexported field).
	Set func(reflect.Value) bool

	// Shared is true when the object was already reached through another
	// path. Shared nodes are not descended into.
	Shared bool
}

// Object returns the object as an interface value.
func (n Node) Object() any {
	if !n.Value.IsValid() || !n.Value.CanInterface() {
		return nil
	}
	return n.Value.Interface()
}

// Walker enumerates the objects of a graph that match a Policy.
type Walker struct {
	policy Policy
	logger *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger used to report skipped values.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// New creates a Walker for policy.
func New(policy Policy, opts ...Option) *Walker {
	w := &Walker{
		policy: policy,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Policy returns the policy the walker filters with.
func (w *Walker) Policy() Policy {
	return w.policy
}

// Walk calls visit for the root and for every reachable object that matches
// the policy, in depth-first order. It stops at the first error returned by
// visit. Walk never panics; a panic raised while walking is returned as an
// error.
func (w *Walker) Walk(root any, visit func(Node) error) error {
	return w.WalkAt(root, domain.RootPath(), visit)
}

// WalkAt is Walk for a sub-graph whose root lives at path. Node paths are
// reported relative to the app root.
func (w *Walker) WalkAt(root any, path domain.Path, visit func(Node) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("walk aborted: %v", r)
			w.logger.Error("walker: panic while walking", "err", err)
		}
	}()

	s := &walk{
		Walker:  w,
		visited: make(map[identity]bool),
		visit:   visit,
	}
	return s.object(Node{Path: path, Slot: reflect.ValueOf(root)})
}

type identity struct {
	t reflect.Type
	p uintptr
}

type walk struct {
	*Walker
	visited map[identity]bool
	visit   func(Node) error
}

func (s *walk) object(n Node) error {
	obj := Unwrap(n.Slot)
	if !obj.IsValid() {
		return nil
	}
	n.Value = obj

	if id, ok := identityOf(obj); ok {
		if s.visited[id] {
			n.Shared = true
			return s.visit(n)
		}
		s.visited[id] = true
	}

	if err := s.visit(n); err != nil {
		return err
	}
	return s.descend(n.Path, obj)
}

func (s *walk) descend(path domain.Path, obj reflect.Value) error {
	v := obj
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return s.fields(path, v)
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			return s.attributes(path, v)
		}
	}

	s.logger.Debug("walker: do not know how to walk object",
		"path", path.String(),
		"type", obj.Type().String(),
	)
	return nil
}

// fields walks the declared exported fields of a struct.
func (s *walk) fields(path domain.Path, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		if err := s.member(path.Field(f.Name), fv, fieldSetter(fv)); err != nil {
			return err
		}
	}
	return nil
}

// attributes walks a string-keyed map as an attribute bag. A key "_x" is
// skipped when "x" is also present, since both name the same logical value.
func (s *walk) attributes(path domain.Path, m reflect.Value) error {
	if m.IsNil() {
		return nil
	}
	keys := sortedKeys(m)
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k.String()] = true
	}
	for _, k := range keys {
		name := k.String()
		if strings.HasPrefix(name, "_") && present[name[1:]] {
			continue
		}
		if err := s.member(path.Key(name), m.MapIndex(k), mapSetter(m, k)); err != nil {
			return err
		}
	}
	return nil
}

// member handles one value held by an object.
func (s *walk) member(path domain.Path, slot reflect.Value, set func(reflect.Value) bool) error {
	val := Unwrap(slot)
	if !val.IsValid() || val.Kind() == reflect.String {
		return nil
	}

	if s.matches(val) {
		return s.object(Node{Path: path, Slot: slot, SlotType: slot.Type(), Set: set})
	}

	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			elem := val.Index(i)
			if !s.matches(Unwrap(elem)) {
				continue
			}
			var setElem func(reflect.Value) bool
			if elem.CanSet() {
				setElem = fieldSetter(elem)
			}
			node := Node{Path: path.Index(i), Slot: elem, SlotType: elem.Type(), Set: setElem}
			if err := s.object(node); err != nil {
				return err
			}
		}
	case reflect.Map:
		if val.IsNil() {
			return nil
		}
		for _, k := range sortedKeys(val) {
			elem := val.MapIndex(k)
			if !s.matches(Unwrap(elem)) {
				continue
			}
			node := Node{Path: path.Key(fmt.Sprint(k.Interface())), Slot: elem, SlotType: val.Type().Elem(), Set: mapSetter(val, k)}
			if err := s.object(node); err != nil {
				return err
			}
		}
	}
	return nil
}

// matches reports whether an unwrapped value is an object the policy
// includes. Functions and channels are never objects.
func (s *walk) matches(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.String:
		return false
	}
	return s.policy.MatchType(v.Type())
}

// Unwrap removes interface boxing and Unwrapper wrappers from v. It returns
// the zero Value for nil values.
func Unwrap(v reflect.Value) reflect.Value {
	for i := 0; i < 16; i++ {
		if !v.IsValid() {
			return v
		}
		switch v.Kind() {
		case reflect.Interface:
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
			continue
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if v.IsNil() {
				return reflect.Value{}
			}
		}
		if !v.CanInterface() {
			return v
		}
		u, ok := v.Interface().(Unwrapper)
		if !ok {
			return v
		}
		v = reflect.ValueOf(u.Unwrap())
	}
	return v
}

func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{t: v.Type(), p: v.Pointer()}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return identity{}, false
		}
		return identity{t: v.Type(), p: v.Pointer()}, true
	}
	return identity{}, false
}

func fieldSetter(fv reflect.Value) func(reflect.Value) bool {
	if !fv.CanSet() {
		return nil
	}
	return func(nv reflect.Value) bool {
		if !nv.IsValid() || !nv.Type().AssignableTo(fv.Type()) {
			return false
		}
		fv.Set(nv)
		return true
	}
}

func mapSetter(m, key reflect.Value) func(reflect.Value) bool {
	return func(nv reflect.Value) bool {
		if !nv.IsValid() || !nv.Type().AssignableTo(m.Type().Elem()) {
			return false
		}
		m.SetMapIndex(key, nv)
		return true
	}
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}
