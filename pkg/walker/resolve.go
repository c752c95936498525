package walker

import (
	"fmt"
	"reflect"

	"github.com/aretw0/chainlens/pkg/domain"
)

// Resolve follows path from root through the live graph and returns the
// value stored at its end, wrappers included. It fails when an accessor no
// longer applies, which callers treat as a stale path.
func Resolve(root any, path domain.Path) (reflect.Value, error) {
	cur := reflect.ValueOf(root)
	for i, a := range path {
		obj := Unwrap(cur)
		for obj.IsValid() && obj.Kind() == reflect.Pointer {
			obj = Unwrap(obj.Elem())
		}
		if !obj.IsValid() {
			return reflect.Value{}, fmt.Errorf("resolve %s: nil at %s: %w", path, path[:i], domain.ErrStalePath)
		}

		next, ok := step(obj, a)
		if !ok {
			return reflect.Value{}, fmt.Errorf("resolve %s: no %s on %s: %w", path, a, obj.Type(), domain.ErrStalePath)
		}
		cur = next
	}
	return cur, nil
}

func step(obj reflect.Value, a domain.Accessor) (reflect.Value, bool) {
	switch a.Kind {
	case domain.AccessField:
		switch obj.Kind() {
		case reflect.Struct:
			f, ok := obj.Type().FieldByName(a.Name)
			if !ok || !f.IsExported() {
				return reflect.Value{}, false
			}
			return obj.FieldByIndex(f.Index), true
		case reflect.Map:
			return mapEntry(obj, a.Name)
		}
	case domain.AccessKey:
		if obj.Kind() == reflect.Map {
			return mapEntry(obj, a.Name)
		}
	case domain.AccessIndex:
		switch obj.Kind() {
		case reflect.Slice, reflect.Array:
			if a.Index < 0 || a.Index >= obj.Len() {
				return reflect.Value{}, false
			}
			return obj.Index(a.Index), true
		}
	}
	return reflect.Value{}, false
}

// mapEntry looks a key up by its rendered form, the way the walker names
// map entries.
func mapEntry(m reflect.Value, key string) (reflect.Value, bool) {
	if m.IsNil() {
		return reflect.Value{}, false
	}
	if m.Type().Key().Kind() == reflect.String {
		v := m.MapIndex(reflect.ValueOf(key).Convert(m.Type().Key()))
		return v, v.IsValid()
	}
	for _, k := range m.MapKeys() {
		if fmt.Sprint(k.Interface()) == key {
			return m.MapIndex(k), true
		}
	}
	return reflect.Value{}, false
}
