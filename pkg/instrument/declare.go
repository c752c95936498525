package instrument

import (
	"reflect"
	"runtime"
)

// declaringType returns the type that declares method name for values of
// type t: t itself, or the embedded type the method is promoted from.
func declaringType(t reflect.Type, name string) reflect.Type {
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct || declares(base, name) {
		return base
	}

	seen := map[reflect.Type]bool{base: true}
	level := []reflect.Type{base}
	for len(level) > 0 {
		var next []reflect.Type
		for _, st := range level {
			for i := 0; i < st.NumField(); i++ {
				f := st.Field(i)
				if !f.Anonymous {
					continue
				}
				ft := f.Type
				for ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Interface {
					if _, ok := ft.MethodByName(name); ok {
						return ft
					}
					continue
				}
				if declares(ft, name) {
					return ft
				}
				if ft.Kind() == reflect.Struct && !seen[ft] {
					seen[ft] = true
					next = append(next, ft)
				}
			}
		}
		level = next
	}
	return base
}

// declares reports whether t or *t has a method name of its own. Methods
// promoted through embedding are compiled as wrappers the runtime reports
// at "<autogenerated>".
func declares(t reflect.Type, name string) bool {
	for _, c := range []reflect.Type{t, reflect.PointerTo(t)} {
		m, ok := c.MethodByName(name)
		if !ok {
			continue
		}
		fn := runtime.FuncForPC(m.Func.Pointer())
		if fn == nil {
			continue
		}
		if file, _ := fn.FileLine(fn.Entry()); file != "<autogenerated>" {
			return true
		}
	}
	return false
}
