package instrument

import (
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/walker"
)

// fieldKey identifies one func field of one struct.
type fieldKey struct {
	owner uintptr
	field string
}

type wrappedField struct {
	site    *Site
	method  domain.Method
	wrapper uintptr
}

// wrappedFields records the func fields wrapped in place, so a field is
// wrapped once however many apps reach its owner.
var wrappedFields sync.Map // fieldKey -> *wrappedField

// wrapFields wraps the func fields of n that the policy names.
func (in *Interceptor) wrapFields(n walker.Node) {
	owner := n.Value
	if owner.Kind() != reflect.Pointer || owner.IsNil() || owner.Elem().Kind() != reflect.Struct {
		return
	}
	st := owner.Elem().Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		if !in.policy.MethodAllowed(f.Name, n.Object()) {
			continue
		}
		in.wrapField(owner, f, n.Path)
	}
}

// wrapField wraps one func field of owner in place. It reports whether the
// field is wrapped when it returns.
func (in *Interceptor) wrapField(owner reflect.Value, f reflect.StructField, path domain.Path) bool {
	fv := owner.Elem().FieldByIndex(f.Index)
	if fv.IsNil() {
		return false
	}

	key := fieldKey{owner: owner.Pointer(), field: f.Name}
	if e, ok := wrappedFields.Load(key); ok {
		w := e.(*wrappedField)
		if funcIdentity(fv) == w.wrapper {
			in.observer.OnMethodInstrumented(w.site, w.method, path)
			return true
		}
	}

	if !fv.CanSet() {
		return false
	}
	if !takesContext(f.Type) {
		in.logger.Debug("instrument: func field has no context parameter", "path", path.String(), "field", f.Name)
		return false
	}

	site := newSite(owner.Interface(), owner)
	site.field = f.Name
	m := domain.MethodOf(owner.Type(), f.Name)
	orig := reflect.ValueOf(fv.Interface())
	wrapper := in.wrap(site, m, orig, fieldParams(f), false)
	site.add(m, wrapper)

	fv.Set(wrapper)
	wrappedFields.Store(key, &wrappedField{site: site, method: m, wrapper: funcIdentity(fv)})
	in.observer.OnMethodInstrumented(site, m, path)
	return true
}

// fieldParams reads parameter names from a `chainlens:"a,b"` struct tag.
func fieldParams(f reflect.StructField) []string {
	tag := f.Tag.Get("chainlens")
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// funcIdentity returns the closure pointer of a func value. Func values are
// not comparable and Value.Pointer only reports the shared code pointer of
// functions made by reflect.MakeFunc.
func funcIdentity(fn reflect.Value) uintptr {
	i := fn.Interface()
	return uintptr((*[2]unsafe.Pointer)(unsafe.Pointer(&i))[1])
}
