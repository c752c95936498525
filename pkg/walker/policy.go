package walker

import (
	"reflect"
	"sort"
	"strings"
)

// MethodFilter decides whether a method counts for a given owner object.
type MethodFilter func(obj any) bool

// Always accepts every owner.
func Always(any) bool { return true }

// Policy selects what gets instrumented.
type Policy struct {
	// Packages lists package path prefixes whose types are included.
	Packages []string

	// Types lists included types. Interface types include every type that
	// implements them.
	Types []reflect.Type

	// Methods maps method names to the predicate their owner must satisfy.
	Methods map[string]MethodFilter
}

// Merge returns the union of p and o. Predicates registered for the same
// method name by both are OR-ed.
func (p Policy) Merge(o Policy) Policy {
	out := Policy{
		Packages: append(append([]string{}, p.Packages...), o.Packages...),
		Types:    append(append([]reflect.Type{}, p.Types...), o.Types...),
		Methods:  make(map[string]MethodFilter, len(p.Methods)+len(o.Methods)),
	}
	for name, f := range p.Methods {
		out.Methods[name] = f
	}
	for name, f := range o.Methods {
		if prev, ok := out.Methods[name]; ok {
			a, b := prev, f
			out.Methods[name] = func(obj any) bool { return a(obj) || b(obj) }
			continue
		}
		out.Methods[name] = f
	}
	return out
}

// MatchPackage reports whether pkgPath falls under an included prefix.
func (p Policy) MatchPackage(pkgPath string) bool {
	if pkgPath == "" {
		return false
	}
	for _, prefix := range p.Packages {
		if strings.HasPrefix(pkgPath, prefix) {
			return true
		}
	}
	return false
}

// MatchType reports whether t (or the type it points to) is included by
// package or by type. Membership checks that panic count as no match.
func (p Policy) MatchType(t reflect.Type) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if t == nil {
		return false
	}
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if p.MatchPackage(base.PkgPath()) {
		return true
	}
	for _, inc := range p.Types {
		if inc == nil {
			continue
		}
		if t == inc || base == inc {
			return true
		}
		if inc.Kind() == reflect.Interface && t.Implements(inc) {
			return true
		}
	}
	return false
}

// MethodAllowed reports whether method name qualifies on obj.
func (p Policy) MethodAllowed(name string, obj any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	f, found := p.Methods[name]
	if !found {
		return false
	}
	return f == nil || f(obj)
}

// MethodNames returns the method names the policy names, sorted.
func (p Policy) MethodNames() []string {
	names := make([]string, 0, len(p.Methods))
	for name := range p.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
