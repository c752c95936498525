package domain

import "reflect"

// Method identifies an instrumented method by the type that declares it and
// its name.
type Method struct {
	// Class is the qualified name of the declaring type, e.g.
	// "github.com/aretw0/chainlens/pkg/chain.LLMChain". When a method is
	// promoted from an embedded type, Class names the embedded type.
	Class string `json:"class"`
	Name  string `json:"name"`
}

// MethodOf builds a Method for name declared on t.
func MethodOf(t reflect.Type, name string) Method {
	return Method{Class: TypeName(t), Name: name}
}

// String renders the method as Class.Name.
func (m Method) String() string {
	return m.Class + "." + m.Name
}

// TypeName returns the qualified name of t, dereferencing pointers.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Frame is one entry of a call stack: where the callee sits and which method ran.
type Frame struct {
	Path   Path   `json:"path"`
	Method Method `json:"method"`
}

// String renders the frame as path::Name.
func (f Frame) String() string {
	return f.Path.String() + "::" + f.Method.Name
}

// Target is the identity an observer uses to book-keep an instrumented
// location. Each wrapped slot in a graph has its own Target, so the same
// object reachable from two places yields two targets.
type Target interface {
	// Object returns the wrapped object (the method receiver).
	Object() any
}
