package registry_test

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet(ctx context.Context, name string) string
}

type english struct{}

func (english) Greet(_ context.Context, name string) string { return "hello " + name }

type greeterProxy struct{ registry.Handle }

func (p greeterProxy) Greet(ctx context.Context, name string) string {
	return registry.Fn[func(context.Context, string) string](p.Handle, "Greet")(ctx, name)
}

// loud dispatches Greet to a function that shouts.
type loud struct{ target english }

func (l loud) Unwrap() any { return l.target }

func (l loud) Method(name string) reflect.Value {
	orig := reflect.ValueOf(l.target).MethodByName(name)
	return reflect.MakeFunc(orig.Type(), func(args []reflect.Value) []reflect.Value {
		out := orig.Call(args)
		return []reflect.Value{reflect.ValueOf(out[0].String() + "!")}
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := registry.NewRegistry()
	registry.Register(r, func(h registry.Handle) greeter { return greeterProxy{h} }, map[string][]string{
		"Greet": {"name"},
	})

	p, ok := r.Lookup(reflect.TypeFor[greeter]())
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, p.Params["Greet"])
	assert.Equal(t, []reflect.Type{reflect.TypeFor[greeter]()}, r.Interfaces())

	proxy := p.New(loud{}).(greeter)
	assert.Equal(t, "hello bob!", proxy.Greet(context.Background(), "bob"))

	proxied, ok := proxy.(registry.Proxied)
	require.True(t, ok)
	assert.Equal(t, english{}, proxied.Dispatcher().Unwrap())
	assert.Equal(t, english{}, proxy.(interface{ Unwrap() any }).Unwrap())
}

func TestRegistry_RejectsInvalidProxies(t *testing.T) {
	r := registry.NewRegistry()

	err := r.Register(registry.Proxy{Interface: reflect.TypeFor[english](), New: func(registry.Dispatcher) any { return nil }})
	assert.ErrorContains(t, err, "not an interface")

	err = r.Register(registry.Proxy{Interface: reflect.TypeFor[greeter]()})
	assert.ErrorContains(t, err, "missing constructor")

	_, ok := r.Lookup(reflect.TypeFor[greeter]())
	assert.False(t, ok)
}

func TestHandle_MarshalsWrappedObject(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}
	h := registry.NewHandle(stub{obj: target{Name: "wrapped"}})

	data, err := json.Marshal(greeterProxy{h})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"wrapped"}`, string(data))
}

type stub struct{ obj any }

func (s stub) Unwrap() any { return s.obj }

func (s stub) Method(string) reflect.Value { return reflect.Value{} }
