package instrument_test

import (
	"context"
	"fmt"
	"reflect"
	"net"
	"sync"
	"testing"

	"github.com/aretw0/chainlens/pkg/callstack"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/instrument"
	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var stepType = reflect.TypeFor[Step]()

func instrumentRoot(t *testing.T, o *observer, root any) Step {
	t.Helper()
	in := instrument.New(testPolicy, o, instrument.WithRegistry(testRegistry()))
	proxy, err := in.InstrumentRoot(root, stepType, "Run")
	require.NoError(t, err)
	return proxy.(Step)
}

func TestInstrumentRoot_LeafRoot(t *testing.T) {
	o := newObserver()
	app := instrumentRoot(t, o, &upper{})

	out, err := app.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "HI", out)

	roots := o.roots()
	require.Len(t, roots, 1)
	require.Len(t, roots[0].calls, 1)

	call := roots[0].calls[0]
	assert.Equal(t, []string{"app::Run"}, frames(call))
	assert.Equal(t, map[string]any{"in": "hi"}, call.Args)
	assert.Equal(t, "HI", call.Rets)
	assert.Empty(t, call.Error)
	assert.NotZero(t, call.TID)
	assert.False(t, call.Perf.EndTime.Before(call.Perf.StartTime))
	assert.Equal(t, "HI", roots[0].main.Rets)
}

func TestInstrumentRoot_NestedCalls(t *testing.T) {
	o := newObserver()
	p := &pipeline{
		Steps: []Step{&upper{}, &derived{}},
		Hook: func(_ context.Context, text string) (string, error) {
			return "<" + text + ">", nil
		},
	}
	app := instrumentRoot(t, o, p)

	out, err := app.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "<GO!>", out)

	roots := o.roots()
	require.Len(t, roots, 1)
	calls := roots[0].calls
	require.Len(t, calls, 4, "three nested calls plus the root")

	assert.Equal(t, []string{"app::Run", "app.Steps[0]::Run"}, frames(calls[0]))
	assert.Equal(t, []string{"app::Run", "app.Steps[1]::Run"}, frames(calls[1]))
	assert.Equal(t, []string{"app::Run", "app::Hook"}, frames(calls[2]))
	assert.Equal(t, []string{"app::Run"}, frames(calls[3]))

	for _, c := range calls[:3] {
		assert.Equal(t, calls[3].Stack, c.Callers(), "every stack extends the root frame")
	}

	assert.Equal(t, map[string]any{"text": "GO!"}, calls[2].Args)
	assert.Equal(t, "github.com/aretw0/chainlens/pkg/instrument_test.base", calls[1].Top().Method.Class)
	assert.Equal(t, "github.com/aretw0/chainlens/pkg/instrument_test.pipeline", calls[2].Top().Method.Class)
	assert.Equal(t, 4, o.calls)
}

func TestInstrument_ProxiesKeepInterface(t *testing.T) {
	o := newObserver()
	p := &pipeline{Steps: []Step{&upper{}}, Main: &upper{}}
	instrumentRoot(t, o, p)

	_, isProxy := p.Steps[0].(registry.Proxied)
	assert.True(t, isProxy)
	_, isProxy = p.Main.(registry.Proxied)
	assert.True(t, isProxy)

	// Outside any root a wrapped method is a plain call.
	out, err := p.Main.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "X", out)
	assert.Empty(t, o.roots())
	assert.Zero(t, o.calls)
}

func TestInstrument_Idempotent(t *testing.T) {
	shared := &upper{}
	p := &pipeline{Steps: []Step{shared}}

	first := newObserver()
	app1 := instrumentRoot(t, first, p)
	wrapped := p.Steps[0]

	second := newObserver()
	app2 := instrumentRoot(t, second, p)

	assert.Equal(t, wrapped, p.Steps[0], "existing proxy is not wrapped again")
	assert.Equal(t, []string{"app.Steps[0]::Run", "app::Run"}, first.reports())
	assert.Equal(t, []string{"app.Steps[0]::Run", "app::Run"}, second.reports())

	for _, app := range []Step{app1, app2} {
		_, err := app.Run(context.Background(), "a")
		require.NoError(t, err)
	}
	require.Len(t, first.roots(), 1)
	require.Len(t, second.roots(), 1)
	assert.Len(t, first.roots()[0].calls, 2, "one step call and the root, no double recording")
	assert.Len(t, second.roots()[0].calls, 2)
}

func TestInstrument_FuncFieldWrappedOnce(t *testing.T) {
	p := &pipeline{Hook: func(_ context.Context, text string) (string, error) { return text, nil }}

	o := newObserver()
	in := instrument.New(testPolicy, o, instrument.WithRegistry(testRegistry()))
	require.NoError(t, in.InstrumentObject(p, domain.RootPath()))
	require.NoError(t, in.InstrumentMethod("Hook", p, domain.RootPath()))
	require.NoError(t, in.InstrumentObject(p, domain.RootPath()))
	assert.Equal(t, []string{"app::Hook", "app::Hook", "app::Hook"}, o.reports())

	proxy, err := in.InstrumentRoot(p, stepType, "Run")
	require.NoError(t, err)
	_, err = proxy.(Step).Run(context.Background(), "x")
	require.NoError(t, err)

	calls := o.roots()[0].calls
	require.Len(t, calls, 2, "a hook wrapped twice would be recorded twice")
	assert.Equal(t, []string{"app::Run", "app::Hook"}, frames(calls[0]))
}

func TestInstrumentMethod_Errors(t *testing.T) {
	in := instrument.New(testPolicy, newObserver(), instrument.WithRegistry(testRegistry()))

	err := in.InstrumentMethod("Hook", pipeline{}, domain.RootPath())
	assert.ErrorIs(t, err, domain.ErrNotInstrumentable)

	err = in.InstrumentMethod("Missing", &pipeline{}, domain.RootPath())
	assert.ErrorIs(t, err, domain.ErrNotInstrumentable)

	err = in.InstrumentMethod("Hook", &pipeline{}, domain.RootPath())
	assert.ErrorIs(t, err, domain.ErrNotInstrumentable, "nil func fields cannot be wrapped")
}

func TestInstrumentRoot_Errors(t *testing.T) {
	in := instrument.New(testPolicy, newObserver(), instrument.WithRegistry(registry.NewRegistry()))
	_, err := in.InstrumentRoot(&upper{}, stepType, "Run")
	assert.ErrorIs(t, err, domain.ErrNoProxy)

	in = instrument.New(testPolicy, newObserver(), instrument.WithRegistry(testRegistry()))
	_, err = in.InstrumentRoot(counter{}, stepType, "Run")
	assert.ErrorIs(t, err, domain.ErrNotInstrumentable)

	_, err = in.InstrumentRoot(&upper{}, stepType, "Walk")
	assert.ErrorIs(t, err, domain.ErrNotInstrumentable)
}

func TestInstrument_ErrorsAreRecordedAndReturned(t *testing.T) {
	o := newObserver()
	app := instrumentRoot(t, o, &pipeline{Steps: []Step{&upper{Fail: true}}})

	_, err := app.Run(context.Background(), "x")
	assert.Same(t, errBoom, err)

	calls := o.roots()[0].calls
	require.Len(t, calls, 2)
	assert.Equal(t, "boom", calls[0].Error)
	assert.Equal(t, "boom", calls[1].Error)
	assert.Same(t, errBoom, o.roots()[0].main.Err)
}

func TestInstrument_PanicsAreRecordedAndRepanicked(t *testing.T) {
	o := newObserver()
	app := instrumentRoot(t, o, &pipeline{Steps: []Step{&upper{Panic: true}}})

	assert.PanicsWithValue(t, "upper exploded", func() {
		_, _ = app.Run(context.Background(), "x")
	})

	calls := o.roots()[0].calls
	require.Len(t, calls, 2)
	assert.Equal(t, "panic: upper exploded", calls[0].Error)
	assert.Equal(t, "panic: upper exploded", calls[1].Error)
}

func TestInstrument_StalePathSkipsRoot(t *testing.T) {
	o := newObserver()
	p := &pipeline{Steps: []Step{&upper{}}}
	app := instrumentRoot(t, o, p)

	site := p.Steps[0].(registry.Proxied).Dispatcher().(domain.Target)
	o.markStale(site)

	out, err := app.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "X", out)

	calls := o.roots()[0].calls
	require.Len(t, calls, 1, "only the root is recorded")
	assert.Equal(t, []string{"app::Run"}, frames(calls[0]))
}

func TestInstrument_SkipsMethodsPromotedFromExcludedTypes(t *testing.T) {
	o := newObserver()
	in := instrument.New(testPolicy, o, instrument.WithRegistry(testRegistry()))

	holder := &struct{ R Resolver }{R: hostStep{Resolver: &net.Resolver{}}}
	require.NoError(t, in.InstrumentObject(holder, domain.RootPath()))

	assert.Equal(t, []string{"app.R::Run"}, o.reports())
}

func TestInstrument_ConcurrentRootsNeverShareRecords(t *testing.T) {
	o := newObserver()
	app := instrumentRoot(t, o, &pipeline{Steps: []Step{&upper{}, &derived{}}})

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := app.Run(context.Background(), fmt.Sprintf("in-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	roots := o.roots()
	require.Len(t, roots, n)
	for _, r := range roots {
		require.Len(t, r.calls, 3)
		input := r.calls[2].Args["in"]
		assert.Equal(t, input, r.calls[0].Args["in"], "every call of a root belongs to the same invocation")
		assert.Equal(t, r.calls[0].TID, r.calls[2].TID)
	}
}

func TestInstrument_RootInsideExistingRootDoesNotReopen(t *testing.T) {
	o := newObserver()
	app := instrumentRoot(t, o, &pipeline{Steps: []Step{&upper{}}})

	outer := callstack.NewRoot(o)
	ctx := callstack.WithRoot(context.Background(), outer)
	_, err := app.Run(ctx, "x")
	require.NoError(t, err)

	assert.Empty(t, o.roots(), "no new root was opened")
	calls := outer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"app::Run", "app.Steps[0]::Run"}, frames(calls[0]))
}

func TestInstrument_NestedApps(t *testing.T) {
	innerObs := newObserver()
	inner := instrumentRoot(t, innerObs, &upper{})

	outerObs := newObserver()
	outer := instrumentRoot(t, outerObs, &pipeline{Steps: []Step{inner}})

	out, err := outer.Run(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "X", out)

	require.Len(t, innerObs.roots(), 1)
	innerCalls := innerObs.roots()[0].calls
	require.Len(t, innerCalls, 1)
	assert.Equal(t, []string{"app::Run"}, frames(innerCalls[0]), "the inner app sees its own root")

	require.Len(t, outerObs.roots(), 1)
	outerCalls := outerObs.roots()[0].calls
	require.Len(t, outerCalls, 2)
	assert.Equal(t, []string{"app::Run", "app.Steps[0]::Run"}, frames(outerCalls[0]))
}
