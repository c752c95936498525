package instrument_test

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/aretw0/chainlens/pkg/callstack"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/record"
	"github.com/aretw0/chainlens/pkg/registry"
	"github.com/aretw0/chainlens/pkg/walker"
)

var errBoom = errors.New("boom")

// Step is the interface of the components under test.
type Step interface {
	Run(ctx context.Context, in string) (string, error)
}

// Counter streams the numbers 1..n.
type Counter interface {
	Count(ctx context.Context, n int) (<-chan int, error)
}

// Resolver mixes a promoted stdlib method with a local one.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	Run(ctx context.Context, in string) (string, error)
}

type stepProxy struct{ registry.Handle }

func (p stepProxy) Run(ctx context.Context, in string) (string, error) {
	return registry.Fn[func(context.Context, string) (string, error)](p.Handle, "Run")(ctx, in)
}

type counterProxy struct{ registry.Handle }

func (p counterProxy) Count(ctx context.Context, n int) (<-chan int, error) {
	return registry.Fn[func(context.Context, int) (<-chan int, error)](p.Handle, "Count")(ctx, n)
}

type resolverProxy struct{ registry.Handle }

func (p resolverProxy) LookupHost(ctx context.Context, host string) ([]string, error) {
	return registry.Fn[func(context.Context, string) ([]string, error)](p.Handle, "LookupHost")(ctx, host)
}

func (p resolverProxy) Run(ctx context.Context, in string) (string, error) {
	return registry.Fn[func(context.Context, string) (string, error)](p.Handle, "Run")(ctx, in)
}

func testRegistry() *registry.Registry {
	r := registry.NewRegistry()
	registry.Register(r, func(h registry.Handle) Step { return stepProxy{h} }, map[string][]string{"Run": {"in"}})
	registry.Register(r, func(h registry.Handle) Counter { return counterProxy{h} }, map[string][]string{"Count": {"n"}})
	registry.Register(r, func(h registry.Handle) Resolver { return resolverProxy{h} }, nil)
	return r
}

var testPolicy = walker.Policy{
	Packages: []string{"github.com/aretw0/chainlens/pkg/instrument"},
	Methods: map[string]walker.MethodFilter{
		"Run":        walker.Always,
		"Count":      walker.Always,
		"LookupHost": walker.Always,
		"Hook":       walker.Always,
	},
}

// upper upper-cases its input.
type upper struct {
	Fail  bool
	Panic bool
}

func (u *upper) Run(_ context.Context, in string) (string, error) {
	if u.Panic {
		panic("upper exploded")
	}
	if u.Fail {
		return "", errBoom
	}
	return strings.ToUpper(in), nil
}

// pipeline runs its steps in order, then its hook.
type pipeline struct {
	Steps []Step
	Main  Step
	Hook  func(ctx context.Context, text string) (string, error) `chainlens:"text"`
}

func (p *pipeline) Run(ctx context.Context, in string) (string, error) {
	var err error
	for _, s := range p.Steps {
		if in, err = s.Run(ctx, in); err != nil {
			return "", err
		}
	}
	if p.Main != nil {
		if in, err = p.Main.Run(ctx, in); err != nil {
			return "", err
		}
	}
	if p.Hook != nil {
		return p.Hook(ctx, in)
	}
	return in, nil
}

// counter streams 1..n, closing early when ctx is done.
type counter struct{}

func (counter) Count(ctx context.Context, n int) (<-chan int, error) {
	if n < 0 {
		return nil, errBoom
	}
	out := make(chan int)
	go func() {
		defer close(out)
		for i := 1; i <= n; i++ {
			select {
			case out <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type base struct{}

func (base) Run(_ context.Context, in string) (string, error) { return in + "!", nil }

// derived gets Run from base.
type derived struct{ base }

// hostStep gets LookupHost from net.Resolver, outside the policy.
type hostStep struct {
	*net.Resolver
}

func (hostStep) Run(_ context.Context, in string) (string, error) { return in, nil }

// observer is a minimal app: it remembers the first path reported for each
// wrapped method and collects completed roots.
type observer struct {
	mu        sync.Mutex
	paths     map[domain.Target]map[domain.Method]domain.Path
	reported  []string
	stale     map[domain.Target]bool
	calls     int
	completed []completion
}

type completion struct {
	calls []domain.CallRecord
	main  record.Capture
}

func newObserver() *observer {
	return &observer{
		paths: make(map[domain.Target]map[domain.Method]domain.Path),
		stale: make(map[domain.Target]bool),
	}
}

func (o *observer) LocatePath(target domain.Target, method domain.Method) (domain.Path, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale[target] {
		return nil, false
	}
	p, ok := o.paths[target][method]
	return p, ok
}

func (o *observer) OnMethodInstrumented(target domain.Target, method domain.Method, path domain.Path) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reported = append(o.reported, path.String()+"::"+method.Name)
	if o.paths[target] == nil {
		o.paths[target] = make(map[domain.Method]domain.Path)
	}
	if _, ok := o.paths[target][method]; !ok {
		o.paths[target][method] = path
	}
}

func (o *observer) ResolveRootContexts(ctx context.Context) []*callstack.RootContext {
	return callstack.RootsOwnedBy(ctx, o)
}

func (o *observer) OnCallRecorded(context.Context, *callstack.RootContext, domain.CallRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
}

func (o *observer) OnRootComplete(_ context.Context, root *callstack.RootContext, main record.Capture) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, completion{calls: root.Calls(), main: main})
}

func (o *observer) markStale(target domain.Target) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale[target] = true
}

func (o *observer) roots() []completion {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]completion(nil), o.completed...)
}

func (o *observer) reports() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.reported...)
}

func frames(c domain.CallRecord) []string {
	out := make([]string, len(c.Stack))
	for i, f := range c.Stack {
		out[i] = f.String()
	}
	return out
}
