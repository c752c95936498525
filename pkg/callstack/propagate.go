package callstack

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Detach returns a context that carries the correlation state of ctx (and
// every other value) but is never canceled. Use it for work that outlives
// the caller but must still be recorded.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Inherit copies the correlation state of from onto to, keeping the
// deadline, cancellation and other values of to. It is the propagation step
// for units of work that are handed a fresh context by some other library.
func Inherit(to, from context.Context) context.Context {
	if roots := Roots(from); len(roots) > 0 {
		to = context.WithValue(to, rootsKey{}, roots)
	}
	if s, ok := from.Value(stacksKey{}).(stacks); ok {
		to = context.WithValue(to, stacksKey{}, s)
	}
	return to
}

// Go runs fn on a new goroutine with ctx, so instrumented calls made by fn
// are attributed to the caller's roots and stack.
// The returned channel is closed once fn returns.
func Go(ctx context.Context, fn func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return done
}

// Group runs goroutines that inherit the correlation state of the context
// the group was created with. It wraps errgroup.Group.
type Group struct {
	g   *errgroup.Group
	ctx context.Context
}

// WithGroup returns a Group and a derived context that is canceled when the
// first goroutine fails or Wait returns.
func WithGroup(ctx context.Context) (*Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	return &Group{g: g, ctx: gctx}, gctx
}

// SetLimit limits the number of active goroutines in the group.
func (g *Group) SetLimit(n int) {
	g.g.SetLimit(n)
}

// Go starts fn with the group's context.
func (g *Group) Go(fn func(ctx context.Context) error) {
	ctx := g.ctx
	g.g.Go(func() error {
		return fn(ctx)
	})
}

// Wait blocks until all goroutines return and reports the first error.
func (g *Group) Wait() error {
	return g.g.Wait()
}
