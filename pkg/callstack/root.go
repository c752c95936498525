package callstack

import (
	"context"
	"sync"

	"github.com/aretw0/chainlens/pkg/domain"
)

// Locator resolves the path of an instrumented location as seen by one
// observer. It returns false when the observer no longer knows the target.
type Locator interface {
	LocatePath(target domain.Target, method domain.Method) (domain.Path, bool)
}

// RootContext accumulates the calls of one root invocation.
// It is created by the root and discarded once the root returns.
type RootContext struct {
	owner Locator

	mu     sync.Mutex
	calls  []domain.CallRecord
	closed bool
}

// NewRoot creates an empty root context owned by owner.
func NewRoot(owner Locator) *RootContext {
	return &RootContext{owner: owner}
}

// Owner returns the observer that requested recording.
func (r *RootContext) Owner() Locator {
	return r.owner
}

// Append adds a completed call. Calls are kept in completion order.
// It reports false, keeping nothing, once the root is closed.
func (r *RootContext) Append(rec domain.CallRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.calls = append(r.calls, rec)
	return true
}

// Close marks the root as returned. Calls completing afterwards are refused.
func (r *RootContext) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Closed reports whether Close was called.
func (r *RootContext) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Calls returns a copy of the calls appended so far.
func (r *RootContext) Calls() []domain.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CallRecord, len(r.calls))
	copy(out, r.calls)
	return out
}

// Len returns the number of calls appended so far.
func (r *RootContext) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type rootsKey struct{}

type stacksKey struct{}

// WithRoot returns a context in which root is recording, in addition to any
// root already carried by ctx.
func WithRoot(ctx context.Context, root *RootContext) context.Context {
	prev := Roots(ctx)
	next := make([]*RootContext, len(prev), len(prev)+1)
	copy(next, prev)
	return context.WithValue(ctx, rootsKey{}, append(next, root))
}

// Roots returns the roots recording in ctx, outermost first.
// The returned slice must not be modified.
func Roots(ctx context.Context) []*RootContext {
	if ctx == nil {
		return nil
	}
	roots, _ := ctx.Value(rootsKey{}).([]*RootContext)
	return roots
}

// RootsOwnedBy returns the roots in ctx whose owner is owner.
func RootsOwnedBy(ctx context.Context, owner Locator) []*RootContext {
	var out []*RootContext
	for _, r := range Roots(ctx) {
		if r.owner == owner {
			out = append(out, r)
		}
	}
	return out
}

// stacks maps each root to the frames of the nearest enclosing instrumented
// call. Values stored in a context are never mutated.
type stacks map[*RootContext][]domain.Frame

// StackFor returns the partial stack recorded for root by the nearest
// enclosing instrumented call in ctx, or nil if this is the first
// instrumented frame for root on this path.
func StackFor(ctx context.Context, root *RootContext) []domain.Frame {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(stacksKey{}).(stacks)
	return s[root]
}

// WithFrames returns a context whose partial stacks are those of ctx with
// the given per-root stacks replacing them.
func WithFrames(ctx context.Context, frames map[*RootContext][]domain.Frame) context.Context {
	prev, _ := ctx.Value(stacksKey{}).(stacks)
	next := make(stacks, len(prev)+len(frames))
	for r, s := range prev {
		next[r] = s
	}
	for r, s := range frames {
		next[r] = s
	}
	return context.WithValue(ctx, stacksKey{}, next)
}

// Push appends frame to the partial stack of root in ctx and returns the
// resulting full stack. The stack stored in ctx is not modified.
func Push(ctx context.Context, root *RootContext, frame domain.Frame) []domain.Frame {
	parent := StackFor(ctx, root)
	out := make([]domain.Frame, len(parent), len(parent)+1)
	copy(out, parent)
	return append(out, frame)
}
