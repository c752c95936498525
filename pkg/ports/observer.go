package ports

import (
	"context"

	"github.com/aretw0/chainlens/pkg/callstack"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/record"
)

// Observer is the side of an app that the instrumentation layer talks to.
type Observer interface {
	// LocatePath returns the path at which target's method lives in the
	// observer's graph. It returns false when the target is unknown or the
	// path no longer leads to it.
	callstack.Locator

	// OnMethodInstrumented is called every time the interceptor finds a
	// wrapped method in the observer's graph, whether it just wrapped it or
	// found it already wrapped.
	OnMethodInstrumented(target domain.Target, method domain.Method, path domain.Path)

	// ResolveRootContexts returns the root contexts of ctx owned by the observer.
	ResolveRootContexts(ctx context.Context) []*callstack.RootContext

	// OnCallRecorded is called after a call was appended to a root owned by
	// the observer.
	OnCallRecorded(ctx context.Context, root *callstack.RootContext, call domain.CallRecord)

	// OnRootComplete is called once the root method that opened root
	// returns. main holds the capture of the root call itself.
	OnRootComplete(ctx context.Context, root *callstack.RootContext, main record.Capture)
}
