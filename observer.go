package chainlens

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/chainlens/pkg/callstack"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/instrument"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/aretw0/chainlens/pkg/record"
	"github.com/google/uuid"
)

var _ ports.Observer = (*App)(nil)

// LocatePath returns the path of target's method in the app graph. A path
// that no longer leads to target is reported as stale and not used.
func (a *App) LocatePath(target domain.Target, method domain.Method) (domain.Path, bool) {
	a.mu.RLock()
	path, ok := a.paths[target][method]
	a.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !instrument.Located(a.proxy, target, path) {
		a.logger.Warn("stale path, call not recorded",
			"path", path.String(),
			"method", method.String(),
		)
		return nil, false
	}
	return path, true
}

// OnMethodInstrumented remembers where method lives. An object reached
// through several paths keeps the first one reported for the same target.
func (a *App) OnMethodInstrumented(target domain.Target, method domain.Method, path domain.Path) {
	a.mu.Lock()
	defer a.mu.Unlock()

	methods, ok := a.paths[target]
	if !ok {
		methods = make(map[domain.Method]domain.Path)
		a.paths[target] = methods
	}
	if _, ok := methods[method]; !ok {
		methods[method] = path
	}
}

// ResolveRootContexts returns the roots of ctx opened by this app.
func (a *App) ResolveRootContexts(ctx context.Context) []*callstack.RootContext {
	return callstack.RootsOwnedBy(ctx, a)
}

// OnCallRecorded fires the OnCall hook.
func (a *App) OnCallRecorded(ctx context.Context, _ *callstack.RootContext, call domain.CallRecord) {
	if a.hooks.OnCall == nil {
		return
	}
	a.safely("OnCall", func() { a.hooks.OnCall(ctx, &call) })
}

// OnRootComplete turns root into a Record, hands it to the captures of ctx
// and the OnRecord hook, then persists it. Failures past this point are
// logged and never reach the caller of the root.
func (a *App) OnRootComplete(ctx context.Context, root *callstack.RootContext, main record.Capture) {
	rec := &domain.Record{
		RecordID:   uuid.NewString(),
		AppID:      a.id,
		MainInput:  mainInput(main.Args),
		MainOutput: main.Rets,
		MainError:  main.ErrorString(),
		Calls:      root.Calls(),
		Perf:       domain.Perf{StartTime: main.Start, EndTime: main.End},
		Tags:       a.tags,
		Meta:       metaFrom(ctx),
		TS:         time.Now().UTC(),
	}

	a.remember(rec)
	for _, c := range capturesFor(ctx, a) {
		c.add(rec)
	}
	if a.hooks.OnRecord != nil {
		a.safely("OnRecord", func() { a.hooks.OnRecord(ctx, rec) })
	}

	if a.store == nil {
		return
	}
	if err := a.store.Save(callstack.Detach(ctx), rec); err != nil {
		a.logger.Error("failed to save record", "record_id", rec.RecordID, "err", err)
	}
}

// mainInput unwraps the single argument of the usual root signature.
func mainInput(args map[string]any) any {
	if len(args) == 1 {
		for _, v := range args {
			return v
		}
	}
	return args
}

func (a *App) safely(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("hook panicked", "hook", hook, "err", fmt.Sprint(r))
		}
	}()
	fn()
}
