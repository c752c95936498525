package instrument

import (
	"context"
	"reflect"
	"time"

	"github.com/aretw0/chainlens/pkg/callstack"
	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
	"github.com/aretw0/chainlens/pkg/record"
)

var contextType = reflect.TypeFor[context.Context]()

func takesContext(t reflect.Type) bool {
	return t.NumIn() > 0 && t.In(0) == contextType
}

// streams reports whether the first result of t is a receive-only channel.
func streams(t reflect.Type) bool {
	return t.NumOut() > 0 && t.Out(0).Kind() == reflect.Chan && t.Out(0).ChanDir() == reflect.RecvDir
}

// call is the recording wrapper of one method at one site.
type call struct {
	in     *Interceptor
	site   *Site
	method domain.Method
	orig   reflect.Value
	params []string
	root   bool
}

// invocation is the bookkeeping of one execution of a wrapped call.
type invocation struct {
	ctx     context.Context
	args    []reflect.Value
	opened  *callstack.RootContext
	frames  map[*callstack.RootContext][]domain.Frame
	capture record.Capture
}

// wrap returns a function of the same type as orig that records its calls.
func (in *Interceptor) wrap(site *Site, m domain.Method, orig reflect.Value, params []string, root bool) reflect.Value {
	c := &call{in: in, site: site, method: m, orig: orig, params: params, root: root}
	if streams(orig.Type()) {
		return reflect.MakeFunc(orig.Type(), c.stream)
	}
	return reflect.MakeFunc(orig.Type(), c.invoke)
}

// begin resolves the roots and frames of a call. It returns false when the
// call runs outside any root and must pass through.
func (c *call) begin(args []reflect.Value) (*invocation, bool) {
	ctx, _ := args[0].Interface().(context.Context)
	if ctx == nil {
		return nil, false
	}

	inv := &invocation{}
	if c.root && len(c.in.observer.ResolveRootContexts(ctx)) == 0 {
		inv.opened = callstack.NewRoot(c.in.observer)
		ctx = callstack.WithRoot(ctx, inv.opened)
	}

	roots := callstack.Roots(ctx)
	if len(roots) == 0 {
		return nil, false
	}

	inv.frames = make(map[*callstack.RootContext][]domain.Frame, len(roots))
	for _, r := range roots {
		path, ok := r.Owner().LocatePath(c.site, c.method)
		if !ok {
			c.in.logger.Debug("instrument: path not located, call not recorded for this app",
				"method", c.method.String(),
			)
			continue
		}
		inv.frames[r] = callstack.Push(ctx, r, domain.Frame{Path: path, Method: c.method})
	}

	inv.ctx = callstack.WithFrames(ctx, inv.frames)
	inv.args = make([]reflect.Value, len(args))
	inv.args[0] = reflect.ValueOf(inv.ctx)
	copy(inv.args[1:], args[1:])
	inv.capture = record.Capture{
		Args:  record.Args(c.params, args),
		Start: time.Now(),
		TID:   record.GoroutineID(),
	}
	return inv, true
}

func (c *call) invoke(args []reflect.Value) []reflect.Value {
	inv, ok := c.begin(args)
	if !ok {
		return c.callOrig(args)
	}

	results, panicked, p := c.safeCall(inv.args)
	inv.capture.End = time.Now()
	if panicked {
		inv.capture.Panic = p
	} else {
		inv.capture.Rets, inv.capture.Err = record.Rets(results)
	}
	c.finish(inv)

	if panicked {
		panic(p)
	}
	return results
}

// stream is the wrapper of methods returning a receive channel. The call is
// recorded once the channel is drained and closed, with the received values
// as its result. Canceling the call's context drops the record.
func (c *call) stream(args []reflect.Value) []reflect.Value {
	inv, ok := c.begin(args)
	if !ok {
		return c.callOrig(args)
	}

	results, panicked, p := c.safeCall(inv.args)
	if panicked {
		inv.capture.End = time.Now()
		inv.capture.Panic = p
		c.finish(inv)
		panic(p)
	}

	src := results[0]
	_, err := record.Rets(results[1:])
	if err != nil || src.IsNil() {
		inv.capture.End = time.Now()
		inv.capture.Err = err
		c.finish(inv)
		return results
	}

	out := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, src.Type().Elem()), 0)
	results[0] = out.Convert(src.Type())
	go c.forward(inv, src, out)
	return results
}

func (c *call) forward(inv *invocation, src, out reflect.Value) {
	defer out.Close()

	done := reflect.ValueOf(inv.ctx.Done())
	items := []any{}
	for {
		chosen, v, ok := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: src},
			{Dir: reflect.SelectRecv, Chan: done},
		})
		if chosen == 1 {
			c.drop(inv)
			return
		}
		if !ok {
			break
		}
		items = append(items, record.Snapshot(v.Interface()))

		chosen, _, _ = reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectSend, Chan: out, Send: v},
			{Dir: reflect.SelectRecv, Chan: done},
		})
		if chosen == 1 {
			c.drop(inv)
			return
		}
	}

	inv.capture.End = time.Now()
	inv.capture.Rets = items
	c.finish(inv)
}

func (c *call) drop(inv *invocation) {
	c.in.logger.Debug("instrument: stream canceled, call not recorded",
		"method", c.method.String(),
		"err", inv.ctx.Err(),
	)
}

// finish appends the call to every root that located it and completes the
// root the call opened. A root that already returned keeps nothing and its
// observer is not told about the call.
func (c *call) finish(inv *invocation) {
	for r, stack := range inv.frames {
		rec := record.Assemble(inv.capture, stack)
		if !r.Append(rec) {
			c.in.logger.Warn("instrument: call completed after its root, not recorded",
				"method", c.method.String(),
				"stack", len(stack),
			)
			continue
		}
		if obs, ok := r.Owner().(ports.Observer); ok {
			obs.OnCallRecorded(inv.ctx, r, rec)
		}
	}
	if inv.opened != nil {
		inv.opened.Close()
		c.in.observer.OnRootComplete(inv.ctx, inv.opened, inv.capture)
	}
}

func (c *call) callOrig(args []reflect.Value) []reflect.Value {
	if c.orig.Type().IsVariadic() {
		return c.orig.CallSlice(args)
	}
	return c.orig.Call(args)
}

func (c *call) safeCall(args []reflect.Value) (results []reflect.Value, panicked bool, p any) {
	defer func() {
		if r := recover(); r != nil {
			panicked, p = true, r
		}
	}()
	return c.callOrig(args), false, nil
}
