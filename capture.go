package chainlens

import (
	"context"
	"sync"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/record"
)

// Capture collects the records an app completes within one context.
type Capture struct {
	app *App

	mu      sync.Mutex
	records []*domain.Record
}

type captureKey struct{}

type metaKey struct{}

// Capture returns a context that collects every record a completes while
// running under it.
func (a *App) Capture(ctx context.Context) (context.Context, *Capture) {
	c := &Capture{app: a}
	prev, _ := ctx.Value(captureKey{}).([]*Capture)
	next := make([]*Capture, len(prev), len(prev)+1)
	copy(next, prev)
	return context.WithValue(ctx, captureKey{}, append(next, c)), c
}

// WithRecord runs fn under a capture and returns the last record it
// produced along with fn's error. The record is nil when fn never called a
// root method of a.
func (a *App) WithRecord(ctx context.Context, fn func(ctx context.Context) error) (*domain.Record, error) {
	ctx, c := a.Capture(ctx)
	err := fn(ctx)
	rec, _ := c.Last()
	return rec, err
}

// Records returns the captured records in completion order.
func (c *Capture) Records() []*domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Record(nil), c.records...)
}

// Last returns the most recently captured record.
func (c *Capture) Last() (*domain.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return nil, false
	}
	return c.records[len(c.records)-1], true
}

func (c *Capture) add(rec *domain.Record) {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
}

func capturesFor(ctx context.Context, a *App) []*Capture {
	all, _ := ctx.Value(captureKey{}).([]*Capture)
	var out []*Capture
	for _, c := range all {
		if c.app == a {
			out = append(out, c)
		}
	}
	return out
}

// WithMeta returns a context whose records carry key=value in their Meta.
func WithMeta(ctx context.Context, key string, value any) context.Context {
	prev, _ := ctx.Value(metaKey{}).(map[string]any)
	next := make(map[string]any, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	next[key] = record.Snapshot(value)
	return context.WithValue(ctx, metaKey{}, next)
}

func metaFrom(ctx context.Context) map[string]any {
	meta, _ := ctx.Value(metaKey{}).(map[string]any)
	return meta
}
