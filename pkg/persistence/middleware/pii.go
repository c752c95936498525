package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/ports"
)

// Mask replaces every masked value.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RecordStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching
// the patterns, anywhere in the main input and output, the meta data and the
// arguments and results of every call.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, rec *domain.Record) error {
	// Work on a copy: the caller may still hold the record.
	cloned := *rec
	cloned.MainInput = m.mask(rec.MainInput)
	cloned.MainOutput = m.mask(rec.MainOutput)
	if rec.Meta != nil {
		cloned.Meta = m.mask(rec.Meta).(map[string]any)
	}

	cloned.Calls = make([]domain.CallRecord, len(rec.Calls))
	for i, call := range rec.Calls {
		call.Rets = m.mask(call.Rets)
		if call.Args != nil {
			call.Args = m.mask(call.Args).(map[string]any)
		}
		cloned.Calls[i] = call
	}

	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, recordID string) (*domain.Record, error) {
	return m.next.Load(ctx, recordID)
}

func (m *piiMiddleware) Delete(ctx context.Context, recordID string) error {
	return m.next.Delete(ctx, recordID)
}

func (m *piiMiddleware) List(ctx context.Context, appID string) ([]string, error) {
	return m.next.List(ctx, appID)
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// mask returns a masked deep copy of v. Snapshots only hold maps, slices and
// primitives, so anything else is returned as is.
func (m *piiMiddleware) mask(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			if m.matches(k) {
				out[k] = Mask
				continue
			}
			out[k] = m.mask(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = m.mask(sub)
		}
		return out
	default:
		return v
	}
}
