package domain

import "context"

// Hooks are callbacks fired by an app while it records.
// Hooks run on the caller's goroutine and must not block.
type Hooks struct {
	// OnCall fires once per CallRecord appended to a root owned by the app.
	OnCall func(context.Context, *CallRecord)

	// OnRecord fires when a root invocation completes.
	OnRecord func(context.Context, *Record)
}

// MergeHooks returns hooks that invoke each of the given hooks in order.
func MergeHooks(all ...Hooks) Hooks {
	return Hooks{
		OnCall: func(ctx context.Context, c *CallRecord) {
			for _, h := range all {
				if h.OnCall != nil {
					h.OnCall(ctx, c)
				}
			}
		},
		OnRecord: func(ctx context.Context, r *Record) {
			for _, h := range all {
				if h.OnRecord != nil {
					h.OnRecord(ctx, r)
				}
			}
		},
	}
}
