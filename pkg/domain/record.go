package domain

import (
	"encoding/json"
	"time"
)

// Perf holds the timing of a call.
type Perf struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the elapsed time between start and end.
func (p Perf) Duration() time.Duration {
	return p.EndTime.Sub(p.StartTime)
}

// CallRecord is the immutable capture of one instrumented call.
type CallRecord struct {
	// Args holds JSON-safe snapshots of the arguments, keyed by parameter
	// name. The receiver and the leading context.Context are excluded.
	Args map[string]any `json:"args"`

	// Rets is the JSON-safe snapshot of the non-error results: nil for none,
	// the value itself for one, a list for several. Streaming calls record
	// the list of values they produced.
	Rets any `json:"rets,omitempty"`

	// Error is the error message returned (or panic raised) by the call.
	Error string `json:"error,omitempty"`

	Perf Perf   `json:"perf"`
	PID  int    `json:"pid"`
	TID  uint64 `json:"tid"`

	// Stack runs from the root frame down to this call's own frame.
	Stack []Frame `json:"stack"`
}

// Top returns the frame of the call itself.
func (c CallRecord) Top() Frame {
	if len(c.Stack) == 0 {
		return Frame{}
	}
	return c.Stack[len(c.Stack)-1]
}

// Callers returns the incoming stack: every frame above this call.
func (c CallRecord) Callers() []Frame {
	if len(c.Stack) == 0 {
		return nil
	}
	return c.Stack[:len(c.Stack)-1]
}

// Failed reports whether the call ended in an error.
func (c CallRecord) Failed() bool {
	return c.Error != ""
}

// JSON converts the record into a tree of maps, slices and primitives.
func (c CallRecord) JSON() map[string]any {
	return toTree(c)
}

// Record is everything captured during one root invocation.
type Record struct {
	RecordID   string         `json:"record_id"`
	AppID      string         `json:"app_id"`
	MainInput  any            `json:"main_input,omitempty"`
	MainOutput any            `json:"main_output,omitempty"`
	MainError  string         `json:"main_error,omitempty"`
	Calls      []CallRecord   `json:"calls"`
	Perf       Perf           `json:"perf"`
	Tags       []string       `json:"tags,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	TS         time.Time      `json:"ts"`
}

// JSON converts the record into a tree of maps, slices and primitives.
func (r Record) JSON() map[string]any {
	return toTree(r)
}

// toTree relies on every field already holding JSON-safe snapshots, which
// the record assembler guarantees.
func toTree(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}
