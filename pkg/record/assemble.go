package record

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"time"

	"github.com/aretw0/chainlens/pkg/domain"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

var pid = os.Getpid()

// Capture is the raw data gathered around one execution of a wrapped call.
// It is shared by all observers of that call; only the stack differs.
type Capture struct {
	Args  map[string]any
	Rets  any
	Err   error
	Panic any
	Start time.Time
	End   time.Time
	TID   uint64
}

// ErrorString returns the message recorded for the capture, if any.
func (c Capture) ErrorString() string {
	switch {
	case c.Panic != nil:
		return fmt.Sprintf("panic: %v", c.Panic)
	case c.Err != nil:
		return c.Err.Error()
	default:
		return ""
	}
}

// Assemble builds the immutable record of c as seen through stack.
func Assemble(c Capture, stack []domain.Frame) domain.CallRecord {
	frames := make([]domain.Frame, len(stack))
	copy(frames, stack)
	return domain.CallRecord{
		Args:  c.Args,
		Rets:  c.Rets,
		Error: c.ErrorString(),
		Perf:  domain.Perf{StartTime: c.Start, EndTime: c.End},
		PID:   pid,
		TID:   c.TID,
		Stack: frames,
	}
}

// Args snapshots call arguments keyed by parameter name. A leading
// context.Context is dropped; names are taken from names in order and
// default to arg0, arg1, ... for the remainder.
func Args(names []string, args []reflect.Value) map[string]any {
	if len(args) > 0 && args[0].Type() == contextType {
		args = args[1:]
	}
	out := make(map[string]any, len(args))
	for i, a := range args {
		name := "arg" + strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		out[name] = Snapshot(valueInterface(a))
	}
	return out
}

// Rets snapshots the non-error results of a call and extracts its error.
// A trailing result of type error is treated as the call's error.
func Rets(results []reflect.Value) (any, error) {
	var err error
	if n := len(results); n > 0 && results[n-1].Type() == errorType {
		if e, ok := results[n-1].Interface().(error); ok {
			err = e
		}
		results = results[:n-1]
	}
	switch len(results) {
	case 0:
		return nil, err
	case 1:
		return Snapshot(valueInterface(results[0])), err
	default:
		out := make([]any, len(results))
		for i, r := range results {
			out[i] = Snapshot(valueInterface(r))
		}
		return out, err
	}
}

func valueInterface(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// GoroutineID returns the id of the calling goroutine, or 0 if it cannot be
// determined.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:..."
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
