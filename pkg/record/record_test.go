package record_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/aretw0/chainlens/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	Name string
	Next *node
}

type withChan struct {
	Label string `json:"label"`
	Ch    chan int
	Fn    func()
	skip  int
}

type badMarshaler struct{}

func (badMarshaler) MarshalJSON() ([]byte, error) { return nil, errors.New("refuse") }

type panicMarshaler struct{}

func (panicMarshaler) MarshalJSON() ([]byte, error) { panic("boom") }

func TestSnapshot_Primitives(t *testing.T) {
	assert.Nil(t, record.Snapshot(nil))
	assert.Equal(t, "x", record.Snapshot("x"))
	assert.Equal(t, int64(5), record.Snapshot(5))
	assert.Equal(t, int64(7), record.Snapshot(int32(7)))
	assert.Equal(t, 1.5, record.Snapshot(float32(1.5)))
	assert.Equal(t, true, record.Snapshot(true))
	assert.Equal(t, "bad", record.Snapshot(errors.New("bad")))
}

func TestSnapshot_Structured(t *testing.T) {
	in := map[string]any{"x": 5, "tags": []string{"a", "b"}, "nested": struct{ A int }{A: 1}}
	got := record.Snapshot(in)
	assert.Equal(t, map[string]any{
		"x":      int64(5),
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"A": int64(1)},
	}, got)
}

func TestSnapshot_DegradesGracefully(t *testing.T) {
	t.Run("channel", func(t *testing.T) {
		assert.True(t, record.IsPlaceholder(record.Snapshot(make(chan int))))
	})

	t.Run("partially representable struct", func(t *testing.T) {
		got := record.Snapshot(withChan{Label: "l", Ch: make(chan int), Fn: func() {}})
		m, ok := got.(map[string]any)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "l", m["label"])
		assert.True(t, record.IsPlaceholder(m["Ch"]))
		assert.True(t, record.IsPlaceholder(m["Fn"]))
		assert.NotContains(t, m, "skip")
	})

	t.Run("cycle", func(t *testing.T) {
		n := &node{Name: "a"}
		n.Next = n
		got := record.Snapshot(n)
		m, ok := got.(map[string]any)
		require.True(t, ok, "got %T", got)
		assert.Equal(t, "a", m["Name"])
		assert.True(t, record.IsPlaceholder(m["Next"]))
	})

	t.Run("failing marshaler", func(t *testing.T) {
		assert.True(t, record.IsPlaceholder(record.Snapshot(badMarshaler{})))
	})

	t.Run("non-finite floats", func(t *testing.T) {
		assert.Equal(t, "NaN", record.Snapshot(math.NaN()))
		assert.Equal(t, "+Inf", record.Snapshot(float32(math.Inf(1))))

		got := record.Snapshot(map[string]any{"lo": math.Inf(-1), "ok": 2.5, "list": []float64{1, math.NaN()}})
		assert.Equal(t, map[string]any{"lo": "-Inf", "ok": 2.5, "list": []any{1.0, "NaN"}}, got)

		_, err := json.Marshal(got)
		assert.NoError(t, err)
	})

	t.Run("panicking marshaler", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.True(t, record.IsPlaceholder(record.Snapshot(panicMarshaler{})))
		})
	})
}

func TestArgs(t *testing.T) {
	args := []reflect.Value{
		reflect.ValueOf(context.Background()),
		reflect.ValueOf(map[string]any{"x": 5}),
		reflect.ValueOf("extra"),
	}
	// The first value must carry the static context type to be dropped.
	args[0] = reflect.New(reflect.TypeFor[context.Context]()).Elem()
	args[0].Set(reflect.ValueOf(context.Background()))

	got := record.Args([]string{"input"}, args)
	assert.Equal(t, map[string]any{
		"input": map[string]any{"x": int64(5)},
		"arg1":  "extra",
	}, got)
}

func TestRets(t *testing.T) {
	errType := reflect.TypeFor[error]()
	nilErr := reflect.Zero(errType)
	someErr := reflect.New(errType).Elem()
	someErr.Set(reflect.ValueOf(errors.New("failed")))

	rets, err := record.Rets([]reflect.Value{reflect.ValueOf("out"), nilErr})
	assert.Equal(t, "out", rets)
	assert.NoError(t, err)

	rets, err = record.Rets([]reflect.Value{reflect.ValueOf(1), reflect.ValueOf("two"), someErr})
	assert.Equal(t, []any{int64(1), "two"}, rets)
	assert.EqualError(t, err, "failed")

	rets, err = record.Rets(nil)
	assert.Nil(t, rets)
	assert.NoError(t, err)
}

func TestAssemble(t *testing.T) {
	start := time.Now()
	stack := []domain.Frame{{Path: domain.RootPath(), Method: domain.Method{Name: "Run"}}}
	c := record.Capture{
		Args:  map[string]any{"x": int64(5)},
		Rets:  "done",
		Err:   errors.New("oops"),
		Start: start,
		End:   start.Add(time.Millisecond),
		TID:   record.GoroutineID(),
	}

	rec := record.Assemble(c, stack)
	stack[0].Method.Name = "mutated"

	assert.Equal(t, "oops", rec.Error)
	assert.Equal(t, "Run", rec.Stack[0].Method.Name)
	assert.NotZero(t, rec.PID)
	assert.NotZero(t, rec.TID)
	assert.Equal(t, time.Millisecond, rec.Perf.Duration())

	c.Panic = "kaboom"
	assert.Equal(t, "panic: kaboom", record.Assemble(c, stack).Error)
}
