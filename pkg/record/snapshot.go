package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// maxDepth bounds the reflective fallback on deeply nested values.
const maxDepth = 32

const placeholderPrefix = "<unrecordable "

// Placeholder returns the value recorded in place of something that cannot
// be represented as JSON.
func Placeholder(t reflect.Type) string {
	name := "nil"
	if t != nil {
		name = t.String()
	}
	return placeholderPrefix + name + ">"
}

// IsPlaceholder reports whether v was produced by Placeholder.
func IsPlaceholder(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, placeholderPrefix)
}

// Snapshot converts v into a tree made only of map[string]any, []any,
// string, bool, int64, uint64, float64 and nil. NaN and infinities become
// the strings "NaN", "+Inf" and "-Inf". Values that cannot be represented
// (channels, funcs, cycles, failing marshalers) are replaced by a
// placeholder. Snapshot never panics.
func Snapshot(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = Placeholder(reflect.TypeOf(v))
		}
	}()

	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int64, uint64:
		return x
	case float64:
		return jsonFloat(x)
	case error:
		return x.Error()
	case context.Context:
		return Placeholder(reflect.TypeOf(v))
	}

	if tree, ok := viaJSON(v); ok {
		return tree
	}
	return snapshotValue(reflect.ValueOf(v), 0, map[uintptr]bool{})
}

// viaJSON round-trips v through encoding/json so custom marshalers and json
// tags are honored.
func viaJSON(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, false
	}
	return normalizeNumbers(tree), true
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}

// snapshotValue is the reflective fallback used when the value as a whole
// cannot be marshaled; it salvages every representable part.
func snapshotValue(rv reflect.Value, depth int, seen map[uintptr]bool) any {
	if !rv.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return Placeholder(rv.Type())
	}

	if rv.CanInterface() {
		switch rv.Type().Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			if rv.IsNil() {
				return nil
			}
		}
		if implementsMarshaler(rv.Type()) {
			if tree, ok := viaJSON(rv.Interface()); ok {
				return tree
			}
			return Placeholder(rv.Type())
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return jsonFloat(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return snapshotValue(rv.Elem(), depth+1, seen)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return Placeholder(rv.Type())
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		return snapshotValue(rv.Elem(), depth+1, seen)
	case reflect.Struct:
		return snapshotStruct(rv, depth, seen)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return Placeholder(rv.Type())
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(safeInterface(iter.Key()))] = snapshotValue(iter.Value(), depth+1, seen)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = snapshotValue(rv.Index(i), depth+1, seen)
		}
		return out
	default:
		return Placeholder(rv.Type())
	}
}

// jsonFloat spells out the floats JSON has no number for.
func jsonFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

func snapshotStruct(rv reflect.Value, depth int, seen map[uintptr]bool) any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = snapshotValue(rv.Field(i), depth+1, seen)
	}
	return out
}

func safeInterface(v reflect.Value) any {
	if v.CanInterface() {
		return v.Interface()
	}
	return v.String()
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[interface{ MarshalText() ([]byte, error) }]()
)

func implementsMarshaler(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

// SortedKeys returns the keys of m in order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
