package chain

import (
	"fmt"
	"sort"
)

// Values carries the named inputs and outputs flowing through a chain.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// Merge returns a copy of v overwritten with the entries of o.
func (v Values) Merge(o Values) Values {
	out := v.Clone()
	for k, x := range o {
		out[k] = x
	}
	return out
}

// Text returns the value of key rendered as a string.
func (v Values) Text(key string) (string, error) {
	x, ok := v[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingInput, key)
	}
	if s, ok := x.(string); ok {
		return s, nil
	}
	return fmt.Sprint(x), nil
}

// Keys returns the keys of v, sorted.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
