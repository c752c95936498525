package domain

import "errors"

// ErrRecordNotFound is returned when a record ID cannot be found in a store.
var ErrRecordNotFound = errors.New("record not found")

// ErrNotInstrumentable is returned when a method cannot be wrapped at the
// requested location (unknown method, unexported field, unsettable slot).
var ErrNotInstrumentable = errors.New("method not instrumentable")

// ErrNoProxy is returned when no proxy factory is registered for a slot type.
var ErrNoProxy = errors.New("no proxy registered for type")

// ErrStalePath is returned when a path no longer resolves to the object it
// was recorded for.
var ErrStalePath = errors.New("stale path")

// ErrAppNotFound is returned when an app description cannot be found in a store.
var ErrAppNotFound = errors.New("app not found")
