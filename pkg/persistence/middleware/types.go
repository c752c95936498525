package middleware

import "github.com/aretw0/chainlens/pkg/ports"

// Middleware allows wrapping a RecordStore to add behavior.
type Middleware func(ports.RecordStore) ports.RecordStore

// Wrap applies the middlewares to store, the first one outermost. When store
// is also a ports.AppCatalog the result keeps serving app descriptions from
// it untouched.
func Wrap(store ports.RecordStore, mws ...Middleware) ports.RecordStore {
	wrapped := store
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	if catalog, ok := store.(ports.AppCatalog); ok {
		return &catalogStore{RecordStore: wrapped, AppCatalog: catalog}
	}
	return wrapped
}

type catalogStore struct {
	ports.RecordStore
	ports.AppCatalog
}
