// Package kvstore abstracts the external byte-oriented key-value store the
// registry persists into. The store offers only Get and Set; there is no
// native list or query operation, so higher layers build their own index on
// top of well-known keys.
package kvstore

import "context"

// Keys used by the registry. No other persisted layout is in scope.
const (
	// IndexKey holds the JSON array of every record identifier ever created.
	IndexKey = "index"
	// RecordKeyPrefix prefixes per-record keys.
	RecordKeyPrefix = "record_"
)

// RecordKey builds the storage key for a record id.
func RecordKey(id string) string { return RecordKeyPrefix + id }

// Store is the adapter contract over the external key-value store. Both calls
// may be slow and may fail independently; two Sets in sequence are
// individually durable but never transactional as a pair.
//
// Get returns sentinel.ErrNotFound for absent keys and sentinel.ErrUnavailable
// when the store is unreachable. Set returns sentinel.ErrRejected when the
// store declines the write.
type Store interface {
	// IsAvailable reports whether the store can serve requests. Callers must
	// probe before reads and treat false as "no data available", not an error.
	IsAvailable(ctx context.Context) bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Swapper is an optional extension for adapters that can apply a
// read-modify-write atomically. The update callback receives the current
// value (nil when the key is absent) and returns the replacement. Adapters
// without this extension leave callers on the documented last-writer-wins
// read-then-set path.
type Swapper interface {
	Swap(ctx context.Context, key string, update func(old []byte) ([]byte, error)) error
}
