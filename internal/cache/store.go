package cache

import "errors"

// ErrNotFound signals a missing cache entry. Callers treat it as a
// normal miss, never as a failure.
var ErrNotFound = errors.New("cache entry not found")

// ByteStore is the keyed blob area backing the render cache. Keys are
// page content hashes; there are no cross-key transactions.
type ByteStore interface {
	Read(key string) ([]byte, error)
	Write(key string, value []byte) error
	Delete(key string) error
	Flush() error
	Close() error
}
