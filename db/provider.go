// Package db holds the ordered key-value backends a block store can sit on.
// Backends are append-only from the ledger's point of view: nothing in this
// package deletes a key.
package db

import "errors"

// ErrRocksDBUnavailable is returned when the binary was built without the
// rocksdb tag.
var ErrRocksDBUnavailable = errors.New("rocksdb support not compiled in, build with -tags rocksdb")

// DatabaseProvider is a byte-keyed store.
type DatabaseProvider interface {
	// Get returns the value stored at key. A missing key yields (nil, nil).
	Get(key []byte) ([]byte, error)

	// Put durably stores value at key before returning.
	Put(key, value []byte) error

	Close() error
}

// IterableProvider adds ordered prefix scans.
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix calls fn for every key starting with prefix, in ascending
	// byte order of the key, until fn returns false. Slices passed to fn are
	// owned by the callee.
	IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error
}
