package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mezonai/starnotary/db"
	"github.com/mezonai/starnotary/logx"
)

// ErrNotFound is returned by Get when no value is stored at the height.
var ErrNotFound = errors.New("store: height not found")

// BlockStore is the persistent ordered store the chain is built on: serialized
// blocks keyed by height. It makes no assumption about the bytes it holds.
type BlockStore interface {
	Get(height uint64) ([]byte, error)
	Put(height uint64, value []byte) error
	// ScanAll visits every entry in ascending height order. A non-nil error
	// returned by fn stops the scan and is returned unchanged.
	ScanAll(fn func(height uint64, value []byte) error) error
	MustClose()
}

// GenericBlockStore is a database-agnostic implementation that uses IterableProvider
// This allows it to work with any database backend (LevelDB, bbolt, Redis, ...)
type GenericBlockStore struct {
	provider db.IterableProvider
}

// NewGenericBlockStore creates a new generic block store with the given provider
func NewGenericBlockStore(provider db.IterableProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	return &GenericBlockStore{provider: provider}, nil
}

// heightToBlockKey converts a height to a block storage key. Big endian keeps
// byte order equal to numeric order.
func heightToBlockKey(height uint64) []byte {
	key := make([]byte, len(PrefixBlock)+8)
	copy(key, PrefixBlock)
	binary.BigEndian.PutUint64(key[len(PrefixBlock):], height)
	return key
}

func blockKeyToHeight(key []byte) (uint64, error) {
	if len(key) != len(PrefixBlock)+8 {
		return 0, fmt.Errorf("invalid block key length: %d", len(key))
	}
	return binary.BigEndian.Uint64(key[len(PrefixBlock):]), nil
}

// Get retrieves the serialized block stored at height
func (s *GenericBlockStore) Get(height uint64) ([]byte, error) {
	value, err := s.provider.Get(heightToBlockKey(height))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", height, err)
	}
	if value == nil {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put stores the serialized block at height
func (s *GenericBlockStore) Put(height uint64, value []byte) error {
	if err := s.provider.Put(heightToBlockKey(height), value); err != nil {
		return fmt.Errorf("failed to store block %d: %w", height, err)
	}
	return nil
}

// ScanAll iterates every stored block in ascending height order
func (s *GenericBlockStore) ScanAll(fn func(height uint64, value []byte) error) error {
	var cbErr error
	err := s.provider.IteratePrefix([]byte(PrefixBlock), func(key, value []byte) bool {
		height, err := blockKeyToHeight(key)
		if err != nil {
			cbErr = err
			return false
		}
		if err := fn(height, value); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return fmt.Errorf("failed to scan blocks: %w", err)
	}
	return nil
}

// MustClose closes the underlying database provider
func (s *GenericBlockStore) MustClose() {
	if err := s.provider.Close(); err != nil {
		logx.Error("BLOCK_STORE", "Failed to close provider: ", err)
	}
}
