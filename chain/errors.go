package chain

import (
	"errors"
	"fmt"

	"github.com/mezonai/starnotary/block"
)

var (
	// ErrNotFound is returned when no block matches a height or hash query.
	ErrNotFound = errors.New("chain: block not found")

	// ErrStore matches every *StoreError.
	ErrStore = errors.New("chain: store failure")

	// ErrCodec is returned (wrapped) when a stored block cannot be decoded.
	ErrCodec = block.ErrCodec

	// ErrInconsistentStore means the stored heights are not the contiguous
	// range [0, N-1] the chain maintains.
	ErrInconsistentStore = errors.New("chain: stored heights are not contiguous")
)

// StoreError wraps a failure of the underlying ordered store.
type StoreError struct {
	Op     string
	Height uint64
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("chain: store %s at height %d: %v", e.Op, e.Height, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
