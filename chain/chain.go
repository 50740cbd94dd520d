// Package chain is the integrity engine of the ledger: it builds blocks, links
// them by hash, persists them in a height-keyed store and audits the result.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/monitoring"
	"github.com/mezonai/starnotary/store"
)

// Blockchain owns the append-only sequence of blocks.
//
// Appends are serialized by mu: reading the current height, linking to the
// previous block and persisting happen as one critical section. Readers take
// the read side so a scan never sees a block that is only partially written.
type Blockchain struct {
	mu             sync.RWMutex
	bs             store.BlockStore
	clock          clock.Clock
	genesisPayload []byte
}

type Option func(*Blockchain)

// WithClock replaces the wall clock used for block timestamps.
func WithClock(c clock.Clock) Option {
	return func(bc *Blockchain) { bc.clock = c }
}

// WithGenesisPayload overrides the sentinel body of the genesis block.
func WithGenesisPayload(payload string) Option {
	return func(bc *Blockchain) {
		if payload != "" {
			bc.genesisPayload = []byte(payload)
		}
	}
}

func NewBlockchain(bs store.BlockStore, opts ...Option) (*Blockchain, error) {
	if bs == nil {
		return nil, fmt.Errorf("block store cannot be nil")
	}
	bc := &Blockchain{
		bs:             bs,
		clock:          clock.New(),
		genesisPayload: []byte(block.GenesisSentinel),
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc, nil
}

// Height returns the number of persisted blocks. It counts with a full scan.
func (bc *Blockchain) Height(ctx context.Context) (uint64, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height(ctx)
}

func (bc *Blockchain) height(ctx context.Context) (uint64, error) {
	var n uint64
	err := bc.bs.ScanAll(func(uint64, []byte) error {
		n++
		return ctx.Err()
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &StoreError{Op: "scan", Height: n, Err: err}
	}
	return n, nil
}

// Initialize creates the genesis block on an empty store. On a non-empty store
// it does nothing and returns a nil block.
func (bc *Blockchain) Initialize(ctx context.Context) (*block.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	h, err := bc.height(ctx)
	if err != nil {
		return nil, err
	}
	if h > 0 {
		logx.Info("CHAIN", "Genesis block already exists - cannot add new genesis block (height=", h, ")")
		monitoring.SetBlockHeight(h)
		return nil, nil
	}

	genesis, err := bc.appendLocked(ctx, block.Body{Payload: bc.genesisPayload})
	if err != nil {
		return nil, err
	}
	logx.Info("CHAIN", "Genesis block created hash=", genesis.Hash)
	return genesis, nil
}

// Append commits body as the next block and returns it. A non-nil error means
// nothing was committed.
func (bc *Blockchain) Append(ctx context.Context, body block.Body) (*block.Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.appendLocked(ctx, body)
}

func (bc *Blockchain) appendLocked(ctx context.Context, body block.Body) (*block.Block, error) {
	height, err := bc.height(ctx)
	if err != nil {
		return nil, err
	}

	blk := &block.Block{
		Height: height,
		Body: block.Body{
			ClaimantAddress: body.ClaimantAddress,
			Payload:         append([]byte(nil), body.Payload...),
		},
		Time: bc.clock.Now().Unix(),
	}

	if height > 0 {
		prev, err := bc.getByHeight(height - 1)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: block %d missing with height %d", ErrInconsistentStore, height-1, height)
			}
			return nil, err
		}
		blk.PreviousBlockHash = prev.Hash
	}

	if blk.Hash, err = block.ComputeHash(blk); err != nil {
		return nil, err
	}
	data, err := block.Serialize(blk, true)
	if err != nil {
		return nil, err
	}
	if err := bc.bs.Put(height, data); err != nil {
		logx.Error("CHAIN", "Failed to persist block ", height, ": ", err)
		return nil, &StoreError{Op: "put", Height: height, Err: err}
	}

	monitoring.SetBlockHeight(height + 1)
	monitoring.RecordBlockSizeBytes(len(data))
	logx.Info("CHAIN", fmt.Sprintf("Appended block height=%d hash=%s", height, blk.Hash))
	return blk, nil
}

// GetByHeight returns the block at h or ErrNotFound.
func (bc *Blockchain) GetByHeight(ctx context.Context, h uint64) (*block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.getByHeight(h)
}

func (bc *Blockchain) getByHeight(h uint64) (*block.Block, error) {
	data, err := bc.bs.Get(h)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get", Height: h, Err: err}
	}
	blk, err := block.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", h, err)
	}
	return blk, nil
}

// scan decodes every stored block in height order and hands it to fn. It must
// be called with mu held.
func (bc *Blockchain) scan(ctx context.Context, fn func(blk *block.Block) error) error {
	var (
		last    uint64
		cbError bool
	)
	err := bc.bs.ScanAll(func(height uint64, value []byte) error {
		last = height
		if err := ctx.Err(); err != nil {
			cbError = true
			return err
		}
		blk, err := block.Deserialize(value)
		if err != nil {
			cbError = true
			return fmt.Errorf("block %d: %w", height, err)
		}
		if blk.Height != height {
			cbError = true
			return fmt.Errorf("%w: block stored at %d claims height %d", ErrInconsistentStore, height, blk.Height)
		}
		if err := fn(blk); err != nil {
			cbError = true
			return err
		}
		return nil
	})
	if err != nil && !cbError {
		return &StoreError{Op: "scan", Height: last, Err: err}
	}
	return err
}

var errStopScan = errors.New("stop scan")

// GetByHash looks a block up by its hash. The lookup is a full scan, O(N).
func (bc *Blockchain) GetByHash(ctx context.Context, hash string) (*block.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	var found *block.Block
	err := bc.scan(ctx, func(blk *block.Block) error {
		if blk.Hash == hash {
			found = blk
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// GetByClaimant returns every non-genesis block whose envelope names address,
// in ascending height order. The lookup is a full scan, O(N).
func (bc *Blockchain) GetByClaimant(ctx context.Context, address string) ([]*block.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	blocks := make([]*block.Block, 0)
	err := bc.scan(ctx, func(blk *block.Block) error {
		if !blk.IsGenesis() && blk.Body.ClaimantAddress == address {
			blocks = append(blocks, blk)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ValidateBlock recomputes the hash of block h and compares it to the stored
// one. A mismatch is reported as false, not as an error.
func (bc *Blockchain) ValidateBlock(ctx context.Context, h uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	blk, err := bc.getByHeight(h)
	if err != nil {
		return false, err
	}
	return validHash(blk)
}

func validHash(blk *block.Block) (bool, error) {
	want, err := block.ComputeHash(blk)
	if err != nil {
		return false, err
	}
	return want == blk.Hash, nil
}

// ValidateChain audits the whole chain in one ordered pass and returns the
// heights that fail, ascending and without duplicates. Height h is reported
// when its own hash does not verify or when block h+1 does not link to it.
// The last block has no successor and is only hash-checked.
func (bc *Blockchain) ValidateChain(ctx context.Context) ([]uint64, error) {
	start := time.Now()
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	offending := make([]uint64, 0)
	mark := func(h uint64) {
		if n := len(offending); n > 0 && offending[n-1] == h {
			return
		}
		offending = append(offending, h)
	}

	var (
		prev     *block.Block
		expected uint64
	)
	err := bc.scan(ctx, func(blk *block.Block) error {
		if blk.Height != expected {
			return fmt.Errorf("%w: expected height %d, found %d", ErrInconsistentStore, expected, blk.Height)
		}
		expected++

		if prev != nil && prev.Hash != blk.PreviousBlockHash {
			logx.Warn("CHAIN", fmt.Sprintf("Broken link between %d and %d", prev.Height, blk.Height))
			mark(prev.Height)
		}

		ok, err := validHash(blk)
		if err != nil {
			return err
		}
		if !ok || (blk.IsGenesis() && blk.PreviousBlockHash != "") {
			logx.Warn("CHAIN", "Block ", blk.Height, " failed hash verification")
			mark(blk.Height)
		}

		prev = blk
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordChainValidation(len(offending), time.Since(start))
	if len(offending) == 0 {
		logx.Info("CHAIN", "Chain validated: ", expected, " blocks, no errors detected")
	} else {
		logx.Warn("CHAIN", fmt.Sprintf("Chain validation found %d offending blocks: %v", len(offending), offending))
	}
	return offending, nil
}
