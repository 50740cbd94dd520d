package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/db"
	"github.com/mezonai/starnotary/store"
)

const testAddr = "1HZwkjkeaoZfTSaJxDw6aKkxp45agDiEzN"

func newTestChain(t *testing.T) (*Blockchain, store.BlockStore, *clock.Mock) {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	bs, err := store.NewGenericBlockStore(provider)
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	mock := clock.NewMock()
	mock.Set(time.Unix(1544562431, 0))
	bc, err := NewBlockchain(bs, WithClock(mock))
	require.NoError(t, err)
	return bc, bs, mock
}

func appendN(t *testing.T, bc *Blockchain, mock *clock.Mock, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		mock.Add(time.Second)
		_, err := bc.Append(context.Background(), block.Body{
			ClaimantAddress: testAddr,
			Payload:         []byte(fmt.Sprintf(`{"star":%d}`, i)),
		})
		require.NoError(t, err)
	}
}

// rewrite replaces the stored bytes at h with the output of mutate.
func rewrite(t *testing.T, bs store.BlockStore, h uint64, mutate func(b *block.Block)) {
	t.Helper()
	data, err := bs.Get(h)
	require.NoError(t, err)
	b, err := block.Deserialize(data)
	require.NoError(t, err)
	mutate(b)
	data, err = block.Serialize(b, true)
	require.NoError(t, err)
	require.NoError(t, bs.Put(h, data))
}

func TestNewBlockchainRejectsNilStore(t *testing.T) {
	_, err := NewBlockchain(nil)
	assert.Error(t, err)
}

func TestInitializeIsIdempotent(t *testing.T) {
	bc, _, _ := newTestChain(t)
	ctx := context.Background()

	genesis, err := bc.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, genesis)
	assert.Equal(t, uint64(0), genesis.Height)
	assert.Empty(t, genesis.PreviousBlockHash)
	assert.Equal(t, []byte(block.GenesisSentinel), genesis.Body.Payload)
	assert.Empty(t, genesis.Body.ClaimantAddress)

	again, err := bc.Initialize(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)

	h, err := bc.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h)
}

func TestAppendLinksAndTimestamps(t *testing.T) {
	bc, _, mock := newTestChain(t)
	ctx := context.Background()

	genesis, err := bc.Initialize(ctx)
	require.NoError(t, err)

	mock.Add(30 * time.Second)
	blk, err := bc.Append(ctx, block.Body{ClaimantAddress: testAddr, Payload: []byte("payload")})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), blk.Height)
	assert.Equal(t, genesis.Hash, blk.PreviousBlockHash)
	assert.Equal(t, mock.Now().Unix(), blk.Time)

	want, err := block.ComputeHash(blk)
	require.NoError(t, err)
	assert.Equal(t, want, blk.Hash)

	stored, err := bc.GetByHeight(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, blk, stored)
}

func TestAppendCopiesPayload(t *testing.T) {
	bc, _, _ := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)

	payload := []byte("abc")
	blk, err := bc.Append(ctx, block.Body{ClaimantAddress: testAddr, Payload: payload})
	require.NoError(t, err)
	payload[0] = 'z'

	ok, err := bc.ValidateBlock(ctx, blk.Height)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), blk.Body.Payload)
}

func TestValidateChainCleanForAnyLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			bc, _, mock := newTestChain(t)
			_, err := bc.Initialize(context.Background())
			require.NoError(t, err)
			appendN(t, bc, mock, n)

			offending, err := bc.ValidateChain(context.Background())
			require.NoError(t, err)
			assert.Empty(t, offending)
		})
	}
}

func TestValidateBlockDetectsBodyTamper(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 4)

	rewrite(t, bs, 2, func(b *block.Block) { b.Body.Payload[0] ^= 0x20 })

	ok, err := bc.ValidateBlock(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, offending)
}

func TestValidateChainReportsBrokenLink(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 4)

	// Block 3 keeps a valid hash of its own but points at an unrelated parent.
	rewrite(t, bs, 3, func(b *block.Block) {
		b.PreviousBlockHash = "0000000000000000000000000000000000000000000000000000000000000000"
		h, err := block.ComputeHash(b)
		require.NoError(t, err)
		b.Hash = h
	})

	ok, err := bc.ValidateBlock(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	// 2 for the link into 3, and 3 because block 4 still names 3's old hash.
	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, offending)
}

func TestValidateChainReportsNonHexLink(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 3)

	rewrite(t, bs, 2, func(b *block.Block) { b.PreviousBlockHash = "tampered" })

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, offending)
}

func TestValidateBlockNonHexHashIsMismatch(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 2)

	rewrite(t, bs, 1, func(b *block.Block) { b.Hash = "DEADBEEF" })

	ok, err := bc.ValidateBlock(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, offending)
}

func TestValidateChainReportsHeightOnce(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 3)

	// A forged hash both fails verification and breaks the link from block 2.
	rewrite(t, bs, 1, func(b *block.Block) {
		b.Hash = "1111111111111111111111111111111111111111111111111111111111111111"
	})

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, offending)
}

func TestValidateChainChecksLastBlockHash(t *testing.T) {
	bc, bs, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 2)

	rewrite(t, bs, 2, func(b *block.Block) { b.Time++ })

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, offending)
}

func TestGetByClaimantOrderedWithoutGenesis(t *testing.T) {
	bc, _, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)

	other := "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"
	for i, addr := range []string{testAddr, other, testAddr, testAddr} {
		mock.Add(time.Second)
		_, err := bc.Append(ctx, block.Body{ClaimantAddress: addr, Payload: []byte{byte(i)}})
		require.NoError(t, err)
	}

	blocks, err := bc.GetByClaimant(ctx, testAddr)
	require.NoError(t, err)
	heights := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		heights = append(heights, b.Height)
	}
	assert.Equal(t, []uint64{1, 3, 4}, heights)

	// Genesis carries no claimant, so the empty address matches nothing.
	none, err := bc.GetByClaimant(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestGetByHash(t *testing.T) {
	bc, _, mock := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)
	appendN(t, bc, mock, 3)

	want, err := bc.GetByHeight(ctx, 2)
	require.NoError(t, err)

	got, err := bc.GetByHash(ctx, want.Hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = bc.GetByHash(ctx, "ffff")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetByHeightNotFoundVersusCodec(t *testing.T) {
	bc, bs, _ := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)

	_, err = bc.GetByHeight(ctx, 9)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, bs.Put(1, []byte("not a block")))
	_, err = bc.GetByHeight(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCodec))
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = bc.ValidateChain(ctx)
	assert.True(t, errors.Is(err, ErrCodec))
}

func TestConcurrentAppends(t *testing.T) {
	bc, _, _ := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)

	const k = 16
	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := bc.Append(ctx, block.Body{ClaimantAddress: testAddr, Payload: []byte{byte(i)}})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	h, err := bc.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(k+1), h)

	for i := uint64(0); i <= k; i++ {
		b, err := bc.GetByHeight(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, i, b.Height)
	}

	offending, err := bc.ValidateChain(ctx)
	require.NoError(t, err)
	assert.Empty(t, offending)
}

type failingPutStore struct {
	store.BlockStore
	err error
}

func (s *failingPutStore) Put(uint64, []byte) error { return s.err }

func TestAppendPropagatesStoreError(t *testing.T) {
	bc, bs, _ := newTestChain(t)
	ctx := context.Background()
	_, err := bc.Initialize(ctx)
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	broken, err := NewBlockchain(&failingPutStore{BlockStore: bs, err: diskFull})
	require.NoError(t, err)

	_, err = broken.Append(ctx, block.Body{ClaimantAddress: testAddr, Payload: []byte("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, diskFull))

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "put", se.Op)
	assert.Equal(t, uint64(1), se.Height)

	h, err := bc.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h)
}

func TestCanceledContext(t *testing.T) {
	bc, _, _ := newTestChain(t)
	_, err := bc.Initialize(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = bc.GetByHeight(ctx, 0)
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = bc.ValidateChain(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
