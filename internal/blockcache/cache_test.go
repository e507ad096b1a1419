package blockcache

import (
	"testing"

	"github.com/javi11/altmount/internal/jobqueue"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 16 * 1024

// testStorage is a minimal StorageHandle for tests.
type testStorage string

func (s testStorage) StorageID() string { return string(s) }

// fakeAllocator is a fixed-capacity BufferAllocator that counts outstanding
// buffers against its cap and hands out a freshly made block-sized buffer on
// each call, without pulling in internal/bufferpool's retry/metrics machinery.
type fakeAllocator struct {
	cap    int
	out    int
	allocs int
}

func newFakeAllocator(capacity int) *fakeAllocator {
	return &fakeAllocator{cap: capacity}
}

func (a *fakeAllocator) AllocateBuffer() ([]byte, bool) {
	if a.out >= a.cap {
		return nil, false
	}
	a.out++
	a.allocs++
	return make([]byte, testBlockSize), true
}

func (a *fakeAllocator) FreeBuffer(buf []byte) {
	if len(buf) == 0 {
		return
	}
	a.out--
}

func newTestCache(t *testing.T, capacity int) (*Cache, *fakeAllocator) {
	t.Helper()
	alloc := newFakeAllocator(capacity)
	settings := DefaultSettings()
	settings.CacheSize = capacity
	settings.ReadCacheLineSize = 4
	c := New(settings, alloc, nil)
	c.SetDebug(true)
	return c, alloc
}

// assertInvariants checks spec.md §3 invariants 1-4 on every resident piece.
func assertInvariants(t *testing.T, c *Cache) {
	t.Helper()
	for _, pe := range c.table.all() {
		require.NoError(t, pe.checkInvariants())
	}
}

// fillBlock directly populates a block with an allocated buffer and marks it
// clean, bypassing the read/write call paths for tests that only care about
// cache-state bookkeeping.
func fillBlock(c *Cache, alloc *fakeAllocator, pe *PieceEntry, block int) {
	buf, ok := alloc.AllocateBuffer()
	if !ok {
		panic("fakeAllocator exhausted in test fixture")
	}
	pe.Blocks[block].Buf = buf
	c.readCacheSize++
}

func TestAllocatePieceCreatesOnFirstLookup(t *testing.T) {
	c, _ := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	pe := c.AllocatePiece(storage, 0, 4, StateReadLRU1)
	require.NotNil(t, pe)
	require.Equal(t, StateReadLRU1, pe.CacheState)
	require.Equal(t, CacheMiss, c.lastCacheOp)

	again := c.AllocatePiece(storage, 0, 4, StateReadLRU1)
	require.Same(t, pe, again)

	assertInvariants(t, c)
}

// TestDebugModePanicsOnInvariantViolation covers SPEC_FULL.md §4: Debug
// mode runs checkInvariants inline after mutating calls and panics on
// violation, rather than only offering it as a test helper.
func TestDebugModePanicsOnInvariantViolation(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")
	pe := c.AllocatePiece(storage, 0, 1, StateReadLRU1)
	fillBlock(c, alloc, pe, 0)

	require.Panics(t, func() {
		pe.Blocks[0].Dirty = true // a dirty block on a non-write_lru piece violates invariant 3
		c.IncBlockRefcount(pe, 0, RefReading)
	})
}

func TestClearDrainsAllPiecesAndResetsCounters(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	pe := c.AllocatePiece(storage, 0, 4, StateReadLRU1)
	fillBlock(c, alloc, pe, 0)
	fillBlock(c, alloc, pe, 1)

	var jobs []*jobqueue.Job
	c.Clear(&jobs)

	require.Equal(t, 0, c.NumPieces())
	require.Equal(t, 0, c.ReadCacheSize())
	require.Equal(t, 0, c.WriteCacheSize())
	require.Equal(t, 0, alloc.out)
}
