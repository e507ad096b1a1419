package blockcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGhostHitBiasesEvictionTowardOtherList covers spec.md §8 scenario 5:
// hitting a ghost from B1 biases the next round of eviction toward T2
// (read_lru2), and vice versa.
func TestGhostHitBiasesEvictionTowardOtherList(t *testing.T) {
	c, _ := newTestCache(t, 64)

	c.lastCacheOp = GhostHitLRU1
	require.Equal(t, [2]CacheState{StateReadLRU2, StateReadLRU1}, c.preferredVictimList())

	c.lastCacheOp = GhostHitLRU2
	require.Equal(t, [2]CacheState{StateReadLRU1, StateReadLRU2}, c.preferredVictimList())

	c.lastCacheOp = CacheMiss
	require.Equal(t, [2]CacheState{StateReadLRU1, StateReadLRU2}, c.preferredVictimList())
}

// TestGhostCapEnforced covers spec.md §4.2: ghost entries beyond the
// configured bound are erased outright, oldest first.
func TestGhostCapEnforced(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	c.settings.GhostListFraction = 0.0 // cap floors to 1

	storage := testStorage("torrent-a")
	var pieces []*PieceEntry
	for i := 0; i < 3; i++ {
		pe := c.AllocatePiece(storage, i, 1, StateReadLRU1)
		fillBlock(c, alloc, pe, 0)
		pieces = append(pieces, pe)
	}

	for _, pe := range pieces {
		c.moveToGhost(pe)
	}

	require.Equal(t, 1, c.lru.length(StateReadLRU1Ghost))
	require.Nil(t, c.table.find(storage, 0))
	require.Nil(t, c.table.find(storage, 1))
	require.NotNil(t, c.table.find(storage, 2))
}

// TestPinnedBlockNotEvicted covers spec.md §8 scenario 6: a block with a
// live refcount is never chosen as an eviction victim, even though its
// piece sits at the LRU head.
func TestPinnedBlockNotEvicted(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	pe := c.AllocatePiece(storage, 0, 2, StateReadLRU1)
	fillBlock(c, alloc, pe, 0)
	fillBlock(c, alloc, pe, 1)
	require.True(t, c.IncBlockRefcount(pe, 0, RefReading))

	remaining := c.TryEvictBlocks(2, nil)
	require.Equal(t, 1, remaining) // block 0 pinned, could not be freed
	require.True(t, pe.Blocks[0].hasBuffer())
	require.False(t, pe.Blocks[1].hasBuffer())

	assertInvariants(t, c)
}

// TestVolatilePiecesDrainFirst covers spec.md §4.2: TryEvictBlocks evicts
// the oldest volatile piece before touching read_lru1/read_lru2, regardless
// of the remaining block budget.
func TestVolatilePiecesDrainFirst(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	volatile := c.AllocatePiece(storage, 0, 1, StateVolatileReadLRU)
	fillBlock(c, alloc, volatile, 0)

	real := c.AllocatePiece(storage, 1, 1, StateReadLRU1)
	fillBlock(c, alloc, real, 0)

	remaining := c.TryEvictBlocks(0, nil)
	require.Equal(t, 0, remaining)
	require.Nil(t, c.table.find(storage, 0))
	require.True(t, real.Blocks[0].hasBuffer())
}

// TestMarkForEvictionDemotesToGhost covers spec.md §4.6: a piece that is
// ok-to-evict at the moment it's marked is demoted straight to its ghost
// list rather than waiting for the next eviction pass.
func TestMarkForEvictionDemotesToGhost(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")
	pe := c.AllocatePiece(storage, 0, 1, StateReadLRU1)
	fillBlock(c, alloc, pe, 0)

	c.MarkForEviction(pe, AllowGhost)
	require.Equal(t, StateReadLRU1Ghost, pe.CacheState)

	assertInvariants(t, c)
}
