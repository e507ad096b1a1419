package blockcache

import (
	berrors "github.com/javi11/altmount/internal/errors"
)

// IncBlockRefcount pins a block buffer for one of the three reasons
// (hashing, reading-for-send, flushing), spec.md §4.3. It returns false
// without side effects if the block has no buffer or is pending.
func (c *Cache) IncBlockRefcount(pe *PieceEntry, block int, reason RefReason) bool {
	b := &pe.Blocks[block]
	if !b.hasBuffer() || b.Pending {
		return false
	}
	if b.Refcount >= MaxBlockRefcount {
		// Fatal programming error (spec.md §7): refuse rather than wrap.
		panic(berrors.ErrRefcountViolation)
	}

	wasPinned := b.Refcount > 0
	b.Refcount++
	if c.debug {
		b.refByReason[reason]++
	}
	pe.Refcount++
	if !wasPinned {
		pe.Pinned++
		c.pinnedBlocks++
	}
	c.assertInvariants(pe)
	return true
}

// DecBlockRefcount releases a pin taken by IncBlockRefcount. It requires
// Refcount > 0 for the block; on transition to 0, if the piece is marked
// for deletion, the piece is freed (spec.md §4.3).
func (c *Cache) DecBlockRefcount(pe *PieceEntry, block int, reason RefReason) {
	b := &pe.Blocks[block]
	if b.Refcount == 0 {
		panic(berrors.ErrRefcountViolation)
	}
	if c.debug {
		if b.refByReason[reason] == 0 {
			panic(berrors.ErrRefcountViolation)
		}
		b.refByReason[reason]--
	}

	b.Refcount--
	pe.Refcount--
	if b.Refcount == 0 {
		pe.Pinned--
		c.pinnedBlocks--
		if pe.MarkedForDelete {
			c.maybeFreePiece(pe)
		}
	}
	c.assertInvariants(pe)
}

// maybeFreePiece erases pe if it is marked for deletion and has become
// evictable (spec.md §4.6).
func (c *Cache) maybeFreePiece(pe *PieceEntry) bool {
	if !pe.MarkedForDelete || !pe.okToEvict() {
		return false
	}
	c.erasePiece(pe)
	return true
}

// ReclaimBlock is the supplemented libtorrent reclaim_block operation
// (SPEC_FULL.md §4): a caller holding a reference to a specific block hands it
// back directly, without separately naming a reason. It is equivalent to
// DecBlockRefcount with RefReading, the most common reclaim path (blocks
// referenced from outbound send buffers).
func (c *Cache) ReclaimBlock(pe *PieceEntry, block int) {
	c.DecBlockRefcount(pe, block, RefReading)
}

// PinnedBlocks returns the number of blocks with Refcount > 0 across the
// whole cache (spec.md §5 "admission control").
func (c *Cache) PinnedBlocks() int {
	return c.pinnedBlocks
}
