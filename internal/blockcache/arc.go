package blockcache

import (
	"github.com/javi11/altmount/internal/jobqueue"
)

// BumpLRU moves a write-LRU piece to the tail (MRU) of its list, used to
// keep in-flight pieces warm while jobs are still queued against them
// (spec.md §4.2).
func (c *Cache) BumpLRU(pe *PieceEntry) {
	c.lru.bump(pe)
}

// anyCacheHit reports whether any block in pe has been read at least once,
// i.e. has its CacheHit flag set (spec.md §3: a second hit on a piece promotes it read_lru1 -> read_lru2).
func anyCacheHit(pe *PieceEntry) bool {
	for i := range pe.Blocks {
		if pe.Blocks[i].CacheHit {
			return true
		}
	}
	return false
}

// UpdateCacheState recomputes which list pe belongs on after a
// state-changing operation (dirty count dropping to zero, a promoting
// cache hit, ...) and relinks it (spec.md §4.2).
func (c *Cache) UpdateCacheState(pe *PieceEntry) {
	if pe.CacheState.isGhost() || pe.CacheState == StateNone {
		return
	}

	var target CacheState
	switch {
	case pe.NumDirty() > 0:
		target = StateWriteLRU
	case pe.CacheState == StateVolatileReadLRU:
		target = StateVolatileReadLRU
	case anyCacheHit(pe):
		target = StateReadLRU2
	default:
		target = StateReadLRU1
	}

	if target == pe.CacheState {
		return
	}
	c.lru.linkInto(pe, target)
}

// MarkForEviction sets the eviction flag on pe. If pe is already
// ok-to-evict, it is removed immediately: demoted to a ghost list if
// mode is AllowGhost, erased outright otherwise (spec.md §4.6). Volatile
// pieces are always erased, whatever the mode.
func (c *Cache) MarkForEviction(pe *PieceEntry, mode EvictionMode) {
	pe.MarkedForEvict = true
	if !pe.okToEvict() {
		return
	}
	if mode == AllowGhost && pe.CacheState.isReal() && pe.CacheState != StateVolatileReadLRU {
		c.moveToGhost(pe)
	} else {
		c.erasePiece(pe)
	}
	c.assertInvariants(pe)
}

// EvictPiece attempts immediate eviction of pe. Jobs hanging off the piece
// are appended to jobs for the caller to fail back to their originators.
// It returns whether the piece was actually evicted.
func (c *Cache) EvictPiece(pe *PieceEntry, jobs *[]*jobqueue.Job, mode EvictionMode) bool {
	if !pe.okToEvict() {
		return false
	}
	*jobs = append(*jobs, pe.WriteJobs...)
	*jobs = append(*jobs, pe.ReadJobs...)
	pe.WriteJobs = nil
	pe.ReadJobs = nil

	if mode == AllowGhost && pe.CacheState.isReal() && pe.CacheState != StateVolatileReadLRU {
		c.moveToGhost(pe)
	} else {
		c.erasePiece(pe)
	}
	c.assertInvariants(pe)
	return true
}

// moveToGhost drains all of pe's block buffers, clears NumBlocks to 0, and
// relinks pe into the matching ghost list (spec.md §4.6). pe.Refcount must
// be 0.
func (c *Cache) moveToGhost(pe *PieceEntry) {
	target := StateReadLRU1Ghost
	if pe.CacheState == StateReadLRU2 {
		target = StateReadLRU2Ghost
	}

	c.freeAllBuffers(pe)
	pe.Blocks = make([]BlockSlot, pe.BlocksInPiece) // zeroed slots, buffers gone
	c.lru.linkInto(pe, target)

	c.enforceGhostCap(target)
}

// enforceGhostCap erases ghost entries beyond m_ghost_size, per spec.md
// §4.2 ("ghost entries beyond the bound are erased outright").
func (c *Cache) enforceGhostCap(state CacheState) {
	cap := c.settings.ghostCap()
	for c.lru.length(state) > cap {
		victim := c.lru.front(state)
		if victim == nil {
			break
		}
		c.erasePiece(victim)
	}
}

// erasePiece is terminal removal: frees buffers, unlinks from the LRU and
// the piece table, and destroys the entry (spec.md §4.6).
func (c *Cache) erasePiece(pe *PieceEntry) {
	c.freeAllBuffers(pe)
	c.lru.unlink(pe)
	c.table.erase(pe)
}

// TryEvictOneVolatile drains the single oldest volatile piece, if any.
// Volatile pieces are always evicted before any non-volatile piece
// (spec.md §4.2).
func (c *Cache) TryEvictOneVolatile() bool {
	pe := c.lru.front(StateVolatileReadLRU)
	if pe == nil {
		return false
	}
	if !pe.okToEvict() {
		return false
	}
	c.erasePiece(pe)
	c.assertInvariants(pe)
	return true
}

// preferredVictimList returns the read list the ARC policy prefers to
// evict from next, based on which ghost list was most recently hit (spec.md
// §4.2): a ghost hit in B1 biases eviction toward T2, and vice versa.
func (c *Cache) preferredVictimList() [2]CacheState {
	switch c.lastCacheOp {
	case GhostHitLRU1:
		return [2]CacheState{StateReadLRU2, StateReadLRU1}
	case GhostHitLRU2:
		return [2]CacheState{StateReadLRU1, StateReadLRU2}
	default:
		return [2]CacheState{StateReadLRU1, StateReadLRU2}
	}
}

// TryEvictBlocks repeatedly frees block buffers from the LRU head of the
// preferred victim list (per m_last_cache_op), skipping pinned, dirty and
// pending blocks, until n blocks have been freed or no more can be. Before
// that it evicts the oldest volatile piece, if that piece is evictable.
// Within each list it stops at the head piece when that piece is the
// optionally-given ignore piece or has no freeable block left; pieces
// behind it in that list are not examined. It returns the number of blocks
// it could not evict (spec.md §4.2).
func (c *Cache) TryEvictBlocks(n int, ignore *PieceEntry) int {
	c.TryEvictOneVolatile()

	order := c.preferredVictimList()
	for _, state := range order {
		n = c.evictFromList(state, n, ignore)
		if n == 0 {
			return 0
		}
	}
	return n
}

// evictFromList frees up to n blocks from state's LRU head, returning the
// remaining (unsatisfied) budget.
func (c *Cache) evictFromList(state CacheState, n int, ignore *PieceEntry) int {
	for n > 0 {
		pe := c.lru.front(state)
		if pe == nil {
			return n
		}
		if pe == ignore {
			// Can't evict from the ignored piece; it is the LRU head, and
			// pieces behind it in this list are not examined.
			return n
		}

		freedAny := false
		for i := range pe.Blocks {
			if n == 0 {
				break
			}
			b := &pe.Blocks[i]
			if !b.hasBuffer() || b.Refcount > 0 || b.Dirty || b.Pending {
				continue
			}
			c.freeBlock(pe, i)
			n--
			freedAny = true
		}

		if pe.NumBlocks() == 0 {
			if pe.MarkedForDelete {
				c.erasePiece(pe)
			} else {
				c.moveToGhost(pe)
			}
		} else if !freedAny {
			// Every remaining block is pinned/dirty/pending; no progress
			// possible from this piece.
			c.assertInvariants(pe)
			return n
		}
		c.assertInvariants(pe)
	}
	return n
}

// freeBlock releases a single block's buffer back to the allocator and
// updates size counters (spec.md §4.6 free_block).
func (c *Cache) freeBlock(pe *PieceEntry, block int) {
	b := &pe.Blocks[block]
	if !b.hasBuffer() {
		return
	}
	if pe.CacheState == StateVolatileReadLRU {
		c.volatileSize--
	}
	if b.Dirty {
		c.writeCacheSize--
	} else {
		c.readCacheSize--
	}
	c.allocator.FreeBuffer(b.Buf)
	*b = BlockSlot{}
}
