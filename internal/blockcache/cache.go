package blockcache

import (
	"github.com/javi11/altmount/internal/jobqueue"
)

// Cache is the piece/block cache described by spec.md. It is not
// internally concurrent (spec.md §5): every exported method must run on a
// single logical disk thread.
type Cache struct {
	settings Settings

	table *pieceTable
	lru   *lruSet

	// lastCacheOp records the nature of the most recent lookup, driving the
	// ARC adaptation bias (spec.md §4.2).
	lastCacheOp CacheOp

	readCacheSize  int
	writeCacheSize int
	volatileSize   int
	pinnedBlocks   int

	allocator BufferAllocator
	// trimTrigger is the callable supplied at construction for asking the
	// surrounding scheduler to initiate evictions (spec.md §6). The cache
	// stores it; no cache operation calls it.
	trimTrigger func()

	// debug enables the three-reason refcount breakdown (spec.md §3) and
	// runs checkInvariants after every mutating call, panicking on
	// violation — the Go analogue of an assert-enabled build.
	debug bool
}

// New constructs a cache over the given buffer allocator. trimTrigger may
// be nil. No cache operation checks the CacheSize budget or calls
// trimTrigger; blocks are evicted only when a caller runs TryEvictBlocks,
// TryEvictOneVolatile, MarkForEviction or EvictPiece.
func New(settings Settings, allocator BufferAllocator, trimTrigger func()) *Cache {
	return &Cache{
		settings:    settings,
		table:       newPieceTable(),
		lru:         newLRUSet(),
		allocator:   allocator,
		trimTrigger: trimTrigger,
	}
}

// SetDebug toggles assert-style invariant checking and refcount-reason
// bookkeeping.
func (c *Cache) SetDebug(debug bool) {
	c.debug = debug
}

// assertInvariants panics if Debug mode is enabled and pe violates one of
// spec.md §3's invariants. Every public Cache method that leaves a single
// piece in a new state calls this on its way out, the Go analogue of an
// assert-enabled build; it is a no-op when Debug is off or pe is nil (e.g.
// a piece that was just erased outright).
func (c *Cache) assertInvariants(pe *PieceEntry) {
	if !c.debug || pe == nil {
		return
	}
	if err := pe.checkInvariants(); err != nil {
		panic(err)
	}
}

// SetSettings applies new configuration, e.g. from a hot config reload
// (internal/config.Manager.OnConfigChange). It does not evict anything
// itself; already-resident pieces stay until a later eviction call.
func (c *Cache) SetSettings(settings Settings) {
	c.settings = settings
}

// ReadCacheSize returns the number of live block buffers in the read
// cache (spec.md invariant 6).
func (c *Cache) ReadCacheSize() int { return c.readCacheSize }

// WriteCacheSize returns the number of live block buffers in the write
// cache (spec.md invariant 6).
func (c *Cache) WriteCacheSize() int { return c.writeCacheSize }

// NumPieces returns the count of resident pieces, including ghosts
// (supplemented from block_cache::num_pieces, SPEC_FULL.md §4).
func (c *Cache) NumPieces() int { return c.table.len() }

// AllPieces returns every resident piece, including ghosts (supplemented
// from block_cache::all_pieces, SPEC_FULL.md §4). The slice is a snapshot;
// mutating the cache afterward does not affect it.
func (c *Cache) AllPieces() []*PieceEntry { return c.table.all() }

// NumWriteLRUPieces returns the number of pieces with at least one dirty
// block (supplemented from block_cache::num_write_lru_pieces, SPEC_FULL.md
// §4).
func (c *Cache) NumWriteLRUPieces() int { return c.lru.length(StateWriteLRU) }

// CacheStats is a point-in-time snapshot, the Go analogue of libtorrent's
// update_stats_counters (SPEC_FULL.md §4).
type CacheStats struct {
	Pieces           int
	WriteLRUPieces   int
	ReadCacheBlocks  int
	WriteCacheBlocks int
	VolatileBlocks   int
	PinnedBlocks     int
	GhostLRU1Pieces  int
	GhostLRU2Pieces  int
	LastCacheOp      CacheOp
}

// Stats returns a snapshot of the cache's current counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Pieces:           c.table.len(),
		WriteLRUPieces:   c.lru.length(StateWriteLRU),
		ReadCacheBlocks:  c.readCacheSize,
		WriteCacheBlocks: c.writeCacheSize,
		VolatileBlocks:   c.volatileSize,
		PinnedBlocks:     c.pinnedBlocks,
		GhostLRU1Pieces:  c.lru.length(StateReadLRU1Ghost),
		GhostLRU2Pieces:  c.lru.length(StateReadLRU2Ghost),
		LastCacheOp:      c.lastCacheOp,
	}
}

// FindPiece looks up (storage, piece) in the cache, returning nil on a
// total miss (not present even as a ghost).
func (c *Cache) FindPiece(storage StorageHandle, piece int) *PieceEntry {
	return c.table.find(storage, piece)
}

// AllocatePiece returns the piece in the cache for (storage, piece),
// allocating and linking a fresh empty entry on initialState if none
// exists yet (spec.md §4, "Lifecycle"). If an existing entry is a ghost,
// m_last_cache_op is updated to reflect the ghost hit so the ARC policy can
// react, and the entry is re-hydrated with a fresh Blocks slice.
func (c *Cache) AllocatePiece(storage StorageHandle, piece, blocksInPiece int, initialState CacheState) *PieceEntry {
	if pe := c.table.find(storage, piece); pe != nil {
		switch pe.CacheState {
		case StateReadLRU1Ghost:
			c.lastCacheOp = GhostHitLRU1
			c.reviveGhost(pe)
		case StateReadLRU2Ghost:
			c.lastCacheOp = GhostHitLRU2
			c.reviveGhost(pe)
		default:
			c.lastCacheOp = CacheMiss
		}
		c.assertInvariants(pe)
		return pe
	}

	c.lastCacheOp = CacheMiss
	pe := &PieceEntry{
		Storage:       storage,
		Piece:         piece,
		Blocks:        make([]BlockSlot, blocksInPiece),
		BlocksInPiece: blocksInPiece,
	}
	c.table.insert(pe)
	c.lru.linkInto(pe, initialState)
	c.assertInvariants(pe)
	return pe
}

// reviveGhost re-hydrates a ghost entry into its corresponding real list
// after a ghost hit, per the ARC promotion rule (spec.md §4.2).
func (c *Cache) reviveGhost(pe *PieceEntry) {
	pe.Blocks = make([]BlockSlot, pe.BlocksInPiece)
	target := StateReadLRU1
	if pe.CacheState == StateReadLRU2Ghost {
		target = StateReadLRU2
	}
	c.lru.linkInto(pe, target)
}

// Clear is the shutdown path (spec.md §4.6): every piece's pending jobs are
// appended to jobs and the piece is erased; afterward the cache is empty
// and all counters are zero.
func (c *Cache) Clear(jobs *[]*jobqueue.Job) {
	for _, pe := range c.table.all() {
		*jobs = append(*jobs, pe.WriteJobs...)
		*jobs = append(*jobs, pe.ReadJobs...)
		pe.WriteJobs = nil
		pe.ReadJobs = nil
		c.freeAllBuffers(pe)
		c.lru.unlink(pe)
		c.table.erase(pe)
	}
	c.readCacheSize = 0
	c.writeCacheSize = 0
	c.volatileSize = 0
	c.pinnedBlocks = 0
}

// freeAllBuffers releases every block buffer pe holds back to the
// allocator, decrementing the appropriate size counters, regardless of
// dirty/pending/refcount state. Used by Clear (shutdown), moveToGhost and
// erasePiece.
func (c *Cache) freeAllBuffers(pe *PieceEntry) {
	for i := range pe.Blocks {
		b := &pe.Blocks[i]
		if !b.hasBuffer() {
			continue
		}
		if pe.CacheState == StateWriteLRU && b.Dirty {
			c.writeCacheSize--
		} else {
			c.readCacheSize--
		}
		if pe.CacheState == StateVolatileReadLRU {
			c.volatileSize--
		}
		c.allocator.FreeBuffer(b.Buf)
		*b = BlockSlot{}
	}
}
