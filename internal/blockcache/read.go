package blockcache

import (
	"github.com/javi11/altmount/internal/jobqueue"
)

// blockRange maps a job's byte offset/length onto a [first, first+n) block
// range given a fixed block size.
func blockRange(offset, length int64, blockSize int) (first, n int) {
	first = int(offset / int64(blockSize))
	n = int((length + int64(blockSize) - 1) / int64(blockSize))
	return first, n
}

// TryRead implements spec.md §4.4: it looks the job's piece up in the
// cache, and on a full hit copies the requested blocks into a
// caller-allocated buffer. It returns the number of bytes copied, or
// ErrCacheMiss if the piece (or any requested block within it) is not
// resident.
func (c *Cache) TryRead(job *jobqueue.Job, blockSize int, alloc ResponseAllocator) (int, error) {
	pe := c.table.findKey(job.Storage, job.Piece)
	if pe == nil {
		c.lastCacheOp = CacheMiss
		return -1, ErrCacheMiss
	}

	switch pe.CacheState {
	case StateReadLRU1Ghost:
		c.lastCacheOp = GhostHitLRU1
		return -1, ErrCacheMiss
	case StateReadLRU2Ghost:
		c.lastCacheOp = GhostHitLRU2
		return -1, ErrCacheMiss
	}

	first, n := blockRange(job.Offset, job.Length, blockSize)
	if first < 0 || first+n > pe.BlocksInPiece {
		return -1, ErrCacheMiss
	}

	for i := first; i < first+n; i++ {
		b := &pe.Blocks[i]
		if !b.hasBuffer() || b.Pending {
			return -1, ErrCacheMiss
		}
	}

	out := alloc(n * blockSize)
	for i := first; i < first+n; i++ {
		b := &pe.Blocks[i]
		copy(out[(i-first)*blockSize:], b.Buf)
		c.CacheHit(pe, i, false)
	}

	return n * blockSize, nil
}

// CacheHit updates LRU position and hit bookkeeping after a block has been
// served from cache (spec.md §4.4). A second hit on a block promotes its
// whole piece from recent to frequent. If volatileRead is true and the
// piece has not yet been linked anywhere, it is placed on the volatile
// list instead of read_lru1.
func (c *Cache) CacheHit(pe *PieceEntry, block int, volatileRead bool) {
	b := &pe.Blocks[block]
	if b.CacheHit {
		// Second hit: promote the whole piece to the frequent list.
		if pe.CacheState == StateReadLRU1 {
			c.lru.linkInto(pe, StateReadLRU2)
		}
	} else {
		b.CacheHit = true
	}

	if pe.CacheState == StateNone {
		if volatileRead {
			c.lru.linkInto(pe, StateVolatileReadLRU)
		} else {
			c.lru.linkInto(pe, StateReadLRU1)
		}
		c.assertInvariants(pe)
		return
	}

	if pe.CacheState.isReal() {
		c.lru.bump(pe)
	}
	c.assertInvariants(pe)
}

// PadJob computes how many additional blocks a read job would cause to be
// loaded were it dispatched to storage: the span from the first missing
// block in the job's range up to the configured read-ahead window, clipped
// to the end of the piece (spec.md §4.4). pe may be nil (piece not yet
// resident at all), in which case every block from the job's first block
// is considered missing.
func (c *Cache) PadJob(job *jobqueue.Job, blockSize, blocksInPiece int) int {
	first, _ := blockRange(job.Offset, job.Length, blockSize)

	firstMissing := first
	if pe := c.table.findKey(job.Storage, job.Piece); pe != nil && pe.CacheState.isReal() {
		firstMissing = blocksInPiece
		for i := first; i < blocksInPiece; i++ {
			if !pe.Blocks[i].hasBuffer() {
				firstMissing = i
				break
			}
		}
		if firstMissing == blocksInPiece {
			return 0
		}
	}

	remaining := blocksInPiece - firstMissing
	if remaining > c.settings.ReadCacheLineSize {
		remaining = c.settings.ReadCacheLineSize
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// QueueReadJob defers job behind an outstanding read on the same piece
// (spec.md §4.4), preventing duplicate I/O. It must only be called while
// pe.OutstandingRead is true.
func (c *Cache) QueueReadJob(pe *PieceEntry, job *jobqueue.Job) {
	pe.ReadJobs = append(pe.ReadJobs, job)
}

// DrainReadJobs returns and clears the jobs queued behind an outstanding
// read, to be completed in arrival order once that read finishes.
func (c *Cache) DrainReadJobs(pe *PieceEntry) []*jobqueue.Job {
	jobs := pe.ReadJobs
	pe.ReadJobs = nil
	pe.OutstandingRead = false
	return jobs
}
