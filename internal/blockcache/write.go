package blockcache

import (
	berrors "github.com/javi11/altmount/internal/errors"
	"github.com/javi11/altmount/internal/jobqueue"
)

// InsertFlags controls InsertBlocks behavior.
type InsertFlags int

const (
	// BlocksIncRefcount starts each inserted block's refcount at 1 rather
	// than 0, pinning it in place of a separate IncBlockRefcount call
	// (spec.md §4.5, the "blocks_inc_refcount" flag).
	BlocksIncRefcount InsertFlags = 1 << iota
)

// AddDirtyBlock attaches job's payload to its piece's write-LRU entry
// (spec.md §4.5). It allocates the piece on StateWriteLRU if this is its
// first dirty block, supersedes any earlier unflushed write to the same
// block (completing that job with ErrSupersededWrite and freeing its
// buffer), and queues job on the piece's write-job list for completion
// notification once the block is flushed.
func (c *Cache) AddDirtyBlock(storage StorageHandle, job *jobqueue.Job, block, blocksInPiece int) *PieceEntry {
	pe := c.AllocatePiece(storage, job.Piece, blocksInPiece, StateWriteLRU)

	b := &pe.Blocks[block]
	if b.hasBuffer() {
		c.supersede(pe, block)
	}

	b.Buf = job.Payload
	b.Dirty = true
	b.Pending = false
	b.writeJob = job
	c.writeCacheSize++

	pe.WriteJobs = append(pe.WriteJobs, job)

	c.UpdateCacheState(pe)
	c.assertInvariants(pe)
	return pe
}

// supersede frees the buffer currently occupying block and completes its
// owning job with ErrSupersededWrite, per spec.md §7 ("duplicate write").
func (c *Cache) supersede(pe *PieceEntry, block int) {
	b := &pe.Blocks[block]
	if b.Dirty {
		c.writeCacheSize--
	} else {
		c.readCacheSize--
	}
	if job := b.writeJob; job != nil {
		job.Complete(jobqueue.Result{Err: berrors.ErrSupersededWrite})
	}
	c.allocator.FreeBuffer(b.Buf)
	*b = BlockSlot{}
}

// InsertBlocks installs a contiguous run of freshly read-back buffers
// starting at firstBlock (spec.md §4.5). Any buffer already occupying a
// target slot is freed first. When flags includes BlocksIncRefcount, each
// inserted block starts pinned (refcount 1) rather than unpinned, letting a
// caller that requested the readback hold it without a second call.
func (c *Cache) InsertBlocks(pe *PieceEntry, firstBlock int, bufs [][]byte, flags InsertFlags) {
	for i, buf := range bufs {
		idx := firstBlock + i
		b := &pe.Blocks[idx]
		if b.hasBuffer() {
			c.freeBlock(pe, idx)
		}

		b.Buf = buf
		b.Dirty = false
		b.Pending = false
		c.readCacheSize++
		if pe.CacheState == StateVolatileReadLRU {
			c.volatileSize++
		}

		if flags&BlocksIncRefcount != 0 {
			b.Refcount = 1
			pe.Refcount++
			pe.Pinned++
			c.pinnedBlocks++
		}
	}
	c.UpdateCacheState(pe)
	c.assertInvariants(pe)
}

// BlocksFlushed converts each block named in flushed from dirty to clean
// once storage has durably written it (spec.md §4.5). blockSize converts a
// block index into the byte range the hash cursor tracks. If flushing a
// block whose start lies beyond the bytes the cursor has already hashed,
// the cursor can no longer see contiguous unhashed data staged in memory,
// so NeedReadback is set: the hasher must re-read that range from storage
// instead of from the cache. BlocksFlushed reports whether the piece was
// consequently freed (it was marked for deletion and became evictable once
// its last dirty block cleared).
func (c *Cache) BlocksFlushed(pe *PieceEntry, flushed []int, blockSize int) bool {
	for _, idx := range flushed {
		b := &pe.Blocks[idx]
		if !b.Dirty {
			continue
		}
		if pe.Hash != nil && idx*blockSize > pe.Hash.Offset {
			pe.NeedReadback = true
		}
		b.Dirty = false
		b.writeJob = nil
		c.writeCacheSize--
		c.readCacheSize++
	}

	if pe.NumDirty() == 0 {
		pe.WriteJobs = nil
		c.UpdateCacheState(pe)
	}

	if pe.MarkedForDelete {
		freed := c.maybeFreePiece(pe)
		if !freed {
			c.assertInvariants(pe)
		}
		return freed
	}
	c.assertInvariants(pe)
	return false
}

// AbortDirty frees every unpinned dirty block on pe without flushing it,
// used on shutdown or after an unrecoverable write failure (spec.md §4.5).
// Pinned dirty blocks (still referenced by an in-flight flush job) are left
// alone; their eventual DecBlockRefcount will not re-dirty them since the
// write was abandoned by the caller, not retried.
func (c *Cache) AbortDirty(pe *PieceEntry) {
	for i := range pe.Blocks {
		b := &pe.Blocks[i]
		if b.Dirty && b.Refcount == 0 {
			if job := b.writeJob; job != nil {
				job.Complete(jobqueue.Result{Err: berrors.ErrSupersededWrite})
			}
			c.freeBlock(pe, i)
		}
	}
	pe.WriteJobs = nil
	c.UpdateCacheState(pe)
	c.assertInvariants(pe)
}
