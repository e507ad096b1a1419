package blockcache

import (
	"container/list"
	"time"

	"github.com/javi11/altmount/internal/hashcursor"
	"github.com/javi11/altmount/internal/jobqueue"
)

// BlockSlot is one entry per block position within a piece (spec.md §3).
type BlockSlot struct {
	// Buf is the block's buffer, or nil if the slot is empty.
	Buf []byte
	// Refcount is the number of outstanding references to Buf. A slot may
	// not be freed while Refcount > 0.
	Refcount uint32
	// Dirty means the block must be written to storage before its buffer
	// may be reclaimed.
	Dirty bool
	// Pending means an outstanding read or write job targets this slot; its
	// buffer is not yet valid for readers (read) or not yet durable (write).
	Pending bool
	// CacheHit is set once this block has been read at least once. A
	// second hit promotes the whole piece from recent to frequent.
	CacheHit bool

	// refByReason tracks the three refcount subcounts (hashing, reading,
	// flushing). It is only consulted when the owning cache runs in Debug
	// mode, matching the TORRENT_USE_ASSERTS build split in the reference
	// implementation (spec.md §3, §9).
	refByReason [3]uint32

	// writeJob is the most recent write job whose payload this slot holds,
	// used to detect and resolve the "duplicate write" error case (spec.md
	// §7): a second write landing on the same block before the first
	// flushes supersedes it.
	writeJob *jobqueue.Job
}

func (b *BlockSlot) hasBuffer() bool {
	return b.Buf != nil
}

// PieceEntry is one resident (or ghost) piece (spec.md §3).
type PieceEntry struct {
	Storage StorageHandle
	Piece   int

	// Blocks is sized to BlocksInPiece; ghost pieces have every slot zeroed
	// and BlocksInPiece unchanged (so a ghost hit can be re-expanded into a
	// correctly-sized slice).
	Blocks []BlockSlot

	// WriteJobs are write jobs hanging off this piece awaiting flush
	// completion, queued in arrival order.
	WriteJobs []*jobqueue.Job
	// ReadJobs are read jobs deferred behind an outstanding read on the
	// same piece, completed in arrival order once it finishes.
	ReadJobs []*jobqueue.Job

	// Hash carries the partial-hash cursor, if hashing has started.
	Hash *hashcursor.Cursor

	CacheState CacheState
	Expire     time.Time

	// PieceRefcount counts threads currently holding the piece; it may not
	// be removed while > 0.
	PieceRefcount int

	Hashing          bool
	HashingDone      bool
	MarkedForEvict   bool
	MarkedForDelete  bool
	NeedReadback     bool
	OutstandingFlush bool
	OutstandingRead  bool

	// BlocksInPiece is the piece's total block count (the capacity of
	// Blocks once hydrated; ghosts remember it for re-allocation).
	BlocksInPiece int

	// Refcount mirrors the sum of all block refcounts, maintained
	// incrementally by the refcount engine (spec.md invariant 2).
	Refcount int
	// Pinned mirrors the count of blocks with Refcount > 0.
	Pinned int

	// elem is this piece's node in the LRU list identified by CacheState.
	elem *list.Element
}

// key returns the piece table composite key for this entry.
func (pe *PieceEntry) key() pieceKey {
	return pieceKey{storage: pe.Storage.StorageID(), piece: pe.Piece}
}

// NumBlocks returns the number of slots holding a buffer (spec.md §3,
// "derived counters").
func (pe *PieceEntry) NumBlocks() int {
	n := 0
	for i := range pe.Blocks {
		if pe.Blocks[i].hasBuffer() {
			n++
		}
	}
	return n
}

// NumDirty returns the number of slots with the dirty flag set.
func (pe *PieceEntry) NumDirty() int {
	n := 0
	for i := range pe.Blocks {
		if pe.Blocks[i].Dirty {
			n++
		}
	}
	return n
}

// okToEvict implements spec.md invariant 5.
func (pe *PieceEntry) okToEvict() bool {
	return pe.Refcount == 0 &&
		pe.PieceRefcount == 0 &&
		!pe.Hashing &&
		len(pe.ReadJobs) == 0 &&
		!pe.OutstandingRead &&
		(pe.Hash == nil || pe.Hash.Offset == 0)
}

// checkInvariants validates spec.md §3 invariants 1-4 for a single piece.
// It is used by package tests after every mutating operation and, when the
// owning cache runs in Debug mode, inline after every public call.
func (pe *PieceEntry) checkInvariants() error {
	numBlocks := pe.NumBlocks()
	numDirty := pe.NumDirty()

	if numDirty > numBlocks || numBlocks > pe.BlocksInPiece {
		return invariantErrorf(pe, "num_dirty=%d num_blocks=%d blocks_in_piece=%d violates invariant 1", numDirty, numBlocks, pe.BlocksInPiece)
	}

	pinned := 0
	refSum := 0
	for i := range pe.Blocks {
		b := &pe.Blocks[i]
		if b.Refcount > 0 {
			pinned++
		}
		refSum += int(b.Refcount)
		if b.Dirty && pe.CacheState != StateWriteLRU {
			return invariantErrorf(pe, "dirty block %d on piece with cache_state=%s violates invariant 3", i, pe.CacheState)
		}
	}
	if pinned != pe.Pinned {
		return invariantErrorf(pe, "pinned=%d but counted %d violates invariant 2", pe.Pinned, pinned)
	}
	if refSum != pe.Refcount {
		return invariantErrorf(pe, "refcount=%d but block sum is %d violates invariant 2", pe.Refcount, refSum)
	}
	if pe.CacheState.isGhost() && numBlocks != 0 {
		return invariantErrorf(pe, "ghost piece has num_blocks=%d violates invariant 4", numBlocks)
	}
	return nil
}
