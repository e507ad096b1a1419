// Package blockcache implements the in-memory piece/block cache that sits
// between an upper layer issuing disk I/O jobs and a lower layer performing
// the actual storage I/O. It coalesces sequential writes into piece-aligned
// flushes, serves read hits without touching storage, manages a fixed
// block-buffer budget through an Adaptive Replacement Cache policy, and
// tracks per-block reference counts so buffers handed to send paths and
// hashing jobs are not reclaimed prematurely.
//
// The cache is not internally concurrent: every exported method is expected
// to run on a single disk thread, or equivalently while holding the caller's
// disk mutex. Buffers it hands out via IncBlockRefcount are consumed by
// other goroutines, which must call DecBlockRefcount back on that thread.
package blockcache

import "time"

// RefReason classifies why a block's refcount was incremented. The three
// reasons let a Debug-mode cache verify no reason's subcount goes negative
// and that increments/decrements are paired correctly.
type RefReason int

const (
	RefHashing RefReason = iota
	RefReading
	RefFlushing
)

func (r RefReason) String() string {
	switch r {
	case RefHashing:
		return "hashing"
	case RefReading:
		return "reading"
	case RefFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// MaxBlockRefcount is the largest value a block's refcount may take (2^29-1
// in the reference implementation, preserved here as an explicit range
// check rather than a bitfield).
const MaxBlockRefcount = 1<<29 - 1

// CacheState identifies which LRU list a piece currently belongs to.
type CacheState int

const (
	// StateNone is the transient state during move operations; a piece in
	// this state is not linked into any list.
	StateNone CacheState = iota
	// StateWriteLRU holds pieces with at least one dirty block.
	StateWriteLRU
	// StateVolatileReadLRU holds one-shot, low-priority read pieces. These
	// are always evicted first.
	StateVolatileReadLRU
	// StateReadLRU1 holds pieces read once recently ("T1" in ARC terms).
	StateReadLRU1
	// StateReadLRU1Ghost holds headers for pieces evicted from ReadLRU1
	// ("B1"); ghost pieces never hold buffers.
	StateReadLRU1Ghost
	// StateReadLRU2 holds frequently used pieces ("T2").
	StateReadLRU2
	// StateReadLRU2Ghost holds headers for pieces evicted from ReadLRU2
	// ("B2").
	StateReadLRU2Ghost
)

func (s CacheState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateWriteLRU:
		return "write_lru"
	case StateVolatileReadLRU:
		return "volatile_read_lru"
	case StateReadLRU1:
		return "read_lru1"
	case StateReadLRU1Ghost:
		return "read_lru1_ghost"
	case StateReadLRU2:
		return "read_lru2"
	case StateReadLRU2Ghost:
		return "read_lru2_ghost"
	default:
		return "unknown"
	}
}

// isGhost reports whether the state is one of the two ghost lists.
func (s CacheState) isGhost() bool {
	return s == StateReadLRU1Ghost || s == StateReadLRU2Ghost
}

// isReal reports whether the state holds live block buffers.
func (s CacheState) isReal() bool {
	switch s {
	case StateWriteLRU, StateVolatileReadLRU, StateReadLRU1, StateReadLRU2:
		return true
	default:
		return false
	}
}

// CacheOp records the nature of the most recent piece-table lookup, used by
// the ARC policy to bias eviction toward the list whose ghost was just hit.
type CacheOp int

const (
	CacheMiss CacheOp = iota
	GhostHitLRU1
	GhostHitLRU2
)

// EvictionMode controls whether a removed piece is demoted to a ghost list
// or erased outright.
type EvictionMode int

const (
	AllowGhost EvictionMode = iota
	DisallowGhost
)

// StorageHandle identifies the storage object a piece belongs to. It is
// opaque to the cache beyond equality and hashability, exactly as spec.md
// §6 describes it ("opaque shared identifier").
type StorageHandle interface {
	// StorageID must be stable and comparable for the lifetime of the
	// handle; it is used as half of the piece table's composite key.
	StorageID() string
}

// pieceKey is the piece table's composite key: (storage handle, piece
// index), per spec.md §4.1.
type pieceKey struct {
	storage string
	piece   int
}

// Settings holds the recognized configuration options of spec.md §6.
type Settings struct {
	// CacheSize is the global block budget.
	CacheSize int
	// CacheExpiry is the configured TTL for clean blocks. The cache stores
	// it; no cache operation reads it, so blocks are not evicted by age.
	CacheExpiry time.Duration
	// ReadCacheLineSize is the read-ahead window used by PadJob, in blocks.
	ReadCacheLineSize int
	// VolatileReadCacheSize is the configured cap on volatile-list blocks.
	// The cache stores it; no cache operation reads it, so the volatile
	// list is not limited by it.
	VolatileReadCacheSize int
	// GhostListFraction sizes each ghost list as a fraction of CacheSize.
	GhostListFraction float64
}

// DefaultSettings returns sensible defaults; GhostListFraction of 0.5
// matches the "half the real-list capacity" suggestion in spec.md §9.
func DefaultSettings() Settings {
	return Settings{
		CacheSize:             64 * 1024, // 64K blocks (~1GiB at 16KiB blocks)
		CacheExpiry:           60 * time.Second,
		ReadCacheLineSize:     32,
		VolatileReadCacheSize: 1024,
		GhostListFraction:     0.5,
	}
}

func (s Settings) ghostCap() int {
	cap := int(s.GhostListFraction * float64(s.CacheSize))
	if cap < 1 {
		cap = 1
	}
	return cap
}

// BufferAllocator is the external buffer-pool collaborator (spec.md §6):
// the cache is a consumer of block-sized buffer allocation, never an
// allocator itself.
type BufferAllocator interface {
	// AllocateBuffer returns a block-sized buffer, or ok=false if none are
	// available.
	AllocateBuffer() (buf []byte, ok bool)
	// FreeBuffer returns a buffer previously obtained from AllocateBuffer.
	FreeBuffer(buf []byte)
}

// ResponseAllocator is the allocator callback passed to TryRead (spec.md
// §6): it allocates the caller-visible response buffer that cache blocks
// are copied into.
type ResponseAllocator func(size int) []byte

