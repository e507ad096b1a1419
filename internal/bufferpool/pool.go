// Package bufferpool implements the fixed-capacity block buffer allocator
// the block cache draws from. Buffer allocation itself is out of the
// cache's scope (spec.md §1); Pool is the collaborator that satisfies
// blockcache.BufferAllocator.
package bufferpool

import (
	"log/slog"
	"sync"

	"github.com/avast/retry-go/v4"

	berrors "github.com/javi11/altmount/internal/errors"
)

// Pool is a bounded free list of fixed-size buffers. Unlike the teacher's
// getBuffer/putBuffer (internal/usenet/buffer_pool.go), which lets
// allocation grow unbounded and leaves recycling to the GC, a block cache
// buffer budget must be a hard ceiling (spec.md §5, §6): the cache's
// correctness depends on being told "no" when the budget is exhausted so it
// can evict and retry, not on the allocator silently growing.
type Pool struct {
	mu   sync.Mutex
	free [][]byte

	blockSize int
	capacity  int
	out       int

	// evict is consulted when the pool is exhausted; it should free at
	// least one buffer (typically by asking the cache to evict a block) and
	// report whether it made progress. It may be nil, in which case
	// exhaustion is terminal.
	evict func() bool

	logger *slog.Logger
}

// New creates a pool that never allocates more than capacity buffers of
// blockSize bytes at once.
func New(blockSize, capacity int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		blockSize: blockSize,
		capacity:  capacity,
		logger:    logger.With("component", "bufferpool"),
	}
}

// SetEvictFunc wires the callback used to make room when the pool is
// exhausted. It is normally the owning block cache's own eviction path
// (spec.md §6 "trim_cache"), creating the deliberate allocator<->cache
// feedback loop the reference design calls for.
func (p *Pool) SetEvictFunc(evict func() bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evict = evict
}

// AllocateBuffer implements blockcache.BufferAllocator. On exhaustion it
// asks evict to free space and retries once before giving up; the retry
// uses retry-go the same way the teacher retries pool acquisition against
// transient exhaustion (internal/usenet/usenet_reader.go
// downloadSegmentWithRetry), just bounded to a single evict-and-retry round
// instead of a backoff series, since a synchronous eviction either frees a
// buffer or it doesn't.
func (p *Pool) AllocateBuffer() ([]byte, bool) {
	if buf, ok := p.tryAllocate(); ok {
		return buf, true
	}

	var buf []byte
	err := retry.Do(
		func() error {
			if b, ok := p.tryAllocate(); ok {
				buf = b
				return nil
			}
			p.mu.Lock()
			hasEvict := p.evict != nil
			p.mu.Unlock()
			if !hasEvict {
				// Nothing can free a buffer on our behalf; further attempts
				// are pointless, so mark this one non-retryable rather than
				// let retry-go spend its remaining attempt on it.
				return berrors.NewNonRetryableError("buffer pool exhausted with no evict function registered", errExhausted)
			}
			return errExhausted
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if berrors.IsNonRetryable(err) {
				return false
			}
			p.mu.Lock()
			evict := p.evict
			p.mu.Unlock()
			if evict == nil {
				return false
			}
			return evict()
		}),
	)
	if err != nil {
		if berrors.IsNonRetryable(err) {
			p.logger.Warn("buffer pool exhausted, no evict function registered", "capacity", p.capacity, "block_size", p.blockSize)
		} else {
			p.logger.Warn("buffer pool exhausted after evict retry", "capacity", p.capacity, "block_size", p.blockSize)
		}
		return nil, false
	}
	return buf, true
}

func (p *Pool) tryAllocate() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free = p.free[:n-1]
		p.out++
		return buf, true
	}
	if p.out < p.capacity {
		p.out++
		return make([]byte, p.blockSize), true
	}
	return nil, false
}

// FreeBuffer implements blockcache.BufferAllocator.
func (p *Pool) FreeBuffer(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out--
	p.free = append(p.free, buf[:0:cap(buf)][:cap(buf)])
}

// InUse reports how many buffers are currently checked out, for metrics.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// Capacity returns the pool's fixed buffer budget.
func (p *Pool) Capacity() int { return p.capacity }

var errExhausted = poolExhaustedError{}

type poolExhaustedError struct{}

func (poolExhaustedError) Error() string { return "bufferpool: exhausted" }
