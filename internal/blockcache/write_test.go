package blockcache

import (
	"testing"

	"github.com/javi11/altmount/internal/hashcursor"
	"github.com/javi11/altmount/internal/jobqueue"
	"github.com/stretchr/testify/require"
)

func writeJob(storage string, piece int, offset int64, payload []byte) *jobqueue.Job {
	j := jobqueue.NewJob(jobqueue.ActionWrite, storage, piece, offset, int64(len(payload)))
	j.Payload = payload
	return j
}

// TestWriteCoalesceThenFlush covers spec.md §8 scenario 4: two dirty blocks
// land on the same piece, stay on write_lru while dirty, and move off
// write_lru onto the read list once both have been flushed.
func TestWriteCoalesceThenFlush(t *testing.T) {
	c, _ := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	job0 := writeJob("torrent-a", 0, 0, make([]byte, testBlockSize))
	job1 := writeJob("torrent-a", 0, testBlockSize, make([]byte, testBlockSize))

	pe := c.AddDirtyBlock(storage, job0, 0, 4)
	c.AddDirtyBlock(storage, job1, 1, 4)

	require.Equal(t, StateWriteLRU, pe.CacheState)
	require.Equal(t, 2, pe.NumDirty())
	require.Equal(t, 2, c.WriteCacheSize())
	require.Len(t, pe.WriteJobs, 2)

	freed := c.BlocksFlushed(pe, []int{0, 1}, testBlockSize)
	require.False(t, freed)
	require.Equal(t, 0, pe.NumDirty())
	require.Equal(t, 0, c.WriteCacheSize())
	require.Equal(t, 2, c.ReadCacheSize())
	require.NotEqual(t, StateWriteLRU, pe.CacheState)

	assertInvariants(t, c)
}

// TestSupersededWriteCompletesEarlierJobWithError covers spec.md §7: a
// second write landing on a block still holding an unflushed write
// supersedes it, completing the earlier job with ErrSupersededWrite and
// freeing its buffer rather than leaking it.
func TestSupersededWriteCompletesEarlierJobWithError(t *testing.T) {
	c, alloc := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	var gotErr error
	buf0, _ := alloc.AllocateBuffer()
	job0 := writeJob("torrent-a", 0, 0, buf0)
	job0.OnComplete = func(res jobqueue.Result) { gotErr = res.Err }

	pe := c.AddDirtyBlock(storage, job0, 0, 4)
	require.Equal(t, 1, alloc.out)

	buf1, _ := alloc.AllocateBuffer()
	job1 := writeJob("torrent-a", 0, 0, buf1)
	c.AddDirtyBlock(storage, job1, 0, 4)
	require.Error(t, gotErr)
	require.Equal(t, 1, alloc.out) // old buffer freed, new one in its place
	require.Same(t, job1, pe.Blocks[0].writeJob)

	assertInvariants(t, c)
}

// TestBlocksFlushedBeyondHashCursorRequestsReadback covers spec.md §4.5: a
// dirty block whose byte range starts past the hash cursor's Offset is
// flushed before the hasher ever sees it, so the piece must be flagged for
// a storage readback rather than relying on the in-memory copy, which is now
// clean and may be evicted.
// A block entirely within the already-hashed range must not set the flag.
func TestBlocksFlushedBeyondHashCursorRequestsReadback(t *testing.T) {
	c, _ := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	job0 := writeJob("torrent-a", 0, 0, make([]byte, testBlockSize))
	job2 := writeJob("torrent-a", 0, 2*testBlockSize, make([]byte, testBlockSize))
	pe := c.AddDirtyBlock(storage, job0, 0, 4)
	c.AddDirtyBlock(storage, job2, 2, 4)

	pe.Hash = hashcursor.New()
	pe.Hash.Write(make([]byte, testBlockSize)) // cursor has only hashed block 0's bytes

	c.BlocksFlushed(pe, []int{0}, testBlockSize)
	require.False(t, pe.NeedReadback, "flushing a block within the hashed range must not request a readback")

	c.BlocksFlushed(pe, []int{2}, testBlockSize)
	require.True(t, pe.NeedReadback, "flushing a block beyond the hash cursor must request a readback")

	assertInvariants(t, c)
}

// TestAbortDirtyFreesUnpinnedBlocksOnly covers spec.md §4.5: AbortDirty
// drops unpinned dirty blocks but leaves a block pinned by an in-flight
// flush reference alone.
func TestAbortDirtyFreesUnpinnedBlocksOnly(t *testing.T) {
	c, _ := newTestCache(t, 64)
	storage := testStorage("torrent-a")

	job0 := writeJob("torrent-a", 0, 0, make([]byte, testBlockSize))
	job1 := writeJob("torrent-a", 0, testBlockSize, make([]byte, testBlockSize))
	pe := c.AddDirtyBlock(storage, job0, 0, 4)
	c.AddDirtyBlock(storage, job1, 1, 4)

	require.True(t, c.IncBlockRefcount(pe, 1, RefFlushing))

	c.AbortDirty(pe)
	require.False(t, pe.Blocks[0].hasBuffer())
	require.True(t, pe.Blocks[1].hasBuffer())
	require.True(t, pe.Blocks[1].Dirty)

	assertInvariants(t, c)
}
