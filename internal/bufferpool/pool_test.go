package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateUpToCapacity(t *testing.T) {
	p := New(1024, 2, nil)

	buf1, ok := p.AllocateBuffer()
	require.True(t, ok)
	require.Len(t, buf1, 1024)

	buf2, ok := p.AllocateBuffer()
	require.True(t, ok)
	require.Len(t, buf2, 1024)

	require.Equal(t, 2, p.InUse())

	_, ok = p.AllocateBuffer()
	require.False(t, ok)
}

func TestFreeBufferReturnsItToTheFreeList(t *testing.T) {
	p := New(1024, 1, nil)

	buf, ok := p.AllocateBuffer()
	require.True(t, ok)
	p.FreeBuffer(buf)
	require.Equal(t, 0, p.InUse())

	_, ok = p.AllocateBuffer()
	require.True(t, ok)
}

func TestEvictFuncIsConsultedOnExhaustion(t *testing.T) {
	p := New(1024, 1, nil)
	buf, ok := p.AllocateBuffer()
	require.True(t, ok)

	calls := 0
	p.SetEvictFunc(func() bool {
		calls++
		p.FreeBuffer(buf)
		return true
	})

	got, ok := p.AllocateBuffer()
	require.True(t, ok)
	require.NotNil(t, got)
	require.Equal(t, 1, calls)
}

func TestExhaustionWithNoEvictFuncFails(t *testing.T) {
	p := New(1024, 1, nil)
	_, ok := p.AllocateBuffer()
	require.True(t, ok)

	_, ok = p.AllocateBuffer()
	require.False(t, ok)
}
