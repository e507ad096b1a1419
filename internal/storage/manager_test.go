package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	id     string
	closed bool
}

func (f *fakeBackend) StorageID() string { return f.id }
func (f *fakeBackend) ReadAt(ctx context.Context, offset int64, buf []byte) (int, error) {
	return len(buf), nil
}
func (f *fakeBackend) WriteAt(ctx context.Context, offset int64, buf []byte) (int, error) {
	return len(buf), nil
}
func (f *fakeBackend) Sync(ctx context.Context) error { return nil }
func (f *fakeBackend) Close() error                   { f.closed = true; return nil }

func TestManagerHasNoBackendInitially(t *testing.T) {
	m := NewManager(context.Background(), nil)
	require.False(t, m.HasBackend())

	_, err := m.GetBackend()
	require.Error(t, err)
}

func TestSetBackendReplacesAndClosesPrevious(t *testing.T) {
	m := NewManager(context.Background(), nil)

	first := &fakeBackend{id: "a"}
	require.NoError(t, m.SetBackend(first))
	require.True(t, m.HasBackend())

	second := &fakeBackend{id: "b"}
	require.NoError(t, m.SetBackend(second))

	require.True(t, first.closed)
	require.False(t, second.closed)

	got, err := m.GetBackend()
	require.NoError(t, err)
	require.Equal(t, "b", got.StorageID())
}

func TestClearBackendClosesAndRemoves(t *testing.T) {
	m := NewManager(context.Background(), nil)
	backend := &fakeBackend{id: "a"}
	require.NoError(t, m.SetBackend(backend))

	require.NoError(t, m.ClearBackend())
	require.True(t, backend.closed)
	require.False(t, m.HasBackend())
}
