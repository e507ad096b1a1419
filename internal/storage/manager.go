// Package storage provides the block cache's storage-backend collaborator:
// the thing that actually performs disk I/O once the cache hands back a
// job (spec.md §1, "storage backend I/O" is explicitly out of the cache's
// own scope). Manager follows the lifecycle shape of the teacher's NNTP
// connection pool manager (internal/pool/manager.go): a single active
// backend, swappable at runtime, guarded by a RWMutex.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Backend performs the storage I/O a job describes. It is intentionally
// narrow: read a byte range, write a byte range, sync. Anything richer
// (piece layout, hashing) lives above it in the cache.
type Backend interface {
	StorageID() string
	ReadAt(ctx context.Context, offset int64, buf []byte) (int, error)
	WriteAt(ctx context.Context, offset int64, buf []byte) (int, error)
	Sync(ctx context.Context) error
	Close() error
}

// Manager centralizes access to the active storage backend, following the
// teacher's pool.Manager shape (SetProviders/ClearPool/HasPool) adapted to
// a single backend handle rather than a connection pool.
type Manager interface {
	// GetBackend returns the active backend, or an error if none is set.
	GetBackend() (Backend, error)
	// SetBackend installs b as the active backend, closing and replacing
	// whatever was active before.
	SetBackend(b Backend) error
	// ClearBackend closes and removes the active backend, if any.
	ClearBackend() error
	// HasBackend reports whether a backend is currently installed.
	HasBackend() bool
}

type manager struct {
	mu      sync.RWMutex
	backend Backend
	ctx     context.Context
	logger  *slog.Logger
}

// NewManager creates a backend manager with no active backend.
func NewManager(ctx context.Context, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		ctx:    ctx,
		logger: logger.With("component", "storage"),
	}
}

func (m *manager) GetBackend() (Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.backend == nil {
		return nil, fmt.Errorf("storage backend not available - none configured")
	}
	return m.backend, nil
}

func (m *manager) SetBackend(b Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		m.logger.InfoContext(m.ctx, "closing existing storage backend", "storage_id", m.backend.StorageID())
		if err := m.backend.Close(); err != nil {
			m.logger.WarnContext(m.ctx, "error closing previous storage backend", "err", err)
		}
		m.backend = nil
	}

	if b == nil {
		return nil
	}

	m.logger.InfoContext(m.ctx, "storage backend installed", "storage_id", b.StorageID())
	m.backend = b
	return nil
}

func (m *manager) ClearBackend() error {
	return m.SetBackend(nil)
}

func (m *manager) HasBackend() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend != nil
}
