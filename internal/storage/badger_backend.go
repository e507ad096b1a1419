package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend is a demo/test Backend: storage is modeled as a flat byte
// address space, persisted one fixed-size page per key in a badger store.
// It exists to exercise the cache's external storage contract end to end
// (spec.md §1, §6) without standing up a real multi-gigabyte file backend;
// production deployments would swap this for a real disk-file Backend.
type BadgerBackend struct {
	id       string
	db       *badger.DB
	pageSize int64
}

// OpenBadgerBackend opens (creating if necessary) a badger store at dir and
// wraps it as a storage Backend identified by id.
func OpenBadgerBackend(id, dir string, pageSize int64) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger backend %q: %w", id, err)
	}
	return &BadgerBackend{id: id, db: db, pageSize: pageSize}, nil
}

func (b *BadgerBackend) StorageID() string { return b.id }

func (b *BadgerBackend) pageKey(page int64) []byte {
	key := make([]byte, 8+len(b.id))
	n := copy(key, b.id)
	binary.BigEndian.PutUint64(key[n:], uint64(page))
	return key
}

// ReadAt fills buf from the backend starting at offset. Pages that have
// never been written read back as zero, matching a sparse file's behavior.
func (b *BadgerBackend) ReadAt(ctx context.Context, offset int64, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		page := (offset + int64(n)) / b.pageSize
		pageOff := (offset + int64(n)) % b.pageSize
		chunk := min64(int64(len(buf)-n), b.pageSize-pageOff)

		err := b.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(b.pageKey(page))
			if err == badger.ErrKeyNotFound {
				clear(buf[n : n+int(chunk)]) // sparse: zero-fill
				return nil
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				if pageOff < int64(len(val)) {
					copy(buf[n:n+int(chunk)], val[pageOff:])
				}
				return nil
			})
		})
		if err != nil {
			return n, fmt.Errorf("storage: read page %d: %w", page, err)
		}
		n += int(chunk)
	}
	return n, nil
}

// WriteAt persists buf into the backend starting at offset, read-modifying
// whichever pages it partially overlaps.
func (b *BadgerBackend) WriteAt(ctx context.Context, offset int64, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		page := (offset + int64(n)) / b.pageSize
		pageOff := (offset + int64(n)) % b.pageSize
		chunk := min64(int64(len(buf)-n), b.pageSize-pageOff)

		err := b.db.Update(func(txn *badger.Txn) error {
			existing := make([]byte, b.pageSize)
			if item, err := txn.Get(b.pageKey(page)); err == nil {
				_ = item.Value(func(val []byte) error {
					copy(existing, val)
					return nil
				})
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			copy(existing[pageOff:pageOff+chunk], buf[n:n+int(chunk)])
			return txn.Set(b.pageKey(page), existing)
		})
		if err != nil {
			return n, fmt.Errorf("storage: write page %d: %w", page, err)
		}
		n += int(chunk)
	}
	return n, nil
}

// Sync flushes badger's write-ahead log to disk, the closest analogue to a
// POSIX fsync.
func (b *BadgerBackend) Sync(ctx context.Context) error {
	return b.db.Sync()
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
