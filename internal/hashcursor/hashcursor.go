// Package hashcursor carries the piece-hashing state a block cache must
// thread across asynchronous hash jobs (spec.md §4.5, §9 "partial hash
// object"). SHA-1 computation itself is out of scope for the cache; this
// package only owns the cursor (bytes hashed so far) and an opaque hasher
// state built on the standard library's crypto/sha1, which already
// implements the marshal/unmarshal contract an "opaque context" needs via
// encoding.BinaryMarshaler/BinaryUnmarshaler.
package hashcursor

import (
	"crypto/sha1"
	"encoding"
	"fmt"
	"hash"
)

// Cursor is the partial_hash of spec.md §4.5: an offset into the piece that
// has been hashed so far, plus an opaque hasher context. Hashing proceeds
// sequentially from offset 0; ownership of a Cursor is exclusive to its
// piece (§9 — correctness depends on the single-disk-thread discipline of
// spec.md §5, not on any locking here).
type Cursor struct {
	// Offset is the number of bytes in the piece hashed so far.
	Offset int
	h       hash.Hash
}

// New returns a fresh cursor with offset 0.
func New() *Cursor {
	return &Cursor{h: sha1.New()}
}

// Write feeds bytes into the hasher and advances Offset. The caller is
// responsible for ensuring bytes are fed in order starting from Offset 0
// and without gaps; Write does not check this.
func (c *Cursor) Write(p []byte) {
	if c.h == nil {
		c.h = sha1.New()
	}
	c.h.Write(p)
	c.Offset += len(p)
}

// Sum returns the SHA-1 digest of everything written so far without
// finalizing the running hash (safe to call mid-stream).
func (c *Cursor) Sum() [sha1.Size]byte {
	var out [sha1.Size]byte
	if c.h == nil {
		return out
	}
	copy(out[:], c.h.Sum(nil))
	return out
}

// Clone returns an independent copy of the cursor, including hasher state.
// Used when a piece needs to fork its hash progress (e.g. before a
// speculative re-hash after a readback).
func (c *Cursor) Clone() (*Cursor, error) {
	marshaler, ok := c.h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("hashcursor: hasher does not support cloning")
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hashcursor: marshal hasher state: %w", err)
	}
	h2 := sha1.New()
	if err := h2.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("hashcursor: unmarshal hasher state: %w", err)
	}
	return &Cursor{Offset: c.Offset, h: h2}, nil
}
