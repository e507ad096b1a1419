package blockcache

import "fmt"

// invariantError reports a violated invariant (spec.md §3). It is only
// constructed by checkInvariants and the Debug-mode assertion path; it is
// never returned by normal cache operation.
type invariantError struct {
	storage string
	piece   int
	msg     string
}

func (e *invariantError) Error() string {
	return fmt.Sprintf("blockcache: invariant violated for piece (%s, %d): %s", e.storage, e.piece, e.msg)
}

func invariantErrorf(pe *PieceEntry, format string, args ...any) error {
	storage := "<nil>"
	if pe.Storage != nil {
		storage = pe.Storage.StorageID()
	}
	return &invariantError{storage: storage, piece: pe.Piece, msg: fmt.Sprintf(format, args...)}
}
