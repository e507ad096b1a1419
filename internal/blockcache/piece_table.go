package blockcache

// pieceTable is a hash-indexed set of resident pieces keyed by
// (storage-handle, piece-index), spec.md §4.1. Ordering lives entirely in
// the LRU lists; the table itself has none.
type pieceTable struct {
	entries map[pieceKey]*PieceEntry
}

func newPieceTable() *pieceTable {
	return &pieceTable{entries: make(map[pieceKey]*PieceEntry)}
}

// find returns the resident entry for (storage, piece), or nil.
func (t *pieceTable) find(storage StorageHandle, piece int) *PieceEntry {
	return t.entries[pieceKey{storage: storage.StorageID(), piece: piece}]
}

// findKey looks up an entry by its raw composite key, used by code paths
// (like the read path) that only have a storage identifier string rather
// than a full StorageHandle.
func (t *pieceTable) findKey(storageID string, piece int) *PieceEntry {
	return t.entries[pieceKey{storage: storageID, piece: piece}]
}

// insert adds pe to the table, keyed by its own storage/piece fields.
func (t *pieceTable) insert(pe *PieceEntry) {
	t.entries[pe.key()] = pe
}

// erase removes pe from the table.
func (t *pieceTable) erase(pe *PieceEntry) {
	delete(t.entries, pe.key())
}

// all returns every resident piece, including ghosts, in unspecified order.
func (t *pieceTable) all() []*PieceEntry {
	out := make([]*PieceEntry, 0, len(t.entries))
	for _, pe := range t.entries {
		out = append(out, pe)
	}
	return out
}

func (t *pieceTable) len() int {
	return len(t.entries)
}
