package blockcache

import "container/list"

// lruSet holds the six LRU lists described in spec.md §4.2: write_lru,
// volatile_read_lru, read_lru1, read_lru1_ghost, read_lru2, read_lru2_ghost.
// Each is a doubly linked list with the head as least-recently-used and the
// tail as most-recently-used, backed by container/list since pieces are
// always referenced through stable *PieceEntry pointers (no arena/index
// indirection is needed in Go the way it is in the reference C++).
type lruSet struct {
	lists map[CacheState]*list.List
}

func newLRUSet() *lruSet {
	s := &lruSet{lists: make(map[CacheState]*list.List, 6)}
	for _, st := range []CacheState{
		StateWriteLRU, StateVolatileReadLRU,
		StateReadLRU1, StateReadLRU1Ghost,
		StateReadLRU2, StateReadLRU2Ghost,
	} {
		s.lists[st] = list.New()
	}
	return s
}

// linkInto unlinks pe from wherever it currently is and appends it to the
// tail (MRU end) of state's list.
func (s *lruSet) linkInto(pe *PieceEntry, state CacheState) {
	s.unlink(pe)
	if state == StateNone {
		pe.CacheState = StateNone
		return
	}
	pe.elem = s.lists[state].PushBack(pe)
	pe.CacheState = state
}

// unlink removes pe from its current list, if linked.
func (s *lruSet) unlink(pe *PieceEntry) {
	if pe.elem == nil {
		return
	}
	if l, ok := s.lists[pe.CacheState]; ok {
		l.Remove(pe.elem)
	}
	pe.elem = nil
}

// bump moves pe to the tail (MRU) of its current list without changing
// which list it's in. Used to keep in-flight write-LRU pieces warm
// (spec.md §4.2 bump_lru).
func (s *lruSet) bump(pe *PieceEntry) {
	if pe.elem == nil {
		return
	}
	l := s.lists[pe.CacheState]
	l.MoveToBack(pe.elem)
}

// front returns the least-recently-used piece in state's list, or nil.
func (s *lruSet) front(state CacheState) *PieceEntry {
	l := s.lists[state]
	e := l.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*PieceEntry)
}

// length returns the number of pieces linked into state's list.
func (s *lruSet) length(state CacheState) int {
	return s.lists[state].Len()
}

// forEach walks state's list from head (LRU) to tail (MRU), stopping early
// if fn returns false.
func (s *lruSet) forEach(state CacheState, fn func(*PieceEntry) bool) {
	l := s.lists[state]
	for e := l.Front(); e != nil; {
		next := e.Next()
		if !fn(e.Value.(*PieceEntry)) {
			return
		}
		e = next
	}
}
