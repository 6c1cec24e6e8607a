package isis

import "sort"

// LSPID identifies one LSP fragment: a 6-byte system-id, a pseudo-node-id
// byte (0 for a non-pseudonode LSP), and a fragment number, matching the
// source's isis_lsp_id_compare ordering key.
type LSPID struct {
	SystemID     [6]byte
	PseudoNodeID uint8
	Fragment     uint8
}

// Less reports whether id sorts before other, comparing system-id,
// pseudo-node-id, then fragment in that order — the same precedence
// isis_lsp_id_compare uses.
func (id LSPID) Less(other LSPID) bool {
	if id.SystemID != other.SystemID {
		return string(id.SystemID[:]) < string(other.SystemID[:])
	}
	if id.PseudoNodeID != other.PseudoNodeID {
		return id.PseudoNodeID < other.PseudoNodeID
	}
	return id.Fragment < other.Fragment
}

// LSPSet is an ordered set of LSP-ids, used as both an adjacency's
// flood-tree (awaiting transmission) and PSNP-tree (awaiting partial-SNP
// acknowledgement), matching the source's hb_tree-backed sets (spec.md
// §3: "ordered sets keyed by LSP-id").
type LSPSet struct {
	ids []LSPID
}

// NewLSPSet returns an empty ordered set.
func NewLSPSet() *LSPSet {
	return &LSPSet{}
}

// Add inserts id, maintaining sorted order. A duplicate insert is a no-op.
func (s *LSPSet) Add(id LSPID) {
	i := sort.Search(len(s.ids), func(i int) bool { return !s.ids[i].Less(id) })
	if i < len(s.ids) && s.ids[i] == id {
		return
	}
	s.ids = append(s.ids, LSPID{})
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
}

// Remove deletes id from the set, if present.
func (s *LSPSet) Remove(id LSPID) {
	i := sort.Search(len(s.ids), func(i int) bool { return !s.ids[i].Less(id) })
	if i < len(s.ids) && s.ids[i] == id {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
}

// Len returns the number of entries currently in the set.
func (s *LSPSet) Len() int { return len(s.ids) }

// Drain pops and returns up to n entries in ascending LSP-id order,
// removing them from the set (spec.md §4.3: "the LSP transmit job drains
// up to window-size entries per tick").
func (s *LSPSet) Drain(n int) []LSPID {
	if n > len(s.ids) {
		n = len(s.ids)
	}
	out := append([]LSPID(nil), s.ids[:n]...)
	s.ids = s.ids[n:]
	return out
}
