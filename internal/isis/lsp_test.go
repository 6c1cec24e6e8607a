package isis_test

import (
	"slices"
	"testing"

	"github.com/ridgebreaker/ridgebreaker/internal/isis"
)

func TestLSPSetOrderedInsert(t *testing.T) {
	t.Parallel()
	s := isis.NewLSPSet()
	ids := []isis.LSPID{
		{SystemID: [6]byte{0, 0, 0, 0, 0, 3}},
		{SystemID: [6]byte{0, 0, 0, 0, 0, 1}},
		{SystemID: [6]byte{0, 0, 0, 0, 0, 2}},
	}
	for _, id := range ids {
		s.Add(id)
	}
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}

	got := s.Drain(3)
	want := []isis.LSPID{
		{SystemID: [6]byte{0, 0, 0, 0, 0, 1}},
		{SystemID: [6]byte{0, 0, 0, 0, 0, 2}},
		{SystemID: [6]byte{0, 0, 0, 0, 0, 3}},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty set after full drain, got len %d", s.Len())
	}
}

func TestLSPSetAddDuplicateIsNoop(t *testing.T) {
	t.Parallel()
	s := isis.NewLSPSet()
	id := isis.LSPID{SystemID: [6]byte{9, 9, 9, 9, 9, 9}, Fragment: 1}
	s.Add(id)
	s.Add(id)
	if s.Len() != 1 {
		t.Fatalf("expected duplicate add to be a no-op, got len %d", s.Len())
	}
}

func TestLSPSetRemove(t *testing.T) {
	t.Parallel()
	s := isis.NewLSPSet()
	a := isis.LSPID{SystemID: [6]byte{1, 1, 1, 1, 1, 1}}
	b := isis.LSPID{SystemID: [6]byte{2, 2, 2, 2, 2, 2}}
	s.Add(a)
	s.Add(b)
	s.Remove(a)
	if s.Len() != 1 {
		t.Fatalf("expected len 1 after remove, got %d", s.Len())
	}
	got := s.Drain(1)
	if got[0] != b {
		t.Fatalf("expected remaining entry %+v, got %+v", b, got[0])
	}
}

func TestLSPSetDrainPartial(t *testing.T) {
	t.Parallel()
	s := isis.NewLSPSet()
	for i := byte(0); i < 5; i++ {
		s.Add(isis.LSPID{SystemID: [6]byte{0, 0, 0, 0, 0, i}})
	}
	got := s.Drain(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 drained, got %d", len(got))
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 remaining, got %d", s.Len())
	}
}
