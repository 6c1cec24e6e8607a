package rawupdate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileAndChainAdvance(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.raw")
	f2 := filepath.Join(dir, "b.raw")
	writeFile(t, f1, []byte{0x01, 0x02, 0x03})
	writeFile(t, f2, []byte{0x04, 0x05})

	chain, err := LoadChain([]string{f1, f2}, []uint32{1, 2}, []uint32{1, 1})
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if chain.Len() != 2 {
		t.Fatalf("Len = %d, want 2", chain.Len())
	}

	d := chain.Current()
	if d == nil || d.File != f1 || d.Messages != 1 {
		t.Fatalf("Current = %+v, want first descriptor", d)
	}

	chain.Advance()
	d = chain.Current()
	if d == nil || d.File != f2 || d.Messages != 2 {
		t.Fatalf("Current after advance = %+v, want second descriptor", d)
	}

	chain.Advance()
	if chain.Current() != nil {
		t.Fatal("expected nil after chain exhausted")
	}

	chain.Reset()
	if chain.Current().File != f1 {
		t.Fatal("expected reset to rewind to first descriptor")
	}
}

func TestLoadFileRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "empty.raw")
	writeFile(t, f, nil)

	if _, err := LoadFile(f, 0, 0); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err = %v, want ErrEmptyFile", err)
	}
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
