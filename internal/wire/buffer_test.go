package wire

import (
	"bytes"
	"testing"
)

func TestRebasePreservesTailAndResetsStart(t *testing.T) {
	b := NewBuffer(16)
	_ = b.Append([]byte("hello world"))
	b.Advance(6) // consume "hello "

	tailBefore := append([]byte(nil), b.Tail()...)

	b.Rebase()

	if b.StartIdx != 0 {
		t.Fatalf("StartIdx = %d, want 0", b.StartIdx)
	}
	if b.Idx != len(tailBefore) {
		t.Fatalf("Idx = %d, want %d", b.Idx, len(tailBefore))
	}
	if !bytes.Equal(b.Data[:b.Idx], tailBefore) {
		t.Fatalf("tail not preserved: got %q want %q", b.Data[:b.Idx], tailBefore)
	}
}

func TestAppendErrorsOnOverflow(t *testing.T) {
	b := NewBuffer(4)
	if err := b.Append([]byte("12345")); err != ErrBufferFull {
		t.Fatalf("err = %v, want ErrBufferFull", err)
	}
}

func TestCursorTryTakeBoundsChecked(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, err := c.TryTake(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.TryTake(2); err != ErrShortRead {
		t.Fatalf("err = %v, want ErrShortRead", err)
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutBEUint32(buf, 0x0001FFFF)
	if got := BEUint32(buf); got != 0x0001FFFF {
		t.Fatalf("got %x, want %x", got, 0x0001FFFF)
	}

	buf16 := make([]byte, 2)
	PutBEUint16(buf16, 65001)
	if got := BEUint16(buf16); got != 65001 {
		t.Fatalf("got %d, want 65001", got)
	}
}
