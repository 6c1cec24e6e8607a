package bgp_test

import (
	"errors"
	"testing"

	"github.com/ridgebreaker/ridgebreaker/internal/bgp"
)

func TestDecodeHeaderShortFrame(t *testing.T) {
	t.Parallel()
	_, err := bgp.DecodeHeader(make([]byte, 10))
	if !errors.Is(err, bgp.ErrShortFrame) {
		t.Fatalf("got %v, want ErrShortFrame", err)
	}
}

func TestDecodeHeaderBadLength(t *testing.T) {
	t.Parallel()
	frame := make([]byte, bgp.MinMessageSize)
	frame[16] = 0x00
	frame[17] = 0x05 // length 5, below MinMessageSize -> S3 scenario
	_, err := bgp.DecodeHeader(frame)
	if !errors.Is(err, bgp.ErrBadLength) {
		t.Fatalf("got %v, want ErrBadLength", err)
	}
}

func TestDecodeHeaderLengthAboveMax(t *testing.T) {
	t.Parallel()
	frame := make([]byte, bgp.MinMessageSize)
	frame[16] = 0xFF
	frame[17] = 0xFF
	_, err := bgp.DecodeHeader(frame)
	if !errors.Is(err, bgp.ErrBadLength) {
		t.Fatalf("got %v, want ErrBadLength", err)
	}
}

func TestDecodeOpenBasicFields(t *testing.T) {
	t.Parallel()
	buf := bgp.EncodeOpen(65001, 90, 0x0A000001)
	hdr, err := bgp.DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	open, err := bgp.DecodeOpen(buf, hdr.Length)
	if err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}
	if open.PeerAS != 65001 {
		t.Errorf("PeerAS = %d, want 65001", open.PeerAS)
	}
	if open.HoldTime != 90 {
		t.Errorf("HoldTime = %d, want 90", open.HoldTime)
	}
	if open.RouterID != 0x0A000001 {
		t.Errorf("RouterID = %#x, want 0xa000001", open.RouterID)
	}
	if open.FourByteAS {
		t.Errorf("FourByteAS = true, want false (no capability present)")
	}
}

// TestDecodeOpenFourByteASCapability covers S2: a capability option code 65
// with length 4 overrides the 2-byte PeerAS field.
func TestDecodeOpenFourByteASCapability(t *testing.T) {
	t.Parallel()

	const fourByteAS = 0x00020001 // 131073, doesn't fit in 2 bytes

	base := bgp.EncodeOpen(1, 90, 0x0A000001) // 2-byte PeerAS placeholder = 1
	capValue := []byte{
		byte(fourByteAS >> 24 & 0xFF), byte(fourByteAS >> 16 & 0xFF), byte(fourByteAS >> 8 & 0xFF), byte(fourByteAS & 0xFF),
	}
	capability := append([]byte{65, 4}, capValue...) // code=65, length=4, value
	optParam := append([]byte{2, byte(len(capability))}, capability...) // type=2 (Capability)

	frame := append(base, optParam...)
	bgp.EncodeHeader(frame, uint16(len(frame)), bgp.MsgOpen)
	frame[28] = byte(len(optParam))

	open, err := bgp.DecodeOpen(frame, uint16(len(frame)))
	if err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}
	if !open.FourByteAS {
		t.Fatalf("FourByteAS = false, want true")
	}
	if open.PeerAS != fourByteAS {
		t.Fatalf("PeerAS = %d, want %d", open.PeerAS, fourByteAS)
	}
}

func TestDecodeOpenTooShort(t *testing.T) {
	t.Parallel()
	frame := make([]byte, bgp.MinMessageSize)
	bgp.EncodeHeader(frame, bgp.MinMessageSize, bgp.MsgOpen)
	_, err := bgp.DecodeOpen(frame, bgp.MinMessageSize)
	if !errors.Is(err, bgp.ErrOpenTooShort) {
		t.Fatalf("got %v, want ErrOpenTooShort", err)
	}
}

func TestDecodeOpenOptionOverrun(t *testing.T) {
	t.Parallel()
	frame := bgp.EncodeOpen(65001, 90, 1)
	frame[28] = 100 // claims 100 bytes of options that aren't present
	_, err := bgp.DecodeOpen(frame, uint16(len(frame)))
	if !errors.Is(err, bgp.ErrOptionOverrun) {
		t.Fatalf("got %v, want ErrOptionOverrun", err)
	}
}

func TestDecodeNotificationRoundTrip(t *testing.T) {
	t.Parallel()
	frame := bgp.EncodeNotification(bgp.ErrCodeCease, bgp.SubcodeCeaseOutOfResources)
	hdr, err := bgp.DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	notif, err := bgp.DecodeNotification(frame, hdr.Length)
	if err != nil {
		t.Fatalf("DecodeNotification: %v", err)
	}
	if notif.ErrorCode != bgp.ErrCodeCease || notif.ErrorSubcode != bgp.SubcodeCeaseOutOfResources {
		t.Fatalf("got (%d,%d), want (%d,%d)", notif.ErrorCode, notif.ErrorSubcode, bgp.ErrCodeCease, bgp.SubcodeCeaseOutOfResources)
	}
}

func TestDescribeNotificationKnownAndUnknown(t *testing.T) {
	t.Parallel()
	code, subcode := bgp.DescribeNotification(bgp.ErrCodeCease, bgp.SubcodeCeaseOutOfResources)
	if code != "Cease" || subcode != "Out of Resources" {
		t.Fatalf("got (%q,%q)", code, subcode)
	}
	code, subcode = bgp.DescribeNotification(99, 99)
	if code != "Unknown" || subcode != "Unknown" {
		t.Fatalf("got (%q,%q), want Unknown/Unknown", code, subcode)
	}
}
