package bgp

import (
	"errors"
	"fmt"

	"github.com/ridgebreaker/ridgebreaker/internal/wire"
)

// Wire framing constants (spec §4.1, bgp_def.h).
const (
	MinMessageSize = 19
	MaxMessageSize = 4096
	MarkerSize     = 16
	HeaderSize     = MarkerSize + 2 + 1 // marker + length + type

	MsgOpen         = 1
	MsgUpdate       = 2
	MsgNotification = 3
	MsgKeepalive    = 4

	optCapability    = 2
	capFourByteAS    = 65
	openMinLength    = 29
	notificationMinLength = 21
)

// Notification error code / subcode pairs (spec §7 tier 1, bgp_def.h).
const (
	ErrCodeMessageHeader = 1
	ErrCodeOpenMessage   = 2
	ErrCodeUpdateMessage = 3
	ErrCodeHoldExpired   = 4
	ErrCodeFSM           = 5
	ErrCodeCease         = 6

	SubcodeBadMessageLength = 2
	SubcodeCeaseOutOfResources = 8
)

var (
	// ErrShortFrame indicates fewer than MinMessageSize bytes were supplied
	// to a decode function that requires a full header.
	ErrShortFrame = errors.New("bgp: frame shorter than minimum header size")
	// ErrBadLength indicates the header's length field falls outside
	// [MinMessageSize, MaxMessageSize].
	ErrBadLength = errors.New("bgp: length field out of bounds")
	// ErrOpenTooShort indicates an OPEN payload is shorter than the fixed
	// fields plus optional-parameters length byte require.
	ErrOpenTooShort = errors.New("bgp: open message too short")
	// ErrOptionOverrun indicates an optional parameter or capability claims
	// a length that would read past the declared message bounds.
	ErrOptionOverrun = errors.New("bgp: optional parameter overruns message")
	// ErrNotificationTooShort indicates a NOTIFICATION payload is shorter
	// than the fixed error_code/error_subcode fields require.
	ErrNotificationTooShort = errors.New("bgp: notification message too short")
)

// Header is a decoded BGP message header (spec §4.1 "Wire framing").
type Header struct {
	Length uint16
	Type   uint8
}

// DecodeHeader validates and extracts the 19-byte header from the front of
// frame. frame must be at least MinMessageSize bytes.
//
// Grounded on bgp_read's initial checks: size < 19 means "wait for more",
// modeled here as ErrShortFrame; length outside [19,4096] is ErrBadLength.
func DecodeHeader(frame []byte) (Header, error) {
	if len(frame) < MinMessageSize {
		return Header{}, ErrShortFrame
	}
	length := wire.BEUint16(frame[MarkerSize : MarkerSize+2])
	if length < MinMessageSize || length > MaxMessageSize {
		return Header{}, ErrBadLength
	}
	return Header{Length: length, Type: frame[MarkerSize+2]}, nil
}

// Open is the decoded fixed-format portion of an OPEN message plus any
// recognized capabilities (spec §4.1 "OPEN decode").
type Open struct {
	PeerAS      uint32
	HoldTime    uint16
	RouterID    uint32
	FourByteAS  bool
}

// DecodeOpen parses an OPEN message's payload (frame[0:length), where
// length is the already-validated header length). Offsets are grounded
// byte-exact on bgp_open in bgp_receive.c: peer AS at [20:22), hold time
// at [22:24), router-id at [24:28), optional-parameters length at byte 28,
// optional parameters starting at index 29.
func DecodeOpen(frame []byte, length uint16) (Open, error) {
	if length < openMinLength {
		return Open{}, ErrOpenTooShort
	}

	out := Open{
		PeerAS:   uint32(wire.BEUint16(frame[20:22])),
		HoldTime: wire.BEUint16(frame[22:24]),
		RouterID: wire.BEUint32(frame[24:28]),
	}

	optLength := frame[28]
	optIdx := 29
	if int(optLength)+optIdx > int(length) {
		return Open{}, ErrOptionOverrun
	}

	for optIdx+2 <= int(length) {
		paramType := frame[optIdx]
		paramLength := int(frame[optIdx+1])
		optIdx += 2
		if optIdx+paramLength > int(length) {
			return Open{}, ErrOptionOverrun
		}
		if paramType == optCapability {
			as, fourByte, err := decodeCapabilities(frame[optIdx:optIdx+paramLength], out.PeerAS)
			if err != nil {
				return Open{}, err
			}
			out.PeerAS = as
			if fourByte {
				out.FourByteAS = true
			}
		}
		optIdx += paramLength
	}

	return out, nil
}

// decodeCapabilities iterates a capability-option's value as
// code/length/value triples (spec §4.1: "Parameter type 2 (Capability) is
// recursively iterated as capability-code/length/value"). Capability code
// 65 (4-byte AS) with length 4 overwrites peerAS; unknown capabilities are
// ignored. Grounded on bgp_capability in bgp_receive.c.
func decodeCapabilities(buf []byte, peerAS uint32) (uint32, bool, error) {
	c := wire.NewCursor(buf)
	fourByte := false
	for c.Remaining() >= 2 {
		code, err := c.TryUint8()
		if err != nil {
			return 0, false, fmt.Errorf("decode capability code: %w", ErrOptionOverrun)
		}
		length, err := c.TryUint8()
		if err != nil {
			return 0, false, fmt.Errorf("decode capability length: %w", ErrOptionOverrun)
		}
		value, err := c.TryTake(int(length))
		if err != nil {
			return 0, false, fmt.Errorf("decode capability value: %w", ErrOptionOverrun)
		}
		if code == capFourByteAS {
			if length != 4 {
				return 0, false, ErrOptionOverrun
			}
			peerAS = wire.BEUint32(value)
			fourByte = true
		}
	}
	return peerAS, fourByte, nil
}

// Notification is a decoded NOTIFICATION message's fixed fields (spec §7
// tier 1).
type Notification struct {
	ErrorCode    uint8
	ErrorSubcode uint8
}

// DecodeNotification extracts error_code (byte 19) and error_subcode (byte
// 20) of the payload, grounded byte-exact on bgp_notification in
// bgp_receive.c.
func DecodeNotification(frame []byte, length uint16) (Notification, error) {
	if length < notificationMinLength {
		return Notification{}, ErrNotificationTooShort
	}
	return Notification{ErrorCode: frame[19], ErrorSubcode: frame[20]}, nil
}

// EncodeHeader writes a MarkerSize-byte 0xFF marker followed by the
// big-endian length and type byte into the front of buf, which must be at
// least HeaderSize bytes (spec §6 "Wire compatibility").
func EncodeHeader(buf []byte, length uint16, msgType uint8) {
	for i := 0; i < MarkerSize; i++ {
		buf[i] = 0xFF
	}
	wire.PutBEUint16(buf[MarkerSize:MarkerSize+2], length)
	buf[MarkerSize+2] = msgType
}

// EncodeKeepalive returns a complete 19-byte KEEPALIVE message.
func EncodeKeepalive() []byte {
	buf := make([]byte, MinMessageSize)
	EncodeHeader(buf, MinMessageSize, MsgKeepalive)
	return buf
}

// EncodeNotification returns a complete NOTIFICATION message carrying the
// given error code/subcode and no data octets.
func EncodeNotification(errorCode, errorSubcode uint8) []byte {
	buf := make([]byte, notificationMinLength)
	EncodeHeader(buf, notificationMinLength, MsgNotification)
	buf[19] = errorCode
	buf[20] = errorSubcode
	return buf
}

// EncodeOpen returns a complete OPEN message with no optional parameters,
// for the session's own outbound OPEN (spec §4.1: "the transport connect,
// ... dispatches on type" implies a symmetric encoder the session uses to
// speak OPEN to the peer).
func EncodeOpen(localAS uint32, holdTime uint16, routerID uint32) []byte {
	buf := make([]byte, openMinLength)
	EncodeHeader(buf, openMinLength, MsgOpen)
	buf[19] = 4 // BGP version 4
	wire.PutBEUint16(buf[20:22], uint16(localAS))
	wire.PutBEUint16(buf[22:24], holdTime)
	wire.PutBEUint32(buf[24:28], routerID)
	buf[28] = 0 // no optional parameters
	return buf
}
