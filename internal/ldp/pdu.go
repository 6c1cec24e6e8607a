package ldp

import "github.com/ridgebreaker/ridgebreaker/internal/wire"

// Wire framing constants (spec §6 "LDP PDU layout uses the standard
// version/length/LSR-id/label-space framing and TLV-encoded messages").
// Message type codes are RFC 5036's well-known values.
const (
	Version = 1

	PDUHeaderSize = 10 // version(2) + pdu length(2) + lsr-id(4) + label-space(2)

	MsgNotification  = 0x0001
	MsgInitialization = 0x0200
	MsgKeepalive     = 0x0201
	MsgAddress       = 0x0300
	MsgAddressWithdraw = 0x0301
	MsgLabelMapping  = 0x0400

	MessageHeaderSize = 8 // type(2) + length(2) + message-id(4)

	MinPDULength = 255
)

// PDUHeader is the decoded fixed LDP PDU header.
type PDUHeader struct {
	Length      uint16
	LSRID       uint32
	LabelSpace  uint16
}

// DecodePDUHeader extracts the 10-byte PDU header from the front of frame.
func DecodePDUHeader(frame []byte) (PDUHeader, error) {
	c := wire.NewCursor(frame)
	if _, err := c.TryUint16(); err != nil { // version, unused beyond presence
		return PDUHeader{}, err
	}
	length, err := c.TryUint16()
	if err != nil {
		return PDUHeader{}, err
	}
	lsrID, err := c.TryUint32()
	if err != nil {
		return PDUHeader{}, err
	}
	labelSpace, err := c.TryUint16()
	if err != nil {
		return PDUHeader{}, err
	}
	return PDUHeader{Length: length, LSRID: lsrID, LabelSpace: labelSpace}, nil
}

// MessageHeader is a decoded LDP message's fixed fields (type, length,
// message id), preceding its TLV-encoded value.
type MessageHeader struct {
	Type      uint16
	Length    uint16
	MessageID uint32
}

// DecodeMessageHeader extracts the 8-byte message header from the front of
// buf.
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	c := wire.NewCursor(buf)
	typ, err := c.TryUint16()
	if err != nil {
		return MessageHeader{}, err
	}
	length, err := c.TryUint16()
	if err != nil {
		return MessageHeader{}, err
	}
	id, err := c.TryUint32()
	if err != nil {
		return MessageHeader{}, err
	}
	return MessageHeader{Type: typ & 0x7FFF, Length: length, MessageID: id}, nil
}

// InitParams carries a decoded INIT message's session-parameters TLV
// fields relevant to negotiation (spec §4.2 "Parameter negotiation").
type InitParams struct {
	KeepaliveTime uint16
	MaxPDULen     uint16
}

// EncodePDUHeader writes a 10-byte LDP PDU header into the front of buf.
func EncodePDUHeader(buf []byte, length uint16, lsrID uint32, labelSpace uint16) {
	wire.PutBEUint16(buf[0:2], Version)
	wire.PutBEUint16(buf[2:4], length)
	wire.PutBEUint32(buf[4:8], lsrID)
	wire.PutBEUint16(buf[8:10], labelSpace)
}

// EncodeKeepalive returns a complete KEEPALIVE PDU (header + one message,
// no TLVs) addressed from lsrID/labelSpace.
func EncodeKeepalive(lsrID uint32, labelSpace uint16, messageID uint32) []byte {
	buf := make([]byte, PDUHeaderSize+MessageHeaderSize)
	msgLen := uint16(MessageHeaderSize - 4) // length field excludes type+length
	EncodeMessageHeader(buf[PDUHeaderSize:], MsgKeepalive, msgLen, messageID)
	EncodePDUHeader(buf, uint16(len(buf)-4), lsrID, labelSpace)
	return buf
}

// EncodeMessageHeader writes an 8-byte message header into the front of
// buf.
func EncodeMessageHeader(buf []byte, msgType, length uint16, messageID uint32) {
	wire.PutBEUint16(buf[0:2], msgType)
	wire.PutBEUint16(buf[2:4], length)
	wire.PutBEUint32(buf[4:8], messageID)
}

// EncodeInit returns a complete INIT PDU carrying the session's keepalive
// time and max-PDU-length in an opaque parameters blob (spec treats the
// common session-parameters TLV as fixed-format for this engine's needs).
func EncodeInit(lsrID uint32, labelSpace uint16, messageID uint32, keepaliveTime, maxPDULen uint16) []byte {
	const paramsLen = 4
	buf := make([]byte, PDUHeaderSize+MessageHeaderSize+paramsLen)
	msgLen := uint16(MessageHeaderSize - 4 + paramsLen)
	EncodeMessageHeader(buf[PDUHeaderSize:], MsgInitialization, msgLen, messageID)
	params := buf[PDUHeaderSize+MessageHeaderSize:]
	wire.PutBEUint16(params[0:2], keepaliveTime)
	wire.PutBEUint16(params[2:4], maxPDULen)
	EncodePDUHeader(buf, uint16(len(buf)-4), lsrID, labelSpace)
	return buf
}

// DecodeInitParams extracts the keepalive-time/max-PDU-length pair from an
// INIT message's value, which this engine treats as a fixed 4-byte
// parameters blob (spec §1 non-goal: full TLV parsing beyond what
// negotiation needs).
func DecodeInitParams(value []byte) (InitParams, error) {
	c := wire.NewCursor(value)
	keepalive, err := c.TryUint16()
	if err != nil {
		return InitParams{}, err
	}
	maxPDU, err := c.TryUint16()
	if err != nil {
		return InitParams{}, err
	}
	return InitParams{KeepaliveTime: keepalive, MaxPDULen: maxPDU}, nil
}

// EncodeNotification returns a complete NOTIFICATION PDU carrying the
// given status code.
func EncodeNotification(lsrID uint32, labelSpace uint16, messageID uint32, statusCode uint32) []byte {
	const statusLen = 4
	buf := make([]byte, PDUHeaderSize+MessageHeaderSize+statusLen)
	msgLen := uint16(MessageHeaderSize - 4 + statusLen)
	EncodeMessageHeader(buf[PDUHeaderSize:], MsgNotification, msgLen, messageID)
	wire.PutBEUint32(buf[PDUHeaderSize+MessageHeaderSize:], statusCode)
	EncodePDUHeader(buf, uint16(len(buf)-4), lsrID, labelSpace)
	return buf
}

// Status codes (spec §7 tier 1: "LDP: SHUTDOWN, INTERNAL_ERROR,
// KEEPALIVE_TIMER_EXPIRED, each OR'd with FATAL_ERROR"), values per RFC
// 5036 §3.5.2.1.
const (
	StatusSuccess                = 0x00000000
	StatusShutdown                = 0x0000000A
	StatusInternalError           = 0x00000019
	StatusKeepaliveTimerExpired   = 0x00000014
	FatalErrorBit          uint32 = 1 << 31
)
