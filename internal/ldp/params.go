package ldp

import "time"

// NegotiateMaxPDULen implements spec §4.2: "the negotiated max PDU length
// is peer.max_pdu_len if it is both > 255 and < local.max_pdu_len, else
// local.max_pdu_len".
func NegotiateMaxPDULen(localMaxPDU, peerMaxPDU uint16) uint16 {
	if peerMaxPDU > MinPDULength && peerMaxPDU < localMaxPDU {
		return peerMaxPDU
	}
	return localMaxPDU
}

// NegotiateKeepaliveTime implements spec §4.2: "the negotiated keepalive
// time is min(peer.keepalive_time, local.keepalive_time) when the peer
// sent a non-zero value, else local.keepalive_time".
func NegotiateKeepaliveTime(localKeepalive, peerKeepalive uint16) uint16 {
	if peerKeepalive == 0 {
		return localKeepalive
	}
	if peerKeepalive < localKeepalive {
		return peerKeepalive
	}
	return localKeepalive
}

// KeepaliveInterval implements spec §4.2: "the keepalive transmit interval
// is ceil(keepalive_time / 3) with a floor of 1 second".
func KeepaliveInterval(keepaliveTime uint16) time.Duration {
	interval := (int(keepaliveTime) + 2) / 3
	if interval < 1 {
		interval = 1
	}
	return time.Duration(interval) * time.Second
}
