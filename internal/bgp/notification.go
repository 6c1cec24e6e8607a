package bgp

// This file carries the full NOTIFICATION error-code/subcode taxonomy
// recovered from bgp_receive.c's bgp_notification_*_error_values tables
// in the original source. spec.md §4.1 treats UPDATE payloads as opaque
// and doesn't re-specify this taxonomy, but a complete implementation
// still wants human-readable logging for received NOTIFICATIONs.

var errorCodeNames = map[uint8]string{
	ErrCodeMessageHeader: "Message Header Error",
	ErrCodeOpenMessage:   "OPEN Message Error",
	ErrCodeUpdateMessage: "UPDATE Message Error",
	ErrCodeHoldExpired:   "Hold Timer Expired",
	ErrCodeFSM:           "FSM Error",
	ErrCodeCease:         "Cease",
}

var headerSubcodeNames = map[uint8]string{
	1: "Connection Not Synchronized",
	2: "Bad Message Length",
	3: "Bad Message Type",
}

var openSubcodeNames = map[uint8]string{
	1: "Unsupported Version Number",
	2: "Bad Peer AS",
	3: "Bad BGP Identifier",
	4: "Unsupported Optional Parameter",
	6: "Unacceptable Hold Time",
}

var updateSubcodeNames = map[uint8]string{
	1:  "Malformed Attribute List",
	2:  "Unrecognized Well-known Attribute",
	3:  "Missing Well-known Attribute",
	4:  "Attribute Flags Error",
	5:  "Attribute Length Error",
	6:  "Invalid ORIGIN Attribute",
	8:  "Invalid NEXT_HOP Attribute",
	9:  "Optional Attribute Error",
	10: "Invalid Network Field",
	11: "Malformed AS_PATH",
}

var ceaseSubcodeNames = map[uint8]string{
	1: "Maximum Number of Prefixes Reached",
	2: "Administrative Shutdown",
	3: "Peer De-configured",
	4: "Administrative Reset",
	5: "Connection Rejected",
	6: "Other Configuration Change",
	7: "Connection Collision Resolution",
	8: "Out of Resources",
}

// DescribeNotification returns the human-readable names of an error code
// and its subcode for logging ("Unknown" for a value not in the tables),
// mirroring the per-error-code subcode table lookups in bgp_notification.
func DescribeNotification(errorCode, errorSubcode uint8) (codeName, subcodeName string) {
	codeName = errorCodeNames[errorCode]
	if codeName == "" {
		codeName = "Unknown"
	}

	var table map[uint8]string
	switch errorCode {
	case ErrCodeMessageHeader:
		table = headerSubcodeNames
	case ErrCodeOpenMessage:
		table = openSubcodeNames
	case ErrCodeUpdateMessage:
		table = updateSubcodeNames
	case ErrCodeCease:
		table = ceaseSubcodeNames
	}
	subcodeName = table[errorSubcode]
	if subcodeName == "" {
		subcodeName = "Unknown"
	}
	return codeName, subcodeName
}
