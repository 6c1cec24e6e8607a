package ldp

import "net/netip"

// IsActive implements spec §4.2's role election: "the peer whose transport
// address... is numerically greater takes the active role and will
// connect(); the other takes passive and will listen() and accept()".
//
// netip.Addr.As4()/As16() byte slices are big-endian, so a plain
// lexicographic byte compare is simultaneously the 4-byte big-endian
// numeric compare the spec calls for on IPv4 and the byte-compare it
// calls for on IPv6 — one implementation covers both families.
func IsActive(local, peer netip.Addr) bool {
	lb := local.AsSlice()
	pb := peer.AsSlice()
	n := len(lb)
	if len(pb) < n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		if lb[i] != pb[i] {
			return lb[i] > pb[i]
		}
	}
	return len(lb) > len(pb)
}
