package frame

import "encoding/hex"

// DedupSignature computes the normalized signature used by the per-device
// dedup cache (spec.md §4.2 step 2): the raw frame with the hop field
// (byte 8) masked to its high nibble, hex-encoded.
func (in *Incoming) DedupSignature() string {
	masked := make([]byte, len(in.Raw))
	copy(masked, in.Raw)
	if len(masked) > 8 {
		masked[8] &= 0xF0
	}
	return hex.EncodeToString(masked)
}
