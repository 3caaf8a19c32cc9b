// Package address implements the 3-byte Insteon device address: its wire
// representation, its conventional "AA.BB.CC" text form, and parsing
// between the two.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 3-byte Insteon device address (hi, mid, low), as described
// in spec.md §3.
type Address struct {
	Hi, Mid, Low byte
}

// Zero is the unset address.
var Zero = Address{}

// New builds an Address from its three bytes.
func New(hi, mid, low byte) Address {
	return Address{Hi: hi, Mid: mid, Low: low}
}

// FromBytes builds an Address from a 3-byte slice, mirroring the original
// ID_STR_TO_BYTES conversion's output shape.
func FromBytes(b []byte) (Address, error) {
	if len(b) != 3 {
		return Address{}, fmt.Errorf("address: need exactly 3 bytes, got %d", len(b))
	}
	return Address{Hi: b[0], Mid: b[1], Low: b[2]}, nil
}

// Parse converts the conventional "AA.BB.CC" (or "AABBCC") text form used in
// configuration files into an Address.
func Parse(s string) (Address, error) {
	cleaned := strings.ReplaceAll(s, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return Address{}, fmt.Errorf("address: invalid address %q: %w", s, err)
	}
	return FromBytes(b)
}

// Bytes returns the 3-byte wire form.
func (a Address) Bytes() [3]byte {
	return [3]byte{a.Hi, a.Mid, a.Low}
}

// String renders the conventional "AA.BB.CC" form.
func (a Address) String() string {
	return fmt.Sprintf("%02X.%02X.%02X", a.Hi, a.Mid, a.Low)
}

// IsZero reports whether this is the unset address.
func (a Address) IsZero() bool {
	return a == Zero
}
