// Package aldb implements the in-memory ALDB (All-Link Database) manager
// described in spec.md §3/§4.7: a record store mirroring a device's
// on-board link table, keyed on 8-byte-aligned addresses.
package aldb

// Key identifies a record by its base address: msb and an lsb that must
// always be 8-byte aligned (spec.md's "ALDB key normalization" invariant).
type Key struct {
	MSB byte
	LSB byte
}

// NewKey normalizes lsb down to its 8-byte-aligned base before building
// the Key, per spec.md §4.7 "Records are keyed by (msb, lsb & 0xF8)".
func NewKey(msb, lsb byte) Key {
	return Key{MSB: msb, LSB: lsb &^ 0x07}
}

// Record is one 8-byte ALDB entry.
type Record struct {
	LinkFlags byte
	Group     byte
	DevAddrHi byte
	DevAddrMid byte
	DevAddrLow byte
	Data1     byte
	Data2     byte
	Data3     byte
}

// field position indices, matching original_source's positions list:
// ['link_flags','group','dev_addr_hi','dev_addr_mid','dev_addr_low',
//  'data_1','data_2','data_3'].
const (
	PosLinkFlags = 0
	PosGroup     = 1
	PosDevAddrHi = 2
	PosDevAddrMid = 3
	PosDevAddrLow = 4
	PosData1     = 5
	PosData2     = 6
	PosData3     = 7
)

// FromBytes builds a Record from its 8-byte wire body.
func FromBytes(b [8]byte) Record {
	return Record{
		LinkFlags: b[0], Group: b[1],
		DevAddrHi: b[2], DevAddrMid: b[3], DevAddrLow: b[4],
		Data1: b[5], Data2: b[6], Data3: b[7],
	}
}

// Bytes returns the 8-byte wire body.
func (r Record) Bytes() [8]byte {
	return [8]byte{
		r.LinkFlags, r.Group,
		r.DevAddrHi, r.DevAddrMid, r.DevAddrLow,
		r.Data1, r.Data2, r.Data3,
	}
}

// ByteAt returns the byte at a position index 0..7.
func (r Record) ByteAt(pos int) byte {
	return r.Bytes()[pos]
}

// link_flags bits. Bit 7 and bit 6 are the protocol-defined in-use and
// controller flags spec.md §3 names. Bit 1 carries a dedicated
// high-water-mark flag marking the true end of the table, independent of
// "all-zero": an unused or deleted slot encountered mid-table can read
// back as all-zero too, and scanning must tell the two apart (spec.md §8
// seed scenario 4).
const (
	linkFlagInUse         = 0x80
	linkFlagController    = 0x40
	linkFlagHighWaterMark = 0x02
)

// IsInUse reports bit 7 of link_flags.
func (r Record) IsInUse() bool {
	return r.LinkFlags&linkFlagInUse != 0
}

// IsController reports bit 6 of link_flags.
func (r Record) IsController() bool {
	return r.LinkFlags&linkFlagController != 0
}

// IsLast reports whether this record is the physical end-of-table
// terminator, carried by its own high-water-mark flag rather than
// inferred from an all-zero body. A record can be empty without being
// last (an ordinary deleted or never-written mid-table slot) and the
// scan must keep walking past it.
func (r Record) IsLast() bool {
	return r.LinkFlags&linkFlagHighWaterMark != 0
}

// IsEmpty reports whether the entire 8-byte body is zero.
func (r Record) IsEmpty() bool {
	return r == Record{}
}
