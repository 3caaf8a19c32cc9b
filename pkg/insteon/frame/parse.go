package frame

import (
	"fmt"

	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

// Raw frame layout (header + payload; STX and the modem's own command code
// are the header, owned by the modem per spec.md §1 — kept here only so
// the dedup signature in spec.md §4.2 can mask "byte 8", counted from the
// start of this buffer):
//
//	[0]    0x02 (STX)
//	[1]    frame type code (0x50 standard, 0x51 extended)
//	[2:5]  from address (hi, mid, low)
//	[5:8]  to address (hi, mid, low)
//	[8]    flags: high nibble = MsgType, low nibble = hopsLeft<<2 | maxHops
//	[9]    cmd_1
//	[10]   cmd_2
//	[11:25] usr_1..usr_14 (extended only)
const (
	typeCodeStandard byte = 0x50
	typeCodeExtended byte = 0x51

	headerLen = 2
	payloadStandardLen = 9
	payloadExtendedLen = 23
)

func encodeFlags(t schema.MsgType, maxHops, hopsLeft byte) byte {
	return (byte(t) << 4) | ((hopsLeft & 0x03) << 2) | (maxHops & 0x03)
}

func decodeFlags(flags byte) (t schema.MsgType, maxHops, hopsLeft byte) {
	t = schema.MsgType(flags >> 4)
	hopsLeft = (flags >> 2) & 0x03
	maxHops = flags & 0x03
	return
}

// Parse classifies a raw inbound wire buffer into an Incoming frame,
// per spec.md §4.2.
func Parse(raw []byte) (Incoming, error) {
	if len(raw) < headerLen+payloadStandardLen {
		return Incoming{}, fmt.Errorf("frame: buffer too short (%d bytes)", len(raw))
	}

	var length schema.MsgLength
	switch raw[1] {
	case typeCodeStandard:
		length = schema.LenStandard
	case typeCodeExtended:
		length = schema.LenExtended
	default:
		return Incoming{}, fmt.Errorf("frame: unrecognized frame type code 0x%02X", raw[1])
	}

	want := headerLen + payloadStandardLen
	if length == schema.LenExtended {
		want = headerLen + payloadExtendedLen
	}
	if len(raw) < want {
		return Incoming{}, fmt.Errorf("frame: buffer too short for %s frame (%d bytes)", length, len(raw))
	}

	from, _ := address.FromBytes(raw[2:5])
	to, _ := address.FromBytes(raw[5:8])
	msgType, maxHops, hopsLeft := decodeFlags(raw[8])

	in := Incoming{
		Source:   from,
		ToAddr:   to,
		Type:     msgType,
		Length:   length,
		Cmd1:     raw[9],
		Cmd2:     raw[10],
		MaxHops:  maxHops,
		HopsLeft: hopsLeft,
		Raw:      raw,
	}
	if length == schema.LenExtended {
		copy(in.Usr[:], raw[11:25])
	}
	return in, nil
}

// ToWire assembles the raw wire buffer for an outgoing frame, given the
// sender's own address (the PLM's) and the hop budget to stamp into the
// flags byte.
func ToWire(out Outgoing, from address.Address, maxHops byte) []byte {
	payloadLen := payloadStandardLen
	typeCode := typeCodeStandard
	if out.Length == schema.LenExtended {
		payloadLen = payloadExtendedLen
		typeCode = typeCodeExtended
	}
	raw := make([]byte, headerLen+payloadLen)
	raw[0] = 0x02
	raw[1] = typeCode
	fromBytes, toBytes := from.Bytes(), out.Target.Bytes()
	copy(raw[2:5], fromBytes[:])
	copy(raw[5:8], toBytes[:])
	raw[8] = encodeFlags(out.Type, maxHops, maxHops)
	raw[9] = out.Cmd1
	raw[10] = out.Cmd2
	if out.Length == schema.LenExtended {
		copy(raw[11:25], out.Usr[:])
	}
	return raw
}
