// Package schema is the static message schema registry described in
// spec.md §4.1: a name-keyed table of outgoing command templates, and the
// inbound dispatch tables keyed by cmd_1 and narrowed by
// DevCat/SubCat/Firmware/Cmd2. None of it is mutated at runtime (REDESIGN
// FLAGS: "Global mutable schema tables should be compile-time static data").
package schema

// MsgLength is the wire length class of a message.
type MsgLength int

const (
	LenStandard MsgLength = iota // 9 bytes of payload
	LenExtended                  // 23 bytes of payload
)

func (l MsgLength) String() string {
	if l == LenExtended {
		return "extended"
	}
	return "standard"
}

// MsgType is the Insteon message class.
type MsgType int

const (
	MsgDirect MsgType = iota
	MsgDirectAck
	MsgDirectNack
	MsgBroadcast
	MsgAllLinkCleanup
	MsgAllLinkCleanupAck
)

func (t MsgType) String() string {
	switch t {
	case MsgDirectAck:
		return "direct_ack"
	case MsgDirectNack:
		return "direct_nack"
	case MsgBroadcast:
		return "broadcast"
	case MsgAllLinkCleanup:
		return "alllink_cleanup"
	case MsgAllLinkCleanupAck:
		return "alllink_cleanup_ack"
	default:
		return "direct"
	}
}

// CommandTemplate is one entry in the outgoing command vocabulary: byte
// defaults for cmd_1/cmd_2/usr_1..usr_14, named aliases for the slots a
// caller is allowed to override, and the message's length/type class.
//
// Slot aliases are grounded on
// original_source/insteon/devices/generic_send.py's msg_schema property.
type CommandTemplate struct {
	Name string

	Cmd1Default byte
	Cmd2Default byte
	Cmd2Name    string // alias for the cmd_2 slot, e.g. "msb", "lsb", "group"

	// UsrNames[i] is the alias for usr_(i+1), or "" if that slot has no
	// named override (it is still sent with its default value).
	UsrNames    [14]string
	UsrDefaults [14]byte

	Length MsgLength
	Type   MsgType
}

// Slot resolves a named alias to a slot index: 0 means cmd_2, 1..14 mean
// usr_1..usr_14. ok is false if name isn't a recognized alias for this
// template.
func (t CommandTemplate) Slot(name string) (idx int, ok bool) {
	if name == "cmd_2" || (t.Cmd2Name != "" && name == t.Cmd2Name) {
		return 0, true
	}
	for i, n := range t.UsrNames {
		if n != "" && n == name {
			return i + 1, true
		}
	}
	return 0, false
}

// OutgoingCommands is the static command vocabulary. cmd_1 values are
// bit-exact per spec.md §6.
var OutgoingCommands = map[string]CommandTemplate{
	"product_data_request": {
		Name: "product_data_request", Cmd1Default: 0x03, Cmd2Default: 0x00,
		Length: LenStandard, Type: MsgDirect,
	},
	"enter_link_mode": {
		Name: "enter_link_mode", Cmd1Default: 0x09, Cmd2Default: 0x00, Cmd2Name: "group",
		Length: LenExtended, Type: MsgDirect,
	},
	"get_engine_version": {
		Name: "get_engine_version", Cmd1Default: 0x0D, Cmd2Default: 0x00,
		Length: LenStandard, Type: MsgDirect,
	},
	"id_request": {
		Name: "id_request", Cmd1Default: 0x10, Cmd2Default: 0x00,
		Length: LenStandard, Type: MsgDirect,
	},
	"on": {
		Name: "on", Cmd1Default: 0x11, Cmd2Default: 0xFF,
		Length: LenStandard, Type: MsgDirect,
	},
	"cleanup_on": {
		Name: "cleanup_on", Cmd1Default: 0x11, Cmd2Default: 0x00, Cmd2Name: "group",
		Length: LenStandard, Type: MsgAllLinkCleanup,
	},
	"off": {
		Name: "off", Cmd1Default: 0x13, Cmd2Default: 0x00,
		Length: LenStandard, Type: MsgDirect,
	},
	"cleanup_off": {
		Name: "cleanup_off", Cmd1Default: 0x13, Cmd2Default: 0x00, Cmd2Name: "group",
		Length: LenStandard, Type: MsgAllLinkCleanup,
	},
	"light_status_request": {
		Name: "light_status_request", Cmd1Default: 0x19, Cmd2Default: 0x00,
		Length: LenStandard, Type: MsgDirect,
	},
	"set_address_msb": {
		Name: "set_address_msb", Cmd1Default: 0x28, Cmd2Default: 0x00, Cmd2Name: "msb",
		Length: LenStandard, Type: MsgDirect,
	},
	"poke_one_byte": {
		Name: "poke_one_byte", Cmd1Default: 0x29, Cmd2Default: 0x00, Cmd2Name: "lsb",
		Length: LenStandard, Type: MsgDirect,
	},
	"peek_one_byte": {
		Name: "peek_one_byte", Cmd1Default: 0x2B, Cmd2Default: 0x00, Cmd2Name: "lsb",
		Length: LenStandard, Type: MsgDirect,
	},
	"read_aldb": {
		Name: "read_aldb", Cmd1Default: 0x2F, Cmd2Default: 0x00,
		UsrNames:    [14]string{"", "", "msb", "lsb", "num_records"},
		UsrDefaults: [14]byte{0x00, 0x00, 0x00, 0x00, 0x01},
		Length:      LenExtended, Type: MsgDirect,
	},
	"write_aldb": {
		Name: "write_aldb", Cmd1Default: 0x2F, Cmd2Default: 0x00,
		UsrNames: [14]string{
			"", "write_flag", "msb", "lsb", "num_bytes",
			"link_flags", "group", "dev_addr_hi", "dev_addr_mid", "dev_addr_low",
			"data_1", "data_2", "data_3", "",
		},
		UsrDefaults: [14]byte{0x00, 0x02, 0x00, 0x00, 0x08},
		Length:      LenExtended, Type: MsgDirect,
	},
}
