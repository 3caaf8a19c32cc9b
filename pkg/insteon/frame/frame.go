// Package frame implements the outgoing frame assembler and incoming frame
// classifier described in spec.md §4.1/§4.2 — the command-template-plus-
// overrides to wire-bytes direction, and the wire-bytes to
// cmd_1/cmd_2/usr_1..usr_14/hops structure direction. Full modem wire
// encoding (start bytes, checksums, serial escaping) is the modem's
// concern, out of core scope per spec.md §1.
package frame

import (
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

// Outgoing is a command-name-bound outgoing message: the resolved
// template's bytes, the target device, a state-machine label, and the
// modem-ack/device-ack callbacks spec.md §3 describes.
//
// Exactly one Outgoing is ever last-sent per device (spec.md's "Ack
// exclusivity" invariant); it becomes last-sent only when dequeued to the
// modem, never on enqueue.
type Outgoing struct {
	CommandName string
	Length      schema.MsgLength
	Type        schema.MsgType

	Cmd1 byte
	Cmd2 byte
	Usr  [14]byte

	Target       address.Address
	StateMachine string

	PlmAck    bool
	DeviceAck bool

	PlmSuccess    func()
	PlmFailure    func()
	DeviceSuccess func()
	DeviceFailure func()
}

// ByteByName reads a named slot's current value: "cmd_1", "cmd_2", or any
// alias registered in the owning schema.CommandTemplate. Unknown names
// return 0, false.
func (o *Outgoing) ByteByName(tmpl schema.CommandTemplate, name string) (byte, bool) {
	if name == "cmd_1" {
		return o.Cmd1, true
	}
	idx, ok := tmpl.Slot(name)
	if !ok {
		return 0, false
	}
	if idx == 0 {
		return o.Cmd2, true
	}
	return o.Usr[idx-1], true
}

// Incoming is a decoded inbound frame, as described in spec.md §3/§4.2.
type Incoming struct {
	Source address.Address
	// ToAddr is the frame's destination-address field. For ordinary direct
	// traffic this is the PLM's own address; for a broadcast identity
	// frame it instead encodes dev_cat/sub_cat/firmware (the protocol
	// quirk spec.md §4.2 calls out).
	ToAddr address.Address
	Type    schema.MsgType
	Length  schema.MsgLength

	Cmd1 byte
	Cmd2 byte
	Usr  [14]byte // only meaningful if Length == LenExtended

	MaxHops  byte
	HopsLeft byte

	Raw []byte
}

// ByteByName reads a byte of an inbound frame by its literal slot name:
// "cmd_1", "cmd_2", or "usr_1".."usr_14". Command-specific aliases such
// as "msb" are not resolved; unknown names return 0, false.
func (in *Incoming) ByteByName(name string) (byte, bool) {
	switch name {
	case "cmd_1":
		return in.Cmd1, true
	case "cmd_2":
		return in.Cmd2, true
	}
	for i := 1; i <= 14; i++ {
		if name == usrName(i) {
			return in.Usr[i-1], true
		}
	}
	return 0, false
}

func usrName(i int) string {
	names := [...]string{
		"usr_1", "usr_2", "usr_3", "usr_4", "usr_5", "usr_6", "usr_7",
		"usr_8", "usr_9", "usr_10", "usr_11", "usr_12", "usr_13", "usr_14",
	}
	return names[i-1]
}

// HopsUsed returns max_hops - hops_left, the observed path cost (GLOSSARY).
func (in *Incoming) HopsUsed() byte {
	return in.MaxHops - in.HopsLeft
}
