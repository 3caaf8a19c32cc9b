// Package dispatch implements the inbound dispatcher described in
// spec.md §4.2-4.5: routing a classified frame into direct/ack/nack/
// broadcast/cleanup-ack handling on its owning device, narrowing
// extended-direct and direct-ack traffic by DevCat/SubCat/Firmware/Cmd2,
// and the i2cs "ack-means-nack" reclassification. Grounded on
// original_source/insteon_device.py's _process_direct_msg/_ack/_nack.
package dispatch

import (
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
)

// AckResult is what a direct-ack handler reports back to the dispatcher:
// whether the ack should be treated as confirming the outstanding send.
// Returning ok=false is spec.md §4.4's "a handler returning 'not an ack'
// leaves device_ack false".
type AckResult struct {
	Ok bool
}

// AckHandler processes a direct-ack frame already known to correspond to
// the device's last-sent message.
type AckHandler func(d *device.Device, in frame.Incoming) AckResult

// DirectHandler processes an extended direct frame not otherwise
// special-cased (e.g. an i2 ALDB read response).
type DirectHandler func(d *device.Device, in frame.Incoming) error

// narrowingKeys extracts the (DevCat, SubCat, Firmware, Cmd2) tuple a
// Node[T] walk is keyed on, substituting 0x00 for any attribute the
// device hasn't learned yet (the catch-all branch still matches). The
// Cmd2 key is passed in explicitly: the extended-direct path narrows on
// the inbound frame's cmd_2, while the direct-ack path narrows on the
// last-sent frame's cmd_2 (spec.md §4.4), and the two must not be
// conflated.
func narrowingKeys(d *device.Device, cmd2 byte) [4]byte {
	var keys [4]byte
	if d.Attrs.DevCatSet {
		keys[0] = d.Attrs.DevCat
	}
	if d.Attrs.SubCatSet {
		keys[1] = d.Attrs.SubCat
	}
	if d.Attrs.FirmwareSet {
		keys[2] = d.Attrs.Firmware
	}
	keys[3] = cmd2
	return keys
}

// StdDirectAckHandlers is the static table narrowing a standard
// direct-ack's cmd_1 into a handler, per spec.md §6's
// STD_DIRECT_ACK_SCHEMA. Populated by RegisterDefaultHandlers; never
// mutated after init (REDESIGN FLAGS).
var StdDirectAckHandlers = map[byte]*schema.Node[AckHandler]{}

// ExtDirectHandlers is the static table narrowing an extended direct
// frame's cmd_1 into a handler, per spec.md §6's EXT_DIRECT_SCHEMA.
var ExtDirectHandlers = map[byte]*schema.Node[DirectHandler]{}

func genericAck(ok bool) AckHandler {
	return func(*device.Device, frame.Incoming) AckResult { return AckResult{Ok: ok} }
}

func catchAllAckNode(h AckHandler) *schema.Node[AckHandler] {
	firmware := schema.NewNode[AckHandler]().AddLeaf(nil, h)
	subCat := schema.NewNode[AckHandler]().AddBranch(nil, firmware)
	return schema.NewNode[AckHandler]().AddBranch(nil, subCat)
}

func catchAllDirectNode(h DirectHandler) *schema.Node[DirectHandler] {
	firmware := schema.NewNode[DirectHandler]().AddLeaf(nil, h)
	subCat := schema.NewNode[DirectHandler]().AddBranch(nil, firmware)
	return schema.NewNode[DirectHandler]().AddBranch(nil, subCat)
}

// RegisterDefaultHandlers installs the generic (non-subcategory-specific)
// handlers for the command vocabulary spec.md §6 names. Specialized
// per-device responders are out of core scope (Non-goals) but can be
// added later by registering narrower branches ahead of the catch-all.
func RegisterDefaultHandlers() {
	// enter_link_mode ack confirms the device entered all-linking mode.
	StdDirectAckHandlers[0x09] = catchAllAckNode(genericAck(true))
	// get_engine_version ack: cmd_2 carries the version byte; the
	// InitializeDevice sequence adopts it (via device.UpgradeEngine) when
	// this ack fires its trigger, so the handler just confirms.
	StdDirectAckHandlers[0x0D] = catchAllAckNode(genericAck(true))
	// on/off acks confirm unconditionally.
	StdDirectAckHandlers[0x11] = catchAllAckNode(genericAck(true))
	StdDirectAckHandlers[0x13] = catchAllAckNode(genericAck(true))
	// id_request has no direct-ack; identity arrives via broadcast.
	// set_address_msb / peek_one_byte / poke_one_byte acks confirm
	// unconditionally; i1 ALDB scan/write interprets cmd_2 itself.
	StdDirectAckHandlers[0x28] = catchAllAckNode(genericAck(true))
	StdDirectAckHandlers[0x29] = catchAllAckNode(genericAck(true))
	StdDirectAckHandlers[0x2B] = catchAllAckNode(genericAck(true))
	// i2 ALDB write completion: direct-ack on the same cmd_1 (0x2F)
	// confirms the extended write_aldb.
	StdDirectAckHandlers[0x2F] = catchAllAckNode(genericAck(true))

	// i2 ALDB read response arrives as an unsolicited extended direct
	// frame carrying the record, not as an ack of read_aldb.
	ExtDirectHandlers[0x2F] = catchAllDirectNode(ExtendedAldbReadHandler)
}

func init() {
	RegisterDefaultHandlers()
}
