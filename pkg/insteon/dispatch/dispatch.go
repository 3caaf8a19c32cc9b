package dispatch

import (
	"time"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
	"github.com/insteonplm/meshd/pkg/insteon/trigger"
	"github.com/insteonplm/meshd/pkg/plm"
)

// Dispatcher wires a device's inbound pipeline to its trigger registry and
// the shared modem, so a received frame can both mutate device state and
// resume a waiting sequence step.
type Dispatcher struct {
	Modem    plm.Modem
	Triggers *trigger.Registry
}

// New builds a Dispatcher over a shared modem and trigger registry.
func New(m plm.Modem, triggers *trigger.Registry) *Dispatcher {
	return &Dispatcher{Modem: m, Triggers: triggers}
}

// RemoveStateMachine cancels a running sequence's label on both halves of
// the split state spec.md §4.6 describes: the device's queued frames and
// the shared registry's pending triggers.
func (disp *Dispatcher) RemoveStateMachine(d *device.Device, label string) {
	d.RemoveStateMachine(label)
	disp.Triggers.RemoveStateMachine(label)
}

// Process runs spec.md §4.2's generic pipeline via device.Receive, then
// the §4.3/§4.4/§4.5 specialized handling for whatever the frame
// classified as.
func (disp *Dispatcher) Process(d *device.Device, in frame.Incoming, now time.Time) error {
	wait, class, dup := d.Receive(in, now)
	device.ApplyWaitToSend(disp.Modem, wait)
	if dup {
		return common.ErrDuplicateInbound
	}

	switch class {
	case device.ClassDirect:
		return disp.handleDirect(d, in)
	case device.ClassDirectAck:
		return disp.handleDirectAck(d, in)
	case device.ClassDirectNack:
		return disp.handleDirectNack(d, in)
	case device.ClassBroadcast:
		disp.Triggers.Dispatch(d.Addr, "broadcast", in)
		return nil
	case device.ClassAllLinkCleanupAck:
		disp.Triggers.Dispatch(d.Addr, "alllink_cleanup_ack", in)
		return nil
	}
	return nil
}

// handleDirect implements spec.md §4.3: extended direct frames narrow
// through ExtDirectHandlers; anything else is logged and dropped (the
// caller is expected to log; dispatch itself just reports the outcome).
func (disp *Dispatcher) handleDirect(d *device.Device, in frame.Incoming) error {
	if in.Length != schema.LenExtended {
		return common.ErrUnknownCommand
	}
	node, ok := ExtDirectHandlers[in.Cmd1]
	if !ok {
		return common.ErrUnknownCommand
	}
	keys := narrowingKeys(d, in.Cmd2)
	handler, ok := node.Resolve(keys[:]...)
	if !ok {
		return common.ErrUnknownCommand
	}
	if err := handler(d, in); err != nil {
		return err
	}
	// Unlike ack/nack/broadcast traffic, an unsolicited extended direct
	// frame has no outgoing command name to correlate against; sequences
	// awaiting one (the i2 ALDB scan) key on this fixed name instead.
	if in.Cmd1 == 0x2F {
		disp.Triggers.Dispatch(d.Addr, "aldb_record", in)
	}
	return nil
}

// validForAck is spec.md §4.4/§4.5's shared validity gate: last_sent must
// be modem-acked and not yet device-acked.
func validForAck(d *device.Device) (*frame.Outgoing, bool) {
	sent := d.LastSent()
	if sent == nil || !sent.PlmAck || sent.DeviceAck {
		return nil, false
	}
	return sent, true
}

// handleDirectAck implements spec.md §4.4.
func (disp *Dispatcher) handleDirectAck(d *device.Device, in frame.Incoming) error {
	sent, ok := validForAck(d)
	if !ok {
		return common.ErrStaleResponse
	}

	// i2cs "ack-means-nack": a get_engine_version ack whose cmd_2 lands in
	// the NACK reason-code range is actually the device reporting a NACK
	// over an i2cs link that only the ack path can carry; reclassify and
	// hand it to the NACK handler instead (grounded on
	// original_source/insteon_device.py's engine-version detection quirk).
	if sent.CommandName == "get_engine_version" && in.Cmd2 >= 0xFB {
		return disp.handleDirectNack(d, in)
	}

	if sent.CommandName == "light_status_request" {
		delta := in.Cmd1
		status := in.Cmd2
		if d.State == common.StateSetALDBDelta {
			d.ALDB.SetDelta(delta)
			d.RemoveStateMachine(common.StateSetALDBDelta)
		} else if d.ALDB.Delta() != delta {
			disp.Triggers.Dispatch(d.Addr, "rescan_aldb", in)
		}
		d.Attrs.Status = status
		sent.DeviceAck = true
		disp.Triggers.Dispatch(d.Addr, "light_status_request", in)
		return nil
	}

	if sent.Cmd1 == in.Cmd1 {
		if node, ok := StdDirectAckHandlers[in.Cmd1]; ok {
			// Narrow on the last-sent cmd_2, not the inbound one: spec.md
			// §4.4 and original_source/insteon_device.py narrow the ack
			// table on last_sent_msg's cmd_2.
			keys := narrowingKeys(d, sent.Cmd2)
			handler, ok := node.Resolve(keys[:]...)
			if ok {
				result := handler(d, in)
				if result.Ok {
					sent.DeviceAck = true
				}
				disp.Triggers.Dispatch(d.Addr, sent.CommandName, in)
				return nil
			}
		}
	}

	return common.ErrUnmatchedResponse
}

// handleDirectNack implements spec.md §4.5.
func (disp *Dispatcher) handleDirectNack(d *device.Device, in frame.Incoming) error {
	sent, ok := validForAck(d)
	if !ok {
		return common.ErrStaleResponse
	}
	if sent.Cmd1 != in.Cmd1 {
		return common.ErrUnmatchedResponse
	}

	if d.Attrs.EngineVersion == device.EngineI2CS || d.Attrs.EngineVersion == device.EngineUnknown {
		switch in.Cmd2 {
		case 0xFF:
			d.UpgradeEngine(device.EngineI2CS)
			sent.DeviceAck = true
			disp.RemoveStateMachine(d, sent.StateMachine)
			disp.Triggers.Dispatch(d.Addr, "need_manual_link", in)
		case 0xFE:
			d.UpgradeEngine(device.EngineI2CS)
			sent.DeviceAck = true
		case 0xFD:
			d.UpgradeEngine(device.EngineI2CS)
			disp.resend(d, sent, 1*time.Millisecond)
		case 0xFC:
			d.UpgradeEngine(device.EngineI2CS)
			sent.DeviceAck = true
		case 0xFB:
			d.UpgradeEngine(device.EngineI2CS)
			sent.DeviceAck = true
		default:
			disp.resend(d, sent, 1*time.Millisecond)
		}
		return nil
	}

	// i1/i2: a matching NACK is always a plain resend.
	disp.resend(d, sent, 1*time.Millisecond)
	return nil
}

// resend re-enqueues sent at the head of its label's queue with plm_ack
// reset, per spec.md §5.
func (disp *Dispatcher) resend(d *device.Device, sent *frame.Outgoing, wait time.Duration) {
	sent.PlmAck = false
	d.EnqueueFront(sent.StateMachine, sent)
	device.ApplyWaitToSend(disp.Modem, wait)
}

// ExtendedAldbReadHandler handles an i2 extended-direct ALDB read
// response, per spec.md §4.7's "i2 read": installs the record at the
// address the device reports in (usr_3, usr_4) from usr_6..usr_13, and
// marks device-ack. Address correlation against a particular outstanding
// request is the owning sequence's job (it matches on the same criteria
// through a trigger), not this static table entry's.
func ExtendedAldbReadHandler(d *device.Device, in frame.Incoming) error {
	msb, _ := in.ByteByName("usr_3")
	lsb, _ := in.ByteByName("usr_4")
	var body [8]byte
	for i := 0; i < 8; i++ {
		b, _ := in.ByteByName(usrNameAt(6 + i))
		body[i] = b
	}
	d.ALDB.EditRecord(msb, lsb, aldb.FromBytes(body))
	if sent := d.LastSent(); sent != nil {
		sent.DeviceAck = true
	}
	return nil
}

func usrNameAt(i int) string {
	names := [...]string{
		"usr_1", "usr_2", "usr_3", "usr_4", "usr_5", "usr_6", "usr_7",
		"usr_8", "usr_9", "usr_10", "usr_11", "usr_12", "usr_13", "usr_14",
	}
	return names[i-1]
}
