// Package commands implements the generic device-operation handler spec.md
// §1 calls out as in scope ("the core covers a generic handler and the
// dispatch table that routes to specialized handlers"), grounded on
// original_source/insteon/devices/generic_send.py's GenericSendHandler.
// It is the thin façade higher layers (cmd/meshd, internal/control,
// internal/scheduler) call instead of assembling sequences and ALDB records by hand.
package commands

import (
	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/sequence"
)

// On sends the direct "on" command, tagged with the default ("") state
// machine label since it is fire-and-forget rather than a multi-step
// sequence.
func On(d *device.Device) error {
	_, err := d.SendCommand("on", nil, "")
	return err
}

// Off sends the direct "off" command.
func Off(d *device.Device) error {
	_, err := d.SendCommand("off", nil, "")
	return err
}

// GetStatus starts a StatusRequest/SetALDBDelta run (spec.md §4.6),
// adopting whatever ALDB-delta comes back as authoritative and clearing
// the device's state label when it does.
func GetStatus(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) {
	sequence.NewSetALDBDelta(d, disp, onSuccess, onFailure).Start()
}

// QueryALDB runs a full ALDB rescan, picking the i1 or i2 scan protocol by
// the device's negotiated engine version (spec.md §4.7). Engine version
// 0x02 (i2cs) and 0x01 (i2) both use the i2 extended read/write protocol;
// only i1 (0x00) falls back to the byte-at-a-time peek protocol. An
// unknown engine version cannot be scanned yet — InitializeDevice must
// run first.
func QueryALDB(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) error {
	switch d.Attrs.EngineVersion {
	case device.EngineI1:
		sequence.NewScanDeviceALDBi1(d, disp, onSuccess, onFailure).Start()
	case device.EngineI2, device.EngineI2CS:
		sequence.NewScanDeviceALDBi2(d, disp, onSuccess, onFailure).Start()
	default:
		return common.ErrUnsupportedEngine
	}
	return nil
}

// writeRecord dispatches to the i1 or i2 write-record protocol by engine
// version, the same split QueryALDB uses.
func writeRecord(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, rec aldb.Record, onSuccess func(), onFailure func(error)) error {
	switch d.Attrs.EngineVersion {
	case device.EngineI1:
		sequence.NewWriteALDBRecordi1(d, disp, msb, lsb, rec, onSuccess, onFailure).Start()
	case device.EngineI2, device.EngineI2CS:
		sequence.NewWriteALDBRecordi2(d, disp, msb, lsb, rec, onSuccess, onFailure).Start()
	default:
		return common.ErrUnsupportedEngine
	}
	return nil
}

// CreateResponderLink writes a record on d marking controller as a
// controller of d responding to group, with data_1/data_2/data_3 already
// populated for the common "link two devices" case (supplementing
// spec.md per original_source/insteon/devices/generic_send.py's
// create_responder_link).
func CreateResponderLink(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, controller [3]byte, group, data1, data2, data3 byte, onSuccess func(), onFailure func(error)) error {
	rec := aldb.Record{
		LinkFlags:  0xA2, // in-use, responder
		Group:      group,
		DevAddrHi:  controller[0],
		DevAddrMid: controller[1],
		DevAddrLow: controller[2],
		Data1:      data1,
		Data2:      data2,
		Data3:      data3,
	}
	return writeRecord(d, disp, msb, lsb, rec, onSuccess, onFailure)
}

// CreateControllerLink writes a record on d marking it as a controller of
// linkedDevice, per the same generic_send.py counterpart.
func CreateControllerLink(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, linkedDevice [3]byte, group, data1, data2, data3 byte, onSuccess func(), onFailure func(error)) error {
	rec := aldb.Record{
		LinkFlags:  0xE2, // in-use, controller
		Group:      group,
		DevAddrHi:  linkedDevice[0],
		DevAddrMid: linkedDevice[1],
		DevAddrLow: linkedDevice[2],
		Data1:      data1,
		Data2:      data2,
		Data3:      data3,
	}
	return writeRecord(d, disp, msb, lsb, rec, onSuccess, onFailure)
}

// DeleteRecord tears down a link by writing an all-zero body at the
// caller-supplied address, preserving the in-use bit clear. spec.md §9's
// Open Question notes the original i1 delete path reused a stale address
// field left over from a prior write sequence when engine version was
// 0 or unset; this implementation rejects that case outright rather than
// guess the caller's intended address.
func DeleteRecord(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, onSuccess func(), onFailure func(error)) error {
	if d.Attrs.EngineVersion == device.EngineI1 {
		return common.ErrUnsupportedEngine
	}
	return writeRecord(d, disp, msb, lsb, aldb.Record{}, onSuccess, onFailure)
}

// InitializeDevice runs the three-step bring-up probe (spec.md §4.6),
// skipping whichever steps the device's already-known attributes make
// unnecessary — including on fleet restart when persisted state already
// supplies engine_version/dev_cat/etc (SPEC_FULL.md's supplemented
// "Full InitializeDevice three-step gating").
func InitializeDevice(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) {
	sequence.NewInitializeDevice(d, disp, onSuccess, onFailure).Start()
}

// AddPLMtoDevice links the modem and device via all-linking, tearing down
// both halves of its state on any step's failure (spec.md §4.6).
func AddPLMtoDevice(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) {
	sequence.NewAddPLMtoDevice(d, disp, onSuccess, onFailure).Start()
}
