package sequence

import (
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// ScanDeviceALDBi1 walks a device's ALDB one byte at a time via
// set_address_msb/peek_one_byte, per spec.md §4.7's "i1 scan". Grounded
// on original_source/insteon_mngr/sequences/i1_device.py's ScanDeviceALDB.
type ScanDeviceALDBi1 struct {
	Base

	msb, lsb byte
	offset   int // 0..7, position within the record currently being read
	record   [8]byte
}

// NewScanDeviceALDBi1 builds a fresh run bound to d.
func NewScanDeviceALDBi1(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) *ScanDeviceALDBi1 {
	return &ScanDeviceALDBi1{Base: Base{
		Device: d, Disp: disp, Label: newLabel("scan_i1", d.Addr.String()),
		OnSuccess: onSuccess, OnFailure: onFailure,
	}}
}

// Start clears the cached table and begins at the top of the ALDB.
func (s *ScanDeviceALDBi1) Start() {
	s.Device.ALDB.ClearAll()
	s.msb, s.lsb = aldb.Start.MSB, aldb.Start.LSB
	s.sendSetAddressMSB()
}

func (s *ScanDeviceALDBi1) sendSetAddressMSB() {
	if _, err := s.send("set_address_msb", map[string]byte{"msb": s.msb}); err != nil {
		s.fail(err)
		return
	}
	s.await("set_address_msb", map[string]byte{"cmd_2": s.msb}, s.onMSBAck)
}

func (s *ScanDeviceALDBi1) onMSBAck(frame.Incoming) {
	s.offset = 0
	s.sendPeek()
}

func (s *ScanDeviceALDBi1) sendPeek() {
	lsbI := s.lsb + byte(s.offset)
	if _, err := s.send("peek_one_byte", map[string]byte{"lsb": lsbI}); err != nil {
		s.fail(err)
		return
	}
	s.await("peek_one_byte", nil, s.onPeekAck)
}

func (s *ScanDeviceALDBi1) onPeekAck(in frame.Incoming) {
	if s.offset == 0 {
		s.record = [8]byte{}
	}
	s.record[s.offset] = in.Cmd2
	s.offset++
	if s.offset < 8 {
		s.sendPeek()
		return
	}
	s.finishRecord()
}

func (s *ScanDeviceALDBi1) finishRecord() {
	rec := aldb.FromBytes(s.record)
	s.Device.ALDB.EditRecord(s.msb, s.lsb, rec)

	if rec.IsLast() {
		s.Device.ALDB.MarkLoaded()
		delta := NewSetALDBDelta(s.Device, s.Disp, s.succeed, s.fail)
		delta.Start()
		return
	}

	// spec.md §4.7: an empty, non-terminator record steps by "subtracting
	// 8 + (lsb % 8)". s.lsb is always record-base aligned here (lsb % 8
	// == 0), so that reduces to the same single record-width step taken
	// for any other non-terminator record: the empty record at
	// (0x0F,0xF8) is followed by a probe at (0x0F,0xF0), not a record
	// further down (spec.md §8 seed scenario 4).
	prevMSB := s.msb
	nextMSB, nextLSB := aldb.NextAddress(s.msb, s.lsb)
	s.msb, s.lsb = nextMSB, nextLSB

	if s.msb != prevMSB {
		s.sendSetAddressMSB()
		return
	}
	s.offset = 0
	s.sendPeek()
}
