package sequence

import (
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// ScanDeviceALDBi2 walks a device's ALDB with the extended read_aldb
// protocol, per spec.md §4.7's "i2 read": each response installs itself
// (ExtendedAldbReadHandler, wired ahead of this sequence) and this run
// just keeps requesting "next record" until the terminator arrives.
// Grounded on original_source/insteon_mngr/sequences/i1_device.py's
// i2-engine counterpart.
type ScanDeviceALDBi2 struct {
	Base

	lastMSB, lastLSB byte
}

// NewScanDeviceALDBi2 builds a fresh run bound to d.
func NewScanDeviceALDBi2(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) *ScanDeviceALDBi2 {
	return &ScanDeviceALDBi2{Base: Base{
		Device: d, Disp: disp, Label: newLabel("scan_i2", d.Addr.String()),
		OnSuccess: onSuccess, OnFailure: onFailure,
	}}
}

// Start clears the cached table and requests the first record via the
// (0, 0) wildcard address.
func (s *ScanDeviceALDBi2) Start() {
	s.Device.ALDB.ClearAll()
	s.requestNext(0, 0)
}

func (s *ScanDeviceALDBi2) requestNext(msb, lsb byte) {
	if _, err := s.send("read_aldb", map[string]byte{"msb": msb, "lsb": lsb}); err != nil {
		s.fail(err)
		return
	}
	s.await("aldb_record", nil, s.onRecord)
}

func (s *ScanDeviceALDBi2) onRecord(in frame.Incoming) {
	msb, _ := in.ByteByName("usr_3")
	lsb, _ := in.ByteByName("usr_4")
	rec, ok := s.Device.ALDB.GetRecord(msb, lsb)
	if !ok {
		s.fail(nil)
		return
	}
	if rec.IsLast() {
		s.Device.ALDB.MarkLoaded()
		s.succeed()
		return
	}
	s.requestNext(0, 0)
}
