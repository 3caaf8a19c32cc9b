package sequence

import (
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// WriteALDBRecordi2 writes a whole record in one extended write_aldb
// frame, per spec.md §4.7's "i2 write". Grounded on
// original_source/insteon_mngr/sequences/i1_device.py's i2-engine
// write-record counterpart.
type WriteALDBRecordi2 struct {
	Base

	msb, lsb byte
	target   aldb.Record
}

// NewWriteALDBRecordi2 builds a fresh run writing target at (msb, lsb).
func NewWriteALDBRecordi2(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, target aldb.Record, onSuccess func(), onFailure func(error)) *WriteALDBRecordi2 {
	return &WriteALDBRecordi2{
		Base: Base{
			Device: d, Disp: disp, Label: newLabel("write_i2", d.Addr.String()),
			OnSuccess: onSuccess, OnFailure: onFailure,
		},
		msb: msb, lsb: lsb, target: target,
	}
}

// Start sends the extended write and awaits its direct-ack.
func (s *WriteALDBRecordi2) Start() {
	b := s.target.Bytes()
	overrides := map[string]byte{
		"write_flag":   0x02,
		"msb":          s.msb,
		"lsb":          s.lsb,
		"num_bytes":    0x08,
		"link_flags":   b[aldb.PosLinkFlags],
		"group":        b[aldb.PosGroup],
		"dev_addr_hi":  b[aldb.PosDevAddrHi],
		"dev_addr_mid": b[aldb.PosDevAddrMid],
		"dev_addr_low": b[aldb.PosDevAddrLow],
		"data_1":       b[aldb.PosData1],
		"data_2":       b[aldb.PosData2],
		"data_3":       b[aldb.PosData3],
	}
	if _, err := s.send("write_aldb", overrides); err != nil {
		s.fail(err)
		return
	}
	s.await("write_aldb", nil, s.onWriteAck)
}

func (s *WriteALDBRecordi2) onWriteAck(frame.Incoming) {
	s.Device.ALDB.EditRecord(s.msb, s.lsb, s.target)
	delta := NewSetALDBDelta(s.Device, s.Disp, s.succeed, s.fail)
	delta.Start()
}
