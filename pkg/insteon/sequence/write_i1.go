package sequence

import (
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// WriteALDBRecordi1 writes one ALDB record via peek/poke byte pairs, per
// spec.md §4.7's "i1 write". Grounded on
// original_source/insteon_mngr/sequences/i1_device.py's WriteALDBRecord.
type WriteALDBRecordi1 struct {
	Base

	msb, lsb byte
	target   aldb.Record
	pos      int // 0..7, next byte position to compare/write
}

// NewWriteALDBRecordi1 builds a fresh run writing target at (msb, lsb).
func NewWriteALDBRecordi1(d *device.Device, disp *dispatch.Dispatcher, msb, lsb byte, target aldb.Record, onSuccess func(), onFailure func(error)) *WriteALDBRecordi1 {
	return &WriteALDBRecordi1{
		Base: Base{
			Device: d, Disp: disp, Label: newLabel("write_i1", d.Addr.String()),
			OnSuccess: onSuccess, OnFailure: onFailure,
		},
		msb: msb, lsb: lsb, target: target,
	}
}

// Start compares the target against the cached record and writes from
// the first differing byte.
func (s *WriteALDBRecordi1) Start() {
	cached, _ := s.Device.ALDB.GetRecord(s.msb, s.lsb)
	wantBytes := s.target.Bytes()
	haveBytes := cached.Bytes()

	s.pos = 0
	for s.pos < 8 && wantBytes[s.pos] == haveBytes[s.pos] {
		s.pos++
	}
	if s.pos >= 8 {
		s.finish()
		return
	}
	s.sendPeek()
}

func (s *WriteALDBRecordi1) sendPeek() {
	lsbI := s.lsb + byte(s.pos)
	if _, err := s.send("peek_one_byte", map[string]byte{"lsb": lsbI}); err != nil {
		s.fail(err)
		return
	}
	s.await("peek_one_byte", nil, s.onPeekAck)
}

func (s *WriteALDBRecordi1) onPeekAck(frame.Incoming) {
	expected := s.target.Bytes()[s.pos]
	if _, err := s.send("poke_one_byte", map[string]byte{"lsb": expected}); err != nil {
		s.fail(err)
		return
	}
	s.await("poke_one_byte", nil, s.onPokeAck)
}

func (s *WriteALDBRecordi1) onPokeAck(frame.Incoming) {
	writtenPos := s.pos
	if !s.target.IsInUse() && writtenPos == aldb.PosLinkFlags {
		// De-linking only requires clearing link_flags; the remaining
		// bytes may be left as garbage (spec.md §4.7).
		s.finish()
		return
	}

	wantBytes := s.target.Bytes()
	cached, _ := s.Device.ALDB.GetRecord(s.msb, s.lsb)
	haveBytes := cached.Bytes()
	s.pos++
	for s.pos < 8 && wantBytes[s.pos] == haveBytes[s.pos] {
		s.pos++
	}
	if s.pos >= 8 {
		s.finish()
		return
	}
	s.sendPeek()
}

func (s *WriteALDBRecordi1) finish() {
	s.Device.ALDB.EditRecord(s.msb, s.lsb, s.target)
	delta := NewSetALDBDelta(s.Device, s.Disp, s.succeed, s.fail)
	delta.Start()
}
