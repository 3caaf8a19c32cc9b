package sequence

import (
	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// SetALDBDelta (spec.md §4.6's "StatusRequest / SetALDBDelta") probes a
// device's status and adopts whatever ALDB-delta comes back as
// authoritative. The delta-adoption and state-clearing itself happens in
// the dispatcher's light_status_request ack handling (it needs to run
// regardless of whether a sequence initiated the probe); this sequence
// only drives the send and the run's own lifecycle.
type SetALDBDelta struct {
	Base
}

// NewSetALDBDelta builds a fresh run bound to d, tagged with the shared
// "set_aldb_delta" state label so the dispatcher's ack path recognizes it.
func NewSetALDBDelta(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) *SetALDBDelta {
	return &SetALDBDelta{Base{
		Device: d, Disp: disp, Label: common.StateSetALDBDelta,
		OnSuccess: onSuccess, OnFailure: onFailure,
	}}
}

// Start sets the device's active state and sends the status probe.
func (s *SetALDBDelta) Start() {
	s.Device.State = common.StateSetALDBDelta
	if _, err := s.send("light_status_request", nil); err != nil {
		s.fail(err)
		return
	}
	s.await("light_status_request", nil, s.onStatusAck)
}

func (s *SetALDBDelta) onStatusAck(frame.Incoming) {
	s.succeed()
}
