package sequence

import (
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// InitializeDevice is the three-step probe spec.md §4.6 describes:
// engine version, then identity (dev_cat/sub_cat/firmware), then status,
// each step skipped when its attributes are already known. Grounded on
// original_source/insteon_device.py's device bring-up chain.
type InitializeDevice struct {
	Base
}

// NewInitializeDevice builds a fresh run bound to d.
func NewInitializeDevice(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) *InitializeDevice {
	return &InitializeDevice{Base{
		Device: d, Disp: disp, Label: newLabel("initialize", d.Addr.String()),
		OnSuccess: onSuccess, OnFailure: onFailure,
	}}
}

// Start begins at whichever step is still needed.
func (s *InitializeDevice) Start() {
	if s.Device.Attrs.EngineVersion == device.EngineUnknown {
		s.stepEngineVersion()
		return
	}
	s.stepIdentity()
}

func (s *InitializeDevice) stepEngineVersion() {
	if _, err := s.send("get_engine_version", nil); err != nil {
		s.fail(err)
		return
	}
	s.await("get_engine_version", nil, s.onEngineVersionAck)
}

func (s *InitializeDevice) onEngineVersionAck(in frame.Incoming) {
	s.Device.UpgradeEngine(device.EngineVersion(in.Cmd2))
	s.stepIdentity()
}

func (s *InitializeDevice) stepIdentity() {
	a := s.Device.Attrs
	if !a.DevCatSet || !a.SubCatSet || !a.FirmwareSet {
		if _, err := s.send("id_request", nil); err != nil {
			s.fail(err)
			return
		}
		s.await("broadcast", nil, s.onIdentityBroadcast)
		return
	}
	s.stepStatus()
}

func (s *InitializeDevice) onIdentityBroadcast(frame.Incoming) {
	s.stepStatus()
}

func (s *InitializeDevice) stepStatus() {
	if _, err := s.send("light_status_request", nil); err != nil {
		s.fail(err)
		return
	}
	s.await("light_status_request", nil, s.onStatusAck)
}

func (s *InitializeDevice) onStatusAck(frame.Incoming) {
	s.succeed()
}
