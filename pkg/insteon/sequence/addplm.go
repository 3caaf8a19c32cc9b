package sequence

import (
	"context"

	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/plm"
)

// linkModeWireFrame is the modem-level "start all-linking" command. Full
// modem wire encoding belongs to the transport (spec.md §1's out-of-scope
// boundary); this is the minimal marker the transport recognizes.
var linkModeWireFrame = plm.WireFrame{Raw: []byte{0x02, 0x64, 0x00}}

// cancelLinkModeWireFrame takes the modem back out of linking mode; sent
// whenever this sequence fails partway through, per spec.md §4.6's "any
// step's failure tears down both modem and device state labels."
var cancelLinkModeWireFrame = plm.WireFrame{Raw: []byte{0x02, 0x65}}

// AddPLMtoDevice puts the modem into linking mode, walks the device
// through enter_link_mode, and waits for the modem to report the link
// completed, per spec.md §4.6. The final step waits for a trigger dispatch
// of the "all_link_complete" command name for this device. The serial
// transport (internal/transport/serial) does not produce that event: its
// read loop passes only standard (0x50) and extended (0x51) frames on, so
// the run completes only when something else dispatches that name to the
// trigger registry; otherwise the step's trigger times out.
type AddPLMtoDevice struct {
	Base
}

// NewAddPLMtoDevice builds a fresh run bound to d.
func NewAddPLMtoDevice(d *device.Device, disp *dispatch.Dispatcher, onSuccess func(), onFailure func(error)) *AddPLMtoDevice {
	return &AddPLMtoDevice{Base{
		Device: d, Disp: disp, Label: newLabel("addplm", d.Addr.String()),
		OnSuccess: onSuccess, OnFailure: onFailure,
	}}
}

// Start puts the modem into linking mode.
func (s *AddPLMtoDevice) Start() {
	future := s.Disp.Modem.Enqueue(linkModeWireFrame)
	go s.awaitModemLinkingAck(future)
}

func (s *AddPLMtoDevice) awaitModemLinkingAck(future plm.AckFuture) {
	ok, err := future.Wait(context.Background())
	if err != nil || !ok {
		s.failAndCancelLinking(err)
		return
	}
	s.stepEnterLinkMode()
}

func (s *AddPLMtoDevice) stepEnterLinkMode() {
	// This runs on the goroutine that awaited the modem's ack, so the
	// trigger is registered before the frame becomes visible in the queue;
	// an ack that arrives right after dequeue then still finds it.
	s.await("enter_link_mode", nil, s.onDeviceLinkAck)
	if _, err := s.send("enter_link_mode", nil); err != nil {
		s.failAndCancelLinking(err)
		return
	}
}

func (s *AddPLMtoDevice) failAndCancelLinking(err error) {
	s.Disp.Modem.Enqueue(cancelLinkModeWireFrame)
	s.fail(err)
}

func (s *AddPLMtoDevice) onDeviceLinkAck(frame.Incoming) {
	s.await("all_link_complete", nil, s.onLinkComplete)
}

func (s *AddPLMtoDevice) onLinkComplete(frame.Incoming) {
	s.succeed()
}
