// Package sequence implements the cooperative orchestration layer
// described in spec.md §4.6: explicit state-machine objects that
// decompose a high-level device operation into send/await-response
// steps, each step's continuation reached through the trigger registry
// rather than a captured closure (REDESIGN FLAGS: "Reframe as explicit
// state-machine objects... Persisted fields replace closure captures").
package sequence

import (
	"time"

	"github.com/google/uuid"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/trigger"
)

// stepTimeout bounds how long a sequence waits for a single step's
// response before treating it as a spec.md §7 Timeout (itself a
// FatalSequenceError for the run). Insteon round trips complete in well
// under a second even at the 3-hop ceiling; 30s comfortably covers retry
// jitter without leaving a failed run's state machine label alive for
// long.
const stepTimeout = 30 * time.Second

// Base is the shared machinery every concrete sequence embeds: the
// device it drives, the shared trigger registry and dispatcher, a unique
// state-machine label, and the external success/failure continuations.
// Grounded on the callback-chain shape of
// original_source/insteon_device.py's add_plm_to_dev_link* methods, but
// with persisted struct fields in place of captured closures.
type Base struct {
	Device *device.Device
	Disp   *dispatch.Dispatcher
	Label  string

	OnSuccess func()
	OnFailure func(err error)
}

// newLabel builds a unique per-run state-machine label, tagging it with
// the owning device's address and a kind name so logs read legibly;
// uniqueness itself comes from a UUID, matching the teacher's practice of
// tagging outbound work with a correlation id.
func newLabel(kind string, addr string) string {
	return kind + ":" + addr + ":" + uuid.NewString()
}

// send resolves and enqueues a command on the driven device, tagged with
// this run's label.
func (b *Base) send(name string, overrides map[string]byte) (*frame.Outgoing, error) {
	return b.Device.SendCommand(name, overrides, b.Label)
}

// await registers a trigger tagged with this run's label, firing fn when
// an inbound frame matching commandName and matchers arrives for the
// driven device.
func (b *Base) await(commandName string, matchers map[string]byte, fn func(frame.Incoming)) {
	b.Disp.Triggers.Add(&trigger.Trigger{
		Device:      b.Device.Addr,
		CommandName: commandName,
		Matchers:    matchers,
		Name:        b.Label,
		Fire:        fn,
		Deadline:    time.Now().Add(stepTimeout),
		OnTimeout:   func() { b.fail(common.ErrTimeout) },
	})
}

// succeed tears down this run's state and invokes the success
// continuation, if any.
func (b *Base) succeed() {
	b.Disp.RemoveStateMachine(b.Device, b.Label)
	if b.OnSuccess != nil {
		b.OnSuccess()
	}
}

// fail tears down this run's state and invokes the failure continuation.
// A sub-sequence's failure callback is expected to invoke its parent's
// failure callback in turn (spec.md §4.6's "Individual failures
// propagate").
func (b *Base) fail(err error) {
	b.Disp.RemoveStateMachine(b.Device, b.Label)
	if b.OnFailure != nil {
		b.OnFailure(err)
	}
}
