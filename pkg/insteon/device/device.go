// Package device implements the per-device state and inbound message
// pipeline: the attribute map, outgoing queue, last-sent/last-received
// tracking, and dedup cache described in spec.md §3/§4.2, grounded on
// original_source/insteon_device.py's InsteonDevice class.
package device

import (
	"sync"
	"time"

	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

const maxHopArrayLen = 10

// EngineVersion identifies the protocol generation a device speaks.
type EngineVersion int

const (
	// EngineUnknown means no id_request/get_engine_version round-trip has
	// completed for this device yet.
	EngineUnknown EngineVersion = -1
	EngineI1      EngineVersion = 0x00
	EngineI2      EngineVersion = 0x01
	EngineI2CS    EngineVersion = 0x02
)

// Attributes is the mutable attribute set spec.md §3 assigns each device.
type Attributes struct {
	EngineVersion EngineVersion
	DevCatSet     bool
	DevCat        byte
	SubCatSet     bool
	SubCat        byte
	FirmwareSet   bool
	Firmware      byte
	Status        byte
	HopArray      []byte
}

// Group is an All-Link group collection entry. Group 1 always exists per
// spec.md §3.
type Group struct {
	Number byte
}

// recentInbound tracks one dedup-cache entry: signature to expiry.
type recentInbound struct {
	expiry time.Time
}

// Device is the per-device state object: address, attributes, outgoing
// queue, last-sent/last-received frames, dedup cache, and owned ALDB and
// group collection.
type Device struct {
	mu sync.Mutex

	Addr  address.Address
	Attrs Attributes

	queue map[string][]*frame.Outgoing

	lastSent *frame.Outgoing
	lastRcvd *frame.Incoming

	recent map[string]recentInbound

	ALDB   *aldb.Store
	Groups map[byte]*Group

	// State is the currently-active state-machine label for this device,
	// e.g. "set_aldb_delta" while a SetALDBDelta sequence is in flight.
	State string
}

// New creates a device with an empty queue, no known attributes, and
// group 1 pre-created.
func New(addr address.Address) *Device {
	return &Device{
		Addr:  addr,
		Attrs: Attributes{EngineVersion: EngineUnknown},
		queue: make(map[string][]*frame.Outgoing),
		recent: make(map[string]recentInbound),
		ALDB:  aldb.NewStore(),
		Groups: map[byte]*Group{
			1: {Number: 1},
		},
	}
}

// Enqueue appends an outgoing frame to the named label's FIFO queue.
func (d *Device) Enqueue(label string, out *frame.Outgoing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue[label] = append(d.queue[label], out)
}

// EnqueueFront prepends an outgoing frame to the named label's queue,
// used for the resend-at-head behavior spec.md §5 describes for NACK
// retries.
func (d *Device) EnqueueFront(label string, out *frame.Outgoing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue[label] = append([]*frame.Outgoing{out}, d.queue[label]...)
}

// Dequeue pops and returns the next pending frame for a label, promoting
// it to LastSent. Returns false if the label's queue is empty.
func (d *Device) Dequeue(label string) (*frame.Outgoing, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queue[label]
	if len(q) == 0 {
		return nil, false
	}
	out := q[0]
	d.queue[label] = q[1:]
	d.lastSent = out
	return out, true
}

// RemoveStateMachine drops every queued frame tagged with label and
// clears d.State if it currently matches, per spec.md §4.6.
func (d *Device) RemoveStateMachine(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.queue, label)
	if d.State == label {
		d.State = ""
	}
}

// RemoveMatchingQueued removes every queued frame (across all labels)
// whose Cmd1/Cmd2 equal the given values, used by the cleanup-ack path in
// spec.md §4.2 step 4.
func (d *Device) RemoveMatchingQueued(cmd1, cmd2 byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for label, q := range d.queue {
		filtered := q[:0]
		for _, out := range q {
			if out.Cmd1 == cmd1 && out.Cmd2 == cmd2 {
				continue
			}
			filtered = append(filtered, out)
		}
		d.queue[label] = filtered
	}
}

// DequeueReady pops the head frame of one non-empty label and reports
// which label it came from. Label names are
// state-machine-internal (often a uuid-suffixed scan/write tag the caller
// never sees), so the outbound pump in spec.md §5 activity (b) must
// discover "whichever label is ready" this way rather than by name.
// wait_to_send gating happens once, centrally, against the modem's single
// shared scalar (spec.md §5's "sole contended resource") — not here, since
// nothing about readiness is per-device. When several labels have frames
// queued, the label taken is decided by map iteration order; enqueue times
// are not compared across labels. Within one label, frames leave in FIFO
// order.
func (d *Device) DequeueReady() (*frame.Outgoing, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for label, q := range d.queue {
		if len(q) == 0 {
			continue
		}
		out := q[0]
		d.queue[label] = q[1:]
		d.lastSent = out
		return out, label, true
	}
	return nil, "", false
}

// LastSent returns the current last-sent outgoing frame, if any.
func (d *Device) LastSent() *frame.Outgoing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSent
}

// LastRcvd returns the most recently received inbound frame, if any.
func (d *Device) LastRcvd() *frame.Incoming {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRcvd
}

// AppendHop records an observed hop cost, keeping the array bounded to
// maxHopArrayLen entries (spec.md's "Hop-array bound" invariant).
func (d *Device) AppendHop(hopsUsed byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Attrs.HopArray = append(d.Attrs.HopArray, hopsUsed)
	if over := len(d.Attrs.HopArray) - maxHopArrayLen; over > 0 {
		d.Attrs.HopArray = d.Attrs.HopArray[over:]
	}
}

// UpgradeEngine moves the device's engine version up to at least the
// given version, never downward (spec.md §3's monotonic-in-practice
// invariant).
func (d *Device) UpgradeEngine(v EngineVersion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v > d.Attrs.EngineVersion {
		d.Attrs.EngineVersion = v
	}
}
