package device

import (
	"time"

	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
	"github.com/insteonplm/meshd/pkg/plm"
)

const (
	hopDelayStandardMs = 50
	hopDelayExtendedMs = 109

	dedupDelayStandardMs = 87
	dedupDelayExtendedMs = 183
)

// Classification is the outcome of the generic inbound pipeline steps in
// spec.md §4.2: which specialized handling (if any) the caller should run
// next, after the duplicate/bookkeeping steps have already executed.
type Classification int

const (
	// ClassDuplicate means the frame was dropped as a repeat within its
	// dedup window; no further processing should occur.
	ClassDuplicate Classification = iota
	ClassDirect
	ClassDirectAck
	ClassDirectNack
	ClassBroadcast
	ClassAllLinkCleanupAck
)

// WaitToSendFor computes the absolute backoff candidate spec.md §4.2 step 1
// describes: hop_delay * hops_left + 5ms, hop_delay depending on length
// class.
func WaitToSendFor(length schema.MsgLength, hopsLeft byte) time.Duration {
	perHop := hopDelayStandardMs
	if length == schema.LenExtended {
		perHop = hopDelayExtendedMs
	}
	return time.Duration(perHop)*time.Millisecond*time.Duration(hopsLeft) + 5*time.Millisecond
}

// dedupWindow computes the expiry window spec.md §4.2 step 2 describes:
// dedup_delay' * hops_left, the distinct (87/183ms) constant reflecting
// the empirical echo-vs-dedup window.
func dedupWindow(length schema.MsgLength, hopsLeft byte) time.Duration {
	perHop := dedupDelayStandardMs
	if length == schema.LenExtended {
		perHop = dedupDelayExtendedMs
	}
	return time.Duration(perHop) * time.Millisecond * time.Duration(hopsLeft)
}

// ApplyWaitToSend merges a candidate backoff into the modem's wait_to_send
// knob, always preferring the larger remaining delay (spec.md §5's
// "Wait-to-send monotonicity under contention" invariant).
func ApplyWaitToSend(m plm.Modem, candidate time.Duration) {
	if candidate > m.WaitToSend() {
		m.SetWaitToSend(candidate)
	}
}

// isDuplicate consults and maintains the dedup cache, evicting expired
// entries as it goes (spec.md §4.2 step 2).
func (d *Device) isDuplicate(in *frame.Incoming, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	sig := in.DedupSignature()
	for k, v := range d.recent {
		if v.expiry.Before(now) {
			delete(d.recent, k)
		}
	}
	if _, ok := d.recent[sig]; ok {
		return true
	}
	d.recent[sig] = recentInbound{expiry: now.Add(dedupWindow(in.Length, in.HopsLeft))}
	return false
}

// Receive executes the generic portion of spec.md §4.2's receive
// pipeline: wait-to-send computation, dedup, last-received bookkeeping,
// classification, broadcast-identity adoption, and hop-array accounting.
// It returns the wait-to-send candidate (caller applies it via
// ApplyWaitToSend) and the classification driving further dispatch.
//
// Specialized direct/ack/nack handling (schema narrowing, ALDB mutation,
// trigger firing) is NOT performed here — it lives in the dispatch
// package, which calls Receive first for the bookkeeping every inbound
// frame needs regardless of its type.
func (d *Device) Receive(in frame.Incoming, now time.Time) (waitCandidate time.Duration, class Classification, duplicate bool) {
	waitCandidate = WaitToSendFor(in.Length, in.HopsLeft)

	if d.isDuplicate(&in, now) {
		return waitCandidate, ClassDuplicate, true
	}

	d.mu.Lock()
	d.lastRcvd = &in
	d.mu.Unlock()

	switch in.Type {
	case schema.MsgDirect:
		class = ClassDirect
		d.AppendHop(in.HopsUsed())
	case schema.MsgDirectAck:
		class = ClassDirectAck
		d.AppendHop(in.HopsUsed())
	case schema.MsgDirectNack:
		class = ClassDirectNack
		d.AppendHop(in.HopsUsed())
	case schema.MsgBroadcast:
		class = ClassBroadcast
		d.adoptBroadcastIdentity(in)
	case schema.MsgAllLinkCleanupAck:
		class = ClassAllLinkCleanupAck
		d.RemoveMatchingQueued(in.Cmd1, in.Cmd2)
		d.mu.Lock()
		if d.lastSent != nil && d.lastSent.Cmd1 == in.Cmd1 && d.lastSent.Cmd2 == in.Cmd2 {
			d.lastSent.DeviceAck = true
		}
		d.mu.Unlock()
	default:
		class = ClassDirect
	}
	return waitCandidate, class, false
}

// adoptBroadcastIdentity updates dev_cat/sub_cat/firmware from the
// destination-address bytes of a broadcast frame, per the protocol quirk
// spec.md §4.2 step 4 calls out.
func (d *Device) adoptBroadcastIdentity(in frame.Incoming) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := in.ToAddr.Bytes()
	d.Attrs.DevCat, d.Attrs.DevCatSet = b[0], true
	d.Attrs.SubCat, d.Attrs.SubCatSet = b[1], true
	d.Attrs.Firmware, d.Attrs.FirmwareSet = b[2], true
}
