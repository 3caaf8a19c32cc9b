// Package plm defines the abstract modem endpoint consumed by the core
// (spec.md §6, "Modem abstraction (consumed)"). Serial port I/O and modem
// frame encoding/decoding are external collaborators, out of the core's
// scope per spec.md §1; this package only describes the contract, mirroring
// the teacher's pkg/models.ProtocolDriver boundary interface.
package plm

import (
	"context"
	"time"
)

// WireFrame is a raw, already-encoded modem frame ready to be written to
// the wire, or just read from it. The core never inspects these bytes
// directly for anything beyond what frame.Parse needs (hop field, length
// class); full wire encode/decode belongs to the modem implementation.
type WireFrame struct {
	Raw []byte
}

// AckFuture resolves when the modem has accepted (or rejected) an enqueued
// frame for transmission — the "modem-ack" stage referenced throughout
// spec.md §3/§4.
type AckFuture interface {
	Wait(ctx context.Context) (ok bool, err error)
}

// Modem is the abstract endpoint the core drives: enqueue outgoing frames,
// read a tagged stream of decoded incoming frames, and adjust the
// inter-send backoff knob. Concrete implementations (internal/transport/...)
// own the actual serial link.
type Modem interface {
	// Enqueue submits a wire frame for transmission and returns a future
	// that resolves on modem-ack.
	Enqueue(frame WireFrame) AckFuture

	// SetWaitToSend sets the scalar backoff knob read at dispatch time.
	// Per spec.md §5, writers should prefer the larger remaining delay;
	// that monotonicity is the caller's responsibility (see
	// device.ApplyWaitToSend), not the modem's.
	SetWaitToSend(d time.Duration)
	WaitToSend() time.Duration

	// Inbound returns a channel of decoded incoming frames tagged with
	// their source device address (IncomingEnvelope.SourceHi/SourceMid/
	// SourceLow).
	Inbound() <-chan IncomingEnvelope

	Close() error
}

// IncomingEnvelope tags a decoded incoming frame with its source device
// address, as required by spec.md §6.
type IncomingEnvelope struct {
	SourceHi, SourceMid, SourceLow byte
	Raw                            []byte
}
