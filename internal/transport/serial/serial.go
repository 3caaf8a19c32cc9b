// Package serial implements plm.Modem against a real RS-232 serial port,
// the concrete stand-in for the "serial port I/O and modem frame
// encoding/decoding" spec.md §1 places out of core scope. Grounded on the
// teacher's example/device-modbus driver: a connect-with-retries
// constructor and a mutex-guarded port, here adapted from a request/reply
// Modbus client to a half-duplex send/listen PLM link.
package serial

import (
	"context"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/plm"
)

const (
	// ackByte/nackByte are the PLM's own modem-level acknowledgement
	// bytes, appended to the echoed command; distinct from the
	// device-ack/nack traffic the core's dispatch package interprets.
	ackByte  = 0x06
	nackByte = 0x15
)

// ackFuture resolves once the modem has echoed a frame back with its
// trailing ack/nack byte, or the read times out.
type ackFuture struct {
	done chan struct{}
	ok   bool
	err  error
}

func newAckFuture() *ackFuture {
	return &ackFuture{done: make(chan struct{})}
}

func (f *ackFuture) resolve(ok bool, err error) {
	f.ok, f.err = ok, err
	close(f.done)
}

// Wait implements plm.AckFuture.
func (f *ackFuture) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.ok, f.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Modem is a plm.Modem backed by a goburrow/serial port, grounded on the
// teacher's ModbusDevice: a mutex-guarded client plus a connect function
// retried at startup per the configured retry count.
type Modem struct {
	mu   sync.Mutex
	port serial.Port

	waitMu sync.Mutex
	wait   time.Duration

	inbound chan plm.IncomingEnvelope
	closeCh chan struct{}
	wg      sync.WaitGroup

	// ourAddr is the PLM's own address, stamped into outgoing frames'
	// from-address field by frame.ToWire.
	ourAddr address.Address
}

// Open connects to the configured serial device, retrying up to
// cfg.Service.ConnectRetries times with cfg.Service.Timeout milliseconds
// between attempts, the same retry shape the teacher's
// checkDependencyServices uses for its own startup probes.
func Open(cfg *common.Config, ourAddr address.Address) (*Modem, error) {
	sc := &serial.Config{
		Address:  cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Duration(cfg.Service.Timeout) * time.Millisecond,
	}

	var port serial.Port
	var err error
	retries := cfg.Service.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		port, err = serial.Open(sc)
		if err == nil {
			break
		}
		common.Logger.Warn("serial: connect attempt failed", "attempt", i+1, "port", cfg.Serial.Port, "err", err)
		time.Sleep(time.Duration(cfg.Service.Timeout) * time.Millisecond)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "serial: could not open %s after %d attempts", cfg.Serial.Port, retries)
	}

	m := &Modem{
		port:    port,
		inbound: make(chan plm.IncomingEnvelope, 32),
		closeCh: make(chan struct{}),
		ourAddr: ourAddr,
	}
	m.wg.Add(1)
	go m.readLoop()
	return m, nil
}

// Enqueue implements plm.Modem: writes the wire frame and waits (in a
// background goroutine) for the PLM's own ack/nack echo byte.
func (m *Modem) Enqueue(f plm.WireFrame) plm.AckFuture {
	fut := newAckFuture()
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if _, err := m.port.Write(f.Raw); err != nil {
			fut.resolve(false, errors.Wrap(err, "serial: write"))
			return
		}

		trailer := make([]byte, 1)
		if _, err := m.port.Read(trailer); err != nil {
			fut.resolve(false, errors.Wrap(err, "serial: read ack trailer"))
			return
		}
		fut.resolve(trailer[0] == ackByte, nil)
	}()
	return fut
}

// SetWaitToSend implements plm.Modem.
func (m *Modem) SetWaitToSend(d time.Duration) {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	m.wait = d
}

// WaitToSend implements plm.Modem.
func (m *Modem) WaitToSend() time.Duration {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	return m.wait
}

// Inbound implements plm.Modem.
func (m *Modem) Inbound() <-chan plm.IncomingEnvelope {
	return m.inbound
}

// Close implements plm.Modem.
func (m *Modem) Close() error {
	close(m.closeCh)
	err := m.port.Close()
	m.wg.Wait()
	close(m.inbound)
	return err
}

// readLoop continuously decodes frames off the wire and tags them with
// their source device address, the one piece of the modem contract
// spec.md §6 requires ("event stream of decoded frames tagged by source
// device"). A malformed buffer is logged and dropped, never fatal to the
// loop.
func (m *Modem) readLoop() {
	defer m.wg.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		n, err := m.port.Read(buf)
		if err != nil {
			select {
			case <-m.closeCh:
				return
			default:
			}
			common.Logger.Warn("serial: read error", "err", err)
			continue
		}
		if n == 0 {
			continue
		}

		in, err := frame.Parse(append([]byte(nil), buf[:n]...))
		if err != nil {
			common.Logger.Debug("serial: dropping unparseable frame", "err", err)
			continue
		}

		env := plm.IncomingEnvelope{
			SourceHi: in.Source.Hi, SourceMid: in.Source.Mid, SourceLow: in.Source.Low,
			Raw: in.Raw,
		}
		select {
		case m.inbound <- env:
		case <-m.closeCh:
			return
		}
	}
}
