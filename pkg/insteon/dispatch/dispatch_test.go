package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/schema"
	"github.com/insteonplm/meshd/pkg/insteon/trigger"
	"github.com/insteonplm/meshd/pkg/plm"
)

type stubAckFuture struct{}

func (stubAckFuture) Wait(context.Context) (bool, error) { return true, nil }

// stubModem is a minimal in-memory plm.Modem for dispatcher tests; it
// never touches a real serial link.
type stubModem struct {
	wait    time.Duration
	inbound chan plm.IncomingEnvelope
}

func newStubModem() *stubModem {
	return &stubModem{inbound: make(chan plm.IncomingEnvelope)}
}

func (m *stubModem) Enqueue(plm.WireFrame) plm.AckFuture   { return stubAckFuture{} }
func (m *stubModem) SetWaitToSend(d time.Duration)         { m.wait = d }
func (m *stubModem) WaitToSend() time.Duration             { return m.wait }
func (m *stubModem) Inbound() <-chan plm.IncomingEnvelope   { return m.inbound }
func (m *stubModem) Close() error                          { return nil }

func testAddr() address.Address { return address.New(0x1A, 0x2B, 0x3C) }

func standardDirectAck(cmd1, cmd2 byte) frame.Incoming {
	return frame.Incoming{
		Source: testAddr(), Type: schema.MsgDirectAck, Length: schema.LenStandard,
		Cmd1: cmd1, Cmd2: cmd2, MaxHops: 3, HopsLeft: 2,
		Raw: []byte{0x02, 0x50, 0x1A, 0x2B, 0x3C, 0xAA, 0xBB, 0xCC, 0x10, cmd1, cmd2},
	}
}

func standardDirectNack(cmd1, cmd2 byte) frame.Incoming {
	f := standardDirectAck(cmd1, cmd2)
	f.Type = schema.MsgDirectNack
	f.Raw[8] = 0x20
	return f
}

func sendAndAck(t *testing.T, d *device.Device, name string, overrides map[string]byte, label string) *frame.Outgoing {
	t.Helper()
	sent, err := d.SendCommand(name, overrides, label)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := d.Dequeue(label)
	if !ok || out != sent {
		t.Fatalf("expected dequeue to return the sent frame")
	}
	out.PlmAck = true
	return out
}

func TestHandleDirectAckLightStatusRequestAdoptsDelta(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	d.State = common.StateSetALDBDelta
	sendAndAck(t, d, "light_status_request", nil, common.StateSetALDBDelta)

	in := standardDirectAck(0x05, 0xFF)
	err := disp.Process(d, in, time.Unix(1, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ALDB.Delta() != 0x05 {
		t.Fatalf("want delta 0x05, got 0x%02X", d.ALDB.Delta())
	}
	if d.Attrs.Status != 0xFF {
		t.Fatalf("want status 0xFF, got 0x%02X", d.Attrs.Status)
	}
	if d.State != "" {
		t.Fatalf("expected state cleared, got %q", d.State)
	}
}

func TestHandleDirectAckStaleResponseDropped(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	sent, _ := d.SendCommand("on", nil, "")
	_, _ = d.Dequeue("")
	sent.PlmAck = false // never modem-acked

	in := standardDirectAck(0x11, 0xFF)
	err := disp.Process(d, in, time.Unix(1, 0))
	if err != common.ErrStaleResponse {
		t.Fatalf("want ErrStaleResponse, got %v", err)
	}
}

func TestHandleDirectAckGenericConfirmsAndFiresTrigger(t *testing.T) {
	m := newStubModem()
	reg := trigger.NewRegistry()
	disp := New(m, reg)
	d := device.New(testAddr())
	fired := false
	reg.Add(&trigger.Trigger{Device: d.Addr, CommandName: "on", Fire: func(frame.Incoming) { fired = true }})

	sendAndAck(t, d, "on", nil, "")

	in := standardDirectAck(0x11, 0xFF)
	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.LastSent().DeviceAck {
		t.Fatal("expected device-ack set")
	}
	if !fired {
		t.Fatal("expected trigger to fire on matching ack")
	}
}

func TestHandleDirectNackFFUpgradesAndRemovesStateMachine(t *testing.T) {
	m := newStubModem()
	reg := trigger.NewRegistry()
	disp := New(m, reg)
	d := device.New(testAddr())
	needLink := false
	reg.Add(&trigger.Trigger{Device: d.Addr, CommandName: "need_manual_link", Name: "addplm", Fire: func(frame.Incoming) { needLink = true }})

	sendAndAck(t, d, "enter_link_mode", nil, "link")

	in := standardDirectNack(0x09, 0xFF)
	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Attrs.EngineVersion != device.EngineI2CS {
		t.Fatalf("expected engine upgraded to i2cs, got %v", d.Attrs.EngineVersion)
	}
	if !needLink {
		t.Fatal("expected need_manual_link trigger to fire")
	}
}

func TestHandleDirectNackChecksumBadResendsAtHead(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	sent := sendAndAck(t, d, "peek_one_byte", map[string]byte{"lsb": 0xF8}, "scan")

	in := standardDirectNack(0x2B, 0xFD)
	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.PlmAck {
		t.Fatal("expected plm_ack reset on resend")
	}
	requeued, ok := d.Dequeue("scan")
	if !ok || requeued != sent {
		t.Fatal("expected the same frame re-enqueued at the head of its label")
	}
}

func TestHandleDirectNackI1PlainResend(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	d.UpgradeEngine(device.EngineI1)
	sent := sendAndAck(t, d, "on", nil, "")

	in := standardDirectNack(0x11, 0x01)
	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.PlmAck {
		t.Fatal("expected plm_ack reset on resend")
	}
}

func TestAckMeansNackReclassification(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	sendAndAck(t, d, "get_engine_version", nil, "init")

	in := standardDirectAck(0x0D, 0xFF) // ack carrying a NACK-range cmd_2
	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Attrs.EngineVersion != device.EngineI2CS {
		t.Fatalf("expected ack-means-nack to upgrade engine, got %v", d.Attrs.EngineVersion)
	}
}

func TestExtendedDirectAldbReadInstallsRecord(t *testing.T) {
	m := newStubModem()
	disp := New(m, trigger.NewRegistry())
	d := device.New(testAddr())
	sendAndAck(t, d, "read_aldb", nil, "scan")

	in := frame.Incoming{
		Source: testAddr(), Type: schema.MsgDirect, Length: schema.LenExtended,
		Cmd1: 0x2F,
		Raw:  make([]byte, 25),
	}
	in.Usr[2] = 0x0F // usr_3 = msb
	in.Usr[3] = 0xF8 // usr_4 = lsb
	in.Usr[5] = 0xA2 // usr_6 = link_flags

	if err := disp.Process(d, in, time.Unix(1, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := d.ALDB.GetRecord(0x0F, 0xF8)
	if !ok {
		t.Fatal("expected record installed")
	}
	if rec.LinkFlags != 0xA2 {
		t.Fatalf("want link_flags 0xA2, got 0x%02X", rec.LinkFlags)
	}
}
