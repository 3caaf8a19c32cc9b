package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/devicestate"
	"github.com/insteonplm/meshd/internal/fleet"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
	"github.com/insteonplm/meshd/pkg/insteon/trigger"
	"github.com/insteonplm/meshd/pkg/plm"
)

type stubAckFuture struct{}

func (stubAckFuture) Wait(context.Context) (bool, error) { return true, nil }

type stubModem struct {
	wait    time.Duration
	inbound chan plm.IncomingEnvelope
}

func newStubModem() *stubModem { return &stubModem{inbound: make(chan plm.IncomingEnvelope)} }

func (m *stubModem) Enqueue(plm.WireFrame) plm.AckFuture { return stubAckFuture{} }
func (m *stubModem) SetWaitToSend(d time.Duration)       { m.wait = d }
func (m *stubModem) WaitToSend() time.Duration           { return m.wait }
func (m *stubModem) Inbound() <-chan plm.IncomingEnvelope { return m.inbound }
func (m *stubModem) Close() error                        { return nil }

func testAddr() address.Address { return address.New(0x1A, 0x2B, 0x3C) }

func newTestFleet(t *testing.T) *fleet.Fleet {
	t.Helper()
	store, err := devicestate.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := fleet.New([]common.DeviceConfig{{Address: testAddr().String(), Name: "test"}}, newStubModem(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestNewDefaultsIntervalWhenUnconfigured(t *testing.T) {
	f := newTestFleet(t)
	m := New(&common.Config{}, f)
	if m.interval != 60*time.Second {
		t.Fatalf("want default 60s interval, got %v", m.interval)
	}
}

func TestNewUsesConfiguredInterval(t *testing.T) {
	f := newTestFleet(t)
	cfg := &common.Config{}
	cfg.Scheduler.StalenessSweepSeconds = 5
	m := New(cfg, f)
	if m.interval != 5*time.Second {
		t.Fatalf("want 5s interval, got %v", m.interval)
	}
}

func TestSweepStalenessOnlyProbesUnloadedDevices(t *testing.T) {
	f := newTestFleet(t)
	d, _ := f.Get(testAddr())
	d.Attrs.EngineVersion = device.EngineI2
	d.ALDB.MarkLoaded()

	m := New(&common.Config{}, f)
	m.sweepStaleness()

	// A loaded ALDB means no probe should have been queued.
	if _, ok := d.Dequeue(common.StateSetALDBDelta); ok {
		t.Fatal("expected no status probe queued for an already-loaded device")
	}
}

func TestSweepStalenessProbesUnloadedDevice(t *testing.T) {
	f := newTestFleet(t)
	d, _ := f.Get(testAddr())
	d.Attrs.EngineVersion = device.EngineI2

	m := New(&common.Config{}, f)
	m.sweepStaleness()

	out, ok := d.Dequeue(common.StateSetALDBDelta)
	if !ok || out.CommandName != "light_status_request" {
		t.Fatalf("expected a status probe queued, got %+v ok=%v", out, ok)
	}
}

func TestSweepTimeoutsExpiresPendingTriggers(t *testing.T) {
	f := newTestFleet(t)
	m := New(&common.Config{}, f)

	expired := false
	f.Disp.Triggers.Add(&trigger.Trigger{
		Device: testAddr(), CommandName: "on", Name: "stuck",
		Fire:      func(frame.Incoming) {},
		Deadline:  time.Now().Add(-time.Second),
		OnTimeout: func() { expired = true },
	})

	m.sweepTimeouts()

	if !expired {
		t.Fatal("expected sweepTimeouts to fire the expired trigger's OnTimeout")
	}
}
