package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/devicestate"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/device"
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

func newStore(t *testing.T) *devicestate.Store {
	t.Helper()
	s, err := devicestate.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestNewBuildsOneDevicePerConfigEntryInOrder(t *testing.T) {
	cfg := []common.DeviceConfig{
		{Address: "1A.2B.3C", Name: "kitchen-switch"},
		{Address: "4D.5E.6F", Name: "hallway-dimmer"},
	}
	f, err := New(cfg, newStubModem(), newStore(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := f.All()
	if len(all) != 2 {
		t.Fatalf("want 2 devices, got %d", len(all))
	}
	if all[0].Addr != address.New(0x1A, 0x2B, 0x3C) || all[1].Addr != address.New(0x4D, 0x5E, 0x6F) {
		t.Fatalf("expected configuration order preserved, got %v then %v", all[0].Addr, all[1].Addr)
	}
	if f.Name(address.New(0x1A, 0x2B, 0x3C)) != "kitchen-switch" {
		t.Fatalf("want name kitchen-switch, got %q", f.Name(address.New(0x1A, 0x2B, 0x3C)))
	}
}

func TestGetUnconfiguredAddressNotFound(t *testing.T) {
	f, err := New(nil, newStubModem(), newStore(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ok := f.Get(address.New(0xFF, 0xFF, 0xFF))
	if ok {
		t.Fatal("expected unconfigured address to be absent")
	}
}

func TestNewRestoresPersistedStateAtConstruction(t *testing.T) {
	store := newStore(t)
	addr := address.New(0x1A, 0x2B, 0x3C)
	if err := store.Save(devicestate.Record{
		Address:       addr.String(),
		EngineVersion: int(device.EngineI2),
		AldbDelta:     0x07,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := New([]common.DeviceConfig{{Address: addr.String(), Name: "test"}}, newStubModem(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, ok := f.Get(addr)
	if !ok {
		t.Fatal("expected device present")
	}
	if d.Attrs.EngineVersion != device.EngineI2 {
		t.Fatalf("want restored engine i2, got %v", d.Attrs.EngineVersion)
	}
	if d.ALDB.Delta() != 0x07 {
		t.Fatalf("want restored delta 0x07, got 0x%02X", d.ALDB.Delta())
	}
}

func TestPersistWritesThroughToStore(t *testing.T) {
	store := newStore(t)
	addr := address.New(0x1A, 0x2B, 0x3C)
	f, err := New([]common.DeviceConfig{{Address: addr.String(), Name: "test"}}, newStubModem(), store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, _ := f.Get(addr)
	d.Attrs.EngineVersion = device.EngineI1
	if err := f.Persist(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Load(addr.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.EngineVersion != int(device.EngineI1) {
		t.Fatalf("want persisted engine i1, got %d", rec.EngineVersion)
	}
}

func TestNewRejectsMalformedAddress(t *testing.T) {
	_, err := New([]common.DeviceConfig{{Address: "not-an-address"}}, newStubModem(), newStore(t))
	if err == nil {
		t.Fatal("expected an error for a malformed configured address")
	}
}
