// Package fleet is the address-keyed device arena REDESIGN FLAGS calls
// for ("Use a central arena indexed by device address; sequences hold
// addresses plus a pointer to the arena, never direct owning handles to
// devices"), grounded on the teacher's internal/cache: a package-level
// registry built once at startup from configuration and never destroyed
// during a run (spec.md §3's Lifecycles paragraph).
package fleet

import (
	"sync"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/devicestate"
	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/device"
	"github.com/insteonplm/meshd/pkg/insteon/dispatch"
	"github.com/insteonplm/meshd/pkg/insteon/trigger"
	"github.com/insteonplm/meshd/pkg/plm"
)

// Fleet owns every configured device, the shared dispatcher (and through
// it, the shared modem and trigger registry), and the persisted-state
// store each device is written through to.
type Fleet struct {
	mu      sync.RWMutex
	devices map[address.Address]*device.Device
	order   []address.Address
	names   map[address.Address]string

	Disp  *dispatch.Dispatcher
	store *devicestate.Store
}

// New builds the fleet from configuration: one device.Device per entry,
// each with its persisted attributes and ALDB mirror restored from store
// before first use, per spec.md §6 ("Core reads these at startup").
func New(cfg []common.DeviceConfig, modem plm.Modem, store *devicestate.Store) (*Fleet, error) {
	f := &Fleet{
		devices: make(map[address.Address]*device.Device, len(cfg)),
		names:   make(map[address.Address]string, len(cfg)),
		Disp:    dispatch.New(modem, trigger.NewRegistry()),
		store:   store,
	}
	for _, dc := range cfg {
		addr, err := address.Parse(dc.Address)
		if err != nil {
			return nil, err
		}
		d := device.New(addr)
		rec, err := store.Load(addr.String())
		if err != nil {
			return nil, err
		}
		devicestate.ApplyTo(d, rec)

		f.devices[addr] = d
		f.order = append(f.order, addr)
		f.names[addr] = dc.Name
	}
	return f, nil
}

// Get resolves a device by address. Per spec.md's Non-goals, addresses
// not present in configuration are never auto-added.
func (f *Fleet) Get(addr address.Address) (*device.Device, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.devices[addr]
	return d, ok
}

// Name returns the configured friendly name for addr, or "" if unknown.
func (f *Fleet) Name(addr address.Address) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.names[addr]
}

// All returns every configured device, in configuration order.
func (f *Fleet) All() []*device.Device {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*device.Device, 0, len(f.order))
	for _, addr := range f.order {
		out = append(out, f.devices[addr])
	}
	return out
}

// Persist writes d's current attributes and ALDB mirror through to the
// backing store, called after any mutation spec.md §6 says the core
// must write through (engine version negotiated, identity learned,
// ALDB record added/edited/deleted).
func (f *Fleet) Persist(d *device.Device) error {
	return f.store.Save(devicestate.FromDevice(d))
}
