// Package devicestate persists the per-device state spec.md §6 calls out
// as "consumed, not owned, by the core": engine version, dev_cat, sub_cat,
// firmware, aldb_delta, and the mirrored ALDB records. The fleet reads a
// snapshot at construction; a snapshot is written only when a caller
// invokes Store.Save (fleet.Persist, after a run succeeds), not on each
// individual mutation. Grounded on the teacher's TOML-loaded internal/config but
// using gopkg.in/yaml.v2 (the teacher's otherwise-unused exact dependency)
// for the one-document-per-device snapshot shape.
package devicestate

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/insteonplm/meshd/pkg/insteon/aldb"
	"github.com/insteonplm/meshd/pkg/insteon/device"
)

// Record is the on-disk snapshot of one device's persisted attributes and
// ALDB. Field names are lowercase to keep the YAML readable for anyone
// editing a snapshot by hand during development.
type Record struct {
	Address       string        `yaml:"address"`
	EngineVersion int           `yaml:"engine_version"` // device.EngineUnknown (-1) if never negotiated
	DevCat        *byte         `yaml:"dev_cat,omitempty"`
	SubCat        *byte         `yaml:"sub_cat,omitempty"`
	Firmware      *byte         `yaml:"firmware,omitempty"`
	AldbDelta     byte          `yaml:"aldb_delta"`
	Records       []RecordEntry `yaml:"aldb_records,omitempty"`
}

// RecordEntry is one ALDB record keyed by its normalized address.
type RecordEntry struct {
	MSB        byte `yaml:"msb"`
	LSB        byte `yaml:"lsb"`
	LinkFlags  byte `yaml:"link_flags"`
	Group      byte `yaml:"group"`
	DevAddrHi  byte `yaml:"dev_addr_hi"`
	DevAddrMid byte `yaml:"dev_addr_mid"`
	DevAddrLow byte `yaml:"dev_addr_low"`
	Data1      byte `yaml:"data_1"`
	Data2      byte `yaml:"data_2"`
	Data3      byte `yaml:"data_3"`
}

// Store reads and writes one snapshot file per device address under a
// base directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "devicestate: create %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(addr string) string {
	return filepath.Join(s.dir, addr+".yaml")
}

// Load reads the snapshot for addr. A missing file is not an error: it
// returns a zero-value Record (engine version unknown), matching a
// never-before-seen device's initial state.
func (s *Store) Load(addr string) (Record, error) {
	rec := Record{Address: addr, EngineVersion: int(device.EngineUnknown)}
	b, err := ioutil.ReadFile(s.path(addr))
	if os.IsNotExist(err) {
		return rec, nil
	}
	if err != nil {
		return rec, errors.Wrapf(err, "devicestate: read %s", addr)
	}
	if err := yaml.Unmarshal(b, &rec); err != nil {
		return rec, errors.Wrapf(err, "devicestate: parse snapshot for %s", addr)
	}
	return rec, nil
}

// Save writes the snapshot for addr, overwriting any prior file.
func (s *Store) Save(rec Record) error {
	b, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "devicestate: marshal snapshot for %s", rec.Address)
	}
	tmp := s.path(rec.Address) + ".tmp"
	if err := ioutil.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "devicestate: write %s", rec.Address)
	}
	return errors.Wrapf(os.Rename(tmp, s.path(rec.Address)), "devicestate: commit %s", rec.Address)
}

// FromDevice builds a Record from a device's current in-memory state.
func FromDevice(d *device.Device) Record {
	rec := Record{
		Address:       d.Addr.String(),
		EngineVersion: int(d.Attrs.EngineVersion),
		AldbDelta:     d.ALDB.Delta(),
	}
	if d.Attrs.DevCatSet {
		v := d.Attrs.DevCat
		rec.DevCat = &v
	}
	if d.Attrs.SubCatSet {
		v := d.Attrs.SubCat
		rec.SubCat = &v
	}
	if d.Attrs.FirmwareSet {
		v := d.Attrs.Firmware
		rec.Firmware = &v
	}
	for k, r := range d.ALDB.AllRecords() {
		rec.Records = append(rec.Records, RecordEntry{
			MSB: k.MSB, LSB: k.LSB,
			LinkFlags: r.LinkFlags, Group: r.Group,
			DevAddrHi: r.DevAddrHi, DevAddrMid: r.DevAddrMid, DevAddrLow: r.DevAddrLow,
			Data1: r.Data1, Data2: r.Data2, Data3: r.Data3,
		})
	}
	return rec
}

// ApplyTo overlays a loaded Record onto a freshly-constructed device,
// adopting persisted attributes and rebuilding the ALDB mirror.
func ApplyTo(d *device.Device, rec Record) {
	d.Attrs.EngineVersion = device.EngineVersion(rec.EngineVersion)
	if rec.DevCat != nil {
		d.Attrs.DevCat, d.Attrs.DevCatSet = *rec.DevCat, true
	}
	if rec.SubCat != nil {
		d.Attrs.SubCat, d.Attrs.SubCatSet = *rec.SubCat, true
	}
	if rec.Firmware != nil {
		d.Attrs.Firmware, d.Attrs.FirmwareSet = *rec.Firmware, true
	}
	d.ALDB.SetDelta(rec.AldbDelta)
	for _, e := range rec.Records {
		d.ALDB.EditRecord(e.MSB, e.LSB, aldb.Record{
			LinkFlags: e.LinkFlags, Group: e.Group,
			DevAddrHi: e.DevAddrHi, DevAddrMid: e.DevAddrMid, DevAddrLow: e.DevAddrLow,
			Data1: e.Data1, Data2: e.Data2, Data3: e.Data3,
		})
	}
	if len(rec.Records) > 0 {
		d.ALDB.MarkLoaded()
	}
}
