package aldb

// Start is the highest ALDB address i1/i2 devices expose (spec.md §4.7),
// the first address a full-table scan reads from.
var Start = Key{MSB: 0x0F, LSB: 0xF8}

// Store is the in-memory mirror of one device's on-board link database,
// grounded on original_source/insteon_mngr/aldb.py's ALDB class: records
// keyed by base address, with a decrement-by-8 walk used to drive a scan.
type Store struct {
	records map[Key]Record
	order   []Key
	delta   byte
	loaded  bool
}

// NewStore returns an empty ALDB mirror.
func NewStore() *Store {
	return &Store{records: make(map[Key]Record)}
}

// ClearAll discards every record and resets scan state, used before
// starting a fresh full-table scan.
func (s *Store) ClearAll() {
	s.records = make(map[Key]Record)
	s.order = nil
	s.loaded = false
}

// GetRecord returns the record stored at (msb, lsb), if any.
func (s *Store) GetRecord(msb, lsb byte) (Record, bool) {
	r, ok := s.records[NewKey(msb, lsb)]
	return r, ok
}

// EditRecord stores or replaces a whole record at (msb, lsb).
func (s *Store) EditRecord(msb, lsb byte, rec Record) {
	k := NewKey(msb, lsb)
	if _, exists := s.records[k]; !exists {
		s.order = append(s.order, k)
	}
	s.records[k] = rec
}

// EditRecordByte sets a single field (by position index, see the Pos*
// constants) of the record at (msb, lsb), creating it first if absent.
func (s *Store) EditRecordByte(msb, lsb byte, pos int, value byte) {
	k := NewKey(msb, lsb)
	rec, exists := s.records[k]
	if !exists {
		s.order = append(s.order, k)
	}
	b := rec.Bytes()
	b[pos] = value
	s.records[k] = FromBytes(b)
}

// AllRecords returns a copy of every stored record, keyed by its
// normalized address. The result is a map, so it carries no ordering.
func (s *Store) AllRecords() map[Key]Record {
	out := make(map[Key]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Len reports how many records are currently stored.
func (s *Store) Len() int {
	return len(s.records)
}

// SetDelta records the ALDB's change counter, spec.md's "set_aldb_delta"
// state used to detect an out-of-band ALDB edit on the physical device.
func (s *Store) SetDelta(delta byte) {
	s.delta = delta
}

// Delta returns the last recorded ALDB change counter.
func (s *Store) Delta() byte {
	return s.delta
}

// MarkLoaded records that a full scan has completed without error.
func (s *Store) MarkLoaded() {
	s.loaded = true
}

// Loaded reports whether a full scan has completed.
func (s *Store) Loaded() bool {
	return s.loaded
}

// NextAddress computes the address to read/write after (msb, lsb), walking
// the table downward 8 bytes at a time. Insteon ALDB addresses decrement
// from Start; when lsb underflows below 0x08 the address wraps to the next
// lower msb at lsb 0xF8 (original_source's address-stepping behavior).
func NextAddress(msb, lsb byte) (nextMSB, nextLSB byte) {
	if lsb >= 0x08 {
		return msb, lsb - 0x08
	}
	return msb - 1, 0xF8
}
