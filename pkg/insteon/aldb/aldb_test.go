package aldb

import "testing"

func TestNewKeyNormalizesLSB(t *testing.T) {
	k := NewKey(0x0F, 0xFB)
	if k.LSB != 0xF8 {
		t.Fatalf("want lsb 0xF8, got 0x%02X", k.LSB)
	}
}

func TestRecordPredicates(t *testing.T) {
	r := FromBytes([8]byte{0xC0, 0x01, 0x1A, 0x2B, 0x3C, 0x00, 0x00, 0x00})
	if !r.IsInUse() {
		t.Fatal("expected in-use")
	}
	if !r.IsController() {
		t.Fatal("expected controller")
	}
	if r.IsLast() {
		t.Fatal("in-use record without the high-water-mark flag should not report IsLast")
	}

	empty := Record{}
	if !empty.IsEmpty() {
		t.Fatal("expected empty record")
	}
	if empty.IsLast() {
		t.Fatal("an all-zero record is not the terminator unless it carries the high-water-mark flag")
	}

	terminator := FromBytes([8]byte{0x02, 0, 0, 0, 0, 0, 0, 0})
	if terminator.IsEmpty() {
		t.Fatal("the terminator carries the high-water-mark flag, so it is not all-zero")
	}
	if !terminator.IsLast() {
		t.Fatal("expected terminator to report IsLast")
	}
}

func TestStoreEditAndGetRecord(t *testing.T) {
	s := NewStore()
	s.EditRecord(0x0F, 0xF8, FromBytes([8]byte{0x80, 0x01, 0x1A, 0x2B, 0x3C, 0, 0, 0}))

	rec, ok := s.GetRecord(0x0F, 0xFB) // unaligned lookup normalizes the same
	if !ok {
		t.Fatal("expected record present")
	}
	if rec.Group != 0x01 {
		t.Fatalf("want group 0x01, got 0x%02X", rec.Group)
	}
	if s.Len() != 1 {
		t.Fatalf("want 1 record, got %d", s.Len())
	}
}

func TestStoreEditRecordByteCreatesRecord(t *testing.T) {
	s := NewStore()
	s.EditRecordByte(0x0F, 0xF8, PosGroup, 0x05)

	rec, ok := s.GetRecord(0x0F, 0xF8)
	if !ok {
		t.Fatal("expected record created")
	}
	if rec.Group != 0x05 {
		t.Fatalf("want group 0x05, got 0x%02X", rec.Group)
	}
}

func TestClearAllResetsStore(t *testing.T) {
	s := NewStore()
	s.EditRecord(0x0F, 0xF8, Record{LinkFlags: 0x80})
	s.MarkLoaded()
	s.SetDelta(3)

	s.ClearAll()
	if s.Len() != 0 {
		t.Fatal("expected empty store after ClearAll")
	}
	if s.Loaded() {
		t.Fatal("expected Loaded reset")
	}
}

func TestNextAddressWalksDownByEight(t *testing.T) {
	msb, lsb := NextAddress(0x0F, 0xF8)
	if msb != 0x0F || lsb != 0xF0 {
		t.Fatalf("want (0x0F,0xF0), got (0x%02X,0x%02X)", msb, lsb)
	}
}

func TestNextAddressWrapsMSBOnUnderflow(t *testing.T) {
	msb, lsb := NextAddress(0x0F, 0x00)
	if msb != 0x0E || lsb != 0xF8 {
		t.Fatalf("want (0x0E,0xF8), got (0x%02X,0x%02X)", msb, lsb)
	}
}
