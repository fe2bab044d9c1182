package dynamic

import (
	"encoding/binary"
	"testing"
)

// buildDynTable encodes a sequence of (tag, val) pairs as Elf64_Dyn
// entries, appending the DT_NULL terminator.
func buildDynTable(entries [][2]uint64) []byte {
	var buf []byte
	for _, e := range entries {
		var b [16]byte
		binary.LittleEndian.PutUint64(b[0:8], e[0])
		binary.LittleEndian.PutUint64(b[8:16], e[1])
		buf = append(buf, b[:]...)
	}
	var term [16]byte
	return append(buf, term[:]...)
}

func readerOver(table []byte) Reader {
	return func(vaddr uint64) ([]byte, error) {
		if int(vaddr)+16 > len(table) {
			return nil, errShort
		}
		return table[vaddr : vaddr+16], nil
	}
}

type shortErr struct{}

func (shortErr) Error() string { return "dynamic: short read" }

var errShort = shortErr{}

func TestParseRawRequiredTags(t *testing.T) {
	table := buildDynTable([][2]uint64{
		{dtGnuHash, 0x100},
		{dtSymtab, 0x200},
		{dtStrtab, 0x300},
		{dtStrSize, 0x40},
		{dtNeeded, 0x10},
		{dtNeeded, 0x20},
	})
	raw, err := ParseRaw(0, readerOver(table))
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if raw.HashOff != 0x100 || raw.SymtabOff != 0x200 || raw.StrtabOff != 0x300 || raw.StrSize != 0x40 {
		t.Errorf("unexpected raw: %+v", raw)
	}
	if len(raw.NeededOffsets) != 2 || raw.NeededOffsets[0] != 0x10 || raw.NeededOffsets[1] != 0x20 {
		t.Errorf("NeededOffsets = %v, want [0x10 0x20]", raw.NeededOffsets)
	}
}

func TestParseRawMissingRequiredTag(t *testing.T) {
	// No DT_GNU_HASH at all.
	table := buildDynTable([][2]uint64{
		{dtSymtab, 0x200},
		{dtStrtab, 0x300},
		{dtStrSize, 0x40},
	})
	if _, err := ParseRaw(0, readerOver(table)); err == nil {
		t.Error("ParseRaw should fail when DT_GNU_HASH is absent")
	}
}

func TestRawFinishFoldsAgainstBase(t *testing.T) {
	relaSize := uint64(3 * relaEntSize)
	table := buildDynTable([][2]uint64{
		{dtGnuHash, 0x100},
		{dtSymtab, 0x200},
		{dtStrtab, 0x300},
		{dtStrSize, 0x40},
		{dtRela, 0x500},
		{dtRelaSize, relaSize},
	})
	raw, err := ParseRaw(0, readerOver(table))
	if err != nil {
		t.Fatal(err)
	}

	const base = uintptr(0x7f0000000000)
	tbl := raw.Finish(base)
	if tbl.HashAddr != base+0x100 {
		t.Errorf("HashAddr = %#x, want %#x", tbl.HashAddr, base+0x100)
	}
	if tbl.RelaAddr != base+0x500 {
		t.Errorf("RelaAddr = %#x, want %#x", tbl.RelaAddr, base+0x500)
	}
	if tbl.RelaCount != 3 {
		t.Errorf("RelaCount = %d, want 3", tbl.RelaCount)
	}
	// Optional tags never present in raw must fold to the zero value,
	// not panic on a nil pointer.
	if tbl.PltRelAddr != 0 || tbl.PltRelCount != 0 {
		t.Errorf("absent DT_JMPREL should fold to zero, got %+v", tbl)
	}
}
