package elfload

import (
	"encoding/binary"
	"testing"

	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/mmap/faketest"
	"github.com/elfload/elfload/object"
)

const (
	testDynVaddr  = 0x200
	testHashVaddr = 0x300
	testSymVaddr  = 0x400
	testStrVaddr  = 0x500
	testFileSize  = 0x600
	testEntry     = 0x1000
)

// buildMinimalSO assembles a single-PT_LOAD 64-bit ELF image whose
// dynamic section has just enough tags (DT_GNU_HASH, DT_SYMTAB,
// DT_STRTAB, DT_STRSZ) for Load to run to completion with no
// relocations and no needed libraries.
func buildMinimalSO(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, testFileSize)

	copy(buf[0:4], "\x7fELF")
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	binary.LittleEndian.PutUint16(buf[18:20], uint16(arch.Machine))
	binary.LittleEndian.PutUint64(buf[24:32], testEntry)
	binary.LittleEndian.PutUint64(buf[32:40], 64) // e_phoff
	binary.LittleEndian.PutUint16(buf[54:56], 56) // e_phentsize
	binary.LittleEndian.PutUint16(buf[56:58], 2)  // e_phnum

	writePhdr(buf, 64, 1 /* PT_LOAD */, 0, 0, testFileSize, testFileSize)
	writePhdr(buf, 64+56, 2 /* PT_DYNAMIC */, testDynVaddr, testDynVaddr, 0x100, 0x100)

	writeDyn(buf, testDynVaddr+0*16, 0x6ffffef5, testHashVaddr) // DT_GNU_HASH
	writeDyn(buf, testDynVaddr+1*16, 6, testSymVaddr)           // DT_SYMTAB
	writeDyn(buf, testDynVaddr+2*16, 5, testStrVaddr)           // DT_STRTAB
	writeDyn(buf, testDynVaddr+3*16, 10, 0x100)                 // DT_STRSZ
	writeDyn(buf, testDynVaddr+4*16, 0, 0)                      // DT_NULL

	// DT_GNU_HASH header: nbuckets=1, symoffset=0, bloomsize=1, bloomshift=6;
	// bloom/bucket/chain all stay zero, so this index always rejects a
	// lookup without ever needing real symbols.
	binary.LittleEndian.PutUint32(buf[testHashVaddr:testHashVaddr+4], 1)
	binary.LittleEndian.PutUint32(buf[testHashVaddr+4:testHashVaddr+8], 0)
	binary.LittleEndian.PutUint32(buf[testHashVaddr+8:testHashVaddr+12], 1)
	binary.LittleEndian.PutUint32(buf[testHashVaddr+12:testHashVaddr+16], 6)

	return buf
}

func writePhdr(buf []byte, off int, ptype uint32, vaddr, foff uint64, filesz, memsz uint64) {
	binary.LittleEndian.PutUint32(buf[off:off+4], ptype)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 0) // flags
	binary.LittleEndian.PutUint64(buf[off+8:off+16], foff)
	binary.LittleEndian.PutUint64(buf[off+16:off+24], vaddr)
	binary.LittleEndian.PutUint64(buf[off+24:off+32], vaddr)
	binary.LittleEndian.PutUint64(buf[off+32:off+40], filesz)
	binary.LittleEndian.PutUint64(buf[off+40:off+48], memsz)
	binary.LittleEndian.PutUint64(buf[off+48:off+56], 0x1000)
}

func writeDyn(buf []byte, off int, tag int64, val uint64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(tag))
	binary.LittleEndian.PutUint64(buf[off+8:off+16], val)
}

func TestLoadParsesMinimalSharedObject(t *testing.T) {
	content := buildMinimalSO(t)
	src := object.NewBuffer("libtest.so", content)
	mm := faketest.New()

	u, err := Load(src, mm, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if u.Name != "libtest.so" {
		t.Errorf("Name = %q, want %q", u.Name, "libtest.so")
	}
	if u.Entry != u.Segments.Base+testEntry {
		t.Errorf("Entry = %#x, want %#x", u.Entry, u.Segments.Base+testEntry)
	}
	if u.Dynamic.HashAddr != u.Segments.Base+testHashVaddr {
		t.Errorf("Dynamic.HashAddr = %#x, want %#x", u.Dynamic.HashAddr, u.Segments.Base+testHashVaddr)
	}
	if u.Dynamic.SymtabAddr != u.Segments.Base+testSymVaddr {
		t.Errorf("Dynamic.SymtabAddr = %#x, want %#x", u.Dynamic.SymtabAddr, u.Segments.Base+testSymVaddr)
	}
	if len(u.NeededNames) != 0 {
		t.Errorf("NeededNames = %v, want empty", u.NeededNames)
	}
	if u.TLS.ModuleID != 0 {
		t.Errorf("TLS should be the zero block with no PT_TLS segment, got ModuleID=%d", u.TLS.ModuleID)
	}
	if u.Unwind.Present {
		t.Error("Unwind.Present should be false with no PT_GNU_EH_FRAME segment")
	}
	if !u.IsFinished() {
		t.Error("an engine with no relocation arrays should report finished immediately")
	}
}

func TestLoadWiresLazyIntoEngine(t *testing.T) {
	content := buildMinimalSO(t)
	src := object.NewBuffer("libtest.so", content)
	mm := faketest.New()

	u, err := Load(src, mm, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !u.Engine.Lazy {
		t.Error("Load(..., true) should set Engine.Lazy")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	content := buildMinimalSO(t)
	content[0] = 0 // corrupt the \x7fELF magic
	src := object.NewBuffer("bad.so", content)
	mm := faketest.New()

	if _, err := Load(src, mm, false); err == nil {
		t.Error("Load should reject a file without the ELF magic")
	}
}

func TestLoadRejectsWrongMachine(t *testing.T) {
	content := buildMinimalSO(t)
	// Flip to a machine value that can never equal arch.Machine (a
	// reserved/unused ELF e_machine constant).
	binary.LittleEndian.PutUint16(content[18:20], 0xffff)
	src := object.NewBuffer("wrong-arch.so", content)
	mm := faketest.New()

	if _, err := Load(src, mm, false); err == nil {
		t.Error("Load should reject a machine mismatch")
	}
}

func TestLoadRequiresDynamicSegment(t *testing.T) {
	content := buildMinimalSO(t)
	// Retype the PT_DYNAMIC header (at phdr offset 64+56) to PT_NULL.
	binary.LittleEndian.PutUint32(content[64+56:64+56+4], 0)
	src := object.NewBuffer("no-dynamic.so", content)
	mm := faketest.New()

	if _, err := Load(src, mm, false); err == nil {
		t.Error("Load should fail when no PT_DYNAMIC segment is present")
	}
}
