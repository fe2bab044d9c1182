package tls

import (
	"debug/elf"
	"testing"
)

func TestNewRejectsNonTLSProgHeader(t *testing.T) {
	_, ok := New(elf.ProgHeader{Type: elf.PT_LOAD})
	if ok {
		t.Error("New should reject a non-PT_TLS program header")
	}
}

func TestNewParsesFields(t *testing.T) {
	phdr := elf.ProgHeader{
		Type:   elf.PT_TLS,
		Vaddr:  0x2000,
		Filesz: 0x30,
		Memsz:  0x40,
		Align:  0x8,
	}
	blk, ok := New(phdr)
	if !ok {
		t.Fatal("New should accept a PT_TLS program header")
	}
	if blk.TemplateVA != 0x2000 || blk.FileLen != 0x30 || blk.MemLen != 0x40 || blk.Align != 0x8 {
		t.Errorf("unexpected block: %+v", blk)
	}
	if blk.ModuleID == 0 {
		t.Error("a real TLS block must never be assigned module id 0 (reserved for \"no TLS\")")
	}
}

func TestModuleIDsAreUnique(t *testing.T) {
	phdr := elf.ProgHeader{Type: elf.PT_TLS}
	a, _ := New(phdr)
	b, _ := New(phdr)
	if a.ModuleID == b.ModuleID {
		t.Errorf("two distinct TLS blocks got the same module id %d", a.ModuleID)
	}
}

func TestNoneIsZeroValue(t *testing.T) {
	if None.ModuleID != 0 {
		t.Error("None must have module id 0, the \"no TLS block\" sentinel")
	}
}
