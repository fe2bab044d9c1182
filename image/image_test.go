package image

import (
	"debug/elf"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/dynamic"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/mmap/faketest"
	"github.com/elfload/elfload/object"
	"github.com/elfload/elfload/reloc"
	"github.com/elfload/elfload/segment"
	"github.com/elfload/elfload/symbol"
)

// buildUnrelocated maps a single RX segment laid out with a minimal
// valid (always-empty) DT_GNU_HASH table, a symtab, and a strtab at
// fixed offsets, and returns an Unrelocated whose engine has nothing
// left to resolve, ready for Finish.
func buildUnrelocated(t *testing.T) (*Unrelocated, *faketest.Backend) {
	t.Helper()
	const (
		hashOff   = 0
		symtabOff = 0x100
		strtabOff = 0x200
		size      = 0x300
	)
	content := make([]byte, size)
	// nbuckets=1, symOffset=0, bloomSize=1, bloomShift=6; the bloom
	// word and bucket/chain that follow stay zero, so any lookup is
	// rejected by the bloom filter without ever reading the chain.
	binary.LittleEndian.PutUint32(content[hashOff:hashOff+4], 1)
	binary.LittleEndian.PutUint32(content[hashOff+4:hashOff+8], 0)
	binary.LittleEndian.PutUint32(content[hashOff+8:hashOff+12], 1)
	binary.LittleEndian.PutUint32(content[hashOff+12:hashOff+16], 6)

	src := object.NewBuffer("libtest.so", content)
	phdrs := []elf.ProgHeader{
		{Type: elf.PT_LOAD, Off: 0, Vaddr: 0, Filesz: uint64(len(content)), Memsz: uint64(len(content)), Flags: elf.PF_R | elf.PF_X},
	}
	span, err := segment.ComputeSpan(phdrs)
	if err != nil {
		t.Fatal(err)
	}
	mm := faketest.New()
	segs, err := segment.Map(mm, src, phdrs, span)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	hash, err := symbol.ParseGnuHash(segs.Base+hashOff, mm.ReadAt)
	if err != nil {
		t.Fatalf("ParseGnuHash: %v", err)
	}
	symtab := symbol.NewTable(mm.ReadAt, segs.Base+symtabOff, segs.Base+strtabOff, 0, hash)

	return &Unrelocated{
		Name:     "libtest.so",
		Mm:       mm,
		Src:      src,
		Phdrs:    phdrs,
		Entry:    0x8,
		Segments: segs,
		Symbols:  symtab,
		Engine:   &reloc.Engine{Base: segs.Base, Mem: mm, Symbols: symtab},
	}, mm
}

func TestFinishSucceedsWithNothingToRelocate(t *testing.T) {
	u, _ := buildUnrelocated(t)
	// Nil PltRel/DynRel means IsFinished is vacuously true.
	r, err := u.Finish()
	if err != nil {
		t.Fatalf("Finish with nothing to relocate should succeed, got: %v", err)
	}
	if r == nil {
		t.Fatal("Finish returned nil Relocated with no error")
	}
}

func TestFinishFailsWhenEngineUnresolved(t *testing.T) {
	u, _ := buildUnrelocated(t)
	rela := arch.Rela{Off: 0, Info: (uint64(1) << 32) | uint64(arch.RelGOT)}
	u.Engine.DynRel = reloc.NewArray([]arch.Rela{rela})
	u.Engine.Relocate()

	if _, err := u.Finish(); err == nil {
		t.Error("Finish should fail while a relocation entry remains unresolved")
	}
}

func TestRelocatedNameBaseEntry(t *testing.T) {
	u, _ := buildUnrelocated(t)
	r, err := u.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if r.Name() != "libtest.so" {
		t.Errorf("Name() = %q, want %q", r.Name(), "libtest.so")
	}
	if r.Base() != u.Segments.Base {
		t.Errorf("Base() = %#x, want %#x", r.Base(), u.Segments.Base)
	}
	if r.Entry() != u.Segments.Base+0x8 {
		t.Errorf("Entry() = %#x, want %#x", r.Entry(), u.Segments.Base+0x8)
	}
}

func TestRelocatedGetMissingSymbol(t *testing.T) {
	u, _ := buildUnrelocated(t)
	r, err := u.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := r.Get("does-not-exist"); err == nil {
		t.Error("Get should fail for a name absent from the symbol table")
	}
}

func TestRetainReleaseOnlyUnmapsAtZero(t *testing.T) {
	u, mm := buildUnrelocated(t)
	base := u.Segments.Base
	r, err := u.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r.Retain() // refcount now 2

	if err := r.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if _, err := mm.ReadAt(base, 1); err != nil {
		t.Fatal("segments should still be mapped after one of two releases")
	}

	if err := r.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := mm.ReadAt(base, 1); err == nil {
		t.Error("segments should be unmapped once refcount reaches zero")
	}
}

func TestFinishInvokesInitThenInitArrayInOrder(t *testing.T) {
	u, mm := buildUnrelocated(t)

	const initArrayOff = 0x220
	entry0 := u.Segments.Base + 0x1000
	entry1 := u.Segments.Base + 0x2000
	if err := mm.WriteUintptr(u.Segments.Base+initArrayOff, entry0); err != nil {
		t.Fatal(err)
	}
	if err := mm.WriteUintptr(u.Segments.Base+initArrayOff+8, entry1); err != nil {
		t.Fatal(err)
	}

	initAddr := u.Segments.Base + 0x10
	u.Dynamic = &dynamic.Table{
		InitAddr:       initAddr,
		InitArrayAddr:  u.Segments.Base + initArrayOff,
		InitArrayCount: 2,
	}

	orig := callFunc
	var calls []uintptr
	callFunc = func(addr uintptr) uintptr {
		calls = append(calls, addr)
		return 0
	}
	defer func() { callFunc = orig }()

	if _, err := u.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	want := []uintptr{initAddr, entry0, entry1}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("init call order = %#x, want %#x", calls, want)
	}
}

// protectSpy wraps a *faketest.Backend to record Protect calls, so a
// test can tell whether Finish actually reached FinishRelro rather than
// relying on faketest's Protect being a harmless no-op either way.
type protectSpy struct {
	*faketest.Backend
	protectCalls int
}

func (p *protectSpy) Protect(addr, length uintptr, prot mmap.Prot) error {
	p.protectCalls++
	return p.Backend.Protect(addr, length, prot)
}

func TestFinishSkipsRelroWhenLazy(t *testing.T) {
	u, mm := buildUnrelocated(t)
	spy := &protectSpy{Backend: mm}
	u.Mm = spy
	u.Segments.Relro = &segment.Relro{Start: u.Segments.Base, Len: 0x10}

	u.Engine.Lazy = true
	if _, err := u.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if spy.protectCalls != 0 {
		t.Errorf("lazy Finish should skip FinishRelro, got %d Protect calls", spy.protectCalls)
	}
}

func TestFinishAppliesRelroWhenNotLazy(t *testing.T) {
	u, mm := buildUnrelocated(t)
	spy := &protectSpy{Backend: mm}
	u.Mm = spy
	u.Segments.Relro = &segment.Relro{Start: u.Segments.Base, Len: 0x10}

	if _, err := u.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if spy.protectCalls != 1 {
		t.Errorf("non-lazy Finish should apply RELRO once, got %d Protect calls", spy.protectCalls)
	}
}

func TestEngineLazySkipsPltRelocationEndToEnd(t *testing.T) {
	u, _ := buildUnrelocated(t)
	// References symbol index 1, which undefinedSymbols-style zeroed
	// content decodes as SHN_UNDEF: a non-lazy engine would never
	// resolve this and Finish would fail.
	rela := arch.Rela{Off: 0, Info: (uint64(1) << 32) | uint64(arch.RelJumpSlot)}
	u.Engine.PltRel = reloc.NewArray([]arch.Rela{rela})
	u.Engine.Lazy = true

	u.Relocate(nil, nil)
	if !u.IsFinished() {
		t.Fatal("a lazy engine should report finished even with an unresolved PLT entry")
	}
	if _, err := u.Finish(); err != nil {
		t.Fatalf("Finish should succeed when PltRel is skipped for laziness: %v", err)
	}
}

func TestReleaseInvokesFiniThenFiniArrayInOrder(t *testing.T) {
	u, mm := buildUnrelocated(t)

	const finiArrayOff = 0x220
	entry0 := u.Segments.Base + 0x3000
	entry1 := u.Segments.Base + 0x4000
	if err := mm.WriteUintptr(u.Segments.Base+finiArrayOff, entry0); err != nil {
		t.Fatal(err)
	}
	if err := mm.WriteUintptr(u.Segments.Base+finiArrayOff+8, entry1); err != nil {
		t.Fatal(err)
	}

	finiAddr := u.Segments.Base + 0x10
	u.Dynamic = &dynamic.Table{
		FiniAddr:       finiAddr,
		FiniArrayAddr:  u.Segments.Base + finiArrayOff,
		FiniArrayCount: 2,
	}

	r, err := u.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	orig := callFunc
	var calls []uintptr
	callFunc = func(addr uintptr) uintptr {
		calls = append(calls, addr)
		return 0
	}
	defer func() { callFunc = orig }()

	if err := r.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	want := []uintptr{finiAddr, entry0, entry1}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("fini call order = %#x, want %#x", calls, want)
	}
}

func TestReleaseReleasesDependencies(t *testing.T) {
	dep, _ := buildUnrelocated(t)
	depRel, err := dep.Finish()
	if err != nil {
		t.Fatalf("dep Finish: %v", err)
	}

	main, _ := buildUnrelocated(t)
	main.depLibs = []*Relocated{depRel}

	mainRel, err := main.Finish()
	if err != nil {
		t.Fatalf("main Finish: %v", err)
	}

	if err := mainRel.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// depRel had refcount 1 from its own Finish; main's Release should
	// have dropped it to 0 and unmapped it.
	if _, err := dep.Mm.ReadAt(dep.Segments.Base, 1); err == nil {
		t.Error("dependency should be unmapped once its last owner releases it")
	}
}
