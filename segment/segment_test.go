package segment

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/elfload/elfload/mmap/faketest"
	"github.com/elfload/elfload/object"
)

func TestComputeSpanPageAligns(t *testing.T) {
	phdrs := []elf.ProgHeader{
		{Type: elf.PT_LOAD, Vaddr: 0x1000, Memsz: 0x40},
		{Type: elf.PT_INTERP, Vaddr: 0x5000, Memsz: 0x10}, // ignored: not PT_LOAD
	}
	span, err := ComputeSpan(phdrs)
	if err != nil {
		t.Fatalf("ComputeSpan: %v", err)
	}
	if span.Min != 0x1000 || span.Max != 0x2000 {
		t.Errorf("span = %+v, want Min=0x1000 Max=0x2000", span)
	}
	if span.Len() != 0x1000 {
		t.Errorf("Len() = %#x, want 0x1000", span.Len())
	}
}

func TestComputeSpanRejectsNoLoadSegments(t *testing.T) {
	phdrs := []elf.ProgHeader{{Type: elf.PT_INTERP}}
	if _, err := ComputeSpan(phdrs); err == nil {
		t.Error("ComputeSpan should fail with no PT_LOAD segments")
	}
}

func TestMapLoadsFileContentAndZerosBss(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 0x20)
	src := object.NewBuffer("test.so", content)

	phdrs := []elf.ProgHeader{
		{Type: elf.PT_LOAD, Off: 0, Vaddr: 0x1000, Filesz: 0x20, Memsz: 0x40, Flags: elf.PF_R | elf.PF_W},
	}
	span, err := ComputeSpan(phdrs)
	if err != nil {
		t.Fatal(err)
	}

	mm := faketest.New()
	segs, err := Map(mm, src, phdrs, span)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	got, err := mm.ReadAt(segs.Base+0x1000, 0x20)
	if err != nil {
		t.Fatalf("ReadAt file region: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("mapped file content = % x, want % x", got, content)
	}

	bss, err := mm.ReadAt(segs.Base+0x1000+0x20, 0x20)
	if err != nil {
		t.Fatalf("ReadAt bss region: %v", err)
	}
	for i, b := range bss {
		if b != 0 {
			t.Fatalf("bss[%d] = %#x, want 0", i, b)
		}
	}

	if err := segs.Unmap(mm); err != nil {
		t.Errorf("Unmap: %v", err)
	}
	if _, err := mm.ReadAt(segs.Base+0x1000, 1); err == nil {
		t.Error("reading after Unmap should fail")
	}
}

func TestMapRecordsRelroRegion(t *testing.T) {
	content := []byte{1, 2, 3, 4}
	src := object.NewBuffer("test.so", content)
	phdrs := []elf.ProgHeader{
		{Type: elf.PT_LOAD, Off: 0, Vaddr: 0, Filesz: uint64(len(content)), Memsz: uint64(len(content)), Flags: elf.PF_R | elf.PF_W},
		{Type: elf.PT_GNU_RELRO, Vaddr: 0, Memsz: uint64(len(content))},
	}
	span, err := ComputeSpan(phdrs)
	if err != nil {
		t.Fatal(err)
	}
	mm := faketest.New()
	segs, err := Map(mm, src, phdrs, span)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if segs.Relro == nil {
		t.Fatal("Segments.Relro should be populated from PT_GNU_RELRO")
	}
	if segs.Relro.Start != segs.Base {
		t.Errorf("Relro.Start = %#x, want %#x", segs.Relro.Start, segs.Base)
	}
	if err := segs.FinishRelro(mm); err != nil {
		t.Errorf("FinishRelro: %v", err)
	}
}
