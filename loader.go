// Package elfload loads ELF shared objects and executables into memory
// without invoking the host's own dynamic linker: it maps PT_LOAD
// segments through a pluggable Mmapper, parses PT_DYNAMIC, builds a GNU
// hash symbol index, and exposes an Unrelocated image whose relocations
// a caller applies once its dependencies are loaded. Grounded on
// original_source/src/lib.rs's top-level ElfDylib construction sequence
// (parse header -> map segments -> parse dynamic -> build relocation
// arrays), translated from its no_std/unsafe-pointer design into a
// Source/Mmapper-driven one so the same orchestration works against a
// real file, an in-memory buffer, the OS, or a CPU emulator.
package elfload

import (
	"debug/elf"
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/dynamic"
	"github.com/elfload/elfload/elferr"
	"github.com/elfload/elfload/image"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"
	"github.com/elfload/elfload/reloc"
	"github.com/elfload/elfload/segment"
	"github.com/elfload/elfload/symbol"
	"github.com/elfload/elfload/tls"
	"github.com/elfload/elfload/unwind"
)

const ehdrSize = 64

// Load reads src's ELF header and program headers, maps its PT_LOAD
// segments through mm, parses its dynamic section, and builds the
// relocation engine. lazy selects lazy PLT binding: when true, Relocate
// never touches .rela.plt and Finish skips GNU_RELRO, matching a
// dynamic linker run with lazy binding instead of BIND_NOW. The
// returned image is not yet safe to execute: call Relocate with its
// dependency chain, then Finish.
func Load(src object.Source, mm mmap.Mmapper, lazy bool) (*image.Unrelocated, error) {
	hdr := make([]byte, ehdrSize)
	if err := src.ReadAt(hdr, 0); err != nil {
		return nil, err
	}
	if string(hdr[0:4]) != "\x7fELF" {
		return nil, elferr.NewParseEhdrError("not an ELF file: %s", src.Name())
	}
	if hdr[4] != 2 {
		return nil, elferr.NewParseEhdrError("%s: only 64-bit ELF is supported", src.Name())
	}
	machine := elf.Machine(binary.LittleEndian.Uint16(hdr[18:20]))
	if machine != arch.Machine {
		return nil, elferr.NewParseEhdrError("%s: machine %v does not match build (%v)", src.Name(), machine, arch.Machine)
	}
	entry := binary.LittleEndian.Uint64(hdr[24:32])
	phoff := binary.LittleEndian.Uint64(hdr[32:40])
	phentsize := binary.LittleEndian.Uint16(hdr[54:56])
	phnum := binary.LittleEndian.Uint16(hdr[56:58])

	phdrs, err := readPhdrs(src, int64(phoff), phentsize, phnum)
	if err != nil {
		return nil, err
	}

	span, err := segment.ComputeSpan(phdrs)
	if err != nil {
		return nil, err
	}
	segs, err := segment.Map(mm, src, phdrs, span)
	if err != nil {
		return nil, err
	}
	base := segs.Base

	var dynPhdr *elf.ProgHeader
	var tlsBlock = tls.None
	var unwindInfo unwind.Info
	for i, p := range phdrs {
		switch p.Type {
		case elf.PT_DYNAMIC:
			dynPhdr = &phdrs[i]
		case elf.PT_TLS:
			if b, ok := tls.New(p); ok {
				tlsBlock = b
			}
		case elf.PT_GNU_EH_FRAME:
			if u, ok := unwind.New(p, base); ok {
				unwindInfo = u
			}
		}
	}
	if dynPhdr == nil {
		return nil, elferr.NewParseDynamicError("object has no PT_DYNAMIC segment")
	}

	raw, err := dynamic.ParseRaw(dynPhdr.Vaddr, func(vaddr uint64) ([]byte, error) {
		return mm.ReadAt(base+uintptr(vaddr), 16)
	})
	if err != nil {
		return nil, err
	}
	dynTable := raw.Finish(base)

	hash, err := symbol.ParseGnuHash(dynTable.HashAddr, mm.ReadAt)
	if err != nil {
		return nil, err
	}
	symtab := symbol.NewTable(mm.ReadAt, dynTable.SymtabAddr, dynTable.StrtabAddr, dynTable.StrSize, hash)

	pltArray, err := reloc.DecodeArray(mm, dynTable.PltRelAddr, dynTable.PltRelCount)
	if err != nil {
		return nil, err
	}
	dynArray, err := reloc.DecodeArray(mm, dynTable.RelaAddr, dynTable.RelaCount)
	if err != nil {
		return nil, err
	}

	engine := &reloc.Engine{
		Base:        base,
		Symbols:     symtab,
		PltRel:      pltArray,
		DynRel:      dynArray,
		Lazy:        lazy,
		Mem:         mm,
		TLSModuleID: tlsBlock.ModuleID,
	}

	needed, err := readNeededNames(mm, dynTable)
	if err != nil {
		return nil, err
	}

	name := src.Name()
	if name == "" {
		name = "anon-" + uuid.NewString()
	}

	return &image.Unrelocated{
		Name:        name,
		Mm:          mm,
		Src:         src,
		Phdrs:       phdrs,
		Entry:       base + uintptr(entry),
		Segments:    segs,
		Dynamic:     dynTable,
		Symbols:     symtab,
		Engine:      engine,
		TLS:         tlsBlock,
		Unwind:      unwindInfo,
		NeededNames: needed,
	}, nil
}

func readPhdrs(src object.Source, off int64, entsize uint16, num uint16) ([]elf.ProgHeader, error) {
	out := make([]elf.ProgHeader, num)
	buf := make([]byte, entsize)
	for i := uint16(0); i < num; i++ {
		if err := src.ReadAt(buf, off+int64(i)*int64(entsize)); err != nil {
			return nil, err
		}
		out[i] = elf.ProgHeader{
			Type:   elf.ProgType(binary.LittleEndian.Uint32(buf[0:4])),
			Flags:  elf.ProgFlag(binary.LittleEndian.Uint32(buf[4:8])),
			Off:    binary.LittleEndian.Uint64(buf[8:16]),
			Vaddr:  binary.LittleEndian.Uint64(buf[16:24]),
			Paddr:  binary.LittleEndian.Uint64(buf[24:32]),
			Filesz: binary.LittleEndian.Uint64(buf[32:40]),
			Memsz:  binary.LittleEndian.Uint64(buf[40:48]),
			Align:  binary.LittleEndian.Uint64(buf[48:56]),
		}
	}
	return out, nil
}

func readNeededNames(mm mmap.Mmapper, dynTable *dynamic.Table) ([]string, error) {
	names := make([]string, 0, len(dynTable.NeededOffsets))
	for _, off := range dynTable.NeededOffsets {
		name, err := readCStr(mm, dynTable.StrtabAddr+uintptr(off))
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func readCStr(mm mmap.Mmapper, addr uintptr) (string, error) {
	const chunk = 64
	var out []byte
	for {
		b, err := mm.ReadAt(addr+uintptr(len(out)), chunk)
		if err != nil {
			return "", err
		}
		for _, c := range b {
			if c == 0 {
				return string(out), nil
			}
			out = append(out, c)
		}
	}
}
