// Package dynamic parses an ELF PT_DYNAMIC section into the resolved
// table of tags the rest of the loader needs: hash table, symbol and
// string tables, relocation arrays, init/fini arrays, and version
// tables. Grounded on original_source/src/dynamic.rs's two-phase
// ElfRawDynamic -> ElfDynamic design (walk tags into a raw struct of
// offsets, then fold each offset against the load base), translated
// from unsafe pointer walking into reads against mapped memory via a
// Reader closure supplied by the caller.
package dynamic

import (
	"encoding/binary"

	"github.com/elfload/elfload/elferr"
)

// DT_* tag values (debug/elf only defines a handful; the rest come
// straight from the ELF gABI).
const (
	dtNull         = 0
	dtNeeded       = 1
	dtInit         = 12
	dtFini         = 13
	dtStrtab       = 5
	dtSymtab       = 6
	dtRela         = 7
	dtRelaSize     = 8
	dtStrSize      = 10
	dtJmprel       = 23
	dtPltRelSize   = 2
	dtInitArray    = 25
	dtFiniArray    = 26
	dtInitArraySz  = 27
	dtFiniArraySz  = 28
	dtGnuHash      = 0x6ffffef5
	dtVersym       = 0x6ffffff0
	dtVerneed      = 0x6ffffffe
	dtVerneedNum   = 0x6fffffff
	dtVerdef       = 0x6ffffffc
	dtVerdefNum    = 0x6ffffffd
)

// Reader reads 16 bytes (one Elf64_Dyn entry) at a base-relative virtual
// offset, used to walk the dynamic table without assuming the caller
// exposed a raw pointer.
type Reader func(vaddr uint64) ([]byte, error)

// Raw is the dynamic table as offsets relative to the image's own
// virtual address space, before folding against a load base.
type Raw struct {
	HashOff                       uint64
	SymtabOff, StrtabOff, StrSize uint64
	PltRelOff, PltRelSize         *uint64
	RelaOff, RelaSize             *uint64
	InitOff, FiniOff              *uint64
	InitArrayOff, InitArraySize   *uint64
	FiniArrayOff, FiniArraySize   *uint64
	VersymOff                     *uint64
	VerneedOff, VerneedNum        *uint64
	VerdefOff, VerdefNum          *uint64
	NeededOffsets                 []uint64
}

// ParseRaw walks the DT_* entries starting at dynVaddr (an image-
// relative virtual address) until DT_NULL, reading each 16-byte Dyn
// entry (tag, val) via read.
func ParseRaw(dynVaddr uint64, read Reader) (*Raw, error) {
	var raw Raw
	var hashOff, symtabOff, strtabOff, strSize *uint64

	for off := dynVaddr; ; off += 16 {
		b, err := read(off)
		if err != nil {
			return nil, elferr.NewIOError(err)
		}
		tag := int64(binary.LittleEndian.Uint64(b[0:8]))
		val := binary.LittleEndian.Uint64(b[8:16])

		switch tag {
		case dtNull:
			goto done
		case dtNeeded:
			raw.NeededOffsets = append(raw.NeededOffsets, val)
		case dtGnuHash:
			hashOff = &val
		case dtSymtab:
			symtabOff = &val
		case dtStrtab:
			strtabOff = &val
		case dtStrSize:
			strSize = &val
		case dtPltRelSize:
			raw.PltRelSize = &val
		case dtJmprel:
			raw.PltRelOff = &val
		case dtRela:
			raw.RelaOff = &val
		case dtRelaSize:
			raw.RelaSize = &val
		case dtInit:
			raw.InitOff = &val
		case dtFini:
			raw.FiniOff = &val
		case dtInitArray:
			raw.InitArrayOff = &val
		case dtInitArraySz:
			raw.InitArraySize = &val
		case dtFiniArray:
			raw.FiniArrayOff = &val
		case dtFiniArraySz:
			raw.FiniArraySize = &val
		case dtVersym:
			raw.VersymOff = &val
		case dtVerneed:
			raw.VerneedOff = &val
		case dtVerneedNum:
			raw.VerneedNum = &val
		case dtVerdef:
			raw.VerdefOff = &val
		case dtVerdefNum:
			raw.VerdefNum = &val
		}
	}
done:
	if hashOff == nil {
		return nil, elferr.NewParseDynamicError("dynamic section does not have DT_GNU_HASH")
	}
	if symtabOff == nil {
		return nil, elferr.NewParseDynamicError("dynamic section does not have DT_SYMTAB")
	}
	if strtabOff == nil {
		return nil, elferr.NewParseDynamicError("dynamic section does not have DT_STRTAB")
	}
	if strSize == nil {
		return nil, elferr.NewParseDynamicError("dynamic section does not have DT_STRSZ")
	}
	raw.HashOff, raw.SymtabOff, raw.StrtabOff, raw.StrSize = *hashOff, *symtabOff, *strtabOff, *strSize
	return &raw, nil
}

// Table is the dynamic section with every offset folded against a load
// base, i.e. made absolute in the mapped address space.
type Table struct {
	HashAddr, SymtabAddr, StrtabAddr uintptr
	StrSize                          uintptr
	PltRelAddr, PltRelCount          uintptr
	RelaAddr, RelaCount              uintptr
	InitAddr, FiniAddr               uintptr
	InitArrayAddr, InitArrayCount    uintptr
	FiniArrayAddr, FiniArrayCount    uintptr
	VersymAddr                       uintptr
	VerneedAddr, VerneedCount        uintptr
	VerdefAddr, VerdefCount          uintptr
	NeededOffsets                    []uint64
}

const relaEntSize = 24 // sizeof(Elf64_Rela)
const addrEntSize = 8

// Finish folds raw's image-relative offsets against base, turning them
// into absolute addresses in mapped memory. Mirrors ElfRawDynamic::finish.
func (r *Raw) Finish(base uintptr) *Table {
	t := &Table{
		HashAddr:      base + uintptr(r.HashOff),
		SymtabAddr:    base + uintptr(r.SymtabOff),
		StrtabAddr:    base + uintptr(r.StrtabOff),
		StrSize:       uintptr(r.StrSize),
		NeededOffsets: r.NeededOffsets,
	}
	if r.PltRelOff != nil {
		t.PltRelAddr = base + uintptr(*r.PltRelOff)
		t.PltRelCount = uintptr(*r.PltRelSize) / relaEntSize
	}
	if r.RelaOff != nil {
		t.RelaAddr = base + uintptr(*r.RelaOff)
		t.RelaCount = uintptr(*r.RelaSize) / relaEntSize
	}
	if r.InitOff != nil {
		t.InitAddr = base + uintptr(*r.InitOff)
	}
	if r.FiniOff != nil {
		t.FiniAddr = base + uintptr(*r.FiniOff)
	}
	if r.InitArrayOff != nil {
		t.InitArrayAddr = base + uintptr(*r.InitArrayOff)
		t.InitArrayCount = uintptr(*r.InitArraySize) / addrEntSize
	}
	if r.FiniArrayOff != nil {
		t.FiniArrayAddr = base + uintptr(*r.FiniArrayOff)
		t.FiniArrayCount = uintptr(*r.FiniArraySize) / addrEntSize
	}
	if r.VersymOff != nil {
		t.VersymAddr = base + uintptr(*r.VersymOff)
	}
	if r.VerneedOff != nil {
		t.VerneedAddr = base + uintptr(*r.VerneedOff)
		t.VerneedCount = uintptr(*r.VerneedNum)
	}
	if r.VerdefOff != nil {
		t.VerdefAddr = base + uintptr(*r.VerdefOff)
		t.VerdefCount = uintptr(*r.VerdefNum)
	}
	return t
}
