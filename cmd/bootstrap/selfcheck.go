package main

import (
	"debug/elf"
	"fmt"

	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/dynamic"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/reloc"
)

// selfCheck replays this very process's own RELATIVE relocations
// through the same reloc package used to load a target, and asserts
// the values already in memory match what the engine would have
// written. The real self-relocation already happened in the kernel's
// exec(2) + runtime's own startup before main ran; this exists purely
// to demonstrate original_source/src/arch/*/relocate_self's pass is
// idempotent, not to actually perform it.
func selfCheck(mm mmap.Mmapper) error {
	av, err := readOwnAuxv()
	if err != nil {
		return err
	}
	phdrAddr := uintptr(av[atPhdr])
	phentsize := av[atPhent]
	phnum := av[atPhnum]
	if phdrAddr == 0 || phnum == 0 {
		return fmt.Errorf("bootstrap: auxv missing AT_PHDR/AT_PHNUM")
	}

	phdrs, err := readOwnPhdrs(mm, phdrAddr, phentsize, phnum)
	if err != nil {
		return err
	}

	var linkPhdrVaddr uint64
	var dynPhdr *elf.ProgHeader
	havePhdrSeg := false
	for i, p := range phdrs {
		switch p.Type {
		case elf.PT_PHDR:
			linkPhdrVaddr = p.Vaddr
			havePhdrSeg = true
		case elf.PT_DYNAMIC:
			dynPhdr = &phdrs[i]
		}
	}
	if !havePhdrSeg || dynPhdr == nil {
		return fmt.Errorf("bootstrap: own binary has no PT_PHDR/PT_DYNAMIC")
	}
	bias := phdrAddr - uintptr(linkPhdrVaddr)

	raw, err := dynamic.ParseRaw(dynPhdr.Vaddr, func(vaddr uint64) ([]byte, error) {
		return mm.ReadAt(bias+uintptr(vaddr), 16)
	})
	if err != nil {
		return err
	}
	dynTable := raw.Finish(bias)

	dynArray, err := reloc.DecodeArray(mm, dynTable.RelaAddr, dynTable.RelaCount)
	if err != nil {
		return err
	}
	if dynArray == nil {
		return nil
	}

	mismatches := 0
	for i := range dynArray.Relas {
		rela := &dynArray.Relas[i]
		if rela.Type() != arch.RelRelative {
			continue
		}
		want := uint64(bias) + uint64(rela.Addend)
		b, err := mm.ReadAt(bias+uintptr(rela.Off), 8)
		if err != nil {
			return err
		}
		if leUint64(b) != want {
			mismatches++
		}
	}
	if mismatches > 0 {
		return fmt.Errorf("bootstrap: self-check found %d RELATIVE entries inconsistent with runtime state", mismatches)
	}
	return nil
}

func readOwnPhdrs(mm mmap.Mmapper, addr uintptr, entsize, num uint64) ([]elf.ProgHeader, error) {
	out := make([]elf.ProgHeader, num)
	for i := uint64(0); i < num; i++ {
		buf, err := mm.ReadAt(addr+uintptr(i*entsize), int(entsize))
		if err != nil {
			return nil, err
		}
		out[i] = elf.ProgHeader{
			Type:   elf.ProgType(leUint32(buf[0:4])),
			Flags:  elf.ProgFlag(leUint32(buf[4:8])),
			Off:    leUint64(buf[8:16]),
			Vaddr:  leUint64(buf[16:24]),
			Paddr:  leUint64(buf[24:32]),
			Filesz: leUint64(buf[32:40]),
			Memsz:  leUint64(buf[40:48]),
			Align:  leUint64(buf[48:56]),
		}
	}
	return out, nil
}

func leUint32(b []byte) uint32 {
	var v uint32
	for i := 3; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}
