// Package segment computes the address span of an ELF image's PT_LOAD
// program headers, reserves that span with a Mmapper, and maps each
// segment (plus its .bss tail) into the reservation. Grounded on the
// span/relocation-base computation an ELF loader's LoadELFAt does,
// generalized away from any fixed base address into a Mmapper-driven
// reservation that works for any Mmapper backend.
package segment

import (
	"debug/elf"

	"github.com/elfload/elfload/elferr"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"
)

const pageSize = 0x1000

func pageStart(v uint64) uint64 { return v &^ (pageSize - 1) }
func pageEnd(v uint64) uint64   { return (v + pageSize - 1) &^ (pageSize - 1) }

// Span is the [min, max) virtual-address range spanned by an object's
// PT_LOAD segments, before relocation to a load base.
type Span struct {
	Min, Max uint64
}

// Len returns the number of bytes the span occupies once page-aligned.
func (s Span) Len() uintptr {
	return uintptr(pageEnd(s.Max) - pageStart(s.Min))
}

// ComputeSpan walks phdrs and returns the page-aligned span their
// PT_LOAD entries cover.
func ComputeSpan(phdrs []elf.ProgHeader) (Span, error) {
	min := uint64(1) << 63
	max := uint64(0)
	found := false
	for _, p := range phdrs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		found = true
		if p.Vaddr < min {
			min = p.Vaddr
		}
		if end := p.Vaddr + p.Memsz; end > max {
			max = end
		}
	}
	if !found {
		return Span{}, elferr.NewParseEhdrError("object has no PT_LOAD segments")
	}
	return Span{Min: pageStart(min), Max: pageEnd(max)}, nil
}

// Relro records the bounds of a GNU_RELRO segment, applied after
// relocation by tightening its protection to read-only.
type Relro struct {
	Start, Len uintptr
}

// Segments owns a reservation of mapped memory for one ELF image: the
// base address relocations are applied against, and (if present) the
// RELRO region to lock down once relocation finishes.
type Segments struct {
	Reservation mmap.Reservation
	// Base is the load bias: Base + p_vaddr gives the mapped address of
	// a byte at that virtual address.
	Base uintptr
	Relro *Relro
}

func progFlagsToProt(f elf.ProgFlag) mmap.Prot {
	var p mmap.Prot
	if f&elf.PF_R != 0 {
		p |= mmap.ProtRead
	}
	if f&elf.PF_W != 0 {
		p |= mmap.ProtWrite
	}
	if f&elf.PF_X != 0 {
		p |= mmap.ProtExec
	}
	return p
}

// Map reserves span.Len() bytes with mm, then maps every PT_LOAD
// segment from src into the reservation at its page-aligned offset,
// zero-filling the .bss tail (Memsz > Filesz) per segment. It returns
// the populated Segments, including the PT_GNU_RELRO region if one is
// present (the last one in phdrs order, if there are several).
func Map(mm mmap.Mmapper, src object.Source, phdrs []elf.ProgHeader, span Span) (*Segments, error) {
	res, err := mm.Reserve(span.Len(), mmap.ProtRead|mmap.ProtWrite)
	if err != nil {
		return nil, err
	}
	base := res.Addr - uintptr(span.Min)

	segs := &Segments{Reservation: res, Base: base}

	for _, p := range phdrs {
		switch p.Type {
		case elf.PT_LOAD:
			if err := mapLoad(mm, src, res, base, p); err != nil {
				_ = mm.Unmap(res)
				return nil, err
			}
		case elf.PT_GNU_RELRO:
			segs.Relro = &Relro{
				Start: base + uintptr(p.Vaddr),
				Len:   uintptr(p.Memsz),
			}
		}
	}
	return segs, nil
}

func mapLoad(mm mmap.Mmapper, src object.Source, res mmap.Reservation, base uintptr, p elf.ProgHeader) error {
	vaddrAligned := pageStart(p.Vaddr)
	fileOffAligned := int64(pageStart(p.Off))
	alignDelta := p.Vaddr - vaddrAligned

	fileLen := uintptr(alignDelta + p.Filesz)
	offsetInRes := uintptr(vaddrAligned) - uintptr(res.Addr-base)
	prot := progFlagsToProt(p.Flags) | mmap.ProtWrite

	if fileLen > 0 {
		t := src.Transport(fileOffAligned, fileLen)
		if err := t.MapInto(mm, res, offsetInRes, prot); err != nil {
			return err
		}
	}

	if p.Memsz > p.Filesz {
		bssStart := base + uintptr(p.Vaddr+p.Filesz)
		bssLen := uintptr(p.Memsz - p.Filesz)
		bssOffsetInRes := bssStart - res.Addr
		if err := mm.MapAnon(res, bssOffsetInRes, bssLen, prot); err != nil {
			return err
		}
	}

	finalProt := progFlagsToProt(p.Flags)
	if finalProt&mmap.ProtWrite == 0 {
		segStart := base + uintptr(vaddrAligned)
		segLen := uintptr(pageEnd(p.Vaddr+p.Memsz) - vaddrAligned)
		if err := mm.Protect(segStart, segLen, finalProt); err != nil {
			return err
		}
	}
	return nil
}

// FinishRelro tightens the RELRO region to read-only. Called once all
// relocations against it have been applied.
func (s *Segments) FinishRelro(mm mmap.Mmapper) error {
	if s.Relro == nil {
		return nil
	}
	return mm.Protect(s.Relro.Start, s.Relro.Len, mmap.ProtRead)
}

// Unmap releases the reservation.
func (s *Segments) Unmap(mm mmap.Mmapper) error {
	return mm.Unmap(s.Reservation)
}
