// Package object defines the Source capability: a handle to the bytes of
// an ELF image, independent of whether those bytes live in a file or
// already sit in memory. Grounded on original_source/src/object.rs's
// ElfObject trait (read + transport + file_name), translated from a
// trait-with-two-impls shape into a Go interface with two adapters.
package object

import "github.com/elfload/elfload/mmap"

// Source is anything the loader can read ELF bytes from and later hand
// off to a Mmapper as a mapping source.
type Source interface {
	// Name returns a human-readable identifier, used in error messages
	// and as the default SONAME fallback.
	Name() string

	// ReadAt reads len(buf) bytes starting at offset into buf.
	ReadAt(buf []byte, offset int64) error

	// Transport describes how to get length bytes starting at offset
	// into memory: either by mapping a file descriptor or by copying
	// from an address already resident in the caller's address space.
	// offset is always page-aligned by the caller.
	Transport(offset int64, length uintptr) Transport
}

// TransportKind distinguishes the two ways Source bytes can reach a
// Mmapper.
type TransportKind int

const (
	// TransportFile means the bytes live at FD/FileOffset and should be
	// mapped with Mmapper.MapFile.
	TransportFile TransportKind = iota
	// TransportAddr means the bytes already live in this process's
	// memory at Addr and should be mapped with Mmapper.MapAnon followed
	// by a copy, since Go's mmap bindings address files, not pointers.
	TransportAddr
)

// Transport is the result of Source.Transport: enough information for
// the segment manager to place length bytes into a Reservation.
type Transport struct {
	Kind       TransportKind
	FD         int
	FileOffset int64
	Addr       uintptr
	Length     uintptr
}

// MapInto maps this transport's bytes into res at offsetInReservation
// using mm, choosing MapFile or MapAnon+copy depending on Kind.
func (t Transport) MapInto(mm mmap.Mmapper, res mmap.Reservation, offsetInReservation uintptr, prot mmap.Prot) error {
	switch t.Kind {
	case TransportFile:
		return mm.MapFile(res, offsetInReservation, t.FD, t.FileOffset, t.Length, prot)
	case TransportAddr:
		if err := mm.MapAnon(res, offsetInReservation, t.Length, mmap.ProtRead|mmap.ProtWrite); err != nil {
			return err
		}
		return copyAddrInto(mm, res, offsetInReservation, t.Addr, t.Length, prot)
	default:
		panic("object: unknown transport kind")
	}
}
