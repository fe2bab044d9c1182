// Package mmap defines the memory-map backend capability:
// reserve an address range, map file or anonymous content into it,
// change protection, and release it. Two production backends are
// provided (unix.go, unicorn.go) plus a fake one for unit tests.
package mmap

import "github.com/elfload/elfload/elferr"

// Prot is a bitmask of requested page protection, matching the
// R/W/X bits of an ELF program header's p_flags.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// Reservation is an opaque handle to a contiguous virtual-address range
// reserved by Mmapper.Reserve. It stays alive for as long as any mapping
// or borrower derived from it is alive; the owner releases it by calling
// Mmapper.Unmap.
type Reservation struct {
	Addr uintptr
	Len  uintptr
}

// End returns the first address past the reservation.
func (r Reservation) End() uintptr { return r.Addr + r.Len }

// Mmapper is the memory-map backend capability. Implementors may be the
// OS (mmap/mprotect/munmap), a CPU emulator mapping into its own address
// space, or a unit-test stub backed by a plain byte slice.
type Mmapper interface {
	// Reserve carves out len bytes of address space with protection
	// prot, returning the chosen base.
	Reserve(len uintptr, prot Prot) (Reservation, error)

	// MapFile maps length bytes of the file descriptor (or an
	// equivalent in-memory source) at fileOffset into the reservation
	// at reservation-relative offsetInReservation. fileOffset is
	// page-aligned by the caller.
	MapFile(res Reservation, offsetInReservation uintptr, fd int, fileOffset int64, length uintptr, prot Prot) error

	// MapAnon maps length zero-filled bytes into the reservation at
	// offsetInReservation.
	MapAnon(res Reservation, offsetInReservation uintptr, length uintptr, prot Prot) error

	// Protect changes the protection of [addr, addr+len).
	Protect(addr uintptr, length uintptr, prot Prot) error

	// Unmap releases the entire reservation.
	Unmap(res Reservation) error

	// ReadAt reads n bytes starting at a previously mapped addr. Needed
	// because an address is not always a dereferenceable Go pointer:
	// the Unicorn backend's addresses are guest-virtual and must be
	// read through the emulator, not the host MMU.
	ReadAt(addr uintptr, n int) ([]byte, error)

	// WriteUintptr writes a single pointer-width value at addr, the
	// operation the relocation engine performs for every entry it
	// resolves.
	WriteUintptr(addr uintptr, val uintptr) error
}

// WrapError turns a backend-specific failure into the taxonomy's
// MmapError.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return elferr.NewMmapError("%s: %v", op, err)
}
