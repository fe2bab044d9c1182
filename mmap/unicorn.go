// Package mmap: Unicorn-engine sandboxed backend.
//
// Unlike Unix (unix.go), this backend never touches the real address
// space: it reserves and maps memory inside a Unicorn CPU emulator.
// That makes it the natural home for the fallback-resolver stub table
// (package stub): Unicorn's execution hooks intercept control transfer
// at a given address and hand it to a Go closure, something a real
// hardware jump into Go code cannot do. Built around the same
// MemMap/MemWrite/MemRead primitives any Unicorn-backed mapper uses,
// generalized to arbitrary guest architectures and memory layouts.
package mmap

import (
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
	"golang.org/x/sys/unix"
)

// Unicorn is a sandboxed Mmapper backed by a CPU emulator instance.
// Reservation addresses are guest-virtual addresses inside that
// emulator, not real process memory.
type Unicorn struct {
	mu uc.Unicorn
}

// NewUnicorn creates a sandboxed backend for the given CPU architecture.
// archMode/mode select the guest CPU, e.g. uc.ARCH_X86/uc.MODE_64.
func NewUnicorn(archMode uc.Arch, mode uc.Mode) (*Unicorn, error) {
	mu, err := uc.NewUnicorn(archMode, mode)
	if err != nil {
		return nil, WrapError("create unicorn", err)
	}
	return &Unicorn{mu: mu}, nil
}

// Close releases the underlying Unicorn instance.
func (u *Unicorn) Close() error { return u.mu.Close() }

// Engine exposes the underlying Unicorn handle so callers (the stub
// registry, as used by the inspector's reloc subcommand) can add
// execution hooks.
func (u *Unicorn) Engine() uc.Unicorn { return u.mu }

func toUCProt(p Prot) int {
	prot := 0
	if p&ProtRead != 0 {
		prot |= uc.PROT_READ
	}
	if p&ProtWrite != 0 {
		prot |= uc.PROT_WRITE
	}
	if p&ProtExec != 0 {
		prot |= uc.PROT_EXEC
	}
	if prot == 0 {
		prot = uc.PROT_NONE
	}
	return prot
}

func (u *Unicorn) Reserve(length uintptr, prot Prot) (Reservation, error) {
	addr := nextGuestBase
	nextGuestBase += alignUp(uint64(length), guestPageSize)
	if err := u.mu.MemMapProt(addr, uint64(length), toUCProt(prot)); err != nil {
		return Reservation{}, WrapError("reserve", err)
	}
	return Reservation{Addr: uintptr(addr), Len: length}, nil
}

func (u *Unicorn) MapFile(res Reservation, offsetInReservation uintptr, fd int, fileOffset int64, length uintptr, prot Prot) error {
	data, err := readFileRange(fd, fileOffset, length)
	if err != nil {
		return WrapError("map-file", err)
	}
	addr := uint64(res.Addr) + uint64(offsetInReservation)
	if err := u.mu.MemProtect(addr, uint64(length), uc.PROT_WRITE|uc.PROT_READ); err != nil {
		return WrapError("map-file", err)
	}
	if err := u.mu.MemWrite(addr, data); err != nil {
		return WrapError("map-file", err)
	}
	if err := u.mu.MemProtect(addr, uint64(length), toUCProt(prot)); err != nil {
		return WrapError("map-file", err)
	}
	return nil
}

func (u *Unicorn) MapAnon(res Reservation, offsetInReservation uintptr, length uintptr, prot Prot) error {
	addr := uint64(res.Addr) + uint64(offsetInReservation)
	if err := u.mu.MemProtect(addr, uint64(length), toUCProt(prot)); err != nil {
		return WrapError("map-anon", err)
	}
	return nil
}

func (u *Unicorn) Protect(addr uintptr, length uintptr, prot Prot) error {
	if err := u.mu.MemProtect(uint64(addr), uint64(length), toUCProt(prot)); err != nil {
		return WrapError("protect", err)
	}
	return nil
}

func (u *Unicorn) Unmap(res Reservation) error {
	if err := u.mu.MemUnmap(uint64(res.Addr), uint64(res.Len)); err != nil {
		return WrapError("unmap", err)
	}
	return nil
}

func (u *Unicorn) ReadAt(addr uintptr, n int) ([]byte, error) {
	b, err := u.mu.MemRead(uint64(addr), uint64(n))
	if err != nil {
		return nil, WrapError("read", err)
	}
	return b, nil
}

func (u *Unicorn) WriteUintptr(addr uintptr, val uintptr) error {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(val >> (8 * i))
	}
	if err := u.mu.MemWrite(uint64(addr), buf); err != nil {
		return WrapError("write", err)
	}
	return nil
}

// guestPageSize is Unicorn's fixed page granularity for MemMap.
const guestPageSize = 0x1000

// guestBase is the first address handed out by Reserve; chosen well
// away from zero so null-pointer guest bugs fault instead of aliasing
// a real mapping.
const guestBase = 0x10_0000_0000

var nextGuestBase = uint64(guestBase)

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func readFileRange(fd int, offset int64, length uintptr) ([]byte, error) {
	buf := make([]byte, length)
	n := 0
	for n < len(buf) {
		m, err := unix.Pread(fd, buf[n:], offset+int64(n))
		if err != nil {
			return nil, err
		}
		if m == 0 {
			break
		}
		n += m
	}
	if n != len(buf) {
		return nil, fmt.Errorf("short read: got %d want %d", n, len(buf))
	}
	return buf, nil
}
