//go:build linux

package mmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Unix is the production Mmapper: it reserves address space and maps
// into it with real mmap(2)/mprotect(2)/munmap(2) syscalls, exactly the
// operations the segment manager needs to place PT_LOAD segments and
// later tighten GNU_RELRO.
type Unix struct{}

// NewUnix returns the OS-backed Mmapper.
func NewUnix() Unix { return Unix{} }

func toUnixProt(p Prot) int {
	var v int
	if p&ProtRead != 0 {
		v |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		v |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		v |= unix.PROT_EXEC
	}
	return v
}

func (Unix) Reserve(length uintptr, prot Prot) (Reservation, error) {
	b, err := unix.Mmap(-1, 0, int(length), toUnixProt(prot), unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return Reservation{}, WrapError("reserve", err)
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	return Reservation{Addr: addr, Len: length}, nil
}

func (Unix) mapFixed(addr uintptr, length uintptr, prot Prot, flags int, fd int, fileOffset int64) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		length,
		uintptr(toUnixProt(prot)),
		uintptr(flags|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(fileOffset),
	)
	if errno != 0 {
		return fmt.Errorf("mmap(fixed) at 0x%x: %w", addr, errno)
	}
	return nil
}

func (u Unix) MapFile(res Reservation, offsetInReservation uintptr, fd int, fileOffset int64, length uintptr, prot Prot) error {
	if offsetInReservation+length > res.Len {
		return WrapError("map-file", fmt.Errorf("range exceeds reservation"))
	}
	addr := res.Addr + offsetInReservation
	if err := u.mapFixed(addr, length, prot, unix.MAP_PRIVATE, fd, fileOffset); err != nil {
		return WrapError("map-file", err)
	}
	return nil
}

func (u Unix) MapAnon(res Reservation, offsetInReservation uintptr, length uintptr, prot Prot) error {
	if offsetInReservation+length > res.Len {
		return WrapError("map-anon", fmt.Errorf("range exceeds reservation"))
	}
	addr := res.Addr + offsetInReservation
	if err := u.mapFixed(addr, length, prot, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS, -1, 0); err != nil {
		return WrapError("map-anon", err)
	}
	return nil
}

func (Unix) Protect(addr uintptr, length uintptr, prot Prot) error {
	if err := unix.Mprotect(unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length)), toUnixProt(prot)); err != nil {
		return WrapError("protect", err)
	}
	return nil
}

func (Unix) Unmap(res Reservation) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(res.Addr)), int(res.Len))
	if err := unix.Munmap(b); err != nil {
		return WrapError("unmap", err)
	}
	return nil
}

func (Unix) ReadAt(addr uintptr, n int) ([]byte, error) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	out := make([]byte, n)
	copy(out, src)
	return out, nil
}

func (Unix) WriteUintptr(addr uintptr, val uintptr) error {
	*(*uintptr)(unsafe.Pointer(addr)) = val
	return nil
}
