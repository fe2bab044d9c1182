// Package faketest provides a unit-test Mmapper backed by a plain Go
// byte slice rather than real address-space reservations, for tests
// that need a Mmapper without mapping real memory or an emulator.
package faketest

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/elfload/elfload/mmap"
)

// Backend is an Mmapper backed by ordinary Go heap memory. It never
// touches the real address space, so tests can run without privilege
// and without reserving gigabytes of VA.
type Backend struct {
	regions map[uintptr][]byte
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{regions: make(map[uintptr][]byte)}
}

func (b *Backend) Reserve(length uintptr, _ mmap.Prot) (mmap.Reservation, error) {
	buf := make([]byte, length)
	var addr uintptr
	if length > 0 {
		addr = uintptr(unsafe.Pointer(&buf[0]))
	}
	b.regions[addr] = buf
	return mmap.Reservation{Addr: addr, Len: length}, nil
}

func (b *Backend) buf(res mmap.Reservation) []byte {
	return b.regions[res.Addr]
}

func (b *Backend) MapFile(res mmap.Reservation, offsetInReservation uintptr, fd int, fileOffset int64, length uintptr, _ mmap.Prot) error {
	buf := b.buf(res)
	dst := buf[offsetInReservation : offsetInReservation+length]
	n, err := unix.Pread(fd, dst, fileOffset)
	if err != nil {
		return mmap.WrapError("map-file", err)
	}
	for n < len(dst) {
		m, err := unix.Pread(fd, dst[n:], fileOffset+int64(n))
		if err != nil {
			return mmap.WrapError("map-file", err)
		}
		if m == 0 {
			break
		}
		n += m
	}
	return nil
}

func (b *Backend) MapAnon(res mmap.Reservation, offsetInReservation uintptr, length uintptr, _ mmap.Prot) error {
	buf := b.buf(res)
	dst := buf[offsetInReservation : offsetInReservation+length]
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

// Protect is a no-op: a Go-owned slice cannot have its protection
// revoked without real mmap, and tests only assert on bytes written.
func (b *Backend) Protect(uintptr, uintptr, mmap.Prot) error { return nil }

func (b *Backend) Unmap(res mmap.Reservation) error {
	delete(b.regions, res.Addr)
	return nil
}

// findRegion locates the region containing addr and the byte offset
// into it, scanning the (small, test-only) region set.
func (b *Backend) findRegion(addr uintptr) ([]byte, uintptr, bool) {
	for base, buf := range b.regions {
		if addr >= base && addr < base+uintptr(len(buf)) {
			return buf, addr - base, true
		}
	}
	return nil, 0, false
}

func (b *Backend) ReadAt(addr uintptr, n int) ([]byte, error) {
	buf, off, ok := b.findRegion(addr)
	if !ok {
		return nil, mmap.WrapError("read", errOutOfRange)
	}
	out := make([]byte, n)
	copy(out, buf[off:int(off)+n])
	return out, nil
}

func (b *Backend) WriteUintptr(addr uintptr, val uintptr) error {
	buf, off, ok := b.findRegion(addr)
	if !ok {
		return mmap.WrapError("write", errOutOfRange)
	}
	*(*uintptr)(unsafe.Pointer(&buf[off])) = val
	return nil
}

var errOutOfRange = errOutOfRangeErr{}

type errOutOfRangeErr struct{}

func (errOutOfRangeErr) Error() string { return "address not in any mapped region" }
