package object

import (
	"unsafe"

	"github.com/elfload/elfload/mmap"
)

// copyAddrInto copies length bytes already resident at addr into res at
// offsetInReservation, then locks down the final protection. Used for
// in-memory sources (Buffer), where there is no file descriptor to hand
// the OS, so the bytes must be copied rather than mapped.
func copyAddrInto(mm mmap.Mmapper, res mmap.Reservation, offsetInReservation uintptr, addr uintptr, length uintptr, prot mmap.Prot) error {
	if length == 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(length))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(res.Addr+offsetInReservation)), int(length))
	copy(dst, src)
	return mm.Protect(res.Addr+offsetInReservation, length, prot)
}
