package reloc

import (
	"encoding/binary"

	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/elferr"
)

const relaEntSize = 24

// DecodeArray reads count Elf64_Rela entries starting at addr via mem
// and wraps them as a deferred-relocation Array.
func DecodeArray(mem Memory, addr uintptr, count uintptr) (*Array, error) {
	if count == 0 {
		return nil, nil
	}
	relas := make([]arch.Rela, count)
	for i := uintptr(0); i < count; i++ {
		b, err := mem.ReadAt(addr+i*relaEntSize, relaEntSize)
		if err != nil {
			return nil, elferr.NewIOError(err)
		}
		relas[i] = arch.Rela{
			Off:    binary.LittleEndian.Uint64(b[0:8]),
			Info:   binary.LittleEndian.Uint64(b[8:16]),
			Addend: int64(binary.LittleEndian.Uint64(b[16:24])),
		}
	}
	return NewArray(relas), nil
}
