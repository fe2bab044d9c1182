//go:build riscv64

package arch

import (
	"debug/elf"
	"math"
)

// Machine is the e_machine value this build expects to find in the ELF
// header of every object it loads.
const Machine = elf.EM_RISCV

// TLSDTVOffset is the bias between a DTV-visible TLS address and the
// start of a TLS block: 0x800 past the start of each block on riscv64.
const TLSDTVOffset = 0x800

const (
	RelRelative = uint32(elf.R_RISCV_RELATIVE)
	// RelGOT has no riscv64 equivalent; the sentinel ensures the engine
	// never matches a real relocation type against it.
	RelGOT      = uint32(math.MaxUint32)
	RelJumpSlot = uint32(elf.R_RISCV_JUMP_SLOT)
	RelSymbolic = uint32(elf.R_RISCV_64)
	RelDTPMod   = uint32(elf.R_RISCV_TLS_DTPMOD64)
	RelDTPOff   = uint32(elf.R_RISCV_TLS_DTPREL64)
)
