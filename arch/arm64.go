//go:build arm64

package arch

import "debug/elf"

// Machine is the e_machine value this build expects to find in the ELF
// header of every object it loads.
const Machine = elf.EM_AARCH64

// TLSDTVOffset is the bias between a DTV-visible TLS address and the
// start of a TLS block. Zero on aarch64.
const TLSDTVOffset = 0

const (
	RelRelative = uint32(elf.R_AARCH64_RELATIVE)
	RelGOT      = uint32(elf.R_AARCH64_GLOB_DAT)
	RelJumpSlot = uint32(elf.R_AARCH64_JUMP_SLOT)
	RelSymbolic = uint32(elf.R_AARCH64_ABS64)
	RelDTPMod   = uint32(elf.R_AARCH64_TLS_DTPMOD64)
	RelDTPOff   = uint32(elf.R_AARCH64_TLS_DTPREL64)
)
