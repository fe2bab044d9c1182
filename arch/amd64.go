//go:build amd64

package arch

import "debug/elf"

// Machine is the e_machine value this build expects to find in the ELF
// header of every object it loads.
const Machine = elf.EM_X86_64

// TLSDTVOffset is the bias between a DTV-visible TLS address and the
// start of a TLS block. Zero on x86-64.
const TLSDTVOffset = 0

const (
	RelRelative = uint32(elf.R_X86_64_RELATIVE)
	RelGOT      = uint32(elf.R_X86_64_GLOB_DAT)
	RelJumpSlot = uint32(elf.R_X86_64_JMP_SLOT)
	RelSymbolic = uint32(elf.R_X86_64_64)
	RelDTPMod   = uint32(elf.R_X86_64_DTPMOD64)
	RelDTPOff   = uint32(elf.R_X86_64_DTPOFF64)
)
