// Package arch holds per-architecture ELF constants: the expected
// e_machine value, the relocation type codes the engine switches on, and
// the TLS DTV bias. Exactly one of amd64.go/arm64.go/riscv64.go is
// compiled in depending on GOARCH.
package arch

// Rela mirrors an Elf64_Rela entry: an explicit-addend relocation.
type Rela struct {
	Off    uint64 // r_offset
	Info   uint64 // r_info
	Addend int64  // r_addend
}

// Sym returns the symbol table index encoded in r_info.
func (r Rela) Sym() uint32 { return uint32(r.Info >> 32) }

// Type returns the relocation type encoded in r_info.
func (r Rela) Type() uint32 { return uint32(r.Info) }

// Dyn mirrors an Elf64_Dyn entry.
type Dyn struct {
	Tag int64
	Val uint64
}
