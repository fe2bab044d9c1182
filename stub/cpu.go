package stub

import uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

// ArchKind selects which guest architecture's calling convention a CPU
// view speaks. Unlike the rest of this module, stub hooks run inside a
// Unicorn sandbox and can therefore service a guest of any
// architecture regardless of the host's GOARCH, so this is a runtime
// value rather than a build tag.
type ArchKind int

const (
	ArchAMD64 ArchKind = iota
	ArchARM64
	ArchRISCV64
)

// argRegs maps logical argument index (0-based) to the Unicorn register
// constant holding it, per the platform C calling convention: System V
// AMD64 (RDI,RSI,RDX,RCX,R8,R9), AAPCS64 (X0-X7), RISC-V (A0-A7).
var argRegs = map[ArchKind][]int{
	ArchAMD64:   {uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_RCX, uc.X86_REG_R8, uc.X86_REG_R9},
	ArchARM64:   {uc.ARM64_REG_X0, uc.ARM64_REG_X1, uc.ARM64_REG_X2, uc.ARM64_REG_X3, uc.ARM64_REG_X4, uc.ARM64_REG_X5, uc.ARM64_REG_X6, uc.ARM64_REG_X7},
	ArchRISCV64: {uc.RISCV_REG_A0, uc.RISCV_REG_A1, uc.RISCV_REG_A2, uc.RISCV_REG_A3, uc.RISCV_REG_A4, uc.RISCV_REG_A5, uc.RISCV_REG_A6, uc.RISCV_REG_A7},
}

var returnReg = map[ArchKind]int{
	ArchAMD64:   uc.X86_REG_RAX,
	ArchARM64:   uc.ARM64_REG_X0,
	ArchRISCV64: uc.RISCV_REG_A0,
}

var (
	linkReg = map[ArchKind]int{
		ArchARM64:   uc.ARM64_REG_LR,
		ArchRISCV64: uc.RISCV_REG_RA,
	}
	pcReg = map[ArchKind]int{
		ArchAMD64:   uc.X86_REG_RIP,
		ArchARM64:   uc.ARM64_REG_PC,
		ArchRISCV64: uc.RISCV_REG_PC,
	}
	spReg = map[ArchKind]int{
		ArchAMD64:   uc.X86_REG_RSP,
		ArchARM64:   uc.ARM64_REG_SP,
		ArchRISCV64: uc.RISCV_REG_SP,
	}
)

// CPU is the register view a Hook gets to read call arguments and
// write back a result, abstracting the per-arch register names an
// ARM64-only emulator would expose as fixed X/SetX/LR accessors.
type CPU struct {
	mu   uc.Unicorn
	arch ArchKind
}

// Arg returns the i'th integer argument per the platform calling
// convention.
func (c CPU) Arg(i int) uint64 {
	regs := argRegs[c.arch]
	if i >= len(regs) {
		return 0
	}
	v, _ := c.mu.RegRead(regs[i])
	return v
}

// SetReturn writes v into the return-value register.
func (c CPU) SetReturn(v uint64) {
	_ = c.mu.RegWrite(returnReg[c.arch], v)
}

// Return transfers control back to the caller: on amd64 the call
// already pushed a return address onto the stack the hook's caller
// pops, so Return is a no-op there; on arm64/riscv64 it copies the
// link register into the program counter.
func (c CPU) Return() {
	if lr, ok := linkReg[c.arch]; ok {
		v, _ := c.mu.RegRead(lr)
		_ = c.mu.RegWrite(pcReg[c.arch], v)
	}
}

// Hook is the signature a stub implements: read arguments, do
// whatever the real libc/pthread function would, set a return value,
// and transfer control back.
type Hook func(cpu CPU)

// ReadBytes reads n bytes out of guest memory at addr.
func (c CPU) ReadBytes(addr uint64, n uint64) ([]byte, error) {
	return c.mu.MemRead(addr, n)
}

// WriteBytes writes data into guest memory at addr.
func (c CPU) WriteBytes(addr uint64, data []byte) error {
	return c.mu.MemWrite(addr, data)
}

// ReadString reads a NUL-terminated string out of guest memory at addr,
// reading at most max bytes.
func (c CPU) ReadString(addr uint64, max int) string {
	if addr == 0 || max <= 0 {
		return ""
	}
	b, err := c.mu.MemRead(addr, uint64(max))
	if err != nil {
		return ""
	}
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// WriteString writes s followed by a NUL terminator into guest memory at addr.
func (c CPU) WriteString(addr uint64, s string) error {
	return c.mu.MemWrite(addr, append([]byte(s), 0))
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
