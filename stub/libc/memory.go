// Package libc backs the handful of libc symbols most shared objects
// import that have no meaningful host-process equivalent once loaded
// outside libc's own control: the bump allocator beneath
// malloc/calloc/realloc/free. Adapted from an ARM64-Android emulator's
// libc memory stubs, which did the same against fixed emulator
// registers; here CPU.Arg/SetReturn abstract the register convention
// so the same bodies serve any guest arch.
package libc

import "github.com/elfload/elfload/stub"

// arena is a simple bump allocator: loaded code's malloc/calloc/realloc
// calls carve out of it and free is a no-op: we leak.
type arena struct {
	base uintptr
	next uintptr
	end  uintptr
}

// NewArena reserves [base, base+size) for this registry's allocator
// stubs to hand out. The caller (the loaderctl inspector, or a test)
// maps that range with PROT_READ|PROT_WRITE before installing stubs.
func NewArena(base, size uintptr) *arena {
	return &arena{base: base, next: base, end: base + size}
}

func (a *arena) alloc(size uint64) uintptr {
	n := (size + 15) &^ 15
	if a.next+uintptr(n) > a.end {
		return 0
	}
	p := a.next
	a.next += uintptr(n)
	return p
}

// Register installs malloc/calloc/realloc/free and the C++ operator
// new/delete aliases against arena.
func Register(a *arena) {
	stub.Register(stub.Def{Name: "malloc", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(uint64(a.alloc(cpu.Arg(0))))
	}})
	stub.Register(stub.Def{Name: "calloc", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(uint64(a.alloc(cpu.Arg(0) * cpu.Arg(1))))
	}})
	stub.Register(stub.Def{Name: "realloc", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(uint64(a.alloc(cpu.Arg(1))))
	}})
	stub.Register(stub.Def{Name: "free", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(0)
	}})
	stub.Register(stub.Def{
		Name:     "_Znwm",
		Aliases:  []string{"_Znam", "_ZnwmSt11align_val_t", "_ZnamSt11align_val_t"},
		Category: "libc",
		Hook: func(cpu stub.CPU) {
			cpu.SetReturn(uint64(a.alloc(cpu.Arg(0))))
		},
	})
	stub.Register(stub.Def{
		Name:     "_ZdlPv",
		Aliases:  []string{"_ZdaPv", "_ZdlPvm", "_ZdaPvm"},
		Category: "libc",
		Hook:     func(cpu stub.CPU) { cpu.SetReturn(0) },
	})
}
