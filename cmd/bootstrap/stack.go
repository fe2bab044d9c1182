package main

import (
	"os"
	"unsafe"

	"github.com/elfload/elfload/mmap"
)

const stackSize = 8 << 20 // 8 MiB, matching the default Linux RLIMIT_STACK

// buildStack lays out a fresh SysV-ABI initial stack for the target:
// argc, argv[], NULL, envp[], NULL, then the auxiliary vector (with
// entries overridden by auxvOverrides), NULL, followed by the string
// table those pointers reference. Mirrors
// original_source/src/arch/*/relocate_self's handoff of a rewritten
// auxv, but built with the host's real mmap instead of a no_std stack
// allocator.
func buildStack(mm mmap.Mmapper, argv, envp []string, auxvOverrides auxv) (sp uintptr, err error) {
	res, err := mm.Reserve(stackSize, mmap.ProtRead|mmap.ProtWrite)
	if err != nil {
		return 0, err
	}
	if err := mm.MapAnon(res, 0, stackSize, mmap.ProtRead|mmap.ProtWrite); err != nil {
		return 0, err
	}

	// Strings grow down from the top of the region; pointer/count area
	// grows up from a 16-byte-aligned point below them.
	top := res.End()
	strs := make(map[string]uintptr)
	place := func(s string) uintptr {
		if addr, ok := strs[s]; ok {
			return addr
		}
		n := uintptr(len(s) + 1)
		top -= n
		writeCString(top, s)
		strs[s] = top
		return top
	}

	argvPtrs := make([]uintptr, len(argv))
	for i, a := range argv {
		argvPtrs[i] = place(a)
	}
	envpPtrs := make([]uintptr, len(envp))
	for i, e := range envp {
		envpPtrs[i] = place(e)
	}

	// auxv values are written exactly as given. Values that are
	// themselves pointers (AT_EXECFN, AT_PLATFORM, AT_RANDOM) are not
	// copied into this stack; they keep pointing at the memory they
	// referred to in the caller's auxv.

	top &^= 0xf // 16-byte align the base of the pointer area

	entries := make([]uintptr, 0, 2+len(argvPtrs)+1+len(envpPtrs)+1+len(auxvOverrides)*2+2)
	entries = append(entries, uintptr(len(argv)))
	entries = append(entries, argvPtrs...)
	entries = append(entries, 0)
	entries = append(entries, envpPtrs...)
	entries = append(entries, 0)
	for tag, val := range auxvOverrides {
		entries = append(entries, uintptr(tag), uintptr(val))
	}
	entries = append(entries, atNull, 0)

	base := top - uintptr(len(entries))*8
	base &^= 0xf
	for i, v := range entries {
		if err := mm.WriteUintptr(base+uintptr(i)*8, v); err != nil {
			return 0, err
		}
	}
	return base, nil
}

// writeCString pokes bytes directly instead of going through Mmapper,
// since this command only ever runs against the Unix backend, whose
// addresses are real host pointers.
func writeCString(addr uintptr, s string) {
	b := append([]byte(s), 0)
	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(b))
	copy(dst, b)
}

func currentEnviron() []string { return os.Environ() }
