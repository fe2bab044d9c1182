package reloc

// callFuncPtr calls the zero-argument function at addr using the
// platform C calling convention and returns its result, implemented in
// callfunc_$GOARCH.s. Needed for GNU IFUNC resolution: an STT_GNU_IFUNC
// symbol's value is a resolver to invoke, not a final address, and Go
// offers no portable way to call through an arbitrary code address
// without a small per-arch trampoline (the same constraint that shapes
// cmd/bootstrap's final control transfer).
func callFuncPtr(addr uintptr) uintptr

// CallFunc exports callFuncPtr for packages outside reloc that need the
// same trampoline. Package image uses it to invoke an image's
// DT_INIT/DT_INIT_ARRAY/DT_FINI/DT_FINI_ARRAY entries: these are
// zero-argument functions called the same way an IFUNC resolver is.
func CallFunc(addr uintptr) uintptr { return callFuncPtr(addr) }
