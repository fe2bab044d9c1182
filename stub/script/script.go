// Package script provides a JavaScript-scriptable fallback resolver,
// letting an operator patch in a symbol definition without recompiling
// the loader: a small script exports a function per symbol name that
// returns the address (or synthetic value) to bind. Grounded on the
// same pluggable-symbol-handling idea package stub implements,
// reimplemented as a direct reloc.FallbackResolver (evaluated at
// relocation time, not intercepted at call time) since goja runs on
// the host and has no way to observe a Unicorn guest's registers.
package script

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/elfload/elfload/elferr"
)

// Resolver evaluates a user-supplied script once and exposes its
// top-level functions as symbol definitions.
type Resolver struct {
	vm *goja.Runtime
}

// New compiles src and returns a Resolver backed by it. src's
// top-level functions are looked up by name on each Resolve call; a
// function should return a number (interpreted as an address) or
// `null`/`undefined` to decline.
func New(src string) (*Resolver, error) {
	vm := goja.New()
	if _, err := vm.RunString(src); err != nil {
		return nil, elferr.NewRelocateError("script: %v", err)
	}
	return &Resolver{vm: vm}, nil
}

// Resolve implements reloc.FallbackResolver: it looks up a top-level
// function named like the symbol and calls it with no arguments.
func (r *Resolver) Resolve(name string) (uintptr, bool) {
	fnVal := r.vm.Get(name)
	if fnVal == nil || goja.IsUndefined(fnVal) || goja.IsNull(fnVal) {
		return 0, false
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return 0, false
	}
	result, err := fn(goja.Undefined())
	if err != nil {
		return 0, false
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return 0, false
	}
	return uintptr(result.ToInteger()), true
}

// MustNew is New, panicking on a script error instead of returning it
// as a relocation error.
func MustNew(src string) *Resolver {
	r, err := New(src)
	if err != nil {
		panic(fmt.Sprintf("script: %v", err))
	}
	return r
}
