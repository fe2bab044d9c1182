// Package reloc applies an image's relocation arrays (.rela.plt and
// .rela.dyn) against its mapped memory, resolving each entry's symbol
// through an ordered chain: the image's own symbol if it is defined
// locally, then a scan of already-relocated dependencies in link
// order, then a caller-supplied fallback resolver only if neither
// found a definition. Grounded on original_source/src/relocation.rs's
// relocate_impl/find_symdef, kept in the same Init -> Relocating ->
// Finish deferred-bitmap shape but fixing the overwrite bug: this
// package ANDs is_finished across both arrays instead of letting the
// second array's result silently overwrite the first's.
package reloc

import (
	"github.com/elfload/elfload/arch"
	"github.com/elfload/elfload/elferr"
	"github.com/elfload/elfload/symbol"
)

// Dependency is an already-relocated image this engine may search for a
// symbol an entry's own object leaves undefined. Kept as an interface
// (rather than importing package image) so image can depend on reloc
// without a cycle.
type Dependency interface {
	// ResolveSymbol looks up name among this dependency's exported
	// symbols. addr is the symbol's absolute mapped address (for GOT /
	// symbolic relocations); tlsValue is its raw, unrelocated st_value
	// (for DTPOFF, which biases against a module's TLS block rather
	// than an absolute address); tlsModuleID is 0 if the symbol carries
	// no TLS association.
	ResolveSymbol(name string) (addr uintptr, tlsValue uintptr, tlsModuleID uint64, ok bool)
}

// FallbackResolver is consulted only after an entry's own symbol and
// its dependency chain both fail to define it, letting a caller supply
// a last-resort definition (see package stub).
type FallbackResolver func(name string) (uintptr, bool)

// Memory is the read/write view of an image's mapped segments the
// engine needs: absolute-address reads for symbol/string lookups, and
// a single word-sized write for applying a relocation.
type Memory interface {
	ReadAt(addr uintptr, n int) ([]byte, error)
	WriteUintptr(addr uintptr, val uintptr) error
}

// Engine relocates one image's two relocation arrays against its own
// mapped base.
type Engine struct {
	Base       uintptr
	Symbols    *symbol.Table
	PltRel     *Array // .rela.plt, skipped entirely when Lazy is true
	DynRel     *Array
	Lazy       bool
	Mem        Memory
	TLSModuleID uint64 // 0 if this image carries no TLS block
	Fallback   FallbackResolver
	Deps       []Dependency
}

// symDef is a resolved definition: either from this image's own symbol
// table (ok=true, found locally) or from a dependency.
type symDef struct {
	addr        uintptr
	tlsValue    uintptr
	tlsModuleID uint64
	ok          bool
}

func (e *Engine) findOwn(sym symbol.Sym) symDef {
	if symbol.IsUndefined(sym) {
		return symDef{}
	}
	addr := e.Base + uintptr(sym.Value)
	if symbol.IsIFunc(sym) {
		addr = callFuncPtr(addr)
	}
	return symDef{addr: addr, tlsValue: uintptr(sym.Value), tlsModuleID: e.TLSModuleID, ok: true}
}

func (e *Engine) findSymDef(name string, rsym uint32) (symDef, error) {
	if rsym == 0 {
		return symDef{}, nil
	}
	sym, err := e.Symbols.ByIndex(rsym)
	if err != nil {
		return symDef{}, err
	}
	if d := e.findOwn(sym); d.ok {
		return d, nil
	}
	for _, dep := range e.Deps {
		if addr, tlsValue, tls, ok := dep.ResolveSymbol(name); ok {
			return symDef{addr: addr, tlsValue: tlsValue, tlsModuleID: tls, ok: true}, nil
		}
	}
	return symDef{}, nil
}

func (e *Engine) resolve(name string, def symDef) (uintptr, bool) {
	if def.ok {
		return def.addr, true
	}
	if e.Fallback != nil {
		if addr, ok := e.Fallback(name); ok {
			return addr, true
		}
	}
	return 0, false
}

// Relocate runs one pass over both arrays, applying every relocation
// type this engine's architecture defines. Safe to call repeatedly:
// entries already resolved are skipped, and only entries a prior pass
// rejected (e.g. an undefined symbol not yet provided by a
// since-loaded dependency) are retried.
func (e *Engine) Relocate() {
	if !e.Lazy && e.PltRel != nil {
		e.PltRel.Relocate(e.applyPlt)
	}
	if e.DynRel != nil {
		e.DynRel.Relocate(e.applyDyn)
	}
}

func (e *Engine) applyPlt(rela *arch.Rela, _ int) bool {
	rsym := rela.Sym()
	sym, err := e.Symbols.ByIndex(rsym)
	if err != nil {
		return false
	}
	name, err := e.Symbols.Name(sym)
	if err != nil {
		return false
	}
	def, err := e.findSymDef(name, rsym)
	if err != nil {
		return false
	}
	addr, ok := e.resolve(name, def)
	if !ok {
		return false
	}
	switch rela.Type() {
	case arch.RelJumpSlot:
		return e.write(rela.Off, addr) == nil
	default:
		return false
	}
}

func (e *Engine) applyDyn(rela *arch.Rela, _ int) bool {
	rtype := rela.Type()
	rsym := rela.Sym()

	var name string
	var def symDef
	if rsym != 0 {
		sym, err := e.Symbols.ByIndex(rsym)
		if err != nil {
			return false
		}
		n, err := e.Symbols.Name(sym)
		if err != nil {
			return false
		}
		name = n
		d, err := e.findSymDef(name, rsym)
		if err != nil {
			return false
		}
		def = d
	}

	switch rtype {
	case arch.RelGOT, arch.RelSymbolic:
		addr, ok := e.resolve(name, def)
		if !ok {
			return false
		}
		return e.write(rela.Off, addr+uintptr(rela.Addend)) == nil

	case arch.RelRelative:
		return e.write(rela.Off, e.Base+uintptr(rela.Addend)) == nil

	case arch.RelDTPMod:
		if rsym != 0 {
			if !def.ok {
				return false
			}
			return e.write(rela.Off, uintptr(def.tlsModuleID)) == nil
		}
		return e.write(rela.Off, uintptr(e.TLSModuleID)) == nil

	case arch.RelDTPOff:
		if !def.ok {
			return false
		}
		val := uintptr(int64(def.tlsValue)+rela.Addend) - uintptr(arch.TLSDTVOffset)
		return e.write(rela.Off, val) == nil

	default:
		return false
	}
}

func (e *Engine) write(relOffset uint64, val uintptr) error {
	return e.Mem.WriteUintptr(e.Base+uintptr(relOffset), val)
}

// IsFinished reports whether every attempted entry in both arrays
// resolved on its most recent pass. Unlike the source this is grounded
// on, this ANDs both arrays' state together rather than letting dynrel's
// result silently overwrite pltrel's.
func (e *Engine) IsFinished() bool {
	finished := true
	if !e.Lazy && e.PltRel != nil {
		finished = finished && e.PltRel.IsFinished()
	}
	if e.DynRel != nil {
		finished = finished && e.DynRel.IsFinished()
	}
	return finished
}

// Unresolved collects the names of every symbol still pending across
// both arrays, for a diagnostic error.
func (e *Engine) Unresolved() []string {
	var names []string
	collect := func(a *Array) {
		if a == nil {
			return
		}
		a.Pending(func(idx int) {
			rsym := a.Relas[idx].Sym()
			if rsym == 0 {
				return
			}
			if sym, err := e.Symbols.ByIndex(rsym); err == nil {
				if name, err := e.Symbols.Name(sym); err == nil {
					names = append(names, name)
				}
			}
		})
	}
	if !e.Lazy {
		collect(e.PltRel)
	}
	collect(e.DynRel)
	return names
}

// ErrUnresolved is returned by a caller that asked to finalize an image
// whose relocations are not all satisfied.
func ErrUnresolved(name string, pending []string) error {
	return elferr.NewRelocateError("%s: unresolved symbols: %v", name, pending)
}
