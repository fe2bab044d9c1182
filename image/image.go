// Package image ties together a mapped ELF object's segments, dynamic
// section, symbol table, and relocation engine into the two handles
// the rest of the library hands callers: Unrelocated (freshly mapped,
// not yet safe to execute) and Relocated (every relocation satisfied,
// reference-counted so it can be shared as a dependency by later
// loads). Grounded on original_source/src/lib.rs's ElfDylib/Dylib split
// and its UserData/Symbol/RelocatedDylib types.
package image

import (
	"debug/elf"
	"encoding/binary"
	"sync/atomic"

	"github.com/elfload/elfload/dynamic"
	"github.com/elfload/elfload/elferr"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"
	"github.com/elfload/elfload/reloc"
	"github.com/elfload/elfload/segment"
	"github.com/elfload/elfload/symbol"
	"github.com/elfload/elfload/tls"
	"github.com/elfload/elfload/unwind"
)

// callFunc is reloc.CallFunc behind a package variable so tests can
// substitute a recording stub instead of jumping into whatever sentinel
// address they set up.
var callFunc = reloc.CallFunc

const ptrSize = 8

// readPtrArray reads count pointer-width little-endian values starting
// at addr, the layout of a DT_INIT_ARRAY/DT_FINI_ARRAY table.
func readPtrArray(mm mmap.Mmapper, addr uintptr, count uintptr) ([]uintptr, error) {
	out := make([]uintptr, 0, count)
	for i := uintptr(0); i < count; i++ {
		b, err := mm.ReadAt(addr+i*ptrSize, ptrSize)
		if err != nil {
			return nil, err
		}
		out = append(out, uintptr(binary.LittleEndian.Uint64(b)))
	}
	return out, nil
}

// UserData is an arbitrary bag of values a caller or capability (TLS,
// unwind) can attach to an image and retrieve later, mirroring
// original_source/src/lib.rs's UserData.
type UserData struct {
	data []any
}

// Push appends a value to the bag.
func (u *UserData) Push(v any) { u.data = append(u.data, v) }

// All returns every value stored in the bag.
func (u *UserData) All() []any { return u.data }

// Symbol is a typed handle to a resolved address inside a Relocated
// image, matching the original's Symbol<'lib, T> wrapper without the
// generic: callers cast Addr themselves, since Go has no unsafe
// pointer-to-function-value conversion worth hiding behind a generic
// here.
type Symbol struct {
	Name string
	Addr uintptr
}

// Unrelocated is a freshly mapped ELF image: its segments are in
// memory and its dynamic section parsed, but any relocation requiring
// an external symbol or a dependency has not been applied. Call
// Relocate to supply its dependencies and a fallback resolver, then
// Finish once Engine.IsFinished is true.
type Unrelocated struct {
	Name string
	Mm   mmap.Mmapper
	Src  object.Source

	Phdrs []elf.ProgHeader
	Entry uintptr

	Segments *segment.Segments
	Dynamic  *dynamic.Table
	Symbols  *symbol.Table
	Engine   *reloc.Engine

	TLS    tls.Block
	Unwind unwind.Info

	NeededNames []string

	UserData UserData
	depLibs  []*Relocated
}

// Relocate supplies this image's ordered dependency chain and an
// optional fallback resolver, then runs one relocation pass. It may be
// called again after loading further dependencies to retry entries a
// previous pass deferred — mirroring why the engine keeps per-entry
// state instead of failing outright on the first unresolved symbol.
func (u *Unrelocated) Relocate(deps []*Relocated, fallback reloc.FallbackResolver) {
	u.Engine.Fallback = fallback
	u.Engine.Deps = make([]reloc.Dependency, len(deps))
	for i, d := range deps {
		u.Engine.Deps[i] = d
		d.Retain()
	}
	u.depLibs = append(u.depLibs, deps...)
	u.Engine.Relocate()
}

// IsFinished reports whether every relocation entry resolved on the
// most recent pass.
func (u *Unrelocated) IsFinished() bool { return u.Engine.IsFinished() }

// runInit invokes DT_INIT (if present) then every DT_INIT_ARRAY entry in
// index order. Grounded on the init-array walk original_source/src/lib.rs
// runs right after a dylib's relocations converge, before the caller can
// touch anything it exports.
func (u *Unrelocated) runInit() error {
	if u.Dynamic == nil {
		return nil
	}
	if u.Dynamic.InitAddr != 0 {
		callFunc(u.Dynamic.InitAddr)
	}
	addrs, err := readPtrArray(u.Mm, u.Dynamic.InitArrayAddr, u.Dynamic.InitArrayCount)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if addr != 0 {
			callFunc(addr)
		}
	}
	return nil
}

// Finish runs this image's INIT then INIT_ARRAY entries, tightens
// GNU_RELRO protection (skipped for a lazily-bound image, since its PLT
// is never fully resolved), and returns a reference-counted handle
// suitable for use as a dependency of later loads. Returns a
// RelocateError naming every symbol still pending if relocation did not
// converge.
func (u *Unrelocated) Finish() (*Relocated, error) {
	if !u.IsFinished() {
		return nil, reloc.ErrUnresolved(u.Name, u.Engine.Unresolved())
	}
	if err := u.runInit(); err != nil {
		return nil, err
	}
	if !u.Engine.Lazy {
		if err := u.Segments.FinishRelro(u.Mm); err != nil {
			return nil, err
		}
	}
	r := &Relocated{
		name:     u.Name,
		base:     u.Segments.Base,
		segments: u.Segments,
		symbols:  u.Symbols,
		entry:    u.Entry,
		tls:      u.TLS,
		unwind:   u.Unwind,
		userData: u.UserData,
		depLibs:  u.depLibs,
		mm:       u.Mm,
	}
	if u.Dynamic != nil {
		r.finiAddr = u.Dynamic.FiniAddr
		r.finiArrayAddr = u.Dynamic.FiniArrayAddr
		r.finiArrayCount = u.Dynamic.FiniArrayCount
	}
	r.refCount.Store(1)
	return r, nil
}

// Relocated is a fully relocated image, safe to call into and safe to
// share as another image's dependency. It is reference-counted: each
// image that records it as a dependency calls Retain, and Release drops
// the count, unmapping the image's segments once it reaches zero.
// Acyclic-ness of the dependency graph is the caller's responsibility,
// exactly as in the source this is grounded on.
type Relocated struct {
	name     string
	base     uintptr
	segments *segment.Segments
	symbols  *symbol.Table
	entry    uintptr
	tls      tls.Block
	unwind   unwind.Info
	userData UserData
	depLibs  []*Relocated
	mm       mmap.Mmapper
	refCount atomic.Int64

	finiAddr       uintptr
	finiArrayAddr  uintptr
	finiArrayCount uintptr
}

func (r *Relocated) Name() string   { return r.name }
func (r *Relocated) Base() uintptr  { return r.base }
func (r *Relocated) Entry() uintptr { return r.entry + r.base }

// DepLibs returns this image's dependency chain, or nil if it has none.
func (r *Relocated) DepLibs() []*Relocated { return r.depLibs }

// UserDataRef returns the image's attached user-data bag.
func (r *Relocated) UserDataRef() *UserData { return &r.userData }

// Get resolves name to a Symbol in this image's own export set.
func (r *Relocated) Get(name string) (Symbol, error) {
	sym, ok, err := r.symbols.Lookup(name)
	if err != nil {
		return Symbol{}, err
	}
	if !ok {
		return Symbol{}, elferr.NewFindSymbolError(name)
	}
	return Symbol{Name: name, Addr: r.base + uintptr(sym.Value)}, nil
}

// ResolveSymbol implements reloc.Dependency.
func (r *Relocated) ResolveSymbol(name string) (addr uintptr, tlsValue uintptr, tlsModuleID uint64, ok bool) {
	sym, found, err := r.symbols.Lookup(name)
	if err != nil || !found {
		return 0, 0, 0, false
	}
	return r.base + uintptr(sym.Value), uintptr(sym.Value), r.tls.ModuleID, true
}

// Retain increments the reference count; call once per new owner (a
// dependent image, a caller holding a cached handle).
func (r *Relocated) Retain() { r.refCount.Add(1) }

// runFini invokes DT_FINI (if present) then every DT_FINI_ARRAY entry in
// index order. Mirrors original_source/src/lib.rs's Drop for Dylib,
// which cannot itself return an error, so a failure reading the array is
// swallowed here too rather than aborting the unmap that follows.
func (r *Relocated) runFini() {
	if r.finiAddr != 0 {
		callFunc(r.finiAddr)
	}
	addrs, err := readPtrArray(r.mm, r.finiArrayAddr, r.finiArrayCount)
	if err != nil {
		return
	}
	for _, addr := range addrs {
		if addr != 0 {
			callFunc(addr)
		}
	}
}

// Release decrements the reference count, running FINI then FINI_ARRAY
// and unmapping the image's segments and releasing its own dependency
// references once it hits zero.
func (r *Relocated) Release() error {
	if r.refCount.Add(-1) > 0 {
		return nil
	}
	r.runFini()
	for _, dep := range r.depLibs {
		_ = dep.Release()
	}
	return r.segments.Unmap(r.mm)
}
