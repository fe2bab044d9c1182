// Package tls implements thread-local storage handling: parsing
// an image's PT_TLS segment into a static TLS block and assigning it a
// module id for DTPMOD/DTPOFF relocations. Grounded on the ThreadLocal
// trait original_source/src/lib.rs declares (new/module_id), with the
// allocation strategy specific to this implementation since the trait
// itself is abstract.
package tls

import (
	"debug/elf"
	"sync/atomic"
)

// Block is a parsed PT_TLS segment: its template image, and the module
// id DTPMOD relocations resolve to for symbols defined in it.
type Block struct {
	ModuleID   uint64
	TemplateVA uintptr // base-relative vaddr of .tdata
	FileLen    uintptr // length copied from the image (.tdata)
	MemLen     uintptr // total block length including .tbss
	Align      uintptr
}

var nextModuleID atomic.Uint64

func init() {
	// Module id 0 means "no TLS block"; real modules start at 1,
	// matching glibc's convention for the static TLS surplus.
	nextModuleID.Store(1)
}

// New parses phdr as a PT_TLS entry, assigning it the next module id.
// Returns ok=false if phdr is not PT_TLS.
func New(phdr elf.ProgHeader) (Block, bool) {
	if phdr.Type != elf.PT_TLS {
		return Block{}, false
	}
	return Block{
		ModuleID:   nextModuleID.Add(1) - 1,
		TemplateVA: uintptr(phdr.Vaddr),
		FileLen:    uintptr(phdr.Filesz),
		MemLen:     uintptr(phdr.Memsz),
		Align:      uintptr(phdr.Align),
	}, true
}

// None is the zero Block, used for images without a PT_TLS segment.
var None Block
