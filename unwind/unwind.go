// Package unwind records an image's .eh_frame_hdr (PT_GNU_EH_FRAME)
// location so a caller can walk stack frames through it. Grounded on
// the Unwind trait original_source/src/lib.rs declares (new(phdr,
// map_range)); this implementation stores the header's mapped range
// rather than parsing the frame description entries, since unwinding
// itself is out of scope.
package unwind

import "debug/elf"

// Info is the mapped [start, end) range of an image's .eh_frame_hdr,
// or the zero value if the image has no PT_GNU_EH_FRAME.
type Info struct {
	Present    bool
	Start, End uintptr
}

// New records phdr's mapped range if it is a PT_GNU_EH_FRAME entry.
func New(phdr elf.ProgHeader, base uintptr) (Info, bool) {
	if phdr.Type != elf.PT_GNU_EH_FRAME {
		return Info{}, false
	}
	return Info{
		Present: true,
		Start:   base + uintptr(phdr.Vaddr),
		End:     base + uintptr(phdr.Vaddr+phdr.Memsz),
	}, true
}
