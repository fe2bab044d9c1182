package arch

import "testing"

func TestRelaSymAndType(t *testing.T) {
	// r_info packs (sym << 32 | type) per the Elf64_Rela layout.
	r := Rela{Info: (uint64(0x1234) << 32) | uint64(0x07)}
	if got := r.Sym(); got != 0x1234 {
		t.Errorf("Sym() = %#x, want 0x1234", got)
	}
	if got := r.Type(); got != 0x07 {
		t.Errorf("Type() = %#x, want 0x07", got)
	}
}

func TestRelaZeroValue(t *testing.T) {
	var r Rela
	if r.Sym() != 0 || r.Type() != 0 {
		t.Error("zero-value Rela should decode to sym=0, type=0")
	}
}

func TestRelocationClassesDistinctWithinArch(t *testing.T) {
	// Within a single architecture the six relocation classes this
	// engine dispatches on must never collide, or the engine would
	// misapply one relocation kind as another.
	classes := map[string]uint32{
		"relative": RelRelative,
		"got":      RelGOT,
		"jumpslot": RelJumpSlot,
		"symbolic": RelSymbolic,
		"dtpmod":   RelDTPMod,
		"dtpoff":   RelDTPOff,
	}
	seen := make(map[uint32]string)
	for name, v := range classes {
		if other, ok := seen[v]; ok {
			t.Errorf("relocation class %q collides with %q (both %#x)", name, other, v)
		}
		seen[v] = name
	}
}
