package libc

import (
	"testing"

	"github.com/elfload/elfload/stub"
)

func TestArenaAllocBumpsAndRoundsTo16(t *testing.T) {
	a := NewArena(0x4000, 0x100)

	p1 := a.alloc(10)
	if p1 != 0x4000 {
		t.Fatalf("first alloc = %#x, want 0x4000", p1)
	}
	p2 := a.alloc(1)
	if p2 != 0x4000+16 {
		t.Fatalf("second alloc = %#x, want %#x (first request rounds up to 16)", p2, 0x4000+16)
	}
}

func TestArenaAllocFailsPastEnd(t *testing.T) {
	a := NewArena(0x1000, 0x10)
	if p := a.alloc(0x20); p != 0 {
		t.Errorf("alloc past arena end should return 0, got %#x", p)
	}
}

func TestRegisterInstallsMallocFamily(t *testing.T) {
	before := stub.DefaultRegistry.Count()

	a := NewArena(0x8000, 0x1000)
	Register(a)

	after := stub.DefaultRegistry.Count()
	// malloc, calloc, realloc, free (4) + _Znwm and its 3 aliases (4) +
	// _ZdlPv and its 3 aliases (4).
	const wantNew = 12
	if after-before != wantNew {
		t.Errorf("Count grew by %d, want %d", after-before, wantNew)
	}
}
