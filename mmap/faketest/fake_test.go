package faketest

import (
	"testing"

	"github.com/elfload/elfload/mmap"
)

func TestReserveMapAnonReadWrite(t *testing.T) {
	b := New()
	res, err := b.Reserve(64, mmap.ProtRead|mmap.ProtWrite)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.Len != 64 {
		t.Fatalf("Reservation.Len = %d, want 64", res.Len)
	}
	if err := b.MapAnon(res, 0, 64, mmap.ProtRead|mmap.ProtWrite); err != nil {
		t.Fatalf("MapAnon: %v", err)
	}

	const want = uintptr(0xdeadbeef)
	if err := b.WriteUintptr(res.Addr+8, want); err != nil {
		t.Fatalf("WriteUintptr: %v", err)
	}
	got, err := b.ReadAt(res.Addr+8, 8)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	var v uintptr
	for i := 7; i >= 0; i-- {
		v = v<<8 | uintptr(got[i])
	}
	if v != want {
		t.Errorf("round-tripped value = %#x, want %#x", v, want)
	}
}

func TestReadAtOutsideAnyRegionFails(t *testing.T) {
	b := New()
	if _, err := b.ReadAt(0x1000, 8); err == nil {
		t.Error("ReadAt on an address with no reservation should fail")
	}
}

func TestUnmapRemovesRegion(t *testing.T) {
	b := New()
	res, err := b.Reserve(16, mmap.ProtRead|mmap.ProtWrite)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Unmap(res); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, err := b.ReadAt(res.Addr, 1); err == nil {
		t.Error("reading an unmapped region should fail")
	}
}
