package object

import "testing"

func TestBufferReadAt(t *testing.T) {
	src := NewBuffer("mem", []byte("\x7fELFabcd"))
	buf := make([]byte, 4)
	if err := src.ReadAt(buf, 4); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "abcd" {
		t.Errorf("ReadAt = %q, want %q", buf, "abcd")
	}
}

func TestBufferReadAtOutOfRange(t *testing.T) {
	src := NewBuffer("mem", []byte("\x7fELF"))
	buf := make([]byte, 8)
	if err := src.ReadAt(buf, 0); err == nil {
		t.Error("ReadAt past the buffer's length should fail")
	}
}

func TestBufferName(t *testing.T) {
	src := NewBuffer("libfoo.so", nil)
	if src.Name() != "libfoo.so" {
		t.Errorf("Name() = %q, want %q", src.Name(), "libfoo.so")
	}
}

func TestBufferTransportKind(t *testing.T) {
	src := NewBuffer("mem", []byte("\x7fELFabcd"))
	tr := src.Transport(0, 4)
	if tr.Kind != TransportAddr {
		t.Errorf("Buffer.Transport kind = %v, want TransportAddr", tr.Kind)
	}
	if tr.Length != 4 {
		t.Errorf("Transport.Length = %d, want 4", tr.Length)
	}
}

func TestBufferTransportZeroLength(t *testing.T) {
	src := NewBuffer("mem", []byte("\x7fELF"))
	tr := src.Transport(0, 0)
	if tr.Addr != 0 {
		t.Error("a zero-length transport should not dereference into the buffer")
	}
}
