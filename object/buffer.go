package object

import (
	"unsafe"

	"github.com/elfload/elfload/elferr"
)

// Buffer is a Source backed by bytes already resident in this process's
// memory, mirroring original_source/src/object.rs's ElfBinary. Used to
// load an embedded or already-decompressed image without a file
// descriptor.
type Buffer struct {
	name  string
	bytes []byte
}

// NewBuffer wraps an in-memory ELF image. bytes must stay alive and
// unmoved for as long as any image derived from it is alive; callers
// typically keep a reference alongside the returned *image.Relocated.
func NewBuffer(name string, bytes []byte) *Buffer {
	return &Buffer{name: name, bytes: bytes}
}

func (s *Buffer) Name() string { return s.name }

func (s *Buffer) ReadAt(buf []byte, offset int64) error {
	end := offset + int64(len(buf))
	if offset < 0 || end > int64(len(s.bytes)) {
		return elferr.NewIOError(errShortBuffer{want: end, have: int64(len(s.bytes))})
	}
	copy(buf, s.bytes[offset:end])
	return nil
}

func (s *Buffer) Transport(offset int64, length uintptr) Transport {
	var addr uintptr
	if length > 0 {
		addr = uintptr(unsafe.Pointer(&s.bytes[offset]))
	}
	return Transport{
		Kind:   TransportAddr,
		Addr:   addr,
		Length: length,
	}
}

type errShortBuffer struct{ want, have int64 }

func (e errShortBuffer) Error() string {
	return "object: buffer too short for read"
}
