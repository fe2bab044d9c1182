package object

import (
	"os"

	"github.com/elfload/elfload/elferr"
)

// File is a Source backed by an *os.File, mirroring
// original_source/src/object.rs's ElfFile: reads seek-then-read_exact,
// transport hands the caller the raw fd so it can be mmap'd directly.
type File struct {
	name string
	f    *os.File
}

// NewFile wraps an already-open file. The caller retains ownership and
// must Close it once every image derived from it has been unmapped.
func NewFile(name string, f *os.File) *File {
	return &File{name: name, f: f}
}

// Open opens path and wraps it as a Source.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, elferr.NewIOError(err)
	}
	return NewFile(path, f), nil
}

func (s *File) Name() string { return s.name }

func (s *File) ReadAt(buf []byte, offset int64) error {
	n, err := s.f.ReadAt(buf, offset)
	if err != nil {
		return elferr.NewIOError(err)
	}
	if n != len(buf) {
		return elferr.NewIOError(os.ErrClosed)
	}
	return nil
}

func (s *File) Transport(offset int64, length uintptr) Transport {
	return Transport{
		Kind:       TransportFile,
		FD:         int(s.f.Fd()),
		FileOffset: offset,
		Length:     length,
	}
}

// Close releases the underlying file descriptor.
func (s *File) Close() error { return s.f.Close() }
