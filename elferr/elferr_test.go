package elferr

import (
	"errors"
	"testing"
)

func TestIOErrorUnwraps(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewIOError(cause)
	if err.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), cause.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through IOError to its cause")
	}
}

func TestFindSymbolErrorMessage(t *testing.T) {
	err := NewFindSymbolError("memcpy")
	want := "can not find symbol: memcpy"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFormattedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"mmap", NewMmapError("reserve %d bytes: %v", 4096, errors.New("ENOMEM")), "reserve 4096 bytes: ENOMEM"},
		{"relocate", NewRelocateError("%s: unresolved symbols: %v", "libfoo.so", []string{"bar"}), "libfoo.so: unresolved symbols: [bar]"},
		{"dynamic", NewParseDynamicError("dynamic section does not have DT_SYMTAB"), "dynamic section does not have DT_SYMTAB"},
		{"ehdr", NewParseEhdrError("bad magic: %x", 0), "bad magic: 0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.err.Error() != c.want {
				t.Errorf("Error() = %q, want %q", c.err.Error(), c.want)
			}
		})
	}
}
