// string.go stubs the libc string/memory primitives loaded code calls
// directly (as opposed to through the dynamic linker's own IFUNCs).
// Adapted from an ARM64-Android emulator's libc string stubs, swapping
// its fixed X/SetX/MemRead accessors for stub.CPU's arch-neutral
// Arg/SetReturn/ReadBytes.
package libc

import "github.com/elfload/elfload/stub"

const maxCStr = 4096

// RegisterString installs the string.h and mem*-family stubs. strdup
// and strndup allocate out of a, the same bump allocator the
// malloc-family stubs in memory.go use.
func RegisterString(a *arena) {
	stub.Register(stub.Def{Name: "strlen", Category: "libc", Hook: func(cpu stub.CPU) {
		s := cpu.ReadString(cpu.Arg(0), maxCStr)
		cpu.SetReturn(uint64(len(s)))
	}})
	stub.Register(stub.Def{Name: "memcpy", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src, n := cpu.Arg(0), cpu.Arg(1), cpu.Arg(2)
		if n > 0 && n < 0x100000 {
			if data, err := cpu.ReadBytes(src, n); err == nil {
				_ = cpu.WriteBytes(dest, data)
			}
		}
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "memmove", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src, n := cpu.Arg(0), cpu.Arg(1), cpu.Arg(2)
		if n > 0 && n < 0x100000 {
			if data, err := cpu.ReadBytes(src, n); err == nil {
				_ = cpu.WriteBytes(dest, data)
			}
		}
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "memset", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, c, n := cpu.Arg(0), byte(cpu.Arg(1)&0xFF), cpu.Arg(2)
		if n > 0 && n < 0x100000 {
			data := make([]byte, n)
			for i := range data {
				data[i] = c
			}
			_ = cpu.WriteBytes(dest, data)
		}
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "memcmp", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(memcmpResult(cpu, cpu.Arg(0), cpu.Arg(1), cpu.Arg(2)))
	}})
	stub.Register(stub.Def{Name: "strcmp", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(strCompare(cpu.ReadString(cpu.Arg(0), 256), cpu.ReadString(cpu.Arg(1), 256)))
	}})
	stub.Register(stub.Def{Name: "strncmp", Category: "libc", Hook: func(cpu stub.CPU) {
		n := int(cpu.Arg(2))
		s1, s2 := truncate(cpu.ReadString(cpu.Arg(0), n), n), truncate(cpu.ReadString(cpu.Arg(1), n), n)
		cpu.SetReturn(strCompare(s1, s2))
	}})
	stub.Register(stub.Def{Name: "strcpy", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src := cpu.Arg(0), cpu.Arg(1)
		_ = cpu.WriteString(dest, cpu.ReadString(src, maxCStr))
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "strncpy", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src, n := cpu.Arg(0), cpu.Arg(1), cpu.Arg(2)
		str := truncate(cpu.ReadString(src, int(n)), int(n))
		if uint64(len(str)) < n {
			data := make([]byte, n)
			copy(data, str)
			_ = cpu.WriteBytes(dest, data)
		} else {
			_ = cpu.WriteBytes(dest, []byte(str))
		}
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "strcat", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src := cpu.Arg(0), cpu.Arg(1)
		_ = cpu.WriteString(dest, cpu.ReadString(dest, maxCStr)+cpu.ReadString(src, maxCStr))
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "strncat", Category: "libc", Hook: func(cpu stub.CPU) {
		dest, src, n := cpu.Arg(0), cpu.Arg(1), int(cpu.Arg(2))
		_ = cpu.WriteString(dest, cpu.ReadString(dest, maxCStr)+truncate(cpu.ReadString(src, n), n))
		cpu.SetReturn(dest)
	}})
	stub.Register(stub.Def{Name: "strchr", Category: "libc", Hook: func(cpu stub.CPU) {
		addr, c := cpu.Arg(0), byte(cpu.Arg(1)&0xFF)
		str := cpu.ReadString(addr, maxCStr)
		for i := 0; i < len(str); i++ {
			if str[i] == c {
				cpu.SetReturn(addr + uint64(i))
				return
			}
		}
		if c == 0 {
			cpu.SetReturn(addr + uint64(len(str)))
			return
		}
		cpu.SetReturn(0)
	}})
	stub.Register(stub.Def{Name: "strrchr", Category: "libc", Hook: func(cpu stub.CPU) {
		addr, c := cpu.Arg(0), byte(cpu.Arg(1)&0xFF)
		str := cpu.ReadString(addr, maxCStr)
		last := -1
		for i := 0; i < len(str); i++ {
			if str[i] == c {
				last = i
			}
		}
		if c == 0 {
			last = len(str)
		}
		if last >= 0 {
			cpu.SetReturn(addr + uint64(last))
		} else {
			cpu.SetReturn(0)
		}
	}})
	stub.Register(stub.Def{Name: "strstr", Category: "libc", Hook: func(cpu stub.CPU) {
		haystackAddr := cpu.Arg(0)
		haystack := cpu.ReadString(haystackAddr, maxCStr)
		needle := cpu.ReadString(cpu.Arg(1), 256)
		if len(needle) == 0 {
			cpu.SetReturn(haystackAddr)
			return
		}
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				cpu.SetReturn(haystackAddr + uint64(i))
				return
			}
		}
		cpu.SetReturn(0)
	}})
	stub.Register(stub.Def{Name: "strdup", Category: "libc", Hook: func(cpu stub.CPU) {
		cpu.SetReturn(uint64(dupString(cpu, a, cpu.ReadString(cpu.Arg(0), maxCStr))))
	}})
	stub.Register(stub.Def{Name: "strndup", Category: "libc", Hook: func(cpu stub.CPU) {
		n := int(cpu.Arg(1))
		cpu.SetReturn(uint64(dupString(cpu, a, truncate(cpu.ReadString(cpu.Arg(0), n), n))))
	}})
}

func dupString(cpu stub.CPU, a *arena, s string) uintptr {
	size := uint64(len(s) + 1)
	size = (size + 15) &^ 15
	ptr := a.alloc(size)
	if ptr != 0 {
		_ = cpu.WriteString(uint64(ptr), s)
	}
	return ptr
}

func memcmpResult(cpu stub.CPU, a, b, n uint64) uint64 {
	if n == 0 || n >= 0x100000 {
		return 0
	}
	s1, err1 := cpu.ReadBytes(a, n)
	s2, err2 := cpu.ReadBytes(b, n)
	if err1 != nil || err2 != nil {
		return 0
	}
	for i := uint64(0); i < n; i++ {
		if s1[i] < s2[i] {
			return 0xffffffffffffffff
		} else if s1[i] > s2[i] {
			return 1
		}
	}
	return 0
}

func strCompare(a, b string) uint64 {
	switch {
	case a < b:
		return 0xffffffffffffffff
	case a > b:
		return 1
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
