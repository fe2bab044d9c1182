// Command bootstrap is the library's self-relocating exemplar. It reads
// its own auxiliary vector, replays its own RELATIVE relocations as a
// self-check, loads a target executable (and its PT_INTERP if present)
// through elfload.Load, builds a fresh SysV initial stack for it, and
// performs a one-way control transfer via a per-arch assembly
// trampoline.
//
// Go cannot express a freestanding pre-runtime-init entry point the way
// original_source's #![no_std] mini-loader does: cmd/link always
// installs its own runtime bootstrap before any user code runs, so
// there is no pre-relocation, no-heap state for this program to
// occupy. This is an ordinary Go main() that demonstrates the same
// ideas post-hoc instead of pretending to be a freestanding entry
// point.
package main

import (
	"debug/elf"
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/elfload/elfload"
	"github.com/elfload/elfload/image"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"

	glog "github.com/elfload/elfload/internal/log"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bootstrap <target-elf> [args...]")
		os.Exit(2)
	}
	glog.Init(os.Getenv("BOOTSTRAP_DEBUG") != "")

	mm := mmap.NewUnix()

	if err := selfCheck(mm); err != nil {
		glog.L.Warn("self-check", zap.Error(err))
	} else {
		glog.L.Info("self-check: RELATIVE entries consistent with runtime state")
	}

	target, err := loadChain(mm, os.Args[1])
	if err != nil {
		fatal(err)
	}

	entryAuxv, err := targetAuxv(target)
	if err != nil {
		fatal(err)
	}

	argv := os.Args[1:]
	sp, err := buildStack(mm, argv, currentEnviron(), entryAuxv)
	if err != nil {
		fatal(err)
	}

	glog.L.Info("transferring control", glog.Addr(uint64(target.top.Entry())))
	runtime.LockOSThread()
	jumpTo(target.top.Entry(), sp)
	panic("bootstrap: jumpTo returned")
}

type loaded struct {
	top    *image.Relocated
	interp *image.Relocated
}

// loadChain opens path, loads it via elfload.Load, loads its PT_INTERP
// if present, and relocates both. A real process would resolve every
// DT_NEEDED entry against a search path; this exemplar only goes one
// level deep: the target and its interpreter.
func loadChain(mm mmap.Mmapper, path string) (*loaded, error) {
	src, err := object.Open(path)
	if err != nil {
		return nil, err
	}

	unrel, err := elfload.Load(src, mm, false)
	if err != nil {
		return nil, err
	}

	var interpRel *image.Relocated
	if interpPath, ok := findInterp(unrel.Phdrs, src); ok {
		interpSrc, err := object.Open(interpPath)
		if err != nil {
			return nil, err
		}
		interpUnrel, err := elfload.Load(interpSrc, mm, false)
		if err != nil {
			return nil, err
		}
		interpUnrel.Relocate(nil, nil)
		interpRel, err = interpUnrel.Finish()
		if err != nil {
			return nil, err
		}
	}

	var deps []*image.Relocated
	if interpRel != nil {
		deps = []*image.Relocated{interpRel}
	}
	unrel.Relocate(deps, nil)
	rel, err := unrel.Finish()
	if err != nil {
		return nil, err
	}
	return &loaded{top: rel, interp: interpRel}, nil
}

func findInterp(phdrs []elf.ProgHeader, src object.Source) (string, bool) {
	for _, p := range phdrs {
		if p.Type != elf.PT_INTERP {
			continue
		}
		buf := make([]byte, p.Filesz)
		if err := src.ReadAt(buf, int64(p.Off)); err != nil {
			return "", false
		}
		s := string(buf)
		for i, c := range s {
			if c == 0 {
				s = s[:i]
				break
			}
		}
		return s, s != ""
	}
	return "", false
}

// targetAuxv copies bootstrap's own auxiliary vector and rewrites
// AT_ENTRY to the target's entry point and AT_BASE to the interpreter's
// load base (0 when there is no interpreter). AT_PHDR, AT_PHNUM,
// AT_PHENT and AT_EXECFN are not rewritten: they still describe
// bootstrap itself.
func targetAuxv(l *loaded) (auxv, error) {
	av, err := readOwnAuxv()
	if err != nil {
		return nil, err
	}
	out := make(auxv, len(av))
	for k, v := range av {
		out[k] = v
	}
	out[atEntry] = uint64(l.top.Entry())
	if l.interp != nil {
		out[atBase] = uint64(l.interp.Base())
	} else {
		out[atBase] = 0
	}
	return out, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "bootstrap:", err)
	os.Exit(1)
}
