package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/elfload/elfload"
	"github.com/elfload/elfload/image"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"
	"github.com/elfload/elfload/reloc"
	"github.com/elfload/elfload/stub"
	"github.com/elfload/elfload/stub/libc"
	"github.com/elfload/elfload/stub/pthread"
	"github.com/elfload/elfload/stub/script"

	"github.com/elfload/elfload/cmd/loaderctl/tui"
)

var relocLazy bool

func newRelocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reloc <object>",
		Short: "Relocate an object against its configured dependencies, watching convergence live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReloc(args[0])
		},
	}
	cmd.Flags().BoolVar(&relocLazy, "lazy", false, "bind PLT entries lazily: skip .rela.plt and GNU_RELRO")
	return cmd
}

func runReloc(path string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The stub fallback needs a live CPU to intercept calls at: it only
	// works against the Unicorn-sandboxed backend, since a real hardware
	// jump into Go code has no portable calling convention (see package
	// stub). Every other fallback (none, script) runs fine against the
	// OS backend.
	var mm mmap.Mmapper
	var cpu uc.Unicorn
	if cfg.Fallback == "stub" {
		sandbox, err := mmap.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
		if err != nil {
			return err
		}
		defer sandbox.Close()
		mm = sandbox
		cpu = sandbox.Engine()
	} else {
		mm = mmap.NewUnix()
	}

	deps, err := loadDeps(mm, cfg.Deps)
	if err != nil {
		return err
	}

	fallback, err := buildFallback(cfg, cpu)
	if err != nil {
		return err
	}

	src, err := object.Open(path)
	if err != nil {
		return err
	}
	unrel, err := elfload.Load(src, mm, relocLazy)
	if err != nil {
		return err
	}

	unrel.Relocate(deps, fallback)
	total := len(unrel.Engine.DynRel.Relas)
	if unrel.Engine.PltRel != nil {
		total += len(unrel.Engine.PltRel.Relas)
	}

	model := tui.New(unrel.Name, unrel.Engine, total)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return err
	}

	if !unrel.IsFinished() {
		return reloc.ErrUnresolved(unrel.Name, unrel.Engine.Unresolved())
	}
	rel, err := unrel.Finish()
	if err != nil {
		return err
	}
	fmt.Printf("relocated %s at base %#x, entry %#x\n", rel.Name(), rel.Base(), rel.Entry())
	return nil
}

func loadDeps(mm mmap.Mmapper, paths []string) ([]*image.Relocated, error) {
	rels := make([]*image.Relocated, 0, len(paths))
	for _, p := range paths {
		src, err := object.Open(p)
		if err != nil {
			return nil, err
		}
		unrel, err := elfload.Load(src, mm, false)
		if err != nil {
			return nil, err
		}
		unrel.Relocate(rels, nil)
		rel, err := unrel.Finish()
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// buildFallback turns the config's chosen strategy into a
// reloc.FallbackResolver. cpu is only used by "stub", and only valid
// when the caller built its Mmapper as a *mmap.Unicorn.
func buildFallback(cfg Config, cpu uc.Unicorn) (reloc.FallbackResolver, error) {
	switch cfg.Fallback {
	case "":
		return nil, nil
	case "stub":
		arena := libc.NewArena(0x00007f0000000000, 16<<20)
		libc.Register(arena)
		libc.RegisterString(arena)
		pthread.Register()
		const slotBase = 0x00008f0000000000
		return func(name string) (uintptr, bool) {
			addrs, err := stub.DefaultRegistry.Install(cpu, stub.ArchAMD64, slotBase, []string{name})
			if err != nil {
				return 0, false
			}
			addr, ok := addrs[name]
			return addr, ok
		}, nil
	case "script":
		src, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, err
		}
		r, err := script.New(string(src))
		if err != nil {
			return nil, err
		}
		return r.Resolve, nil
	default:
		return nil, fmt.Errorf("loaderctl: unknown fallback %q", cfg.Fallback)
	}
}
