package main

import (
	"debug/elf"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elfload/elfload"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"

	"github.com/elfload/elfload/internal/ui/colorize"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <object>",
		Short: "Show ELF header, program header, and dynamic-section summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(path string) error {
	src, err := object.Open(path)
	if err != nil {
		return err
	}
	mm := mmap.NewUnix()
	unrel, err := elfload.Load(src, mm, false)
	if err != nil {
		return err
	}

	fmt.Printf("%s  entry=%s  base=%s\n",
		colorize.FuncName(unrel.Name),
		colorize.Address(uint64(unrel.Entry)),
		colorize.Address(uint64(unrel.Segments.Base)))

	fmt.Println(colorize.Header("program headers:"))
	for _, p := range unrel.Phdrs {
		fmt.Printf("  %-14s off=%#08x vaddr=%s filesz=%#06x memsz=%#06x flags=%s\n",
			p.Type, p.Off, colorize.Address(p.Vaddr), p.Filesz, p.Memsz, progFlagsString(p.Flags))
	}

	fmt.Println(colorize.Header("dynamic:"))
	fmt.Printf("  needed: %v\n", unrel.NeededNames)
	fmt.Printf("  rela: addr=%s count=%d\n", colorize.Address(uint64(unrel.Dynamic.RelaAddr)), unrel.Dynamic.RelaCount)
	fmt.Printf("  pltrel: addr=%s count=%d\n", colorize.Address(uint64(unrel.Dynamic.PltRelAddr)), unrel.Dynamic.PltRelCount)
	if unrel.TLS.ModuleID != 0 {
		fmt.Printf("  tls: moduleID=%d memsz=%#x\n", unrel.TLS.ModuleID, unrel.TLS.MemLen)
	}
	return nil
}

func progFlagsString(f elf.ProgFlag) string {
	s := []byte("---")
	if f&elf.PF_R != 0 {
		s[0] = 'R'
	}
	if f&elf.PF_W != 0 {
		s[1] = 'W'
	}
	if f&elf.PF_X != 0 {
		s[2] = 'X'
	}
	return string(s)
}
