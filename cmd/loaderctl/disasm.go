package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/elfload/elfload"
	"github.com/elfload/elfload/mmap"
	"github.com/elfload/elfload/object"

	"github.com/elfload/elfload/internal/ui/colorize"
)

var disasmCount int

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <object> <symbol>",
		Short: "Decode aarch64 instructions at a resolved symbol",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(args[0], args[1])
		},
	}
	cmd.Flags().IntVarP(&disasmCount, "num", "n", 20, "instructions to decode")
	return cmd
}

func runDisasm(path, symName string) error {
	src, err := object.Open(path)
	if err != nil {
		return err
	}
	mm := mmap.NewUnix()
	unrel, err := elfload.Load(src, mm, false)
	if err != nil {
		return err
	}

	sym, ok, err := unrel.Symbols.Lookup(symName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("loaderctl: symbol %q not found", symName)
	}
	addr := unrel.Segments.Base + uintptr(sym.Value)

	const maxInsnLen = 4
	off := uintptr(0)
	for i := 0; i < disasmCount; i++ {
		code, err := mm.ReadAt(addr+off, maxInsnLen)
		if err != nil {
			return err
		}
		inst, err := arm64asm.Decode(code)
		if err != nil {
			fmt.Printf("%s  %s\n", colorize.Address(uint64(addr+off)), colorize.Error(err.Error()))
			off += maxInsnLen
			continue
		}
		fmt.Printf("%s  %s\n", colorize.Address(uint64(addr+off)), colorize.Instruction(inst.String()))
		off += maxInsnLen
	}
	return nil
}
