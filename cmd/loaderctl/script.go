package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elfload/elfload/stub/script"
)

func newScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <file.js>",
		Short: "Load a JS fallback-resolver script and probe symbol names against it",
		Long: `script compiles file.js with the same goja runtime the reloc subcommand's
"script" fallback uses, then reads symbol names from stdin (one per line) and
prints what the script resolves each one to, for iterating on a resolver
script without a full relocation run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(args[0])
		},
	}
}

func runScript(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := script.New(string(src))
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		name := scanner.Text()
		if name == "" {
			continue
		}
		addr, ok := r.Resolve(name)
		if !ok {
			fmt.Printf("%-40s  (declined)\n", name)
			continue
		}
		fmt.Printf("%-40s  %#x\n", name, addr)
	}
	return scanner.Err()
}
