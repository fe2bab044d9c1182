// Command loaderctl inspects and drives the ELF loader library: it
// dumps an object's header/dynamic summary, runs the relocation engine
// against a supplied dependency set, disassembles bytes at a symbol,
// and attaches a goja-scripted fallback resolver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	glog "github.com/elfload/elfload/internal/log"
)

var (
	verbose    bool
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loaderctl",
		Short: "Inspect and drive the ELF loader",
		Long: `loaderctl loads ELF shared objects and executables through the elfload
library without the host dynamic linker's help, and exposes what it sees:
header and dynamic-section summaries, live relocation convergence, and
disassembly at a resolved symbol.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			glog.Init(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config (dependency search list, fallback options)")

	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newRelocCmd())
	rootCmd.AddCommand(newDisasmCmd())
	rootCmd.AddCommand(newScriptCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
