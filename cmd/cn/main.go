// Command cn builds, edits, and inspects computation network models from
// description and editing scripts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "cn",
	Short: "computation network scripting tool",
	Long: `cn builds computation network models from network description scripts,
edits them with model editing scripts, and dumps them for inspection.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"YAML config file (delimiter, macro depth limit)")
	rootCmd.AddCommand(buildCmd, editCmd, dumpCmd, traceCmd)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
