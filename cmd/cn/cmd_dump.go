package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/eldakms/CNTK/network"
)

var flagDumpData bool

var dumpCmd = &cobra.Command{
	Use:   "dump <model file>",
	Short: "print a saved model in readable form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		net, err := network.LoadFromFile(args[0])
		if err != nil {
			return err
		}
		return net.Dump(os.Stdout, network.DumpOptions{IncludeData: flagDumpData})
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&flagDumpData, "data", false, "include value matrices")
}
