package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eldakms/CNTK/engine"
	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

var (
	flagBuildOutput string
	flagBuildJSON   string
)

var buildCmd = &cobra.Command{
	Use:   "build <script.ndl>",
	Short: "build a model from a network description script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := ndl.NewRegistry[*network.Node]()
		if cfg.MacroDepthLimit > 0 {
			reg.SetMacroDepthLimit(cfg.MacroDepthLimit)
		}
		b := engine.NewBinding(reg)
		b.Script.SetDelimiter(cfg.delimiterByte(ndl.DefaultDelimiter))
		if err := b.LoadFile(args[0]); err != nil {
			return err
		}
		if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
			return err
		}
		if flagBuildJSON != "" {
			data, err := json.MarshalIndent(b.Net, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(flagBuildJSON, data, 0644); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
		}
		if flagBuildOutput != "" {
			if err := b.Net.SaveToFile(flagBuildOutput); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Model with %d nodes written to %s\n",
				b.Net.NumNodes(), flagBuildOutput)
			return nil
		}
		return b.Net.Dump(os.Stdout, network.DumpOptions{})
	},
}

func init() {
	buildCmd.Flags().StringVarP(&flagBuildOutput, "output", "o", "",
		"model file to write (default: dump to stdout)")
	buildCmd.Flags().StringVar(&flagBuildJSON, "json", "",
		"also write the network structure as JSON")
}
