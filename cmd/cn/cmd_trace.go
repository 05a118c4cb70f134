package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eldakms/CNTK/engine"
	"github.com/eldakms/CNTK/ndl"
)

var traceCmd = &cobra.Command{
	Use:   "trace <script.ndl>",
	Short: "print what a description script expands to, without building",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read script %s: %w", args[0], err)
		}
		reg := ndl.NewRegistry[string]()
		if cfg.MacroDepthLimit > 0 {
			reg.SetMacroDepthLimit(cfg.MacroDepthLimit)
		}
		script := ndl.NewScript(reg)
		script.SetDelimiter(cfg.delimiterByte(ndl.DefaultDelimiter))
		if err := script.FileParse(string(text)); err != nil {
			return err
		}
		tracer := &engine.Tracer{Out: os.Stdout}
		_, err = script.Evaluate(tracer, "", ndl.PassInitial, nil)
		return err
	},
}
