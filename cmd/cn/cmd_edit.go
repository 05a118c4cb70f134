package main

import (
	"github.com/spf13/cobra"

	"github.com/eldakms/CNTK/mel"
)

var editCmd = &cobra.Command{
	Use:   "edit <script.mel>",
	Short: "run a model editing script",
	Long: `edit executes an editing script: LoadModel, CopyNode, SetNodeInput,
SetProperty, RemoveNode, SaveModel, and the rest of the editing commands.
Command names are case-insensitive and may be abbreviated down to half
their length.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		interp := mel.NewInterpreter()
		if cfg.MacroDepthLimit > 0 {
			interp.Registry().SetMacroDepthLimit(cfg.MacroDepthLimit)
		}
		return interp.RunFile(args[0])
	},
}
