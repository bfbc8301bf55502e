package cli

import (
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Update a runtime setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Set(args[0], args[1])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [name]",
	Short: "Print one runtime setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return getApp().Get(name)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset usage statistics from this moment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Reset()
	},
}
