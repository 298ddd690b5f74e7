package cli

import (
	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <sample-hex>...",
	Short: "Evaluate encoded samples (newest first) and print the alert payload",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EvaluateEncoded(cmd.OutOrStdout(), args)
	},
}
