package main

import (
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/phantomfill/internal/adapters/notify"
	"github.com/alejandrodnm/phantomfill/internal/strategy"
)

//nolint:gochecknoglobals // Cobra boilerplate
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the native strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		notify.NewConsoleWriter(cmd.OutOrStdout()).Strategies(strategy.Default().List())
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(strategiesCmd)
}
