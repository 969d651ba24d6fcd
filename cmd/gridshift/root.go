package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gridshift",
		Short: "Carbon and cost aware scheduler for deferrable compute jobs",
		Long: `gridshift assigns deferrable compute jobs to the cheapest, cleanest
(region, start-hour) windows over the forecast horizon, executes the
resulting schedule against a flexibility market counterparty, and keeps a
tamper-evident trail of every decision.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to a config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

func loadConfigFromFlags(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("config")
}
