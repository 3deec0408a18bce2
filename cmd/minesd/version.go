package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Starzy87/stake-mines-backend/internal/api"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), api.GetVersionInfo().String())
		},
	}
}
