// Command minesd serves provably fair Mines rounds over HTTP and ships the
// offline tools that go with it: seed verification and math-book
// generation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "minesd",
		Short:         "Provably fair Mines game server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MINES_CONFIG"), "path to a TOML config file")

	root.AddCommand(
		serveCmd(&configPath),
		verifyCmd(&configPath),
		booksCmd(),
		versionCmd(),
	)
	return root
}
