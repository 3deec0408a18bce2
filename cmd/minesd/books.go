package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Starzy87/stake-mines-backend/internal/books"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

func booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Math-book tools",
	}
	cmd.AddCommand(booksGenerateCmd())
	return cmd
}

func booksGenerateCmd() *cobra.Command {
	var (
		dir       string
		cost      string
		houseEdge string
		opts      books.GenerateOptions
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Simulate rounds and publish a book mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := decimal.NewFromString(cost)
			if err != nil {
				return fmt.Errorf("cost %q: %w", cost, err)
			}
			opts.Cost = c
			if houseEdge != "" {
				if opts.HouseEdge, err = decimal.NewFromString(houseEdge); err != nil {
					return fmt.Errorf("house edge %q: %w", houseEdge, err)
				}
			}

			index, err := books.Generate(dir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d books for mode %s to %s (%d modes in index)\n",
				opts.Count, opts.Mode, dir, len(index.Modes))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", "books", "publish directory")
	f.StringVar(&opts.Mode, "mode", "base", "mode name")
	f.StringVar(&cost, "cost", "1", "stake multiple of the mode")
	f.IntVar(&opts.Mines, "mines", 3, "mine count")
	f.IntVar(&opts.Count, "count", 10000, "number of books")
	f.IntVar(&opts.Picks, "picks", 3, "safe tiles the simulated player aims for")
	f.StringVar(&opts.Seeds.Server, "server-seed", "", "server seed of the simulation")
	f.StringVar(&opts.Seeds.Client, "client-seed", "books", "client seed of the simulation")
	f.StringVar(&houseEdge, "house-edge", games.DefaultHouseEdge.String(), "ladder house edge")
	_ = cmd.MarkFlagRequired("server-seed")
	return cmd
}
