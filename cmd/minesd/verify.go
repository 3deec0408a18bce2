package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Starzy87/stake-mines-backend/internal/config"
	"github.com/Starzy87/stake-mines-backend/internal/session"
	"github.com/Starzy87/stake-mines-backend/internal/store"
)

func verifyCmd(configPath *string) *cobra.Command {
	var req session.VerifyRequest

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the board of a disclosed round",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			modes, err := modesFrom(cfg)
			if err != nil {
				return err
			}
			gcfg, err := gameConfig(cfg)
			if err != nil {
				return err
			}
			svc, err := session.NewService(store.NewMemory(), modes, gcfg)
			if err != nil {
				return err
			}

			v, err := svc.Verify(req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.ServerSeed, "server-seed", "", "revealed server seed")
	f.StringVar(&req.ClientSeed, "client-seed", "", "client seed of the round")
	f.Uint64Var(&req.Nonce, "nonce", 0, "nonce of the round")
	f.IntVar(&req.Mines, "mines", 3, "mine count")
	f.StringVar(&req.Mode, "mode", "", "mode name; empty replays a plain live board")
	_ = cmd.MarkFlagRequired("server-seed")
	_ = cmd.MarkFlagRequired("client-seed")
	return cmd
}
