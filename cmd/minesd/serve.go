package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Starzy87/stake-mines-backend/internal/api"
	"github.com/Starzy87/stake-mines-backend/internal/audit"
	"github.com/Starzy87/stake-mines-backend/internal/books"
	"github.com/Starzy87/stake-mines-backend/internal/config"
	"github.com/Starzy87/stake-mines-backend/internal/session"
	"github.com/Starzy87/stake-mines-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// modesFrom builds the playable modes from cfg, loading book modes when
// a publish directory is configured.
func modesFrom(cfg *config.Config) (*session.Modes, error) {
	var lib *books.Library
	if cfg.Books.PublishDir != "" {
		var err error
		if lib, err = books.Load(cfg.Books.PublishDir); err != nil {
			return nil, fmt.Errorf("load books: %w", err)
		}
	}

	live := make([]session.LiveMode, 0, len(cfg.Modes))
	for _, m := range cfg.Modes {
		cost, err := decimal.NewFromString(m.Cost)
		if err != nil {
			return nil, fmt.Errorf("mode %s: cost %q: %w", m.Name, m.Cost, err)
		}
		live = append(live, session.LiveMode{Name: m.Name, Cost: cost, Bonus: m.Bonus})
	}
	return session.NewModes(live, lib)
}

func gameConfig(cfg *config.Config) (session.Config, error) {
	edge, err := cfg.HouseEdge()
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		HouseEdge:         edge,
		MaxPayoutMultiple: cfg.Game.MaxPayoutMultiple,
		InitialBalance:    cfg.Game.InitialBalance,
		MinBet:            cfg.Game.MinBet,
		MaxBet:            cfg.Game.MaxBet,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.New(os.Stdout, "[minesd] ", log.LstdFlags|log.Lshortfile)
	registry := metrics.NewRegistry()
	checks := make(map[string]api.Check)

	var players session.Store
	switch cfg.Store.Driver {
	case "redis":
		rs, err := store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err != nil {
			return err
		}
		defer rs.Close()
		checks["store"] = rs.Ping
		players = rs
	default:
		players = store.NewMemory()
	}

	archive, err := store.OpenArchive(ctx, cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer archive.Close()
	checks["archive"] = archive.Ping

	opts := []session.Option{
		session.WithArchive(archive),
		session.WithLogger(logger),
		session.WithRegistry(registry),
	}
	if cfg.Audit.Path != "" {
		auditLog := audit.Open(audit.Options{
			Path:       cfg.Audit.Path,
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
			Compress:   cfg.Audit.Compress,
		})
		defer auditLog.Close()
		opts = append(opts, session.WithAuditor(auditLog))
	}

	modes, err := modesFrom(cfg)
	if err != nil {
		return err
	}
	gcfg, err := gameConfig(cfg)
	if err != nil {
		return err
	}
	svc, err := session.NewService(players, modes, gcfg, opts...)
	if err != nil {
		return err
	}

	server := api.NewServer(svc, api.Options{
		Logger:         log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile),
		Registry:       registry,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		StaticDir:      cfg.Server.StaticDir,
		Checks:         checks,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	logger.Printf("listening addr=%s store=%s modes=%d", ln.Addr(), cfg.Store.Driver, len(modes.List()))

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
