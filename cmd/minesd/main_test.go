package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starzy87/stake-mines-backend/internal/books"
	"github.com/Starzy87/stake-mines-backend/internal/config"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "minesd "), out)
}

func TestVerifyCommand(t *testing.T) {
	out, err := run(t, "verify",
		"--config", "",
		"--server-seed", strings.Repeat("0", 64),
		"--client-seed", "client",
		"--nonce", "1",
		"--mines", "3",
	)
	require.NoError(t, err)

	var v session.Verification
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, []int{5, 6, 19}, v.Mines)
	assert.Empty(t, v.Bonus)
}

func TestVerifyCommandRequiresSeeds(t *testing.T) {
	_, err := run(t, "verify", "--config", "", "--nonce", "1")
	assert.Error(t, err)
}

func TestBooksGenerateCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "published")

	out, err := run(t, "books", "generate",
		"--dir", dir,
		"--mode", "base",
		"--count", "50",
		"--server-seed", "test_server_seed",
		"--client-seed", "test_client_seed",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "published 50 books for mode base")

	lib, err := books.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, lib.Names())

	cfg := config.Default()
	cfg.Books.PublishDir = dir
	modes, err := modesFrom(cfg)
	require.NoError(t, err)
	mode, err := modes.Get("base")
	require.NoError(t, err)
	assert.Equal(t, session.SourceBook, mode.Source)
}

func TestModesFromRejectsBadCost(t *testing.T) {
	cfg := config.Default()
	cfg.Modes = []config.Mode{{Name: "odd", Cost: "ten"}}
	_, err := modesFrom(cfg)
	assert.Error(t, err)
}

func TestGameConfig(t *testing.T) {
	cfg := config.Default()
	gcfg, err := gameConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, session.DefaultConfig().MaxPayoutMultiple, gcfg.MaxPayoutMultiple)
	assert.True(t, gcfg.HouseEdge.Equal(session.DefaultConfig().HouseEdge))
}
