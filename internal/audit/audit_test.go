package audit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starzy87/stake-mines-backend/internal/session"
)

func TestLogEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Round(session.Record{ID: "r1", PlayerID: "alice", Status: session.StatusLost, ServerSeed: "abc", Nonce: 3})
	l.Integrity("bob", "session.Open", errors.New("payout mismatch"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"event":"round"`)
	assert.Contains(t, lines[0], `"id":"r1"`)
	assert.Contains(t, lines[0], `"server_seed":"abc"`)
	assert.Contains(t, lines[1], `"event":"integrity"`)
	assert.Contains(t, lines[1], `"op":"session.Open"`)
	assert.NoError(t, l.Close())
}

func TestOpenRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := Open(Options{Path: path, MaxSizeMB: 1})
	l.Round(session.Record{ID: "r2"})
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"r2"`)
}
