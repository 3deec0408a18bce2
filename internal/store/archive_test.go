package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starzy87/stake-mines-backend/internal/games"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

func testRecord(id, player string, finished time.Time) session.Record {
	return session.Record{
		ID:             id,
		PlayerID:       player,
		Mode:           "boost10",
		Source:         session.SourceLive,
		Status:         session.StatusWon,
		Amount:         100,
		Stake:          1000,
		Payout:         1095,
		Multiplier:     109500,
		MineCount:      3,
		Mines:          []int{9, 18, 19},
		Bonus:          map[int]games.Bonus{12: {Type: "GOLD_GEM", Multiplier: 15000}},
		Revealed:       []int{0},
		ServerSeed:     "seed",
		ServerSeedHash: "hash",
		ClientSeed:     "client",
		Nonce:          7,
		CreatedAt:      finished.Add(-time.Minute),
		FinishedAt:     finished,
	}
}

func TestArchiveRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	a, err := OpenArchive(ctx, "")
	require.NoError(t, err)
	defer a.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "alice", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, a.Record(ctx, rec))
	}
	require.NoError(t, a.Record(ctx, testRecord("other", "bob", base)))
	require.NoError(t, a.Record(ctx, testRecord("r0", "alice", base)), "duplicate is ignored")

	got, err := a.History(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	want := testRecord("r4", "alice", base.Add(4*time.Second))
	assert.Equal(t, want.Mines, got[0].Mines)
	assert.Equal(t, want.Bonus, got[0].Bonus)
	assert.Equal(t, want.Revealed, got[0].Revealed)
	assert.Equal(t, want.Nonce, got[0].Nonce)
	assert.Equal(t, session.StatusWon, got[0].Status)
	assert.True(t, want.FinishedAt.Equal(got[0].FinishedAt))

	all, err := a.History(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := a.History(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestArchiveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rounds.db")

	a, err := OpenArchive(ctx, path)
	require.NoError(t, err)
	require.NoError(t, a.Record(ctx, testRecord("r1", "alice", time.Now().UTC())))
	require.NoError(t, a.Close())

	a, err = OpenArchive(ctx, path)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Ping(ctx))

	got, err := a.History(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
