package session_test

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rcrowley/go-metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starzy87/stake-mines-backend/internal/books"
	"github.com/Starzy87/stake-mines-backend/internal/engine"
	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
	"github.com/Starzy87/stake-mines-backend/internal/session"
	"github.com/Starzy87/stake-mines-backend/internal/store"
)

// zeroEntropy makes every generated server seed 64 zero characters.
type zeroEntropy struct{}

func (zeroEntropy) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

var zeroSeed = strings.Repeat("0", 64)

type recordingAuditor struct {
	mu        sync.Mutex
	rounds    []session.Record
	integrity []error
}

func (a *recordingAuditor) Round(rec session.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rounds = append(a.rounds, rec)
}

func (a *recordingAuditor) Integrity(_, _ string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.integrity = append(a.integrity, err)
}

type fixture struct {
	svc      *session.Service
	store    *store.Memory
	audit    *recordingAuditor
	registry metrics.Registry
	lib      *books.Library
}

func newFixture(t *testing.T, cfg session.Config) *fixture {
	t.Helper()

	dir := t.TempDir()
	_, err := books.Generate(dir, books.GenerateOptions{
		Mode:  "base",
		Mines: 3,
		Count: 200,
		Picks: 3,
		Seeds: games.Seeds{Server: "test_server_seed", Client: "test_client_seed"},
	})
	require.NoError(t, err)
	lib, err := books.Load(dir)
	require.NoError(t, err)

	modes, err := session.NewModes(session.DefaultLiveModes(), lib)
	require.NoError(t, err)

	archive, err := store.OpenArchive(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	f := &fixture{
		store:    store.NewMemory(),
		audit:    &recordingAuditor{},
		registry: metrics.NewRegistry(),
		lib:      lib,
	}
	f.svc, err = session.NewService(f.store, modes, cfg,
		session.WithEntropy(zeroEntropy{}),
		session.WithArchive(archive),
		session.WithAuditor(f.audit),
		session.WithRegistry(f.registry),
	)
	require.NoError(t, err)
	return f
}

func bet(amount int64, mode string) session.BetRequest {
	return session.BetRequest{Amount: amount, Mines: 3, ClientSeed: "client", Mode: mode}
}

func counter(r metrics.Registry, name string) int64 {
	return r.Get(name).(metrics.Counter).Count()
}

func TestOpenRevealBomb(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	res, err := f.svc.Open(ctx, "alice", bet(100, "normal"))
	require.NoError(t, err)
	assert.Equal(t, int64(100000-100), res.Balance)
	assert.Equal(t, uint64(1), res.Nonce)
	assert.Equal(t, fairness.Hash(zeroSeed), res.ServerSeedHash)
	assert.Equal(t, fairness.Hash(zeroSeed), res.NextHash)
	require.Len(t, res.Ladder, 22)
	assert.Equal(t, int64(10954), res.Ladder[0])

	// mines for nonce 1 are 5, 19 and 6
	safe, err := f.svc.Reveal(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, session.RevealSafe, safe.Status)
	assert.Equal(t, int64(109), safe.Payout)
	assert.Equal(t, int64(10900), safe.Multiplier)

	snap, err := f.svc.Snapshot(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, snap.Active)
	assert.Equal(t, []int{0}, snap.Active.Revealed)
	assert.Equal(t, int64(109), snap.Active.CurrentWin)

	_, err = f.svc.Reveal(ctx, "alice", 0)
	assert.True(t, fault.Is(err, fault.KindStateConflict))
	assert.ErrorIs(t, err, fault.ErrTileRevealed)

	snap, err = f.svc.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, snap.Active.Revealed, "double reveal leaves state unchanged")

	bomb, err := f.svc.Reveal(ctx, "alice", 19)
	require.NoError(t, err)
	assert.Equal(t, session.RevealBomb, bomb.Status)
	require.NotNil(t, bomb.Disclosure)
	assert.Equal(t, []int{5, 6, 19}, bomb.Disclosure.Mines)
	assert.Equal(t, zeroSeed, bomb.Disclosure.ServerSeed)
	assert.True(t, fairness.Verify(bomb.Disclosure.ServerSeed, res.ServerSeedHash))

	snap, err = f.svc.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, snap.Active)
	assert.Equal(t, int64(100000-100), snap.Balance)

	hist, err := f.svc.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, session.StatusLost, hist[0].Status)
	assert.Equal(t, zeroSeed, hist[0].ServerSeed)

	assert.Len(t, f.audit.rounds, 1)
	assert.Equal(t, int64(1), counter(f.registry, "mines.busts"))
}

func TestBonusModeCashout(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	res, err := f.svc.Open(ctx, "bob", bet(10, "boost10"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Stake)

	// gold gems for nonce 1: tile 3 is 5x, tile 2 is 3x
	r1, err := f.svc.Reveal(ctx, "bob", 3)
	require.NoError(t, err)
	require.NotNil(t, r1.Bonus)
	assert.Equal(t, "GOLD_GEM", r1.Bonus.Type)
	assert.Equal(t, int64(547), r1.Payout)
	assert.Equal(t, int64(547000), r1.Multiplier)

	r2, err := f.svc.Reveal(ctx, "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(375), r2.Payout)

	out, err := f.svc.Cashout(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(375), out.WinAmount)
	assert.Equal(t, int64(375000), out.FinalMultiplier)
	assert.Equal(t, int64(100000-100+375), out.Balance)
	assert.Equal(t, map[int]games.Bonus{
		3:  {Type: "GOLD_GEM", Multiplier: 50000},
		2:  {Type: "GOLD_GEM", Multiplier: 30000},
		24: {Type: "GOLD_GEM", Multiplier: 15000},
	}, out.Disclosure.Bonus)

	v, err := f.svc.Verify(session.VerifyRequest{
		ServerSeed: out.Disclosure.ServerSeed,
		ClientSeed: out.Disclosure.ClientSeed,
		Nonce:      out.Disclosure.Nonce,
		Mines:      3,
		Mode:       "boost10",
	})
	require.NoError(t, err)
	assert.Equal(t, out.Disclosure.Mines, v.Mines)
	assert.Equal(t, out.Disclosure.Bonus, v.Bonus)
	assert.Equal(t, res.ServerSeedHash, v.ServerSeedHash)

	assert.Equal(t, int64(375), counter(f.registry, "mines.paid_units"))
}

func TestCashoutWithoutReveals(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "carol", bet(100, "normal"))
	require.NoError(t, err)

	out, err := f.svc.Cashout(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, out.WinAmount)
	assert.Equal(t, int64(100000-100), out.Balance)

	hist, err := f.svc.History(ctx, "carol", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, session.StatusWon, hist[0].Status)

	_, err = f.svc.Cashout(ctx, "carol")
	assert.ErrorIs(t, err, fault.ErrNoActiveSession)
}

func TestPayoutCeiling(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.MaxPayoutMultiple = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	res, err := f.svc.Open(ctx, "dave", bet(100, "boost75"))
	require.NoError(t, err)
	assert.Equal(t, int64(7500), res.Stake)

	// nova star on tile 3 is 50x
	r, err := f.svc.Reveal(ctx, "dave", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), r.Payout)
}

func TestPayoutCeilingSaturates(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.MaxPayoutMultiple = 1e17
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "gina", bet(100, "normal"))
	require.NoError(t, err)

	p, err := f.store.Get(ctx, "gina")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), p.Session.MaxPayout)

	r, err := f.svc.Reveal(ctx, "gina", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(109), r.Payout)
}

func TestOpenRejections(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  session.BetRequest
		kind fault.Kind
		err  error
	}{
		{"zero amount", session.BetRequest{Amount: 0, Mines: 3, ClientSeed: "c", Mode: "normal"}, fault.KindValidation, fault.ErrBetAmount},
		{"no mines", session.BetRequest{Amount: 1, Mines: 0, ClientSeed: "c", Mode: "normal"}, fault.KindValidation, fault.ErrMineCount},
		{"too many mines", session.BetRequest{Amount: 1, Mines: 25, ClientSeed: "c", Mode: "normal"}, fault.KindValidation, fault.ErrMineCount},
		{"blank client seed", session.BetRequest{Amount: 1, Mines: 3, ClientSeed: "  ", Mode: "normal"}, fault.KindValidation, fault.ErrClientSeed},
		{"unknown mode", session.BetRequest{Amount: 1, Mines: 3, ClientSeed: "c", Mode: "turbo"}, fault.KindValidation, fault.ErrUnknownMode},
		{"book mine count", session.BetRequest{Amount: 1, Mines: 5, ClientSeed: "c", Mode: "base"}, fault.KindValidation, fault.ErrMineCount},
		{"insufficient balance", bet(2000, "boost75"), fault.KindInsufficientBalance, fault.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Open(ctx, "erin", tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	snap, err := f.svc.Snapshot(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), snap.Balance)
	assert.Zero(t, snap.Nonce, "rejected bets do not consume a nonce")

	_, err = f.svc.Reveal(ctx, "erin", 1)
	assert.ErrorIs(t, err, fault.ErrNoActiveSession)
	_, err = f.svc.Reveal(ctx, "erin", 30)
	assert.ErrorIs(t, err, fault.ErrTileOutOfRange)
}

func TestOpenWhileActive(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Open(ctx, "frank", bet(100, "normal"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, fault.ErrSessionActive) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 9, conflicts)

	snap, err := f.svc.Snapshot(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, int64(100000-100), snap.Balance)
	assert.Equal(t, uint64(1), snap.Nonce)
}

func TestBookMode(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	res, err := f.svc.Open(ctx, "gina", bet(100, "base"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Stake)

	out, err := f.svc.Cashout(ctx, "gina")
	require.NoError(t, err)

	// floor(u * 200) = 39 selects row 40
	assert.Equal(t, uint64(40), out.Disclosure.BookID)
	want, err := games.ReplayBoard(games.Seeds{Server: "test_server_seed", Client: "test_client_seed"}, 40, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, want.SortedMines(), out.Disclosure.Mines)
	assert.Empty(t, out.Disclosure.Bonus)

	v, err := f.svc.Verify(session.VerifyRequest{
		ServerSeed: zeroSeed, ClientSeed: "client", Nonce: 1, Mines: 3, Mode: "base",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), v.BookID)
	assert.Equal(t, want.SortedMines(), v.Mines)
}

func TestBookIntegrityFault(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())
	ctx := context.Background()

	mode, ok := f.lib.Mode("base")
	require.True(t, ok)
	u := engine.Floats(zeroSeed, "client", 1, 1)[0]
	book, err := mode.Table.Select(u)
	require.NoError(t, err)
	book.PayoutMultiplier++

	_, err = f.svc.Open(ctx, "hank", bet(100, "base"))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindIntegrity))
	assert.ErrorIs(t, err, fault.ErrPayoutMismatch)

	snap, err := f.svc.Snapshot(ctx, "hank")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), snap.Balance)
	assert.Zero(t, snap.Nonce)
	assert.Nil(t, snap.Active)

	assert.Len(t, f.audit.integrity, 1)
	assert.Equal(t, int64(1), counter(f.registry, "mines.integrity_faults"))
}

func TestVerifyBookIntegrityFault(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())

	mode, ok := f.lib.Mode("base")
	require.True(t, ok)
	u := engine.Floats(zeroSeed, "client", 1, 1)[0]
	book, err := mode.Table.Select(u)
	require.NoError(t, err)
	book.PayoutMultiplier++

	_, err = f.svc.Verify(session.VerifyRequest{
		ServerSeed: zeroSeed,
		ClientSeed: "client",
		Nonce:      1,
		Mines:      3,
		Mode:       "base",
	})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindIntegrity))
	assert.ErrorIs(t, err, fault.ErrPayoutMismatch)

	assert.Len(t, f.audit.integrity, 1)
	assert.Equal(t, int64(1), counter(f.registry, "mines.integrity_faults"))
}

func TestModes(t *testing.T) {
	f := newFixture(t, session.DefaultConfig())

	names := []string{}
	for _, m := range f.svc.Modes().List() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"base", "boost10", "boost75", "normal"}, names)

	_, err := session.NewModes(append(session.DefaultLiveModes(), session.LiveMode{Name: "base", Cost: mustCost(1)}), f.lib)
	assert.Error(t, err, "live and book modes may not share a name")

	_, err = session.NewModes([]session.LiveMode{{Name: "x", Cost: mustCost(1), Bonus: "platinum"}}, nil)
	assert.Error(t, err)

	_, err = session.NewModes(nil, nil)
	assert.Error(t, err)
}

func mustCost(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
