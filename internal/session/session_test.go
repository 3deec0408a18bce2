package session

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

func newTestSession(t *testing.T) *Session {
	ladder, err := games.ComputeLadder(3, games.DefaultHouseEdge)
	require.NoError(t, err)
	return &Session{
		Amount:    100,
		Stake:     100,
		MineCount: 3,
		Board: games.Board{
			Mines: []int{5, 19, 6},
			Bonus: map[int]games.Bonus{3: {Type: "GOLD_GEM", Multiplier: 50000}},
		},
		Ladder:    ladder,
		Revealed:  []int{},
		MaxPayout: 100 * 10000,
		Status:    StatusActive,
	}
}

func TestPayout(t *testing.T) {
	tests := []struct {
		name                        string
		stake, step, bonus, ceiling int64
		want                        int64
	}{
		{"first step of three mines", 100, 10954, 10000, 0, 109},
		{"bonus multiplies", 100, 10954, 50000, 0, 547},
		{"capped", 100, 10954, 500000, 5000, 5000},
		{"nothing revealed", 100, 0, 10000, 0, 0},
		{"zero stake", 0, 10954, 10000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payout(tt.stake, tt.step, tt.bonus, tt.ceiling))
		})
	}

	assert.Equal(t, int64(10900), Multiplier(109, 100))
	assert.Equal(t, int64(547000), Multiplier(547, 10))
	assert.Zero(t, Multiplier(109, 0))
}

func TestSessionRevealSafeAndBonus(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()

	res, err := s.Reveal(0, now)
	require.NoError(t, err)
	assert.Equal(t, RevealSafe, res.Status)
	assert.Equal(t, 0, res.Step)
	assert.Equal(t, int64(109), res.Payout)
	assert.Nil(t, res.Bonus)
	assert.Nil(t, res.Disclosure)

	res, err = s.Reveal(3, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Step)
	require.NotNil(t, res.Bonus)
	assert.Equal(t, int64(50000), res.Bonus.Multiplier)
	assert.Equal(t, Payout(100, 12519, 50000, 0), res.Payout)
	assert.Equal(t, res.Payout, s.CurrentWin)
	assert.Equal(t, []int{0, 3}, s.Revealed)
}

func TestSessionRevealRejections(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()

	_, err := s.Reveal(25, now)
	assert.True(t, fault.Is(err, fault.KindValidation))
	assert.ErrorIs(t, err, fault.ErrTileOutOfRange)

	_, err = s.Reveal(-1, now)
	assert.ErrorIs(t, err, fault.ErrTileOutOfRange)

	_, err = s.Reveal(1, now)
	require.NoError(t, err)
	win := s.CurrentWin

	_, err = s.Reveal(1, now)
	assert.True(t, fault.Is(err, fault.KindStateConflict))
	assert.ErrorIs(t, err, fault.ErrTileRevealed)
	assert.Equal(t, []int{1}, s.Revealed)
	assert.Equal(t, win, s.CurrentWin)
}

func TestSessionBomb(t *testing.T) {
	s := newTestSession(t)
	s.Round.ServerSeed = "secret"
	now := time.Now()

	_, err := s.Reveal(0, now)
	require.NoError(t, err)

	res, err := s.Reveal(19, now)
	require.NoError(t, err)
	assert.Equal(t, RevealBomb, res.Status)
	assert.Equal(t, StatusLost, s.Status)
	assert.Zero(t, s.CurrentWin)
	require.NotNil(t, res.Disclosure)
	assert.Equal(t, []int{5, 6, 19}, res.Disclosure.Mines)
	assert.Equal(t, "secret", res.Disclosure.ServerSeed)
	assert.Equal(t, []int{0}, s.Revealed, "mines are never added to revealed tiles")

	_, err = s.Reveal(1, now)
	assert.ErrorIs(t, err, fault.ErrNoActiveSession)
	_, err = s.Cashout(now)
	assert.ErrorIs(t, err, fault.ErrNoActiveSession)
}

func TestSessionCashoutWithoutReveals(t *testing.T) {
	s := newTestSession(t)

	d, err := s.Cashout(time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusWon, s.Status)
	assert.Zero(t, s.CurrentWin)
	assert.Equal(t, []int{5, 6, 19}, d.Mines)
}

func TestSessionPayoutCap(t *testing.T) {
	s := newTestSession(t)
	s.MaxPayout = 200

	res, err := s.Reveal(3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Payout)
}

func TestMaxPayout(t *testing.T) {
	tests := []struct {
		stake, multiple, want int64
	}{
		{100, 10000, 1000000},
		{0, 10000, 0},
		{100, 0, 0},
		{100, 1e17, math.MaxInt64},
		{math.MaxInt64, 2, math.MaxInt64},
		{1 << 31, 1 << 32, math.MaxInt64},
		{1 << 31, 1<<32 - 1, (1 << 63) - (1 << 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxPayout(tt.stake, tt.multiple), "stake=%d multiple=%d", tt.stake, tt.multiple)
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("alice")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}
