// Package session runs the per-player Mines round: the bet, reveal and
// cashout state machine and the service that persists it.
package session

import (
	"math"
	"math/bits"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// Status is the lifecycle state of a round.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusWon    Status = "WON"
	StatusLost   Status = "LOST"
)

// Reveal outcomes.
const (
	RevealSafe = "SAFE"
	RevealBomb = "BOMB"
)

var payoutDivisor = decimal.NewFromInt(games.MultiplierScale * games.MultiplierScale)

// Session is one round. It holds the round's secret seed and must never
// be serialized to a client as is.
type Session struct {
	ID         string         `json:"id"`
	Mode       string         `json:"mode"`
	Source     Source         `json:"source"`
	BookID     uint64         `json:"book_id,omitempty"`
	Amount     int64          `json:"amount"`
	Stake      int64          `json:"stake"`
	MineCount  int            `json:"mine_count"`
	Board      games.Board    `json:"board"`
	Ladder     games.Ladder   `json:"ladder"`
	Revealed   []int          `json:"revealed"`
	CurrentWin int64          `json:"current_win"`
	MaxPayout  int64          `json:"max_payout"`
	Status     Status         `json:"status"`
	Round      fairness.Round `json:"round"`
	ClientSeed string         `json:"client_seed"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// RevealResult reports one reveal. Disclosure is set only when the
// reveal ended the round.
type RevealResult struct {
	Status     string       `json:"status"`
	Tile       int          `json:"tile"`
	Step       int          `json:"step"`
	Payout     int64        `json:"payout"`
	Multiplier int64        `json:"multiplier"`
	Bonus      *games.Bonus `json:"bonus,omitempty"`
	Disclosure *Disclosure  `json:"disclosure,omitempty"`
}

// Disclosure is everything a player needs to replay a finished round.
type Disclosure struct {
	Mines          []int               `json:"mines"`
	Bonus          map[int]games.Bonus `json:"bonus,omitempty"`
	ServerSeed     string              `json:"server_seed"`
	ServerSeedHash string              `json:"server_seed_hash"`
	ClientSeed     string              `json:"client_seed"`
	Nonce          uint64              `json:"nonce"`
	BookID         uint64              `json:"book_id,omitempty"`
}

// Active reports whether the round still accepts reveals.
func (s *Session) Active() bool {
	return s != nil && s.Status == StatusActive
}

// IsRevealed reports whether tile was already opened.
func (s *Session) IsRevealed(tile int) bool {
	for _, t := range s.Revealed {
		if t == tile {
			return true
		}
	}
	return false
}

// Reveal opens tile. Faults leave the session untouched.
func (s *Session) Reveal(tile int, now time.Time) (RevealResult, error) {
	const op = "session.Reveal"

	if tile < 0 || tile >= games.GridSize {
		return RevealResult{}, fault.Validation(op, fault.ErrTileOutOfRange)
	}
	if !s.Active() {
		return RevealResult{}, fault.Conflict(op, fault.ErrNoActiveSession)
	}
	if s.IsRevealed(tile) {
		return RevealResult{}, fault.Conflict(op, fault.ErrTileRevealed)
	}

	if s.Board.IsMine(tile) {
		s.Status = StatusLost
		s.CurrentWin = 0
		s.FinishedAt = now
		d := s.Disclose()
		return RevealResult{
			Status:     RevealBomb,
			Tile:       tile,
			Step:       len(s.Revealed),
			Disclosure: &d,
		}, nil
	}

	s.Revealed = append(s.Revealed, tile)
	step := len(s.Revealed) - 1

	var bonus *games.Bonus
	bonusMult := int64(games.MultiplierScale)
	if b, ok := s.Board.Bonus[tile]; ok {
		bonus = &b
		bonusMult = b.Multiplier
	}

	s.CurrentWin = Payout(s.Stake, s.Ladder.Step(len(s.Revealed)), bonusMult, s.MaxPayout)
	return RevealResult{
		Status:     RevealSafe,
		Tile:       tile,
		Step:       step,
		Payout:     s.CurrentWin,
		Multiplier: Multiplier(s.CurrentWin, s.Amount),
		Bonus:      bonus,
	}, nil
}

// Cashout ends the round as won. The caller credits CurrentWin.
func (s *Session) Cashout(now time.Time) (Disclosure, error) {
	if !s.Active() {
		return Disclosure{}, fault.Conflict("session.Cashout", fault.ErrNoActiveSession)
	}
	s.Status = StatusWon
	s.FinishedAt = now
	return s.Disclose(), nil
}

// Disclose returns the round's verification data. Call it only once the
// round is finished.
func (s *Session) Disclose() Disclosure {
	return Disclosure{
		Mines:          s.Board.SortedMines(),
		Bonus:          s.Board.Bonus,
		ServerSeed:     s.Round.ServerSeed,
		ServerSeedHash: s.Round.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Round.Nonce,
		BookID:         s.BookID,
	}
}

// Payout returns floor(stake * step * bonus / scale^2), capped at ceiling
// when ceiling is positive. step and bonus are scaled by MultiplierScale.
func Payout(stake, step, bonus, ceiling int64) int64 {
	if stake <= 0 || step <= 0 {
		return 0
	}
	p, _ := decimal.NewFromInt(stake).
		Mul(decimal.NewFromInt(step)).
		Mul(decimal.NewFromInt(bonus)).
		QuoRem(payoutDivisor, 0)
	if ceiling > 0 && p.GreaterThan(decimal.NewFromInt(ceiling)) {
		return ceiling
	}
	return p.IntPart()
}

// MaxPayout returns stake * multiple, saturated at math.MaxInt64.
func MaxPayout(stake, multiple int64) int64 {
	if stake <= 0 || multiple <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(stake), uint64(multiple))
	if hi != 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(lo)
}

// Multiplier returns payout/amount scaled by MultiplierScale, floored.
func Multiplier(payout, amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	q, _ := decimal.NewFromInt(payout).
		Mul(decimal.NewFromInt(games.MultiplierScale)).
		QuoRem(decimal.NewFromInt(amount), 0)
	return q.IntPart()
}
