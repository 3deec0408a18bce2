package session

import (
	"context"
	"errors"
	"time"

	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// ErrPlayerNotFound is returned by Store.Get for unknown players.
var ErrPlayerNotFound = errors.New("player not found")

// Player is the persisted state of one identity. It is stored as a single
// record so that a balance change and the session transition that caused
// it are committed together.
type Player struct {
	ID      string              `json:"id"`
	Balance int64               `json:"balance"`
	Seeds   fairness.Commitment `json:"seeds"`
	Session *Session            `json:"session,omitempty"`
}

// Initialized reports whether the player has a committed seed lineage.
func (p *Player) Initialized() bool {
	return p.Seeds.NextHash != ""
}

// Store persists players.
//
// Update loads the player (a zero Player with ID set when absent), calls
// fn, and writes the result only if fn returns nil. The write is atomic
// with respect to other Updates of the same player.
type Store interface {
	Get(ctx context.Context, playerID string) (*Player, error)
	Update(ctx context.Context, playerID string, fn func(*Player) error) (*Player, error)
}

// Record is a finalized round as archived and returned by history.
type Record struct {
	ID             string              `json:"id"`
	PlayerID       string              `json:"player_id"`
	Mode           string              `json:"mode"`
	Source         Source              `json:"source"`
	BookID         uint64              `json:"book_id,omitempty"`
	Status         Status              `json:"status"`
	Amount         int64               `json:"amount"`
	Stake          int64               `json:"stake"`
	Payout         int64               `json:"payout"`
	Multiplier     int64               `json:"multiplier"`
	MineCount      int                 `json:"mine_count"`
	Mines          []int               `json:"mines"`
	Bonus          map[int]games.Bonus `json:"bonus,omitempty"`
	Revealed       []int               `json:"revealed"`
	ServerSeed     string              `json:"server_seed"`
	ServerSeedHash string              `json:"server_seed_hash"`
	ClientSeed     string              `json:"client_seed"`
	Nonce          uint64              `json:"nonce"`
	CreatedAt      time.Time           `json:"created_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// NewRecord summarizes a finished session.
func NewRecord(playerID string, s *Session) Record {
	return Record{
		ID:             s.ID,
		PlayerID:       playerID,
		Mode:           s.Mode,
		Source:         s.Source,
		BookID:         s.BookID,
		Status:         s.Status,
		Amount:         s.Amount,
		Stake:          s.Stake,
		Payout:         s.CurrentWin,
		Multiplier:     Multiplier(s.CurrentWin, s.Amount),
		MineCount:      s.MineCount,
		Mines:          s.Board.SortedMines(),
		Bonus:          s.Board.Bonus,
		Revealed:       append([]int(nil), s.Revealed...),
		ServerSeed:     s.Round.ServerSeed,
		ServerSeedHash: s.Round.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Round.Nonce,
		CreatedAt:      s.CreatedAt,
		FinishedAt:     s.FinishedAt,
	}
}

// Archive keeps finalized rounds.
type Archive interface {
	Record(ctx context.Context, rec Record) error
	History(ctx context.Context, playerID string, limit int) ([]Record, error)
}

// Auditor receives finalized rounds and integrity faults.
type Auditor interface {
	Round(rec Record)
	Integrity(playerID, op string, err error)
}
