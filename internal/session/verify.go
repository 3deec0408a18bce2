package session

import (
	"strings"

	"github.com/Starzy87/stake-mines-backend/internal/engine"
	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/fault"
	"github.com/Starzy87/stake-mines-backend/internal/games"
)

// VerifyRequest is a disclosed seed triple to replay.
type VerifyRequest struct {
	ServerSeed string `json:"server_seed"`
	ClientSeed string `json:"client_seed"`
	Nonce      uint64 `json:"nonce"`
	Mines      int    `json:"mines"`
	Mode       string `json:"mode,omitempty"`
}

// Verification is the board a seed triple produces.
type Verification struct {
	ServerSeedHash string              `json:"server_seed_hash"`
	Mode           string              `json:"mode,omitempty"`
	Mines          []int               `json:"mines"`
	Bonus          map[int]games.Bonus `json:"bonus,omitempty"`
	BookID         uint64              `json:"book_id,omitempty"`
}

// Verify replays the board of a finished round. An empty mode replays a
// live board without bonus tiles.
func (s *Service) Verify(req VerifyRequest) (*Verification, error) {
	const op = "session.Verify"

	if req.ServerSeed == "" {
		return nil, fault.Newf(fault.KindValidation, op, "server seed is required")
	}
	clientSeed := strings.TrimSpace(req.ClientSeed)
	if clientSeed == "" {
		return nil, fault.Validation(op, fault.ErrClientSeed)
	}
	if req.Mines < games.MinMines || req.Mines > games.MaxMines {
		return nil, fault.Validation(op, fault.ErrMineCount)
	}

	mode := &Mode{Source: SourceLive}
	if req.Mode != "" {
		m, err := s.modes.Get(req.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	floats := engine.Floats(req.ServerSeed, clientSeed, req.Nonce, games.StreamLength)
	out := &Verification{
		ServerSeedHash: fairness.Hash(req.ServerSeed),
		Mode:           mode.Name,
	}

	if mode.Source == SourceBook {
		book, err := mode.Book.Select(floats[0])
		if err != nil {
			s.fail("", op, err)
			return nil, err
		}
		out.BookID = book.ID
		out.Mines = games.Board{Mines: book.Mines}.SortedMines()
		return out, nil
	}

	board, err := games.GenerateBoard(floats, req.Mines, mode.Bonus)
	if err != nil {
		return nil, fault.Validation(op, err)
	}
	out.Mines = board.SortedMines()
	out.Bonus = board.Bonus
	return out, nil
}
