package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Starzy87/stake-mines-backend/internal/fairness"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// handleInit returns the balance, the next commitment and any round in
// progress so a reloaded client can resume.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), PlayerID(r.Context()))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := InitResponse{
		Balance:         snap.Balance,
		ServerHash:      snap.NextHash,
		Nonce:           snap.Nonce,
		MoneyScale:      MoneyScale,
		MultiplierScale: MultiplierScale,
	}
	if a := snap.Active; a != nil {
		resp.ActiveGame = &ActiveGame{
			SessionID:      a.SessionID,
			Mode:           a.Mode,
			Bet:            a.Amount,
			Stake:          a.Stake,
			Mines:          a.Mines,
			Revealed:       a.Revealed,
			CurrentWin:     a.CurrentWin,
			Multipliers:    a.Ladder,
			Nonce:          a.Nonce,
			ServerSeedHash: a.ServerSeedHash,
			ClientSeed:     a.ClientSeed,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleRequestError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.handleRequestError(w, r, err)
		return
	}

	playerID := PlayerID(r.Context())
	res, err := s.svc.Open(r.Context(), playerID, session.BetRequest{
		Amount:     req.Amount,
		Mines:      req.Mines,
		ClientSeed: req.ClientSeed,
		Mode:       req.Mode,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogAuditEvent(middleware.GetReqID(r.Context()), "bet", playerID, "success",
		map[string]interface{}{"mode": res.Mode, "stake": res.Stake, "nonce": res.Nonce})

	s.writeJSON(w, http.StatusOK, BetResponse{
		SessionID:       res.SessionID,
		Balance:         res.Balance,
		Stake:           res.Stake,
		ServerSeedHash:  res.ServerSeedHash,
		NextHash:        res.NextHash,
		Nonce:           res.Nonce,
		Mode:            res.Mode,
		Ladder:          res.Ladder,
		MultiplierScale: MultiplierScale,
	})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleRequestError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.handleRequestError(w, r, err)
		return
	}

	res, err := s.svc.Reveal(r.Context(), PlayerID(r.Context()), *req.Index)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := RevealResponse{
		Status:  res.Status,
		Index:   res.Tile,
		Step:    res.Step,
		Special: res.Bonus,
	}
	if d := res.Disclosure; d != nil {
		resp.MineMap = d.Mines
		resp.SpecialMap = d.Bonus
		resp.ServerSeed = d.ServerSeed
		resp.ClientSeed = d.ClientSeed
		resp.Nonce = d.Nonce
	} else {
		resp.Payout = &res.Payout
		resp.Multiplier = &res.Multiplier
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	playerID := PlayerID(r.Context())
	res, err := s.svc.Cashout(r.Context(), playerID)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogAuditEvent(middleware.GetReqID(r.Context()), "cashout", playerID, "success",
		map[string]interface{}{"win": res.WinAmount, "nonce": res.Disclosure.Nonce})

	d := res.Disclosure
	s.writeJSON(w, http.StatusOK, CashoutResponse{
		WinAmount:       res.WinAmount,
		FinalMultiplier: res.FinalMultiplier,
		Balance:         res.Balance,
		MineMap:         d.Mines,
		SpecialMap:      d.Bonus,
		ServerSeed:      d.ServerSeed,
		ServerSeedHash:  d.ServerSeedHash,
		ClientSeed:      d.ClientSeed,
		Nonce:           d.Nonce,
		BookID:          d.BookID,
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ModesResponse{
		Modes:         s.svc.Modes().List(),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.handleRequestError(w, r, err)
		return
	}

	rounds, err := s.svc.History(r.Context(), PlayerID(r.Context()), limit)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if rounds == nil {
		rounds = []session.Record{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Rounds: rounds})
}

// handleVerify replays a disclosed round so a player can check the board.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleRequestError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.handleRequestError(w, r, err)
		return
	}

	v, err := s.svc.Verify(session.VerifyRequest{
		ServerSeed: req.ServerSeed,
		ClientSeed: req.ClientSeed,
		Nonce:      req.Nonce,
		Mines:      req.Mines,
		Mode:       req.Mode,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, VerifyResponse{
		ServerSeedHash: v.ServerSeedHash,
		Mode:           v.Mode,
		MineMap:        v.Mines,
		SpecialMap:     v.Bonus,
		BookID:         v.BookID,
		EngineVersion:  EngineVersion,
		Echo:           req,
	})
}

func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	var req SeedHashRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.handleRequestError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.handleRequestError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, SeedHashResponse{
		Hash:          fairness.Hash(req.ServerSeed),
		EngineVersion: EngineVersion,
	})
}
