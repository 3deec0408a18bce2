package api

import (
	"github.com/Starzy87/stake-mines-backend/internal/games"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// Fixed-point scales of every amount and multiplier on the wire.
const (
	MoneyScale      = 100
	MultiplierScale = games.MultiplierScale
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeValidation   = "validation_error"
	ErrTypeUnauthorized = "unauthorized"

	// Game-related errors
	ErrTypeStateConflict       = "state_conflict"
	ErrTypeInsufficientBalance = "insufficient_balance"
	ErrTypeIntegrity           = "integrity_error"

	// System errors
	ErrTypeTimeout  = "timeout"
	ErrTypeInternal = "internal_error"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategoryIntegrity  ErrorCategory = "integrity"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeUnauthorized:
		return CategoryValidation
	case ErrTypeStateConflict, ErrTypeInsufficientBalance:
		return CategoryGame
	case ErrTypeIntegrity:
		return CategoryIntegrity
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// BetRequest opens a round. Amount is in money units.
type BetRequest struct {
	Amount     int64  `json:"amount"`
	Mines      int    `json:"mines"`
	ClientSeed string `json:"clientSeed"`
	Mode       string `json:"mode"`
}

// BetResponse carries the commitment for the round and its ladder.
type BetResponse struct {
	SessionID       string  `json:"sessionId"`
	Balance         int64   `json:"balance"`
	Stake           int64   `json:"stake"`
	ServerSeedHash  string  `json:"serverSeedHash"`
	NextHash        string  `json:"nextHash"`
	Nonce           uint64  `json:"nonce"`
	Mode            string  `json:"mode"`
	Ladder          []int64 `json:"ladder"`
	MultiplierScale int     `json:"multiplierScale"`
}

// RevealRequest opens one tile.
type RevealRequest struct {
	Index *int `json:"index"`
}

// RevealResponse reports a reveal. The map and seed fields are set only
// when the reveal hit a mine.
type RevealResponse struct {
	Status     string              `json:"status"`
	Index      int                 `json:"index"`
	Step       int                 `json:"step"`
	Payout     *int64              `json:"payout,omitempty"`
	Multiplier *int64              `json:"multiplier,omitempty"`
	Special    *games.Bonus        `json:"special,omitempty"`
	MineMap    []int               `json:"mineMap,omitempty"`
	SpecialMap map[int]games.Bonus `json:"specialMap,omitempty"`
	ServerSeed string              `json:"serverSeed,omitempty"`
	ClientSeed string              `json:"clientSeed,omitempty"`
	Nonce      uint64              `json:"nonce,omitempty"`
}

// CashoutResponse finalizes a round and discloses its seed.
type CashoutResponse struct {
	WinAmount       int64               `json:"winAmount"`
	FinalMultiplier int64               `json:"finalMultiplier"`
	Balance         int64               `json:"balance"`
	MineMap         []int               `json:"mineMap"`
	SpecialMap      map[int]games.Bonus `json:"specialMap,omitempty"`
	ServerSeed      string              `json:"serverSeed"`
	ServerSeedHash  string              `json:"serverSeedHash"`
	ClientSeed      string              `json:"clientSeed"`
	Nonce           uint64              `json:"nonce"`
	BookID          uint64              `json:"bookId,omitempty"`
}

// ActiveGame is the round in progress returned by /init.
type ActiveGame struct {
	SessionID      string  `json:"sessionId"`
	Mode           string  `json:"mode"`
	Bet            int64   `json:"bet"`
	Stake          int64   `json:"stake"`
	Mines          int     `json:"mines"`
	Revealed       []int   `json:"revealed"`
	CurrentWin     int64   `json:"currentWin"`
	Multipliers    []int64 `json:"multipliers"`
	Nonce          uint64  `json:"nonce"`
	ServerSeedHash string  `json:"serverSeedHash"`
	ClientSeed     string  `json:"clientSeed"`
}

// InitResponse is the page-reload state.
type InitResponse struct {
	Balance         int64       `json:"balance"`
	ServerHash      string      `json:"serverHash"`
	Nonce           uint64      `json:"nonce"`
	ActiveGame      *ActiveGame `json:"activeGame"`
	MoneyScale      int         `json:"moneyScale"`
	MultiplierScale int         `json:"multiplierScale"`
}

// ModesResponse lists playable modes.
type ModesResponse struct {
	Modes         []session.ModeInfo `json:"modes"`
	EngineVersion string             `json:"engine_version"`
}

// HistoryResponse lists finalized rounds, newest first.
type HistoryResponse struct {
	Rounds []session.Record `json:"rounds"`
}

// VerifyRequest replays a disclosed round.
type VerifyRequest struct {
	ServerSeed string `json:"serverSeed"`
	ClientSeed string `json:"clientSeed"`
	Nonce      uint64 `json:"nonce"`
	Mines      int    `json:"mines"`
	Mode       string `json:"mode,omitempty"`
}

// VerifyResponse is the replayed board.
type VerifyResponse struct {
	ServerSeedHash string              `json:"serverSeedHash"`
	Mode           string              `json:"mode,omitempty"`
	MineMap        []int               `json:"mineMap"`
	SpecialMap     map[int]games.Bonus `json:"specialMap,omitempty"`
	BookID         uint64              `json:"bookId,omitempty"`
	EngineVersion  string              `json:"engine_version"`
	Echo           VerifyRequest       `json:"echo"`
}

// SeedHashRequest represents a seed hashing request
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse represents a seed hashing response
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	EngineVersion string `json:"engine_version"`
}
