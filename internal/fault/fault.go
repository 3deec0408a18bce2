// Package fault defines the error taxonomy shared by the engine and its
// HTTP surface.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a fault by who is responsible for it and whether any
// state may have changed.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is a malformed request, rejected before any mutation.
	KindValidation
	// KindStateConflict is a request that is well formed but not allowed
	// in the session's current state. No mutation happens.
	KindStateConflict
	// KindInsufficientBalance is rejected before the debit.
	KindInsufficientBalance
	// KindIntegrity signals corrupted or tampered outcome data. It is never
	// corrected silently.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

// Sentinel causes. Wrap them with New so callers can use errors.Is.
var (
	ErrBetAmount      = errors.New("bet amount out of range")
	ErrMineCount      = errors.New("mine count must be between 1 and 24")
	ErrClientSeed     = errors.New("client seed is required")
	ErrUnknownMode    = errors.New("unknown game mode")
	ErrTileOutOfRange = errors.New("tile index out of range")

	ErrSessionActive   = errors.New("a game is already in progress")
	ErrNoActiveSession = errors.New("no active game")
	ErrTileRevealed    = errors.New("tile already revealed")

	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrPayoutMismatch = errors.New("book payout does not match lookup table")
	ErrTableInvalid   = errors.New("outcome table is invalid")
)

// Error is a classified fault with the operation that raised it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New classifies err under kind for operation op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted cause. Use %w to keep a sentinel reachable.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation, Conflict and Integrity are shorthands for the common kinds.
func Validation(op string, err error) *Error { return New(KindValidation, op, err) }

func Conflict(op string, err error) *Error { return New(KindStateConflict, op, err) }

func Integrity(op string, err error) *Error { return New(KindIntegrity, op, err) }

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
