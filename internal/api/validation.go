package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Starzy87/stake-mines-backend/internal/games"
	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 16 << 10

// fieldError is a request field that failed validation.
type fieldError struct {
	field   string
	message string
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %s", e.field, e.message) }

func invalid(field, format string, args ...any) error {
	return &fieldError{field: field, message: fmt.Sprintf(format, args...)}
}

// decodeJSON strictly decodes a single JSON object into dst. An empty
// body leaves dst at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return invalid("body", "request body exceeds %d bytes", maxBodyBytes)
		}
		return invalid("body", "malformed JSON: %v", err)
	}
	if dec.More() {
		return invalid("body", "request body must contain a single JSON object")
	}
	return nil
}

func (req *BetRequest) validate() error {
	if req.Amount <= 0 {
		return invalid("amount", "must be a positive integer number of units")
	}
	if req.Mines < games.MinMines || req.Mines > games.MaxMines {
		return invalid("mines", "must be between %d and %d", games.MinMines, games.MaxMines)
	}
	req.ClientSeed = strings.TrimSpace(req.ClientSeed)
	if req.ClientSeed == "" {
		return invalid("clientSeed", "is required")
	}
	if len(req.ClientSeed) > session.MaxClientSeedLength {
		return invalid("clientSeed", "must be at most %d characters", session.MaxClientSeedLength)
	}
	if req.Mode == "" {
		req.Mode = "normal"
	}
	return nil
}

func (req *RevealRequest) validate() error {
	if req.Index == nil {
		return invalid("index", "is required")
	}
	if *req.Index < 0 || *req.Index >= games.GridSize {
		return invalid("index", "must be between 0 and %d", games.GridSize-1)
	}
	return nil
}

func (req *VerifyRequest) validate() error {
	if req.ServerSeed == "" {
		return invalid("serverSeed", "is required")
	}
	if strings.TrimSpace(req.ClientSeed) == "" {
		return invalid("clientSeed", "is required")
	}
	if req.Mines < games.MinMines || req.Mines > games.MaxMines {
		return invalid("mines", "must be between %d and %d", games.MinMines, games.MaxMines)
	}
	return nil
}

func (req *SeedHashRequest) validate() error {
	if req.ServerSeed == "" {
		return invalid("server_seed", "is required")
	}
	return nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid("limit", "must be a non-negative integer")
	}
	return n, nil
}

// handleRequestError writes err as a validation response when it is a
// field error and as a classified fault otherwise.
func (s *Server) handleRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		s.errorHandler.HandleValidationError(w, r, fe.field, fe.message)
		return
	}
	s.errorHandler.HandleError(w, r, err)
}
