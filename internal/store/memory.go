// Package store persists players and archives finished rounds.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// Memory keeps encoded player records in process. Records are copied on
// every read so callers never share state with the store.
type Memory struct {
	mu      sync.Mutex
	players map[string][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{players: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, playerID string) (*session.Player, error) {
	m.mu.Lock()
	raw, ok := m.players[playerID]
	m.mu.Unlock()
	if !ok {
		return nil, session.ErrPlayerNotFound
	}
	return decodePlayer(raw)
}

func (m *Memory) Update(_ context.Context, playerID string, fn func(*session.Player) error) (*session.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &session.Player{ID: playerID}
	if raw, ok := m.players[playerID]; ok {
		var err error
		if p, err = decodePlayer(raw); err != nil {
			return nil, err
		}
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	m.players[playerID] = raw
	return p, nil
}

func decodePlayer(raw []byte) (*session.Player, error) {
	var p session.Player
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
