// Package fairness implements the server-seed commit/reveal cycle.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// seedBytes is the entropy of a generated server seed.
const seedBytes = 32

// Commitment holds a player's seed lineage. Next is already committed
// (NextHash is public) but has not been used; Active governs the round in
// progress and stays secret until that round is finalized.
type Commitment struct {
	Active     string `json:"active,omitempty"`
	ActiveHash string `json:"active_hash,omitempty"`
	Next       string `json:"next"`
	NextHash   string `json:"next_hash"`
	Nonce      uint64 `json:"nonce"`
}

// Round is the seed material for one wager.
type Round struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	NextHash       string `json:"next_hash"`
	Nonce          uint64 `json:"nonce"`
}

// NewCommitment creates a lineage with a freshly committed next seed.
// A nil reader uses crypto/rand.
func NewCommitment(entropy io.Reader) (*Commitment, error) {
	seed, err := GenerateSeed(entropy)
	if err != nil {
		return nil, err
	}
	return &Commitment{Next: seed, NextHash: Hash(seed)}, nil
}

// Rotate promotes the committed seed to active for the next round, bumps
// the nonce, and commits a fresh seed for the round after. On error the
// commitment is left unchanged.
func (c *Commitment) Rotate(entropy io.Reader) (Round, error) {
	fresh, err := GenerateSeed(entropy)
	if err != nil {
		return Round{}, err
	}

	c.Active, c.ActiveHash = c.Next, c.NextHash
	c.Next, c.NextHash = fresh, Hash(fresh)
	c.Nonce++

	return Round{
		ServerSeed:     c.Active,
		ServerSeedHash: c.ActiveHash,
		NextHash:       c.NextHash,
		Nonce:          c.Nonce,
	}, nil
}

// Check verifies that both committed hashes still match their seeds.
func (c *Commitment) Check() error {
	if !Verify(c.Next, c.NextHash) {
		return fmt.Errorf("next seed does not match its published hash")
	}
	if c.Active != "" && !Verify(c.Active, c.ActiveHash) {
		return fmt.Errorf("active seed does not match its published hash")
	}
	return nil
}

// GenerateSeed returns a hex encoded 256-bit secret.
func GenerateSeed(entropy io.Reader) (string, error) {
	if entropy == nil {
		entropy = rand.Reader
	}
	b := make([]byte, seedBytes)
	if _, err := io.ReadFull(entropy, b); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the published commitment for seed: hex(SHA-256(seed)).
func Hash(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// Verify reports whether hash commits to seed.
func Verify(seed, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(seed)), []byte(hash)) == 1
}

// Fingerprint is a short, non-reversible tag for logging a seed.
func Fingerprint(seed string) string {
	if seed == "" {
		return "empty"
	}
	return Hash(seed)[:16]
}
