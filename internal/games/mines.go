package games

import (
	"fmt"
	"math"
	"sort"

	"github.com/Starzy87/stake-mines-backend/internal/engine"
)

// Grid and stream layout of the Mines board. Every consumer of the stream
// reads from its own non-overlapping window so that a verifier replaying
// the disclosed seed reproduces an identical board.
const (
	GridSize = 25
	MinMines = 1
	MaxMines = 24

	// mineShuffleOffset..+GridSize drives the mine permutation.
	mineShuffleOffset = 0
	// bonusShuffleOffset..+GridSize drives the safe-tile shuffle.
	bonusShuffleOffset = 25
	// bonusTierOffset..+slots picks the tier of each bonus tile.
	bonusTierOffset = 50

	// StreamLength is the number of floats one live board consumes.
	StreamLength = 64
)

// Seeds is the seed pair a round is derived from.
type Seeds struct {
	Server string `json:"server"`
	Client string `json:"client"`
}

// Bonus is a multiplier attached to a safe tile.
type Bonus struct {
	Type       string `json:"type"`
	Multiplier int64  `json:"mult"`
}

// Board is the hidden layout of one round.
type Board struct {
	Mines       []int         `json:"mines"`
	Bonus       map[int]Bonus `json:"bonus,omitempty"`
	Permutation []int         `json:"permutation"`
}

// IsMine reports whether tile holds a mine.
func (b Board) IsMine(tile int) bool {
	for _, m := range b.Mines {
		if m == tile {
			return true
		}
	}
	return false
}

// SortedMines returns the mine tiles in ascending order.
func (b Board) SortedMines() []int {
	out := append([]int(nil), b.Mines...)
	sort.Ints(out)
	return out
}

// GenerateBoard places mineCount mines, and bonus tiles when profile is
// non-nil, from at least StreamLength stream floats.
//
// Mines come from a Fisher-Yates shuffle of 0..24 scanning from the end,
// swapping index i with floor(f[i] * (i+1)); the first mineCount entries
// of the permutation are mines. Bonus tiles come from a second shuffle
// over the remaining safe tiles.
func GenerateBoard(floats []float64, mineCount int, profile *BonusProfile) (Board, error) {
	if len(floats) < StreamLength {
		return Board{}, fmt.Errorf("board requires %d floats, got %d", StreamLength, len(floats))
	}
	if mineCount < MinMines || mineCount > MaxMines {
		return Board{}, fmt.Errorf("mine count must be between %d and %d, got %d", MinMines, MaxMines, mineCount)
	}

	tiles := make([]int, GridSize)
	for i := range tiles {
		tiles[i] = i
	}
	shuffle(tiles, floats[mineShuffleOffset:mineShuffleOffset+GridSize])

	board := Board{
		Mines:       append([]int(nil), tiles[:mineCount]...),
		Permutation: tiles,
	}

	if profile == nil || profile.Slots == 0 {
		return board, nil
	}

	safe := append([]int(nil), tiles[mineCount:]...)
	shuffle(safe, floats[bonusShuffleOffset:bonusShuffleOffset+GridSize])

	slots := profile.Slots
	if slots > len(safe) {
		slots = len(safe)
	}
	board.Bonus = make(map[int]Bonus, slots)
	for k := 0; k < slots; k++ {
		board.Bonus[safe[k]] = Bonus{
			Type:       profile.TileType,
			Multiplier: profile.Multiplier(floats[bonusTierOffset+k]),
		}
	}

	return board, nil
}

// shuffle permutes s in place using window[i] for position i.
func shuffle(s []int, window []float64) {
	for i := len(s) - 1; i > 0; i-- {
		j := int(math.Floor(window[i] * float64(i+1)))
		if j > i {
			j = i
		}
		s[i], s[j] = s[j], s[i]
	}
}

// ReplayBoard derives the live board for a disclosed seed triple.
func ReplayBoard(seeds Seeds, nonce uint64, mineCount int, profile *BonusProfile) (Board, error) {
	floats := engine.Floats(seeds.Server, seeds.Client, nonce, StreamLength)
	return GenerateBoard(floats, mineCount, profile)
}
