package games

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MultiplierScale is the fixed-point factor of ladder and bonus
// multipliers: 1.0000x is stored as 10000.
const MultiplierScale = 10000

// DefaultHouseEdge is the return-to-player factor (1 - house take).
var DefaultHouseEdge = decimal.RequireFromString("0.964")

var multiplierScale = decimal.NewFromInt(MultiplierScale)

// Ladder holds the scaled multiplier owed after each successive safe
// reveal. Ladder[i] applies once i+1 safe tiles are open.
type Ladder []int64

// ComputeLadder builds the ladder for mineCount mines on a 25-tile grid.
//
// Step i multiplies the running fair multiplier by
// (tiles remaining) / (safe tiles remaining), the inverse of the
// hypergeometric survival probability, then applies the house edge.
// The running product is kept as an exact fraction and each published
// value is floored at MultiplierScale.
func ComputeLadder(mineCount int, houseEdge decimal.Decimal) (Ladder, error) {
	if mineCount < MinMines || mineCount > MaxMines {
		return nil, fmt.Errorf("mine count must be between %d and %d, got %d", MinMines, MaxMines, mineCount)
	}
	if !houseEdge.IsPositive() || houseEdge.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("house edge must be in (0, 1], got %s", houseEdge)
	}

	safeTiles := GridSize - mineCount
	ladder := make(Ladder, safeTiles)

	num := decimal.NewFromInt(1)
	den := decimal.NewFromInt(1)
	for i := 0; i < safeTiles; i++ {
		totalRemaining := int64(GridSize - i)
		safeRemaining := int64(safeTiles - i)

		num = num.Mul(decimal.NewFromInt(totalRemaining))
		den = den.Mul(decimal.NewFromInt(safeRemaining))

		q, _ := num.Mul(houseEdge).Mul(multiplierScale).QuoRem(den, 0)
		ladder[i] = q.IntPart()

		if i > 0 && ladder[i] <= ladder[i-1] {
			return nil, fmt.Errorf("ladder is not strictly increasing at step %d", i)
		}
	}

	return ladder, nil
}

// Step returns the scaled multiplier after revealed safe tiles, or 0 when
// nothing has been revealed yet.
func (l Ladder) Step(revealed int) int64 {
	if revealed <= 0 || revealed > len(l) {
		return 0
	}
	return l[revealed-1]
}

// Decimal converts a scaled multiplier into its decimal value.
func Decimal(scaled int64) decimal.Decimal {
	return decimal.New(scaled, -4)
}

// Floats returns the ladder as display multipliers.
func (l Ladder) Floats() []float64 {
	out := make([]float64, len(l))
	for i, v := range l {
		out[i] = Decimal(v).InexactFloat64()
	}
	return out
}
