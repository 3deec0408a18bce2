package games

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLadderShape(t *testing.T) {
	for mines := MinMines; mines <= MaxMines; mines++ {
		ladder, err := ComputeLadder(mines, DefaultHouseEdge)
		require.NoError(t, err, "mines=%d", mines)
		require.Len(t, ladder, GridSize-mines)

		for i := 1; i < len(ladder); i++ {
			assert.Greater(t, ladder[i], ladder[i-1], "mines=%d step=%d", mines, i)
		}

		// 25/(25-m) * edge, floored at the scale
		first := decimal.NewFromInt(GridSize).
			Div(decimal.NewFromInt(int64(GridSize - mines))).
			Mul(DefaultHouseEdge).
			Mul(decimal.NewFromInt(MultiplierScale))
		assert.InDelta(t, first.InexactFloat64(), float64(ladder[0]), 1, "mines=%d", mines)
	}
}

func TestComputeLadderKnownValues(t *testing.T) {
	tests := []struct {
		mines int
		first []int64
		last  int64
	}{
		{mines: 1, first: []int64{10041, 10478, 10954}, last: 241000},
		{mines: 3, first: []int64{10954, 12519, 14397}, last: 22172000},
		{mines: 12, first: []int64{18538, 37076, 77524}, last: 50130892000},
		{mines: 24, first: []int64{241000}, last: 241000},
	}

	for _, tt := range tests {
		ladder, err := ComputeLadder(tt.mines, DefaultHouseEdge)
		require.NoError(t, err)
		assert.Equal(t, tt.first, []int64(ladder[:len(tt.first)]), "mines=%d", tt.mines)
		assert.Equal(t, tt.last, ladder[len(ladder)-1], "mines=%d", tt.mines)
	}
}

func TestComputeLadderRejectsBadInput(t *testing.T) {
	_, err := ComputeLadder(0, DefaultHouseEdge)
	assert.Error(t, err)
	_, err = ComputeLadder(25, DefaultHouseEdge)
	assert.Error(t, err)
	_, err = ComputeLadder(3, decimal.Zero)
	assert.Error(t, err)
	_, err = ComputeLadder(3, decimal.RequireFromString("1.01"))
	assert.Error(t, err)
}

func TestLadderStep(t *testing.T) {
	ladder := Ladder{100, 200, 300}
	assert.Equal(t, int64(0), ladder.Step(0))
	assert.Equal(t, int64(100), ladder.Step(1))
	assert.Equal(t, int64(300), ladder.Step(3))
	assert.Equal(t, int64(0), ladder.Step(4))
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, ladder.Floats())
}
