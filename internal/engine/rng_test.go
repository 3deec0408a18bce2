package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloats(t *testing.T) {
	tests := []struct {
		name  string
		nonce uint64
		count int
	}{
		{name: "single float", nonce: 1, count: 1},
		{name: "one round", nonce: 1, count: 8},
		{name: "several rounds", nonce: 7, count: 64},
		{name: "zero count", nonce: 1, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floats := Floats("test_server_seed", "test_client_seed", tt.nonce, tt.count)
			require.Len(t, floats, tt.count)

			for i, f := range floats {
				assert.GreaterOrEqual(t, f, 0.0, "float %d", i)
				assert.Less(t, f, 1.0, "float %d", i)
			}
		})
	}
}

func TestDeterministicFloats(t *testing.T) {
	first := Floats("deterministic_test", "client_test", 42, 40)
	second := Floats("deterministic_test", "client_test", 42, 40)
	assert.Equal(t, first, second)

	otherNonce := Floats("deterministic_test", "client_test", 43, 40)
	assert.NotEqual(t, first, otherNonce)

	otherClient := Floats("deterministic_test", "client_test2", 42, 40)
	assert.NotEqual(t, first, otherClient)
}

func TestStreamMatchesFloats(t *testing.T) {
	want := Floats("s", "c", 3, 20)

	s := NewStream("s", "c", 3)
	for i := 0; i < 20; i++ {
		assert.Equal(t, want[i], s.Next(), "float %d", i)
	}
	assert.Equal(t, uint64(20), s.Position())
}

func TestStreamReset(t *testing.T) {
	s := NewStream("s", "c", 9)
	first := s.Take(make([]float64, 11))

	s.Reset()
	assert.Equal(t, uint64(0), s.Position())
	assert.Equal(t, first, s.Take(make([]float64, 11)))
}

func TestFloatsInto(t *testing.T) {
	dst := make([]float64, 10)
	result := FloatsInto(dst, "server", "client", 1, 5)
	require.Len(t, result, 5)
	assert.Equal(t, Floats("server", "client", 1, 5), result)

	small := make([]float64, 2)
	result = FloatsInto(small, "server", "client", 1, 5)
	assert.Len(t, result, 5)
}

func BenchmarkFloats(b *testing.B) {
	dst := make([]float64, 64)
	for i := 0; i < b.N; i++ {
		FloatsInto(dst, "bench_server", "bench_client", uint64(i), 64)
	}
}
