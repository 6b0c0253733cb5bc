package services

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrixModel(m [][]float64) *CostModel {
	return &CostModel{cost: m, DistanceKm: m}
}

func randomAsymmetric(r *rand.Rand, n int) *CostModel {
	m := squareMatrix(n)
	for i := range m {
		for j := range m[i] {
			if i != j {
				m[i][j] = 1 + r.Float64()*100
			}
		}
	}
	return matrixModel(m)
}

func TestTwoOptUncrossesSquare(t *testing.T) {
	// Corners of a unit square: 0=(0,0) 1=(1,1) 2=(1,0) 3=(0,1).
	pts := [][2]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}}
	m := squareMatrix(4)
	for i := range pts {
		for j := range pts {
			m[i][j] = math.Hypot(pts[i][0]-pts[j][0], pts[i][1]-pts[j][1])
		}
	}
	costs := matrixModel(m)

	tour, moves := twoOpt(costs, []int{0, 1, 2, 3}, false)
	assert.Equal(t, []int{0, 2, 1, 3}, tour)
	assert.Equal(t, 1, moves)
	assert.InDelta(t, 3.0, tourCost(costs, tour, false), 1e-12)
}

func TestReversalDeltaMatchesFullRecompute(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		n := 3 + r.Intn(8)
		costs := randomAsymmetric(r, n)
		tour := r.Perm(n)

		for _, closed := range []bool{false, true} {
			base := tourCost(costs, tour, closed)
			for i := 1; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := slices.Clone(tour)
					slices.Reverse(cand[i : k+1])
					want := tourCost(costs, cand, closed) - base
					assert.InDelta(t, want, reversalDelta(costs, tour, i, k, closed), 1e-9)
				}
			}
		}
	}
}

func TestTwoOptNeverWorseThanConstruction(t *testing.T) {
	r := rand.New(rand.NewSource(99))

	for trial := 0; trial < 40; trial++ {
		n := 2 + r.Intn(14)
		costs := randomAsymmetric(r, n)
		for _, closed := range []bool{false, true} {
			start := r.Intn(n)
			nn := nearestNeighbor(costs, start)
			improved, moves := twoOpt(costs, nn, closed)

			assert.LessOrEqual(t, tourCost(costs, improved, closed), tourCost(costs, nn, closed)+1e-9)
			assert.LessOrEqual(t, moves, maxTwoOptMoves(n))
			assert.Equal(t, start, improved[0], "start stays fixed")
			assert.ElementsMatch(t, nn, improved)
		}
	}
}

func TestTwoOptReachesLocalOptimum(t *testing.T) {
	costs := randomAsymmetric(rand.New(rand.NewSource(4)), 10)
	tour, _ := twoOpt(costs, nearestNeighbor(costs, 0), true)

	for i := 1; i < len(tour)-1; i++ {
		for k := i + 1; k < len(tour); k++ {
			assert.GreaterOrEqual(t, reversalDelta(costs, tour, i, k, true), -improvementEps)
		}
	}
}

func TestNearestNeighborBreaksTiesByInputOrder(t *testing.T) {
	m := [][]float64{
		{0, 5, 2, 2},
		{5, 0, 1, 1},
		{2, 1, 0, 3},
		{2, 1, 3, 0},
	}
	costs := matrixModel(m)

	require.Equal(t, []int{0, 2, 1, 3}, nearestNeighbor(costs, 0))
	require.Equal(t, []int{3, 1, 2, 0}, nearestNeighbor(costs, 3))
	require.Empty(t, nearestNeighbor(matrixModel(nil), 0))
}
