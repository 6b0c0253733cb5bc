package services

import "slices"

// Strict improvement tolerance; deltas within it are treated as ties.
const improvementEps = 1e-9

// maxTwoOptMoves bounds the number of applied moves per start. Provider costs may be
// asymmetric or non-metric, so a plain "until no improvement" loop has no proof of
// termination under floating point noise.
func maxTwoOptMoves(n int) int {
	return 10 * n * n
}

// Improve a tour with first-improvement 2-opt.
//
// The start (order[0]) is fixed. For every pair (i, k), 1 ≤ i < k ≤ n-1, the cost delta
// of reversing order[i..k] is evaluated; the first improving move is applied and the scan
// restarts. The loop stops at a local optimum or when the move budget is spent.
// When closed, the edge back to the start takes part in every delta.
//
// Deltas are computed over the reversed segment as well as the two boundary edges, so
// asymmetric matrices are handled exactly.
func twoOpt(costs *CostModel, order []int, closed bool) ([]int, int) {
	cur := slices.Clone(order)
	n := len(cur)
	if n < 3 {
		return cur, 0
	}

	limit := maxTwoOptMoves(n)
	moves := 0
	for moves < limit {
		improved := false

	scan:
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				if reversalDelta(costs, cur, i, k, closed) < -improvementEps {
					slices.Reverse(cur[i : k+1])
					moves++
					improved = true
					break scan
				}
			}
		}

		if !improved {
			break
		}
	}

	return cur, moves
}

// reversalDelta returns new cost − old cost of reversing tour[i..k].
func reversalDelta(costs *CostModel, tour []int, i, k int, closed bool) float64 {
	a := tour[i-1]
	b := tour[i]
	c := tour[k]

	before := costs.At(a, b)
	after := costs.At(a, c)

	for t := i; t < k; t++ {
		before += costs.At(tour[t], tour[t+1])
		after += costs.At(tour[t+1], tour[t])
	}

	next := -1
	switch {
	case k+1 < len(tour):
		next = tour[k+1]
	case closed:
		next = tour[0]
	}
	if next >= 0 {
		before += costs.At(c, next)
		after += costs.At(b, next)
	}

	return after - before
}
