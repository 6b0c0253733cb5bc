package services

import "math"

// Build a tour with the greedy nearest-neighbor heuristic from the given start.
//
// At each step the cheapest unvisited stop by the cost model is appended.
// Ties are broken by original input order so the construction is deterministic.
func nearestNeighbor(costs *CostModel, start int) []int {
	n := costs.Size()
	if n == 0 {
		return []int{}
	}

	visited := make([]bool, n)
	order := make([]int, 0, n)
	order = append(order, start)
	visited[start] = true

	current := start
	for len(order) < n {
		best := -1
		bestCost := math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			// Strict comparison keeps the lowest index among equal costs.
			if c := costs.At(current, j); best == -1 || c < bestCost {
				best = j
				bestCost = c
			}
		}

		visited[best] = true
		order = append(order, best)
		current = best
	}

	return order
}

// tourCost sums the directed costs along order, plus the closing edge when closed.
func tourCost(costs *CostModel, order []int, closed bool) float64 {
	if len(order) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += costs.At(order[i-1], order[i])
	}
	if closed {
		total += costs.At(order[len(order)-1], order[0])
	}
	return total
}
