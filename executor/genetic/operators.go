package genetic

import (
	"math/rand"
	"sort"

	"github.com/brensch/twenty48/game"
)

// Select returns the numParents fittest individuals, best first. Equal
// fitness keeps population order.
func Select(pop []Individual, fitness []int, numParents int) []Individual {
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fitness[order[a]] > fitness[order[b]] })

	if numParents > len(pop) {
		numParents = len(pop)
	}
	parents := make([]Individual, numParents)
	for i := range parents {
		parents[i] = pop[order[i]]
	}
	return parents
}

// CrossoverAt joins p1[:split] and p2[split:].
func CrossoverAt(p1, p2 Individual, split int) Individual {
	child := make(Individual, 0, len(p2))
	child = append(child, p1[:split]...)
	return append(child, p2[split:]...)
}

// Crossover breeds size children from parents picked uniformly with
// replacement. The split point is uniform in [1, length-1].
func Crossover(rng *rand.Rand, parents []Individual, size int) []Individual {
	if len(parents) == 0 {
		return nil
	}
	next := make([]Individual, 0, size)
	for len(next) < size {
		p1 := parents[rng.Intn(len(parents))]
		p2 := parents[rng.Intn(len(parents))]
		if len(p1) < 2 {
			next = append(next, p1.Clone())
			continue
		}
		split := 1 + rng.Intn(len(p1)-1)
		next = append(next, CrossoverAt(p1, p2, split))
	}
	return next
}

// Mutate replaces, with probability rate per individual, one random move with
// a random direction. Individuals are changed in place.
func Mutate(rng *rand.Rand, pop []Individual, rate float64) {
	for _, ind := range pop {
		if len(ind) == 0 || rng.Float64() >= rate {
			continue
		}
		ind[rng.Intn(len(ind))] = game.Directions[rng.Intn(game.NumDirections)]
	}
}
