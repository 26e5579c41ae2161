// Package genetic evolves fixed-length move sequences against the score they
// reach when replayed from a fresh game.
package genetic

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/brensch/twenty48/game"
)

// Individual is a fixed-length move sequence.
type Individual []game.Direction

// Population is a set of individuals plus the number of generations already
// evolved, which lets training resume.
type Population struct {
	Individuals []Individual
	Generation  int
}

func RandomIndividual(rng *rand.Rand, length int) Individual {
	ind := make(Individual, length)
	for i := range ind {
		ind[i] = game.Directions[rng.Intn(game.NumDirections)]
	}
	return ind
}

func RandomPopulation(rng *rand.Rand, size, length int) []Individual {
	pop := make([]Individual, size)
	for i := range pop {
		pop[i] = RandomIndividual(rng, length)
	}
	return pop
}

func (ind Individual) Clone() Individual {
	return append(Individual(nil), ind...)
}

// String encodes the sequence with one letter per move, e.g. "LLURD".
func (ind Individual) String() string {
	var sb strings.Builder
	sb.Grow(len(ind))
	for _, d := range ind {
		sb.WriteByte(d.Letter())
	}
	return sb.String()
}

// ParseIndividual decodes the String form.
func ParseIndividual(s string) (Individual, error) {
	ind := make(Individual, len(s))
	for i := 0; i < len(s); i++ {
		d, err := game.ParseDirection(s[i : i+1])
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}
		ind[i] = d
	}
	return ind, nil
}
