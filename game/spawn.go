// spawn.go implements tile spawning after an accepted move.

package game

import (
	"math/rand"
)

// SpawnSettings controls which value a new tile gets.
type SpawnSettings struct {
	FourChance int // Percentage chance (0-100) that a spawned tile is a 4
}

// DefaultSpawnSettings picks 2 or 4 uniformly.
var DefaultSpawnSettings = SpawnSettings{FourChance: 50}

// SpawnTile places one tile at a uniformly random empty cell.
// It returns false if the board is full.
func SpawnTile(b *Board, rng *rand.Rand, settings SpawnSettings) bool {
	return spawnValue(b, rng, settingsValue(rng, settings))
}

// spawnValue places value at a random empty cell without allocating: the
// empty cells are counted once and the k-th one is picked on a second pass.
func spawnValue(b *Board, rng *rand.Rand, value int) bool {
	free := 0
	for _, v := range b.Cells {
		if v == 0 {
			free++
		}
	}
	if free == 0 {
		return false
	}
	k := rng.Intn(free)
	for i, v := range b.Cells {
		if v != 0 {
			continue
		}
		if k == 0 {
			b.Cells[i] = value
			return true
		}
		k--
	}
	return false
}

func settingsValue(rng *rand.Rand, settings SpawnSettings) int {
	if settings.FourChance > 0 && rng.Intn(100) < settings.FourChance {
		return 4
	}
	return 2
}

// MixSeed derives an independent seed from a base seed and a salt, so that
// parallel workers get reproducible streams regardless of scheduling.
func MixSeed(a, b uint64) int64 {
	// Variant of splitmix64
	x := a + b*0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x >> 1)
}
