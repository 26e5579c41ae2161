// Package rules implements the 2048 move engine.
//
// Every direction is described by a lineWalk: how many lines the grid splits
// into along the primary axis, how long each line is and how to step through a
// line in scan order (from the boundary the tiles slide toward). One routine
// handles all four directions.
package rules

import (
	"math/rand"

	"github.com/brensch/twenty48/game"
)

// lineWalk addresses cell k of line l as l*lineStride + offset + k*step.
type lineWalk struct {
	lines      int
	length     int
	lineStride int
	offset     int
	step       int
}

func walkFor(b *game.Board, d game.Direction) lineWalk {
	switch d {
	case game.Left:
		return lineWalk{lines: b.Rows, length: b.Cols, lineStride: b.Cols, offset: 0, step: 1}
	case game.Right:
		return lineWalk{lines: b.Rows, length: b.Cols, lineStride: b.Cols, offset: b.Cols - 1, step: -1}
	case game.Up:
		return lineWalk{lines: b.Cols, length: b.Rows, lineStride: 1, offset: 0, step: b.Cols}
	case game.Down:
		return lineWalk{lines: b.Cols, length: b.Rows, lineStride: 1, offset: (b.Rows - 1) * b.Cols, step: -b.Cols}
	}
	panic("rules: invalid direction " + d.String())
}

// Slide moves and merges tiles in place without spawning.
//
// Within a line tiles are taken in scan order and packed against the boundary.
// A tile merges into the previously packed tile when the values match and that
// tile was not itself produced by a merge during this call, so [2 2 2 2] slides
// left to [4 4 . .] and [2 2 4] to [4 4 .].
//
// delta is the sum of the values of all merged tiles. When moved is false the
// board is untouched.
func Slide(b *game.Board, d game.Direction) (delta int, moved bool) {
	delta, _, moved = SlideMerged(b, d)
	return delta, moved
}

// SlideMerged is Slide that also reports the largest tile produced by a merge
// during this call, or 0 when nothing merged.
func SlideMerged(b *game.Board, d game.Direction) (delta, largest int, moved bool) {
	w := walkFor(b, d)
	cells := b.Cells
	for l := 0; l < w.lines; l++ {
		origin := l*w.lineStride + w.offset
		next := 0      // next free slot in scan order
		mergeable := 0 // value of slot next-1 if it may still absorb a tile
		for k := 0; k < w.length; k++ {
			idx := origin + k*w.step
			v := cells[idx]
			if v == 0 {
				continue
			}
			if v == mergeable {
				cells[idx] = 0
				merged := v * 2
				cells[origin+(next-1)*w.step] = merged
				delta += merged
				largest = max(largest, merged)
				mergeable = 0
				moved = true
				continue
			}
			if k != next {
				cells[idx] = 0
				cells[origin+next*w.step] = v
				moved = true
			}
			mergeable = v
			next++
		}
	}
	return delta, largest, moved
}

// CanMove reports whether sliding in d would change the board.
func CanMove(b *game.Board, d game.Direction) bool {
	w := walkFor(b, d)
	for l := 0; l < w.lines; l++ {
		origin := l*w.lineStride + w.offset
		prev := -1 // value of the previous cell in scan order, 0 for empty
		for k := 0; k < w.length; k++ {
			v := b.Cells[origin+k*w.step]
			if v != 0 && (prev == 0 || prev == v) {
				return true
			}
			prev = v
		}
	}
	return false
}

// LegalDirections appends every direction that changes the board to dst.
func LegalDirections(b *game.Board, dst []game.Direction) []game.Direction {
	for _, d := range game.Directions {
		if CanMove(b, d) {
			dst = append(dst, d)
		}
	}
	return dst
}

// IsTerminal returns true if no direction can change the board: the grid is
// full and no tile has an equal right or down neighbour.
func IsTerminal(b *game.Board) bool {
	if !b.Full() {
		return false
	}
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			v := b.Get(r, c)
			if c+1 < b.Cols && b.Get(r, c+1) == v {
				return false
			}
			if r+1 < b.Rows && b.Get(r+1, c) == v {
				return false
			}
		}
	}
	return true
}

// ApplyMove returns the board that results from playing d, including the
// spawned tile. The input board is never modified. When moved is false the
// returned board is the input itself.
func ApplyMove(b *game.Board, d game.Direction, rng *rand.Rand, spawn game.SpawnSettings) (next *game.Board, delta int, moved bool) {
	if !CanMove(b, d) {
		return b, 0, false
	}
	next = b.Clone()
	delta, moved = Slide(next, d)
	game.SpawnTile(next, rng, spawn)
	return next, delta, moved
}
