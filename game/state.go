package game

import (
	"math/rand"
)

// GameState is the complete state needed by the move engine.
// Score only grows; Turn counts accepted moves.
type GameState struct {
	Board *Board
	Score int
	Turn  int
}

// NewGame returns a fresh game with two tiles of value 2 at random cells.
func NewGame(rows, cols int, rng *rand.Rand) *GameState {
	b := NewBoard(rows, cols)
	for i := 0; i < 2; i++ {
		spawnValue(b, rng, 2)
	}
	return &GameState{Board: b}
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	return &GameState{Board: s.Board.Clone(), Score: s.Score, Turn: s.Turn}
}

// CopyFrom overwrites s with src, reusing the board storage.
func (s *GameState) CopyFrom(src *GameState) {
	if s.Board == nil {
		s.Board = src.Board.Clone()
	} else {
		s.Board.CopyFrom(src.Board)
	}
	s.Score = src.Score
	s.Turn = src.Turn
}

// Snapshot is an immutable view handed to renderers.
type Snapshot struct {
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Tiles []Tile `json:"tiles"`
	Score int    `json:"score"`
	Turn  int    `json:"turn"`
}

func (s *GameState) Snapshot() Snapshot {
	return Snapshot{
		Rows:  s.Board.Rows,
		Cols:  s.Board.Cols,
		Tiles: s.Board.Tiles(),
		Score: s.Score,
		Turn:  s.Turn,
	}
}
