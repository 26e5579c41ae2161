// Package game defines the core state types for 2048.
//
// These types hold only what the move engine and the search strategies need.
// Everything is cheap to clone so rollouts can run on private copies.
package game

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// DefaultRows and DefaultCols give the classic 4x4 grid.
const (
	DefaultRows = 4
	DefaultCols = 4
)

var ErrInvariant = errors.New("board invariant violated")

// Tile is an occupied cell.
type Tile struct {
	Value int `json:"value"`
	Row   int `json:"row"`
	Col   int `json:"col"`
}

// Board is a Rows x Cols grid stored row-major. A zero cell is empty.
type Board struct {
	Rows  int
	Cols  int
	Cells []int
}

// NewBoard returns an empty board.
func NewBoard(rows, cols int) *Board {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("game: invalid board size %dx%d", rows, cols))
	}
	return &Board{Rows: rows, Cols: cols, Cells: make([]int, rows*cols)}
}

// BoardFromTiles builds a board and places the given tiles. It fails if a tile
// is out of bounds, lands on an occupied cell or has an illegal value.
func BoardFromTiles(rows, cols int, tiles ...Tile) (*Board, error) {
	b := NewBoard(rows, cols)
	for _, t := range tiles {
		if !b.InBounds(t.Row, t.Col) {
			return nil, fmt.Errorf("%w: tile (%d,%d) outside %dx%d", ErrInvariant, t.Row, t.Col, rows, cols)
		}
		if b.Get(t.Row, t.Col) != 0 {
			return nil, fmt.Errorf("%w: two tiles at (%d,%d)", ErrInvariant, t.Row, t.Col)
		}
		if !validValue(t.Value) {
			return nil, fmt.Errorf("%w: value %d at (%d,%d)", ErrInvariant, t.Value, t.Row, t.Col)
		}
		b.Set(t.Row, t.Col, t.Value)
	}
	return b, nil
}

// BoardFromRows builds a board from a literal grid. Intended for tests and fixtures.
func BoardFromRows(grid [][]int) (*Board, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvariant)
	}
	b := NewBoard(len(grid), len(grid[0]))
	for r, row := range grid {
		if len(row) != b.Cols {
			return nil, fmt.Errorf("%w: ragged grid row %d", ErrInvariant, r)
		}
		copy(b.Cells[r*b.Cols:], row)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) Index(row, col int) int { return row*b.Cols + col }

func (b *Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows && col >= 0 && col < b.Cols
}

func (b *Board) Get(row, col int) int { return b.Cells[row*b.Cols+col] }

func (b *Board) Set(row, col, value int) { b.Cells[row*b.Cols+col] = value }

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := &Board{Rows: b.Rows, Cols: b.Cols, Cells: make([]int, len(b.Cells))}
	copy(out.Cells, b.Cells)
	return out
}

// CopyFrom overwrites b with src without allocating when the sizes match.
func (b *Board) CopyFrom(src *Board) {
	if len(b.Cells) != len(src.Cells) {
		b.Cells = make([]int, len(src.Cells))
	}
	b.Rows, b.Cols = src.Rows, src.Cols
	copy(b.Cells, src.Cells)
}

func (b *Board) Equal(other *Board) bool {
	if b.Rows != other.Rows || b.Cols != other.Cols {
		return false
	}
	for i, v := range b.Cells {
		if other.Cells[i] != v {
			return false
		}
	}
	return true
}

func (b *Board) TileCount() int {
	n := 0
	for _, v := range b.Cells {
		if v != 0 {
			n++
		}
	}
	return n
}

func (b *Board) Full() bool {
	for _, v := range b.Cells {
		if v == 0 {
			return false
		}
	}
	return true
}

func (b *Board) MaxTile() int {
	best := 0
	for _, v := range b.Cells {
		if v > best {
			best = v
		}
	}
	return best
}

// EmptyCells appends the indices of empty cells to dst and returns it.
func (b *Board) EmptyCells(dst []int) []int {
	for i, v := range b.Cells {
		if v == 0 {
			dst = append(dst, i)
		}
	}
	return dst
}

// Tiles lists occupied cells in row-major order.
func (b *Board) Tiles() []Tile {
	tiles := make([]Tile, 0, len(b.Cells))
	for i, v := range b.Cells {
		if v != 0 {
			tiles = append(tiles, Tile{Value: v, Row: i / b.Cols, Col: i % b.Cols})
		}
	}
	return tiles
}

// Validate checks the structural invariants of the board.
func (b *Board) Validate() error {
	if b.Rows <= 0 || b.Cols <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvariant, b.Rows, b.Cols)
	}
	if b.Rows > math.MaxInt/b.Cols {
		return fmt.Errorf("%w: size %dx%d overflows", ErrInvariant, b.Rows, b.Cols)
	}
	if len(b.Cells) != b.Rows*b.Cols {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrInvariant, len(b.Cells), b.Rows, b.Cols)
	}
	for i, v := range b.Cells {
		if v != 0 && !validValue(v) {
			return fmt.Errorf("%w: value %d at (%d,%d)", ErrInvariant, v, i/b.Cols, i%b.Cols)
		}
	}
	return nil
}

func validValue(v int) bool {
	return v >= 2 && bits.OnesCount(uint(v)) == 1
}

// String renders the board as right-aligned columns, one row per line.
func (b *Board) String() string {
	width := len(strconv.Itoa(b.MaxTile()))
	if width < 1 {
		width = 1
	}
	var sb strings.Builder
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			v := b.Get(r, c)
			cell := "."
			if v != 0 {
				cell = strconv.Itoa(v)
			}
			sb.WriteString(strings.Repeat(" ", width-len(cell)))
			sb.WriteString(cell)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
