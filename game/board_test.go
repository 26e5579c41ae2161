package game

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewGame_TwoTilesOfTwo(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		s := NewGame(DefaultRows, DefaultCols, rand.New(rand.NewSource(seed)))
		tiles := s.Board.Tiles()
		if len(tiles) != 2 {
			t.Fatalf("seed %d: %d tiles want 2", seed, len(tiles))
		}
		for _, tile := range tiles {
			if tile.Value != 2 {
				t.Fatalf("seed %d: initial tile %+v", seed, tile)
			}
		}
		if s.Score != 0 || s.Turn != 0 {
			t.Fatalf("seed %d: score=%d turn=%d", seed, s.Score, s.Turn)
		}
	}
}

func TestNewGame_ConfigurableSize(t *testing.T) {
	s := NewGame(3, 7, rand.New(rand.NewSource(1)))
	if s.Board.Rows != 3 || s.Board.Cols != 7 || len(s.Board.Cells) != 21 {
		t.Fatalf("got %dx%d with %d cells", s.Board.Rows, s.Board.Cols, len(s.Board.Cells))
	}
	if err := s.Board.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestSpawnTile_FillsOnlyEmptyCells(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	b := NewBoard(2, 2)
	for i := 0; i < 4; i++ {
		if !SpawnTile(b, rng, DefaultSpawnSettings) {
			t.Fatalf("spawn %d failed with free cells", i)
		}
		if b.TileCount() != i+1 {
			t.Fatalf("tile count=%d want %d", b.TileCount(), i+1)
		}
	}
	if SpawnTile(b, rng, DefaultSpawnSettings) {
		t.Fatalf("spawn succeeded on a full board")
	}
}

func TestSpawnTile_ValueDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	counts := map[int]int{}
	for i := 0; i < 4000; i++ {
		b := NewBoard(1, 1)
		SpawnTile(b, rng, DefaultSpawnSettings)
		counts[b.Cells[0]]++
	}
	if len(counts) != 2 || counts[2] < 1800 || counts[4] < 1800 {
		t.Fatalf("expected roughly uniform 2/4 split, got %v", counts)
	}

	onlyTwos := SpawnSettings{FourChance: 0}
	for i := 0; i < 100; i++ {
		b := NewBoard(1, 1)
		SpawnTile(b, rng, onlyTwos)
		if b.Cells[0] != 2 {
			t.Fatalf("FourChance=0 spawned %d", b.Cells[0])
		}
	}
}

func TestBoardFromTiles_RejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name  string
		tiles []Tile
	}{
		{"shared cell", []Tile{{Value: 2, Row: 0, Col: 0}, {Value: 4, Row: 0, Col: 0}}},
		{"out of bounds", []Tile{{Value: 2, Row: 4, Col: 0}}},
		{"not a power of two", []Tile{{Value: 6, Row: 1, Col: 1}}},
		{"value one", []Tile{{Value: 1, Row: 1, Col: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BoardFromTiles(4, 4, tc.tiles...)
			if !errors.Is(err, ErrInvariant) {
				t.Fatalf("err=%v want ErrInvariant", err)
			}
		})
	}
}

func TestValidate_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name  string
		board Board
	}{
		{"zero rows", Board{Rows: 0, Cols: 4}},
		{"cell count", Board{Rows: 2, Cols: 2, Cells: []int{2}}},
		{"product overflows", Board{Rows: 1 << 32, Cols: 1 << 32}},
		{"odd value", Board{Rows: 1, Cols: 2, Cells: []int{3, 0}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.board.Validate(); !errors.Is(err, ErrInvariant) {
				t.Fatalf("err=%v want ErrInvariant", err)
			}
		})
	}
}

func TestGameState_CloneIsIndependent(t *testing.T) {
	s := NewGame(4, 4, rand.New(rand.NewSource(4)))
	s.Score = 12
	c := s.Clone()
	c.Board.Cells[0] = 1024
	c.Score = 99
	if s.Board.Cells[0] == 1024 || s.Score != 12 {
		t.Fatalf("clone shares state with original")
	}

	var reused GameState
	reused.CopyFrom(s)
	if diff := cmp.Diff(s, &reused); diff != "" {
		t.Fatalf("CopyFrom mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_ListsTilesRowMajor(t *testing.T) {
	b, err := BoardFromRows([][]int{{0, 2}, {4, 0}})
	if err != nil {
		t.Fatal(err)
	}
	s := &GameState{Board: b, Score: 8, Turn: 3}
	want := Snapshot{
		Rows:  2,
		Cols:  2,
		Tiles: []Tile{{Value: 2, Row: 0, Col: 1}, {Value: 4, Row: 1, Col: 0}},
		Score: 8,
		Turn:  3,
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"left": Left, "R": Right, " up ": Up, "ArrowDown": Down, "d": Down,
	}
	for in, want := range tests {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("err=%v want ErrInvalidDirection", err)
	}
}

func TestDirection_JSONUsesNames(t *testing.T) {
	in := []Direction{Left, Down, Up}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["left","down","up"]` {
		t.Fatalf("json=%s", b)
	}
	var out []Direction
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMixSeed_Spreads(t *testing.T) {
	seen := map[int64]bool{}
	for i := uint64(0); i < 1000; i++ {
		s := MixSeed(42, i)
		if s < 0 {
			t.Fatalf("negative seed %d", s)
		}
		if seen[s] {
			t.Fatalf("collision at %d", i)
		}
		seen[s] = true
	}
}
