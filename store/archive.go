// Package store persists games, populations and training history as Parquet.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// TurnRow is a single (game, turn) snapshot intended for long-term storage.
//
// Cells is the board before the move, row-major, 0 for empty.
// Direction is the move played on this turn: 0=Left, 1=Right, 2=Up, 3=Down.
// Direction is -1 on the closing row that records the final board.
// Means holds the Monte Carlo mean final score per direction when the player
// was a Monte Carlo searcher, and is empty otherwise. A direction that could
// not move is stored as IllegalMean.
// Outcome, FinalScore and MaxTile describe the whole game and are filled in
// once it completes.
type TurnRow struct {
	GameID   string `parquet:"game_id,dict"`
	Turn     int32  `parquet:"turn"`
	Strategy string `parquet:"strategy,dict"`
	Rows     int32  `parquet:"rows"`
	Cols     int32  `parquet:"cols"`

	Cells []int32 `parquet:"cells"`
	Score int64   `parquet:"score"`

	Direction int32     `parquet:"direction"`
	Means     []float64 `parquet:"means"`
	Outcome   string    `parquet:"outcome,dict"`

	FinalScore int64 `parquet:"final_score"`
	MaxTile    int32 `parquet:"max_tile"`
}

const archiveSchema = "turn_v1"

// IllegalMean marks a direction that could not move. Scores are never
// negative, so it cannot collide with a real mean.
const IllegalMean = -1.0

func compression() parquet.WriterOption {
	return parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression})
}

// WriteTurnsParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so readers never observe partial files.
// The returned path is the final parquet file path.
func WriteTurnsParquetAtomic(outDir string, rows []TurnRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	// The random suffix keeps names unique across processes sharing outDir.
	name := fmt.Sprintf("batch_%d_%s.parquet", time.Now().UnixNano(), uuid.NewString()[:8])
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		compression(),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadTurns loads every row of an archive batch.
func ReadTurns(path string) ([]TurnRow, error) {
	rows, err := parquet.ReadFile[TurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
