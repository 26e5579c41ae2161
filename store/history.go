package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// GenerationRow records the fitness summary of one genetic generation.
type GenerationRow struct {
	RunID      string  `parquet:"run_id,dict"`
	Generation int32   `parquet:"generation"`
	Best       int64   `parquet:"best"`
	Mean       float64 `parquet:"mean"`
	Min        int64   `parquet:"min"`
	BestMoves  string  `parquet:"best_moves"`
	UnixNano   int64   `parquet:"unix_nano"`
}

const historySchema = "generation_v1"

// HistoryWriter streams GenerationRows of one training run into
// outDir/tmp/<run>.parquet and moves the file into outDir on Finalize.
type HistoryWriter struct {
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[GenerationRow]

	rows int
}

func NewHistoryWriter(outDir, runID string) (*HistoryWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("runID is required")
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("history_%s.parquet", runID)
	tmpPath := filepath.Join(tmpDir, name)
	outPath := filepath.Join(absOut, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	w := parquet.NewGenericWriter[GenerationRow](f, compression())
	w.SetKeyValueMetadata("schema", historySchema)
	w.SetKeyValueMetadata("run_id", runID)

	return &HistoryWriter{
		tmpPath: tmpPath,
		outPath: outPath,
		file:    f,
		writer:  w,
	}, nil
}

func (h *HistoryWriter) OutPath() string { return h.outPath }
func (h *HistoryWriter) Rows() int       { return h.rows }

func (h *HistoryWriter) Write(row GenerationRow) error {
	if h.file == nil {
		return fmt.Errorf("history writer is closed")
	}
	if _, err := h.writer.Write([]GenerationRow{row}); err != nil {
		return err
	}
	h.rows++
	return nil
}

// Finalize closes the file and publishes it into outDir. A run that wrote no
// rows leaves nothing behind and returns an empty path. Calling it again is a
// no-op.
func (h *HistoryWriter) Finalize() (outPath string, rows int, err error) {
	if h.file == nil {
		return "", 0, nil
	}
	w, f := h.writer, h.file
	h.writer, h.file = nil, nil

	err = errors.Join(w.Close(), f.Sync(), f.Close())
	if err != nil || h.rows == 0 {
		_ = os.Remove(h.tmpPath)
		if err != nil {
			return "", 0, fmt.Errorf("close history %s: %w", h.tmpPath, err)
		}
		return "", 0, nil
	}
	if err := os.Rename(h.tmpPath, h.outPath); err != nil {
		return "", 0, fmt.Errorf("publish history: %w", err)
	}
	return h.outPath, h.rows, nil
}
