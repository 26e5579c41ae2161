package viewer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brensch/twenty48/store"
)

// GameSummary is one archived game as listed by /api/games.
type GameSummary struct {
	GameID     string `json:"game_id"`
	Strategy   string `json:"strategy"`
	TurnCount  int32  `json:"turn_count"`
	Rows       int32  `json:"rows"`
	Cols       int32  `json:"cols"`
	Outcome    string `json:"outcome"`
	FinalScore int64  `json:"final_score"`
	MaxTile    int32  `json:"max_tile"`
	File       string `json:"file"`
}

type GamesResponse struct {
	Total int           `json:"total"`
	Games []GameSummary `json:"games"`
}

// Turn is one archived turn with its board as a grid.
type Turn struct {
	Turn      int32     `json:"turn"`
	Grid      [][]int32 `json:"grid"`
	Score     int64     `json:"score"`
	Direction string    `json:"direction,omitempty"`
	Means     []float64 `json:"means,omitempty"`
}

// Archive answers queries over the turn and history parquet files under a set
// of roots. The DuckDB views are rebuilt at most once per refresh interval so
// new batches show up without restarting.
type Archive struct {
	roots       []string
	refreshRate time.Duration

	mu          sync.Mutex
	db          *sql.DB
	lastRefresh time.Time
	games       []GameSummary
}

func NewArchive(roots []string, refreshRate time.Duration) *Archive {
	return &Archive{roots: roots, refreshRate: refreshRate}
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// conn returns the cached connection, reopening it when stale. Callers hold a.mu.
func (a *Archive) conn() (*sql.DB, error) {
	if a.db != nil && time.Since(a.lastRefresh) < a.refreshRate {
		return a.db, nil
	}
	start := time.Now()
	db, err := openArchiveDB(a.roots)
	if err != nil {
		return nil, err
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	a.db = db
	a.lastRefresh = time.Now()
	a.games = nil
	slog.Debug("archive refreshed", "roots", a.roots, "elapsed", time.Since(start))
	return a.db, nil
}

const (
	turnGlob    = "batch_*.parquet"
	historyGlob = "history_*.parquet"
)

const emptyTurns = `SELECT
	NULL::VARCHAR AS game_id, NULL::INTEGER AS turn, NULL::VARCHAR AS strategy,
	NULL::INTEGER AS "rows", NULL::INTEGER AS "cols", NULL::INTEGER[] AS cells,
	NULL::BIGINT AS score, NULL::INTEGER AS direction, NULL::DOUBLE[] AS means,
	NULL::VARCHAR AS outcome, NULL::BIGINT AS final_score, NULL::INTEGER AS max_tile,
	NULL::VARCHAR AS filename
	WHERE 1=0`

const emptyHistory = `SELECT
	NULL::VARCHAR AS run_id, NULL::INTEGER AS generation, NULL::BIGINT AS best,
	NULL::DOUBLE AS mean, NULL::BIGINT AS "min", NULL::VARCHAR AS best_moves,
	NULL::BIGINT AS unix_nano
	WHERE 1=0`

// openArchiveDB creates an in-memory DuckDB with a turns view and a history
// view over every matching parquet file, skipping tmp/ directories.
func openArchiveDB(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	views := []struct {
		name, pattern, empty string
	}{
		{"turns", turnGlob, emptyTurns},
		{"history", historyGlob, emptyHistory},
	}
	for _, v := range views {
		body := v.empty
		if globs := existingGlobs(roots, v.pattern); len(globs) > 0 {
			body = `SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
				WHERE NOT contains(filename, '/tmp/')`
		}
		if _, err := db.Exec(`CREATE OR REPLACE VIEW ` + v.name + ` AS ` + body); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create %s view: %w", v.name, err)
		}
	}
	return db, nil
}

// existingGlobs returns quoted recursive globs for the roots that hold at
// least one file matching pattern. read_parquet fails on globs with no match.
func existingGlobs(roots []string, pattern string) []string {
	var globs []string
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" || !hasMatch(root, pattern) {
			continue
		}
		glob := filepath.ToSlash(filepath.Join(root, "**", pattern))
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	return globs
}

func hasMatch(root, pattern string) bool {
	found := false
	stop := errors.New("found")
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			found = true
			return stop
		}
		return nil
	})
	return found
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Games lists archived games sorted by sortKey ("score", "turns", "tile",
// "id") and paginated.
func (a *Archive) Games(ctx context.Context, limit, offset int, sortKey, sortDir string) (GamesResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, err := a.conn()
	if err != nil {
		return GamesResponse{}, err
	}
	if a.games == nil {
		games, err := queryGames(ctx, db, a.roots)
		if err != nil {
			return GamesResponse{}, err
		}
		a.games = games
	}
	return GamesResponse{Total: len(a.games), Games: paginateGames(a.games, limit, offset, sortKey, sortDir)}, nil
}

func queryGames(ctx context.Context, db *sql.DB, roots []string) ([]GameSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			game_id,
			MIN(strategy)::VARCHAR,
			COUNT(*)::INTEGER,
			MIN("rows")::INTEGER,
			MIN("cols")::INTEGER,
			MIN(outcome)::VARCHAR,
			MAX(final_score)::BIGINT,
			MAX(max_tile)::INTEGER,
			MIN(filename)::VARCHAR
		FROM turns
		GROUP BY game_id`)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GameID, &g.Strategy, &g.TurnCount, &g.Rows, &g.Cols, &g.Outcome, &g.FinalScore, &g.MaxTile, &g.File); err != nil {
			return nil, err
		}
		g.File = relativeToRoots(g.File, roots)
		out = append(out, g)
	}
	return out, rows.Err()
}

func normalizeSort(sortKey, sortDir string) (string, bool) {
	desc := !strings.EqualFold(strings.TrimSpace(sortDir), "asc")
	switch strings.ToLower(strings.TrimSpace(sortKey)) {
	case "turns", "turn_count":
		return "turns", desc
	case "tile", "max_tile":
		return "tile", desc
	case "id", "game_id":
		return "id", desc
	default:
		return "score", desc
	}
}

func paginateGames(games []GameSummary, limit, offset int, sortKey, sortDir string) []GameSummary {
	key, desc := normalizeSort(sortKey, sortDir)
	sorted := append([]GameSummary(nil), games...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if desc {
			a, b = b, a
		}
		switch key {
		case "turns":
			return a.TurnCount < b.TurnCount
		case "tile":
			return a.MaxTile < b.MaxTile
		case "id":
			return a.GameID < b.GameID
		default:
			return a.FinalScore < b.FinalScore
		}
	})
	if offset >= len(sorted) {
		return []GameSummary{}
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sorted[offset:end]
}

func relativeToRoots(file string, roots []string) string {
	for _, root := range roots {
		rel, err := filepath.Rel(strings.TrimSpace(root), file)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return file
}

// Turns returns every turn of gameID in order.
func (a *Archive) Turns(ctx context.Context, gameID string) ([]Turn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT turn, "rows", "cols", cells, score, direction, means
		FROM turns WHERE game_id = ? ORDER BY turn`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t          Turn
			nr, nc     int32
			direction  int32
			cells, mns any
		)
		if err := rows.Scan(&t.Turn, &nr, &nc, &cells, &t.Score, &direction, &mns); err != nil {
			return nil, err
		}
		t.Grid = toGrid(asInt32Slice(cells), int(nr), int(nc))
		if direction >= 0 {
			t.Direction = directionName(direction)
		}
		t.Means = asFloat64Slice(mns)
		out = append(out, t)
	}
	return out, rows.Err()
}

// History returns the generation rows of runID, or of every run when runID is
// empty, ordered by run and generation.
func (a *Archive) History(ctx context.Context, runID string) ([]store.GenerationRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, err := a.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT run_id, generation, best, mean, "min", best_moves, unix_nano
		FROM history WHERE ? = '' OR run_id = ? ORDER BY run_id, generation`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []store.GenerationRow
	for rows.Next() {
		var g store.GenerationRow
		if err := rows.Scan(&g.RunID, &g.Generation, &g.Best, &g.Mean, &g.Min, &g.BestMoves, &g.UnixNano); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
