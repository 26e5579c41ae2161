package viewer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/brensch/twenty48/game"
)

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func directionName(d int32) string {
	dir := game.Direction(d)
	if !dir.Valid() {
		return ""
	}
	return dir.String()
}

func toGrid(cells []int32, rows, cols int) [][]int32 {
	if rows <= 0 || cols <= 0 || len(cells) < rows*cols {
		return nil
	}
	grid := make([][]int32, rows)
	for r := range grid {
		grid[r] = cells[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return grid
}

// DuckDB hands LIST columns back as []any.
func asInt32Slice(v any) []int32 {
	switch t := v.(type) {
	case []int32:
		return t
	case []any:
		out := make([]int32, 0, len(t))
		for _, x := range t {
			switch n := x.(type) {
			case int32:
				out = append(out, n)
			case int64:
				out = append(out, int32(n))
			case int:
				out = append(out, int32(n))
			default:
				out = append(out, 0)
			}
		}
		return out
	default:
		return nil
	}
}

func asFloat64Slice(v any) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		if len(t) == 0 {
			return nil
		}
		out := make([]float64, 0, len(t))
		for _, x := range t {
			switch n := x.(type) {
			case float64:
				out = append(out, n)
			case float32:
				out = append(out, float64(n))
			default:
				out = append(out, 0)
			}
		}
		return out
	default:
		return nil
	}
}
