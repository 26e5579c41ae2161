package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brensch/twenty48/executor/montecarlo"
	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/rules"
)

type BoardRequest struct {
	Rows  int   `json:"rows"`
	Cols  int   `json:"cols"`
	Cells []int `json:"cells"`
}

// MoveRequest asks for the next direction on a board. TimeoutMs overrides
// the server's default move budget.
type MoveRequest struct {
	Board     BoardRequest `json:"board"`
	Score     int          `json:"score"`
	Turn      int          `json:"turn"`
	TimeoutMs int          `json:"timeout_ms,omitempty"`
}

type DirectionScore struct {
	Direction string  `json:"direction"`
	Legal     bool    `json:"legal"`
	Rollouts  int     `json:"rollouts"`
	Mean      float64 `json:"mean"`
	Best      int     `json:"best"`
}

type MoveResponse struct {
	Move      string           `json:"move,omitempty"`
	GameOver  bool             `json:"game_over,omitempty"`
	Fallback  bool             `json:"fallback,omitempty"`
	Scores    []DirectionScore `json:"scores,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// Server answers move requests with a Monte Carlo search.
type Server struct {
	search      montecarlo.Config
	seed        int64
	moveTimeout time.Duration
	logger      *slog.Logger
}

func NewServer(search montecarlo.Config, seed int64, moveTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{search: search, seed: seed, moveTimeout: moveTimeout, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/move", s.handleMove)
	return mux
}

type infoResponse struct {
	Strategy string `json:"strategy"`
	Rollouts int    `json:"rollouts"`
	Timeout  string `json:"timeout"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, infoResponse{Strategy: "montecarlo", Rollouts: s.search.Rollouts, Timeout: s.moveTimeout.String()})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	state, err := toGameState(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	timeout := s.moveTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(r.Context(), computeBudget(timeout))
	defer cancel()

	resp := s.chooseMove(ctx, state)
	resp.ElapsedMs = time.Since(start).Milliseconds()
	s.logger.Info("move",
		"turn", req.Turn,
		"move", resp.Move,
		"fallback", resp.Fallback,
		"game_over", resp.GameOver,
		"elapsed", time.Since(start),
	)
	writeJSON(w, resp)
}

// responseReserve is kept back from every move timeout for encoding and
// network latency.
const responseReserve = 200 * time.Millisecond

const minComputeBudget = 20 * time.Millisecond

func computeBudget(timeout time.Duration) time.Duration {
	budget := timeout - responseReserve
	if budget < minComputeBudget {
		budget = minComputeBudget
	}
	return budget
}

// chooseMove runs the search. When the budget runs out first it falls back
// to the first legal direction.
func (s *Server) chooseMove(ctx context.Context, state *game.GameState) MoveResponse {
	searcher := montecarlo.New(s.search, s.seed)
	d, stats, err := searcher.ChooseDirection(ctx, state)
	switch {
	case errors.Is(err, montecarlo.ErrNoLegalMove):
		return MoveResponse{GameOver: true}
	case err != nil:
		s.logger.Warn("search did not finish, using fallback", "err", err)
		var legal [game.NumDirections]game.Direction
		moves := rules.LegalDirections(state.Board, legal[:0])
		if len(moves) == 0 {
			return MoveResponse{GameOver: true}
		}
		return MoveResponse{Move: moves[0].String(), Fallback: true}
	}

	scores := make([]DirectionScore, 0, len(stats))
	for _, st := range stats {
		ds := DirectionScore{Direction: st.Direction.String(), Legal: st.Legal}
		if st.Legal {
			ds.Rollouts, ds.Mean, ds.Best = st.Rollouts, st.Mean, st.Best
		}
		scores = append(scores, ds)
	}
	return MoveResponse{Move: d.String(), Scores: scores}
}

func toGameState(req MoveRequest) (*game.GameState, error) {
	b := &game.Board{Rows: req.Board.Rows, Cols: req.Board.Cols, Cells: append([]int(nil), req.Board.Cells...)}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if req.Score < 0 || req.Turn < 0 {
		return nil, fmt.Errorf("score and turn must not be negative")
	}
	return &game.GameState{Board: b, Score: req.Score, Turn: req.Turn}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
