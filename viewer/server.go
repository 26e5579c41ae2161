// Package viewer serves live games over websockets and browses archived
// games and training history through DuckDB.
package viewer

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/brensch/twenty48/game"
)

// Server holds shared state for the HTTP handlers. Either field may be nil;
// the routes that need it then answer 503.
type Server struct {
	Hub     *Hub
	Archive *Archive
}

func NewServer(hub *Hub, archive *Archive) *Server {
	return &Server{Hub: hub, Archive: archive}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/board", s.handleBoard)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/", s.handleGameTurns)
	mux.HandleFunc("/api/history", s.handleHistory)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	var err error
	if snap, ok := s.latest(); ok {
		err = RenderPage(&buf, &snap)
	} else {
		err = RenderPage(&buf, nil)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleBoard renders just the latest board table.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest()
	if !ok {
		http.Error(w, "no game yet", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := RenderBoardHTML(&buf, snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		http.Error(w, "live view disabled", http.StatusServiceUnavailable)
		return
	}
	s.Hub.ServeWS(w, r)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if !s.apiPreamble(w, r) {
		return
	}
	q := r.URL.Query()
	resp, err := s.Archive.Games(r.Context(),
		parseIntQuery(r, "limit", 200),
		parseIntQuery(r, "offset", 0),
		q.Get("sort"), q.Get("dir"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

// handleGameTurns serves /api/games/{id}/turns.
func (s *Server) handleGameTurns(w http.ResponseWriter, r *http.Request) {
	if !s.apiPreamble(w, r) {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
		http.NotFound(w, r)
		return
	}
	gameID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	turns, err := s.Archive.Turns(r.Context(), gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(turns) == 0 {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, turns)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.apiPreamble(w, r) {
		return
	}
	rows, err := s.Archive.History(r.Context(), strings.TrimSpace(r.URL.Query().Get("run")))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// apiPreamble applies CORS and method checks and reports whether the handler
// should continue.
func (s *Server) apiPreamble(w http.ResponseWriter, r *http.Request) bool {
	withCORS(w)
	if r.Method == http.MethodOptions {
		return false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if s.Archive == nil {
		http.Error(w, "archive disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) latest() (snap game.Snapshot, ok bool) {
	if s.Hub == nil {
		return snap, false
	}
	return s.Hub.LatestSnapshot()
}
